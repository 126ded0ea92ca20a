// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog loads the embedded dataset of Chrome extension APIs that
// Firefox does not support, supports partially, or has deprecated. The
// catalog is loaded once and is immutable afterwards; every consumer holds a
// reference passed in by the caller rather than reaching for a global.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed data/chrome_only_apis.json
var datasetJSON []byte

// FirefoxStatus describes Firefox's support level for a Chrome API.
type FirefoxStatus string

const (
	StatusUnsupported FirefoxStatus = "unsupported"
	StatusPartial     FirefoxStatus = "partial"
	StatusDeprecated  FirefoxStatus = "deprecated"
)

// Entry is the catalog record for one API path.
type Entry struct {
	ChromeVersion string        `json:"chrome_version"`
	FirefoxStatus FirefoxStatus `json:"firefox_status"`
	Category      string        `json:"category"`
	HasConverter  bool          `json:"has_converter"`
	Description   string        `json:"description"`
}

type dataset struct {
	UpdatedAt     string           `json:"updated_at"`
	SourceVersion string           `json:"source_version"`
	APIs          map[string]Entry `json:"apis"`
}

// Catalog is the immutable in-memory view of the dataset.
//
// Thread Safety:
//
//	A Catalog is read-only after Load returns and is safe for concurrent
//	use without synchronization.
type Catalog struct {
	updatedAt     string
	sourceVersion string
	apis          map[string]Entry
	paths         []string
}

// Load parses the embedded dataset.
//
// Outputs:
//   - *Catalog: Never nil on success.
//   - error: Non-nil when the embedded dataset is missing or malformed.
//     This is a fatal startup error: without the catalog no analysis
//     result can be trusted.
func Load() (*Catalog, error) {
	if len(datasetJSON) == 0 {
		return nil, fmt.Errorf("embedded API dataset is empty")
	}

	var ds dataset
	if err := json.Unmarshal(datasetJSON, &ds); err != nil {
		return nil, fmt.Errorf("parse embedded API dataset: %w", err)
	}
	if len(ds.APIs) == 0 {
		return nil, fmt.Errorf("embedded API dataset has no entries")
	}

	paths := make([]string, 0, len(ds.APIs))
	for p := range ds.APIs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return &Catalog{
		updatedAt:     ds.UpdatedAt,
		sourceVersion: ds.SourceVersion,
		apis:          ds.APIs,
		paths:         paths,
	}, nil
}

// normalize strips the namespace prefix so that chrome.* and browser.*
// spellings resolve to the same entry.
func normalize(apiPath string) string {
	apiPath = strings.TrimPrefix(apiPath, "chrome.")
	apiPath = strings.TrimPrefix(apiPath, "browser.")
	return apiPath
}

// Lookup resolves an API path to its catalog entry.
//
// Description:
//
//	Lookup first tries an exact match on the normalized path, then falls
//	back to the longest registered prefix at a dot boundary. For example
//	"browser.offscreen.createDocument" resolves to the "offscreen" entry.
//
// Outputs:
//   - Entry: The matched record. Zero value when ok is false.
//   - string: The catalog path that matched.
//   - bool: Whether any entry matched.
func (c *Catalog) Lookup(apiPath string) (Entry, string, bool) {
	p := normalize(apiPath)
	if e, ok := c.apis[p]; ok {
		return e, p, true
	}

	best := ""
	for candidate := range c.apis {
		if len(candidate) > len(best) && strings.HasPrefix(p, candidate+".") {
			best = candidate
		}
	}
	if best == "" {
		return Entry{}, "", false
	}
	return c.apis[best], best, true
}

// Paths returns every catalog path in sorted order. The returned slice is
// shared; callers must not modify it.
func (c *Catalog) Paths() []string {
	return c.paths
}

// Version describes the dataset for report freshness lines.
func (c *Catalog) Version() string {
	return fmt.Sprintf("%s (updated %s)", c.sourceVersion, c.updatedAt)
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.apis)
}
