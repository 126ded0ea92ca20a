// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package finding defines the incompatibility records produced by the
// analyzer and converter stages. Findings are value types: once built they
// are never mutated, so they can be shared freely across worker goroutines.
package finding

import (
	"fmt"
	"sort"
)

// Severity ranks how disruptive an incompatibility is for the converted
// extension. The order of the constants matters: higher values are more
// severe and sort first within a location.
type Severity int

const (
	// SeverityInfo flags cosmetic differences that do not change behavior.
	SeverityInfo Severity = iota
	// SeverityMinor flags issues with a safe automated fix.
	SeverityMinor
	// SeverityMajor flags issues that need structural conversion work.
	SeverityMajor
	// SeverityBlocker flags issues that prevent conversion entirely.
	SeverityBlocker
)

// String returns the lowercase wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityBlocker:
		return "blocker"
	case SeverityMajor:
		return "major"
	case SeverityMinor:
		return "minor"
	default:
		return "info"
	}
}

// MarshalJSON encodes the severity as its string name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON decodes a severity from its string name.
func (s *Severity) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"blocker"`:
		*s = SeverityBlocker
	case `"major"`:
		*s = SeverityMajor
	case `"minor"`:
		*s = SeverityMinor
	case `"info"`:
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity %s", data)
	}
	return nil
}

// Category identifies the kind of incompatibility. The values mirror the
// categories carried by the API catalog plus the manifest-level checks.
type Category string

const (
	CategoryManifestStructure       Category = "manifest_structure"
	CategoryBackgroundWorker        Category = "background_worker"
	CategoryChromeOnlyAPI           Category = "chrome_only_api"
	CategoryAPINamespace            Category = "api_namespace"
	CategoryCallbackVsPromise       Category = "callback_vs_promise"
	CategoryHostPermissions         Category = "host_permissions"
	CategoryWebAccessibleResources  Category = "web_accessible_resources"
	CategoryContentSecurityPolicy   Category = "content_security_policy"
	CategoryMissingFirefoxID        Category = "missing_firefox_id"
	CategoryBrowserStyle            Category = "browser_style"
	CategoryImportScripts           Category = "import_scripts"
	CategoryServiceWorkerLifecycle  Category = "service_worker_lifecycle"
	CategoryDeprecatedAPI           Category = "deprecated_api"
	CategoryOffscreenDocument       Category = "offscreen_document"
	CategoryDeclarativeContent      Category = "declarative_content"
	CategoryTabGroups               Category = "tab_groups"
	CategorySidePanel               Category = "side_panel"
	CategoryStorageSession          Category = "storage_session"
	CategoryEngine                  Category = "engine"
)

// Location points at the source position a finding refers to. Line and
// Column are 1-based; a zero Line means the finding is file-level (or, with
// an empty File, extension-level).
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<extension>"
	}
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Finding describes one detected incompatibility.
//
// Description:
//
//	A Finding records what was found, where, how severe it is, and whether
//	the converter can fix it without human input. Findings with
//	AutoFixable=false always carry a Suggestion telling the developer what
//	to do by hand.
type Finding struct {
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Location    Location `json:"location"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AutoFixable bool     `json:"auto_fixable"`
}

// Sort orders findings by file path, then line, then category, then
// description. The order is total, so equal inputs always serialize to the
// same byte sequence.
func Sort(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		a, b := fs[i], fs[j]
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		return a.Description < b.Description
	})
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(fs []Finding) map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, f := range fs {
		counts[f.Severity]++
	}
	return counts
}

// HasBlocker reports whether any finding is a conversion blocker.
func HasBlocker(fs []Finding) bool {
	for _, f := range fs {
		if f.Severity == SeverityBlocker {
			return true
		}
	}
	return false
}
