// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package feature converts the Chrome-only capabilities that have no direct
// Firefox API: offscreen documents, declarativeContent rules, tab groups,
// session storage, and the side panel. Each converter is a strategy that
// turns one finding into generated files, manifest changes, and follow-up
// instructions. Nothing is dropped silently: a capability either converts
// or surfaces as a manual-action finding.
package feature

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/manifest"
)

var tracer = otel.Tracer("foxlate/convert/feature")

// NewFile is a generated file added to the converted extension.
type NewFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Purpose string `json:"purpose"`
}

// Artifacts is the output of one feature conversion.
type Artifacts struct {
	NewFiles []NewFile
	// Edits mark converted call sites in the original source. They target
	// original byte offsets, so the caller merges them with any other
	// pending edits for the file in a single pass.
	Edits        []edit.Edit
	Patches      []manifest.Patch
	Findings     []finding.Finding
	Instructions []string
	// RemovedFiles lists extension files the converted package no longer
	// needs, such as the offscreen document itself.
	RemovedFiles []string
}

func (a *Artifacts) merge(b *Artifacts) {
	if b == nil {
		return
	}
	a.NewFiles = append(a.NewFiles, b.NewFiles...)
	a.Edits = append(a.Edits, b.Edits...)
	a.Patches = append(a.Patches, b.Patches...)
	a.Findings = append(a.Findings, b.Findings...)
	a.Instructions = append(a.Instructions, b.Instructions...)
	a.RemovedFiles = append(a.RemovedFiles, b.RemovedFiles...)
}

// URLPrompter supplies content script match patterns when they cannot be
// derived from the source. A nil prompter means no interactive input is
// available and the conversion must surface a manual finding instead of
// guessing.
type URLPrompter func(ctx context.Context, suggestions []string) ([]string, error)

// Option configures a Converter.
type Option func(*Converter)

// WithURLPrompter enables interactive URL-pattern input.
func WithURLPrompter(p URLPrompter) Option {
	return func(c *Converter) { c.prompt = p }
}

// WithWorkerPreference raises the complexity ceiling for Web Worker
// conversions, so canvas and audio offscreen documents that would otherwise
// need manual migration still convert.
func WithWorkerPreference(prefer bool) Option {
	return func(c *Converter) { c.preferWorkers = prefer }
}

// Converter dispatches findings to the feature strategies.
//
// Thread Safety:
//
//	Converter is safe for concurrent use; all per-conversion state lives
//	on the stack.
type Converter struct {
	prompt        URLPrompter
	preferWorkers bool
}

// NewConverter creates a Converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert runs the strategy for one finding against the extension's files.
//
// Description:
//
//	The finding's category selects the strategy; the variant set is closed,
//	so an unknown category is an error rather than a silent skip. files
//	maps extension-relative paths to contents and is never mutated.
func (c *Converter) Convert(ctx context.Context, f finding.Finding, files map[string][]byte, doc *manifest.Document) (*Artifacts, error) {
	ctx, span := tracer.Start(ctx, "feature.Convert",
		trace.WithAttributes(attribute.String("finding.category", string(f.Category))))
	defer span.End()

	switch f.Category {
	case finding.CategoryOffscreenDocument:
		return c.convertOffscreen(ctx, f, files, doc)
	case finding.CategoryDeclarativeContent:
		return c.convertDeclarativeContent(ctx, f, files, doc)
	case finding.CategoryTabGroups:
		return c.convertTabGroups(doc)
	case finding.CategoryStorageSession:
		return c.convertStorageSession(doc)
	case finding.CategorySidePanel:
		return c.convertSidePanelScripts(doc)
	default:
		return nil, fmt.Errorf("no feature converter for category %q", f.Category)
	}
}

// addContentScript registers a generated content script in the manifest and
// returns the resulting patch.
func addContentScript(doc *manifest.Document, matches []string, js []string, runAt string) manifest.Patch {
	entry := map[string]any{
		"matches": toAnyList(matches),
		"js":      toAnyList(js),
		"run_at":  runAt,
	}
	list, _ := doc.GetList("content_scripts")
	list = append(list, entry)
	doc.Set("content_scripts", list)
	return manifest.Patch{Field: "content_scripts", New: entry}
}

// addPermission appends a named permission if absent.
func addPermission(doc *manifest.Document, perm string) (manifest.Patch, bool) {
	list, _ := doc.GetList("permissions")
	for _, p := range list {
		if s, ok := p.(string); ok && s == perm {
			return manifest.Patch{}, false
		}
	}
	list = append(list, perm)
	doc.Set("permissions", list)
	return manifest.Patch{Field: "permissions", New: perm}, true
}

// addBackgroundScript appends a generated script to background.scripts.
func addBackgroundScript(doc *manifest.Document, path string) manifest.Patch {
	list, _ := doc.GetList("background.scripts")
	list = append(list, path)
	doc.Set("background.scripts", list)
	return manifest.Patch{Field: "background.scripts", New: path}
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func sortedUnique(ss []string) []string {
	seen := make(map[string]struct{}, len(ss))
	var out []string
	for _, s := range ss {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
