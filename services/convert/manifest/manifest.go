// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package manifest models the extension manifest and the declarative rule
// list that detects and fixes Firefox incompatibilities in it. The document
// keeps every key it was parsed with, known or not, so fixes never lose
// fields the converter does not understand.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIdentity is returned when the manifest lacks the identifying fields a
// conversion result must carry. This is fatal: without name and version no
// output package can be produced.
var ErrIdentity = errors.New("manifest identity missing")

// FileName is the manifest's path inside the extension.
const FileName = "manifest.json"

// Document is a parsed manifest. All access goes through dotted field
// paths; list indices are not addressable, rules replace lists wholesale.
type Document struct {
	m map[string]any
}

// Parse decodes manifest bytes and validates the identity fields.
//
// Outputs:
//   - *Document: Never nil on success.
//   - error: A JSON error, or ErrIdentity (wrapped) when name, version, or
//     manifest_version is absent.
func Parse(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	d := &Document{m: m}
	if d.Name() == "" {
		return nil, fmt.Errorf("%w: name", ErrIdentity)
	}
	if d.Version() == "" {
		return nil, fmt.Errorf("%w: version", ErrIdentity)
	}
	if _, ok := d.Get("manifest_version"); !ok {
		return nil, fmt.Errorf("%w: manifest_version", ErrIdentity)
	}
	return d, nil
}

// Name returns the extension name.
func (d *Document) Name() string {
	s, _ := d.GetString("name")
	return s
}

// Version returns the extension version string.
func (d *Document) Version() string {
	s, _ := d.GetString("version")
	return s
}

// ManifestVersion returns the declared manifest_version, or 0.
func (d *Document) ManifestVersion() int {
	v, ok := d.Get("manifest_version")
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case float64:
		return int(n)
	}
	return 0
}

// Get resolves a dotted field path.
func (d *Document) Get(path string) (any, bool) {
	cur := any(d.m)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetString resolves a dotted path to a string value.
func (d *Document) GetString(path string) (string, bool) {
	v, ok := d.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetList resolves a dotted path to a list value.
func (d *Document) GetList(path string) ([]any, bool) {
	v, ok := d.Get(path)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// Set writes a dotted field path, creating intermediate objects.
func (d *Document) Set(path string, value any) {
	segs := strings.Split(path, ".")
	cur := d.m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// Delete removes a dotted field path. Missing paths are a no-op.
func (d *Document) Delete(path string) {
	segs := strings.Split(path, ".")
	cur := d.m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// Clone deep-copies the document so fixes never touch the caller's copy.
func (d *Document) Clone() *Document {
	return &Document{m: cloneValue(d.m).(map[string]any)}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Marshal renders the manifest with two-space indentation. Object keys
// serialize in sorted order, so equal documents yield identical bytes.
func (d *Document) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(d.m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(out, '\n'), nil
}

// Patch records one field-level manifest change.
type Patch struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

func (p Patch) String() string {
	switch {
	case p.Old == nil:
		return fmt.Sprintf("%s: added %v", p.Field, p.New)
	case p.New == nil:
		return fmt.Sprintf("%s: removed", p.Field)
	default:
		return fmt.Sprintf("%s: %v -> %v", p.Field, p.Old, p.New)
	}
}

// SanitizeID turns an extension name into the local part of a generated
// Gecko add-on ID. Whitespace becomes hyphens, anything outside
// [A-Za-z0-9._-] is dropped, and leading or trailing punctuation is
// trimmed.
func SanitizeID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r == ' ' || r == '\t':
			b.WriteByte('-')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), "-._")
	if s == "" {
		return "converted-extension"
	}
	return s
}
