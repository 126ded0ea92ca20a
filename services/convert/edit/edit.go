// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package edit implements byte-span source edits and their merge-and-apply
// step. Rewrite rules and feature converters never mutate source text
// directly; they emit Edits against the original bytes, and a single Apply
// call per file splices them together. This keeps every rule independent of
// the offsets shifted by every other rule.
package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrOverlap is returned when two edits claim intersecting byte ranges of
// the same file. An overlap means two rules disagree about the same code, so
// the file must not be modified at all.
var ErrOverlap = errors.New("overlapping edits")

// Edit replaces the half-open byte range [Start, End) of the original file
// content with Replacement. Start == End inserts without removing anything.
// Origin names the rule or converter that produced the edit and appears in
// overlap errors.
type Edit struct {
	Path        string
	Start       int
	End         int
	Replacement string
	Origin      string
}

// Insert builds a pure insertion at the given offset.
func Insert(path string, offset int, text, origin string) Edit {
	return Edit{Path: path, Start: offset, End: offset, Replacement: text, Origin: origin}
}

// Replace builds a replacement edit for the range [start, end).
func Replace(path string, start, end int, text, origin string) Edit {
	return Edit{Path: path, Start: start, End: end, Replacement: text, Origin: origin}
}

// Validate checks the edit's span against the length of the content it will
// be applied to.
func (e Edit) Validate(contentLen int) error {
	if e.Start < 0 || e.End < e.Start || e.End > contentLen {
		return fmt.Errorf("edit %q has invalid span [%d, %d) for content of %d bytes",
			e.Origin, e.Start, e.End, contentLen)
	}
	return nil
}

// Apply merges the edits and splices them into original.
//
// Description:
//
//	Edits are sorted by (Start, End, Origin) and applied in one pass. Two
//	edits overlap when their ranges intersect; insertions at the same offset
//	do not overlap and are emitted in sort order. Overlap is a hard error
//	naming both origins, and the caller is expected to pass the file through
//	unmodified. An empty edit list returns original byte-for-byte.
//
// Outputs:
//   - string: The edited content. len(out) = len(original) minus the sum of
//     removed span lengths plus the sum of replacement lengths.
//   - error: ErrOverlap (wrapped) or a span validation error.
func Apply(original string, edits []Edit) (string, error) {
	if len(edits) == 0 {
		return original, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		if sorted[i].End != sorted[j].End {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Origin < sorted[j].Origin
	})

	for _, e := range sorted {
		if err := e.Validate(len(original)); err != nil {
			return "", err
		}
	}
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		// Zero-width edits at a shared offset are fine; a removal that
		// reaches past the next edit's start is not.
		if cur.Start < prev.End {
			return "", fmt.Errorf("%w: %q [%d, %d) intersects %q [%d, %d)",
				ErrOverlap, prev.Origin, prev.Start, prev.End, cur.Origin, cur.Start, cur.End)
		}
	}

	var b strings.Builder
	b.Grow(len(original))
	pos := 0
	for _, e := range sorted {
		b.WriteString(original[pos:e.Start])
		b.WriteString(e.Replacement)
		pos = e.End
	}
	b.WriteString(original[pos:])
	return b.String(), nil
}
