// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEmptyEditListReturnsInputUnchanged(t *testing.T) {
	src := "chrome.tabs.query({});"

	out, err := Apply(src, nil)

	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestApplySingleReplacement(t *testing.T) {
	src := "chrome.tabs.query({});"

	out, err := Apply(src, []Edit{Replace("bg.js", 0, 6, "browser", "namespace")})

	require.NoError(t, err)
	assert.Equal(t, "browser.tabs.query({});", out)
}

func TestApplyUnsortedEditsAreOrdered(t *testing.T) {
	src := "aa bb cc"

	out, err := Apply(src, []Edit{
		Replace("f", 6, 8, "CC", "r3"),
		Replace("f", 0, 2, "AA", "r1"),
		Replace("f", 3, 5, "BB", "r2"),
	})

	require.NoError(t, err)
	assert.Equal(t, "AA BB CC", out)
}

func TestApplyInsertionAtSharedOffset(t *testing.T) {
	src := "f(x)"

	out, err := Apply(src, []Edit{
		Insert("f", 0, "// header\n", "polyfill"),
		Replace("f", 0, 1, "g", "rename"),
	})

	require.NoError(t, err)
	assert.Equal(t, "// header\ng(x)", out)
}

func TestApplyOverlapErrorNamesBothOrigins(t *testing.T) {
	src := "chrome.runtime.id"

	_, err := Apply(src, []Edit{
		Replace("f", 0, 10, "x", "rule-a"),
		Replace("f", 5, 12, "y", "rule-b"),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap))
	assert.Contains(t, err.Error(), "rule-a")
	assert.Contains(t, err.Error(), "rule-b")
}

func TestApplyRejectsSpanPastEnd(t *testing.T) {
	_, err := Apply("short", []Edit{Replace("f", 2, 99, "x", "bad")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestApplyLengthArithmetic(t *testing.T) {
	src := "0123456789"
	edits := []Edit{
		Replace("f", 1, 4, "ab", "r1"),    // -3 +2
		Insert("f", 5, "XYZ", "r2"),       // +3
		Replace("f", 7, 10, "", "r3"),     // -3
	}

	out, err := Apply(src, edits)

	require.NoError(t, err)
	removed := (4 - 1) + (10 - 7)
	added := len("ab") + len("XYZ")
	assert.Len(t, out, len(src)-removed+added)
	assert.Equal(t, "0ab4XYZ56", out)
}

func TestApplyAdjacentEditsDoNotOverlap(t *testing.T) {
	src := "abcdef"

	out, err := Apply(src, []Edit{
		Replace("f", 0, 3, "X", "left"),
		Replace("f", 3, 6, "Y", "right"),
	})

	require.NoError(t, err)
	assert.Equal(t, "XY", out)
}
