// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package finding

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortOrdersByFileLineCategory(t *testing.T) {
	fs := []Finding{
		{Category: CategoryCallbackVsPromise, Location: Location{File: "b.js", Line: 3}},
		{Category: CategoryAPINamespace, Location: Location{File: "b.js", Line: 3}},
		{Category: CategoryChromeOnlyAPI, Location: Location{File: "a.js", Line: 10}},
		{Category: CategoryChromeOnlyAPI, Location: Location{File: "a.js", Line: 2}},
	}

	Sort(fs)

	assert.Equal(t, "a.js", fs[0].Location.File)
	assert.Equal(t, 2, fs[0].Location.Line)
	assert.Equal(t, 10, fs[1].Location.Line)
	assert.Equal(t, CategoryAPINamespace, fs[2].Category)
	assert.Equal(t, CategoryCallbackVsPromise, fs[3].Category)
}

func TestSortIsStableAcrossRuns(t *testing.T) {
	build := func() []Finding {
		return []Finding{
			{Category: CategoryEngine, Location: Location{File: "x.js", Line: 1}, Description: "b"},
			{Category: CategoryEngine, Location: Location{File: "x.js", Line: 1}, Description: "a"},
			{Category: CategoryManifestStructure, Location: Location{}},
		}
	}

	first := build()
	second := build()
	Sort(first)
	Sort(second)

	assert.Equal(t, first, second)
}

func TestSeverityJSONRoundTrip(t *testing.T) {
	f := Finding{Severity: SeverityMajor, Category: CategoryChromeOnlyAPI}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"major"`)

	var back Finding
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, SeverityMajor, back.Severity)
}

func TestHasBlocker(t *testing.T) {
	fs := []Finding{
		{Severity: SeverityInfo},
		{Severity: SeverityMajor},
	}
	assert.False(t, HasBlocker(fs))

	fs = append(fs, Finding{Severity: SeverityBlocker})
	assert.True(t, HasBlocker(fs))
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "<extension>", Location{}.String())
	assert.Equal(t, "manifest.json", Location{File: "manifest.json"}.String())
	assert.Equal(t, "bg.js:4:7", Location{File: "bg.js", Line: 4, Column: 7}.String())
}
