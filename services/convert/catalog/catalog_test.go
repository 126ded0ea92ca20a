// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSucceeds(t *testing.T) {
	c, err := Load()

	require.NoError(t, err)
	assert.Greater(t, c.Len(), 10)
	assert.NotEmpty(t, c.Version())
}

func TestLookupExactMatch(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	e, path, ok := c.Lookup("chrome.tabs.getSelected")

	require.True(t, ok)
	assert.Equal(t, "tabs.getSelected", path)
	assert.Equal(t, StatusDeprecated, e.FirefoxStatus)
	assert.True(t, e.HasConverter)
}

func TestLookupLongestPrefix(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	e, path, ok := c.Lookup("browser.offscreen.createDocument")

	require.True(t, ok)
	assert.Equal(t, "offscreen", path)
	assert.Equal(t, StatusUnsupported, e.FirefoxStatus)
}

func TestLookupPrefersExactOverPrefix(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	// storage.session is registered; a sub-path must resolve to it, while
	// plain storage (not registered) must not match anything.
	_, path, ok := c.Lookup("chrome.storage.session.get")
	require.True(t, ok)
	assert.Equal(t, "storage.session", path)

	_, _, ok = c.Lookup("chrome.storage.local.get")
	assert.False(t, ok)
}

func TestLookupNoPartialTokenMatch(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	// "offscreenCanvas" shares a prefix string with "offscreen" but not at
	// a dot boundary, so it must not match.
	_, _, ok := c.Lookup("chrome.offscreenCanvas.create")
	assert.False(t, ok)
}

func TestLookupUnknownAPI(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	_, _, ok := c.Lookup("browser.runtime.sendMessage")
	assert.False(t, ok)
}

func TestPathsSorted(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	paths := c.Paths()
	assert.True(t, sort.StringsAreSorted(paths))
	assert.Len(t, paths, c.Len())
}
