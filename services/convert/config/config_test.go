// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := Defaults()

	assert.True(t, p.CreatePolyfills)
	assert.Equal(t, "121.0", p.StrictMinVersion)
	assert.Zero(t, p.MaxWorkers)
}

func TestParseLayersOverDefaults(t *testing.T) {
	p, err := Parse([]byte("max_workers: 4\nprompt_for_urls: true\n"))

	require.NoError(t, err)
	assert.Equal(t, 4, p.MaxWorkers)
	assert.True(t, p.PromptForURLs)
	assert.True(t, p.CreatePolyfills, "unset fields keep their defaults")
}

func TestParseRejectsBadVersion(t *testing.T) {
	_, err := Parse([]byte("strict_min_version: not-a-version\n"))

	assert.ErrorContains(t, err, "strict_min_version")
}

func TestParseRejectsNegativeWorkers(t *testing.T) {
	_, err := Parse([]byte("max_workers: -1\n"))

	assert.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Defaults(), p)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: 127.0.0.1:9000\n"), 0o600))

	p, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", p.ListenAddr)
}
