// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config holds user preferences for conversion runs, loaded from a
// YAML file and validated before use.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Preferences tunes how conversions behave.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Preferences struct {
	// PreferWorkers converts heavier canvas and audio offscreen documents
	// to Web Workers instead of flagging them for manual migration.
	PreferWorkers bool `yaml:"prefer_workers"`

	// CreatePolyfills injects the browser namespace polyfill into files
	// whose references were rewritten.
	CreatePolyfills bool `yaml:"create_polyfills"`

	// PromptForURLs allows interactive prompts for content script match
	// patterns that cannot be derived from the source.
	PromptForURLs bool `yaml:"prompt_for_urls"`

	// StrictMinVersion is written as the minimum Firefox version alongside
	// the generated add-on ID. Format: "major.minor".
	StrictMinVersion string `yaml:"strict_min_version"`

	// MaxWorkers caps parallel per-file rewrite tasks. Zero means one per
	// logical CPU.
	MaxWorkers int `yaml:"max_workers" validate:"gte=0,lte=256"`

	// MaxFileSizeBytes caps the size of source files the parser accepts.
	// Zero keeps the built-in default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" validate:"gte=0"`

	// ListenAddr is the bind address for serve mode.
	ListenAddr string `yaml:"listen_addr" validate:"omitempty,hostname_port"`
}

var versionRe = regexp.MustCompile(`^\d+\.\d+$`)

// Defaults returns the preferences used when no file overrides them.
func Defaults() Preferences {
	return Preferences{
		CreatePolyfills:  true,
		StrictMinVersion: "121.0",
		ListenAddr:       ":8750",
	}
}

// Parse reads preferences from YAML, layered over the defaults.
func Parse(data []byte) (Preferences, error) {
	p := Defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("parse preferences: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// Load reads preferences from a file. A missing file is not an error; the
// defaults apply.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Defaults(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("read preferences %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks field constraints.
func (p Preferences) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid preferences: %w", err)
	}
	if p.StrictMinVersion != "" && !versionRe.MatchString(p.StrictMinVersion) {
		return fmt.Errorf("invalid preferences: strict_min_version %q is not major.minor", p.StrictMinVersion)
	}
	return nil
}
