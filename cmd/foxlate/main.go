// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// foxlate converts Chrome (Manifest V3) extensions into Firefox-compatible
// WebExtensions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/foxlate/foxlate/services/convert/config"
)

const version = "0.3.0"

// configPath and verbose hold global flag values.
var (
	configPath string
	verbose    bool

	prefs config.Preferences
)

var rootCmd = &cobra.Command{
	Use:   "foxlate",
	Short: "Convert Chrome extensions to Firefox",
	Long: `foxlate analyzes and converts Chrome Manifest V3 extensions into
Firefox-compatible WebExtensions: namespace rewrites, manifest fixes,
callback-to-promise conversion, and replacements for Chrome-only APIs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		prefs, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the foxlate version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("foxlate", version)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "foxlate.yaml", "preferences file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd, convertCmd, serveCmd, catalogCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
