// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/server"
)

// listenAddr holds the flag value for the serve command.
var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversion HTTP API",
	Long: `Serve exposes POST /v1/analyze and POST /v1/convert for tooling that
embeds the converter, plus /healthz and /metrics.`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "bind address (overrides the preferences file)")
}

func runServeCommand(_ *cobra.Command, _ []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	addr := prefs.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	slog.Info("starting conversion server",
		slog.String("addr", addr),
		slog.String("catalog", cat.Version()))

	return server.New(cat, prefs).Run(addr)
}
