// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/feature"
	"github.com/foxlate/foxlate/services/convert/packager"
	"github.com/foxlate/foxlate/services/convert/pipeline"
	"github.com/foxlate/foxlate/services/convert/report"
)

// outputPath, reportPath, and interactive hold flag values for the convert
// command.
var (
	outputPath  string
	reportPath  string
	interactive bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <extension>",
	Short: "Convert an extension and write a Firefox .xpi",
	Long: `Convert reads an extension (unpacked directory, .zip, or .crx),
rewrites it for Firefox, and writes an unsigned .xpi. The run always
completes: anything that could not convert automatically is listed as a
manual action in the output and the optional report.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvertCommand,
}

func init() {
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "converted.xpi", "output .xpi path")
	convertCmd.Flags().StringVar(&reportPath, "report", "", "write a Markdown conversion report to this path")
	convertCmd.Flags().BoolVar(&interactive, "interactive", false, "prompt for URL patterns the converter cannot derive")
}

func pipelineOptions(p feature.URLPrompter) pipeline.Options {
	return pipeline.Options{
		Workers:          prefs.MaxWorkers,
		CreatePolyfill:   prefs.CreatePolyfills,
		PreferWorkers:    prefs.PreferWorkers,
		MaxFileSizeBytes: prefs.MaxFileSizeBytes,
		StrictMinVersion: prefs.StrictMinVersion,
		URLPrompter:      p,
	}
}

func runConvertCommand(cmd *cobra.Command, args []string) error {
	files, doc, err := packager.Extract(args[0])
	if err != nil {
		return err
	}
	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	var prompter feature.URLPrompter
	if interactive || prefs.PromptForURLs {
		prompter = promptForPatterns
	}

	res, err := pipeline.Convert(cmd.Context(), files, doc, cat, pipelineOptions(prompter))
	if err != nil {
		return err
	}

	if err := packager.Build(outputPath, res); err != nil {
		return err
	}

	if reportPath != "" {
		md := report.Generate(res, files)
		if err := os.WriteFile(reportPath, []byte(md), 0o644); err != nil {
			return fmt.Errorf("write report %s: %w", reportPath, err)
		}
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Converted %s %s", doc.Name(), doc.Version())))
	fmt.Printf("Wrote %s: %d files (%d modified, %d generated, %d removed)\n",
		outputPath, len(res.Files), len(res.Counts), len(res.NewFiles), len(res.RemovedFiles))
	fmt.Println(summaryLine(res.Findings))

	for _, ins := range res.Instructions {
		fmt.Println("  - " + ins)
	}
	if reportPath != "" {
		fmt.Printf("Report written to %s\n", reportPath)
	}
	return nil
}

// promptForPatterns asks the operator for content script match patterns
// when the converter cannot derive them from the source.
func promptForPatterns(_ context.Context, suggestions []string) ([]string, error) {
	placeholder := "*://*.example.com/*"
	if len(suggestions) > 0 {
		placeholder = suggestions[0]
	}

	var raw string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Content script match patterns").
			Description("The converted DOM logic must run as a content script. Enter the match patterns it should inject on, separated by commas.").
			Placeholder(placeholder).
			Value(&raw),
	))
	if err := form.Run(); err != nil {
		return nil, err
	}

	var patterns []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns, nil
}
