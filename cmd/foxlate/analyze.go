// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/packager"
	"github.com/foxlate/foxlate/services/convert/pipeline"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	blockerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <extension>",
	Short: "Report compatibility findings without converting",
	Long: `Analyze reads an extension (unpacked directory, .zip, or .crx) and
prints every compatibility finding without changing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyzeCommand,
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	files, doc, err := packager.Extract(args[0])
	if err != nil {
		return err
	}
	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	a, err := pipeline.Analyze(cmd.Context(), files, doc, cat, pipelineOptions(nil))
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%s %s", doc.Name(), doc.Version())))
	fmt.Printf("Scanned %d source files against %s\n\n", a.FilesScanned, a.CatalogVersion)

	if len(a.Findings) == 0 {
		fmt.Println(okStyle.Render("No compatibility issues found."))
		return nil
	}

	renderFindingsTable(a.Findings)
	fmt.Println()
	fmt.Println(summaryLine(a.Findings))

	if finding.HasBlocker(a.Findings) {
		fmt.Println(blockerStyle.Render("Blocking issues present; the extension cannot convert as-is."))
	}
	return nil
}

func renderFindingsTable(fs []finding.Finding) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Severity", "Location", "Category", "Description", "Auto-fix"})
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for _, f := range fs {
		auto := ""
		if f.AutoFixable {
			auto = "yes"
		}
		table.Append([]string{
			f.Severity.String(),
			f.Location.String(),
			string(f.Category),
			f.Description,
			auto,
		})
	}
	table.Render()
}

func summaryLine(fs []finding.Finding) string {
	counts := finding.CountBySeverity(fs)
	line := fmt.Sprintf("%d findings: %d blocker, %d major, %d minor, %d info",
		len(fs),
		counts[finding.SeverityBlocker],
		counts[finding.SeverityMajor],
		counts[finding.SeverityMinor],
		counts[finding.SeverityInfo])
	if counts[finding.SeverityBlocker] > 0 {
		return blockerStyle.Render(line)
	}
	if counts[finding.SeverityMajor] > 0 {
		return warnStyle.Render(line)
	}
	return okStyle.Render(line)
}
