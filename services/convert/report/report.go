// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report renders a conversion run as a Markdown document a
// developer can read top to bottom: what happened, what still needs a
// human, and exactly what changed in each file.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/pipeline"
)

// severityOrder lists severities from most to least urgent for rendering.
var severityOrder = []finding.Severity{
	finding.SeverityBlocker,
	finding.SeverityMajor,
	finding.SeverityMinor,
	finding.SeverityInfo,
}

// Generate renders the Markdown report for one conversion run. original is
// the pre-conversion file map, used for the diffs section.
func Generate(res *pipeline.Result, original map[string][]byte) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Conversion report: %s %s\n\n", res.Manifest.Name(), res.Manifest.Version())
	fmt.Fprintf(&b, "- Run ID: `%s`\n", res.RunID)
	fmt.Fprintf(&b, "- Compatibility data: %s\n\n", res.CatalogVersion)

	writeSummary(&b, res)
	writeFindings(&b, res.Findings)
	writeManifestChanges(&b, res)
	writeNewFiles(&b, res)
	writeManualActions(&b, res)
	writeDiffs(&b, res, original)

	return b.String()
}

func writeSummary(b *strings.Builder, res *pipeline.Result) {
	b.WriteString("## Summary\n\n")

	counts := finding.CountBySeverity(res.Findings)
	for _, s := range severityOrder {
		if counts[s] > 0 {
			fmt.Fprintf(b, "- %s findings: %d\n", s, counts[s])
		}
	}
	fmt.Fprintf(b, "- Files modified: %d\n", len(res.Counts))
	fmt.Fprintf(b, "- Files generated: %d\n", len(res.NewFiles))
	if len(res.RemovedFiles) > 0 {
		fmt.Fprintf(b, "- Files removed: %d (%s)\n", len(res.RemovedFiles), strings.Join(res.RemovedFiles, ", "))
	}
	if finding.HasBlocker(res.Findings) {
		b.WriteString("\n**The extension has blocking issues and will not load in Firefox until they are resolved.**\n")
	}
	b.WriteString("\n")
}

func writeFindings(b *strings.Builder, fs []finding.Finding) {
	if len(fs) == 0 {
		return
	}
	b.WriteString("## Findings\n\n")
	for _, s := range severityOrder {
		var group []finding.Finding
		for _, f := range fs {
			if f.Severity == s {
				group = append(group, f)
			}
		}
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", strings.ToUpper(s.String()))
		for _, f := range group {
			fmt.Fprintf(b, "- `%s` [%s] %s", f.Location, f.Category, f.Description)
			if f.AutoFixable {
				b.WriteString(" *(fixed automatically)*")
			}
			b.WriteString("\n")
			if f.Suggestion != "" {
				fmt.Fprintf(b, "  - Suggestion: %s\n", f.Suggestion)
			}
		}
		b.WriteString("\n")
	}
}

func writeManifestChanges(b *strings.Builder, res *pipeline.Result) {
	if len(res.Patches) == 0 {
		return
	}
	b.WriteString("## Manifest changes\n\n")
	for _, p := range res.Patches {
		fmt.Fprintf(b, "- %s\n", p)
	}
	b.WriteString("\n")
}

func writeNewFiles(b *strings.Builder, res *pipeline.Result) {
	if len(res.NewFiles) == 0 {
		return
	}
	b.WriteString("## Generated files\n\n")
	for _, nf := range res.NewFiles {
		fmt.Fprintf(b, "- `%s`: %s\n", nf.Path, nf.Purpose)
	}
	b.WriteString("\n")
}

func writeManualActions(b *strings.Builder, res *pipeline.Result) {
	var manual []finding.Finding
	for _, f := range res.Findings {
		if !f.AutoFixable && f.Severity >= finding.SeverityMajor {
			manual = append(manual, f)
		}
	}
	if len(manual) == 0 && len(res.Instructions) == 0 {
		return
	}
	b.WriteString("## Manual actions\n\n")
	for _, f := range manual {
		fmt.Fprintf(b, "- `%s`: %s\n", f.Location, f.Description)
	}
	for _, ins := range res.Instructions {
		fmt.Fprintf(b, "- %s\n", ins)
	}
	b.WriteString("\n")
}

func writeDiffs(b *strings.Builder, res *pipeline.Result, original map[string][]byte) {
	paths := make([]string, 0, len(res.Counts))
	for p := range res.Counts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return
	}

	b.WriteString("## Diffs\n\n")
	for _, p := range paths {
		before, ok := original[p]
		if !ok {
			continue
		}
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(before)),
			B:        difflib.SplitLines(string(res.Files[p])),
			FromFile: "a/" + p,
			ToFile:   "b/" + p,
			Context:  3,
		})
		if err != nil || diff == "" {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n```diff\n%s```\n\n", p, diff)
	}
}
