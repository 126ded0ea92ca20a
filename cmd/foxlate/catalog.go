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

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/foxlate/foxlate/services/convert/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the Chrome-only APIs the converter knows about",
	RunE:  runCatalogCommand,
}

func runCatalogCommand(_ *cobra.Command, _ []string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Compatibility data: " + cat.Version()))
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"API", "Firefox status", "Category", "Auto-convert"})
	table.SetAutoWrapText(false)

	for _, path := range cat.Paths() {
		entry, _, _ := cat.Lookup(path)
		auto := ""
		if entry.HasConverter {
			auto = "yes"
		}
		table.Append([]string{path, string(entry.FirefoxStatus), entry.Category, auto})
	}
	table.Render()

	fmt.Printf("\n%d tracked APIs\n", cat.Len())
	return nil
}
