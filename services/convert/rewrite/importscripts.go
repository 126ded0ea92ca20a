// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import "regexp"

// importScripts takes plain string arguments in practice, so a light text
// scan is enough here; no tree is needed and files that fail to parse can
// still contribute their worker dependencies.
var (
	importScriptsRe = regexp.MustCompile(`importScripts\s*\(([^)]*)\)`)
	scriptArgRe     = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// ScanImportScripts extracts the script paths referenced by importScripts
// calls, in source order with duplicates removed. The result feeds the
// background.scripts list when the service worker is converted to event
// page scripts.
func ScanImportScripts(content []byte) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, call := range importScriptsRe.FindAllSubmatch(content, -1) {
		for _, arg := range scriptArgRe.FindAllSubmatch(call[1], -1) {
			p := string(arg[1])
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
