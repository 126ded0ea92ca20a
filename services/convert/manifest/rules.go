// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package manifest

import (
	"fmt"
	"strings"

	"github.com/foxlate/foxlate/services/convert/finding"
)

// DefaultStrictMinVersion is the lowest Firefox version generated manifests
// declare support for. MV3 service-worker-free backgrounds and the scripting
// API both need it.
const DefaultStrictMinVersion = "121.0"

// Context carries the cross-file facts some fixes depend on.
type Context struct {
	// WorkerScripts lists the files the background service worker pulls
	// in through importScripts, in load order.
	WorkerScripts []string
	// NeedsWasm is set when any script instantiates WebAssembly; the CSP
	// fix then grants wasm-unsafe-eval.
	NeedsWasm bool
	// StrictMinVersion overrides DefaultStrictMinVersion when non-empty.
	StrictMinVersion string
}

func (c Context) strictMin() string {
	if c.StrictMinVersion != "" {
		return c.StrictMinVersion
	}
	return DefaultStrictMinVersion
}

// Rule is one declarative manifest check. Fix is nil when the rule cannot
// repair the manifest automatically. Rules run in declaration order.
type Rule struct {
	ID       string
	Check    func(*Document) bool
	Describe func(*Document) finding.Finding
	Fix      func(*Document, Context) []Patch
}

func manifestFinding(sev finding.Severity, cat finding.Category, desc, suggestion string, auto bool) finding.Finding {
	return finding.Finding{
		Severity:    sev,
		Category:    cat,
		Location:    finding.Location{File: FileName},
		Description: desc,
		Suggestion:  suggestion,
		AutoFixable: auto,
	}
}

// Rules returns the manifest rule list. The slice is rebuilt per call so
// callers may not share state through it.
func Rules() []Rule {
	return []Rule{
		{
			ID:    "manifest-version",
			Check: func(d *Document) bool { return d.ManifestVersion() != 3 },
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityBlocker, finding.CategoryManifestStructure,
					fmt.Sprintf("manifest_version %d is not convertible; only MV3 extensions are supported", d.ManifestVersion()),
					"migrate the extension to manifest version 3 first", false)
			},
		},
		{
			ID: "gecko-id",
			Check: func(d *Document) bool {
				id, _ := d.GetString("browser_specific_settings.gecko.id")
				return id == ""
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMajor, finding.CategoryMissingFirefoxID,
					"browser_specific_settings.gecko.id is required for Firefox installation",
					"", true)
			},
			Fix: func(d *Document, ctx Context) []Patch {
				id := SanitizeID(d.Name()) + "@converted-extension.org"
				d.Set("browser_specific_settings.gecko.id", id)
				d.Set("browser_specific_settings.gecko.strict_min_version", ctx.strictMin())
				return []Patch{
					{Field: "browser_specific_settings.gecko.id", New: id},
					{Field: "browser_specific_settings.gecko.strict_min_version", New: ctx.strictMin()},
				}
			},
		},
		{
			ID: "background-worker",
			Check: func(d *Document) bool {
				sw, _ := d.GetString("background.service_worker")
				_, hasScripts := d.GetList("background.scripts")
				return sw != "" && !hasScripts
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMajor, finding.CategoryBackgroundWorker,
					"background.service_worker alone does not start in Firefox; background.scripts is required",
					"", true)
			},
			Fix: func(d *Document, ctx Context) []Patch {
				sw, _ := d.GetString("background.service_worker")
				scripts := make([]any, 0, len(ctx.WorkerScripts)+1)
				for _, s := range ctx.WorkerScripts {
					scripts = append(scripts, s)
				}
				scripts = append(scripts, sw)

				d.Set("background.scripts", scripts)
				d.Delete("background.service_worker")
				d.Delete("background.persistent")
				return []Patch{
					{Field: "background.scripts", New: scripts},
					{Field: "background.service_worker", Old: sw},
				}
			},
		},
		{
			ID: "host-permissions",
			Check: func(d *Document) bool {
				perms, ok := d.GetList("permissions")
				if !ok {
					return false
				}
				for _, p := range perms {
					if s, ok := p.(string); ok && IsMatchPattern(s) {
						return true
					}
				}
				return false
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMinor, finding.CategoryHostPermissions,
					"permissions contains host match patterns; MV3 keeps those in host_permissions",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				perms, _ := d.GetList("permissions")
				var kept, moved []any
				for _, p := range perms {
					if s, ok := p.(string); ok && IsMatchPattern(s) {
						moved = append(moved, s)
					} else {
						kept = append(kept, p)
					}
				}
				hosts, _ := d.GetList("host_permissions")
				hosts = append(hosts, moved...)

				d.Set("permissions", kept)
				d.Set("host_permissions", hosts)
				return []Patch{
					{Field: "permissions", Old: perms, New: kept},
					{Field: "host_permissions", New: hosts},
				}
			},
		},
		{
			ID: "war-dynamic-url",
			Check: func(d *Document) bool {
				entries, ok := d.GetList("web_accessible_resources")
				if !ok {
					return false
				}
				for _, e := range entries {
					if m, ok := e.(map[string]any); ok {
						if _, has := m["use_dynamic_url"]; has {
							return true
						}
					}
				}
				return false
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMinor, finding.CategoryWebAccessibleResources,
					"web_accessible_resources.use_dynamic_url is not recognized by Firefox",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				entries, _ := d.GetList("web_accessible_resources")
				for _, e := range entries {
					m, ok := e.(map[string]any)
					if !ok {
						continue
					}
					delete(m, "use_dynamic_url")
					_, hasMatches := m["matches"]
					_, hasIDs := m["extension_ids"]
					if !hasMatches && !hasIDs {
						m["matches"] = []any{"<all_urls>"}
					}
				}
				d.Set("web_accessible_resources", entries)
				return []Patch{{Field: "web_accessible_resources", New: entries}}
			},
		},
		{
			ID: "csp-v2-string",
			Check: func(d *Document) bool {
				_, isString := d.GetString("content_security_policy")
				return isString
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMinor, finding.CategoryContentSecurityPolicy,
					"content_security_policy uses the MV2 string form",
					"", true)
			},
			Fix: func(d *Document, ctx Context) []Patch {
				old, _ := d.GetString("content_security_policy")
				csp := old
				if ctx.NeedsWasm {
					csp = addWasmUnsafeEval(csp)
				}
				d.Set("content_security_policy", map[string]any{"extension_pages": csp})
				return []Patch{{Field: "content_security_policy", Old: old, New: map[string]any{"extension_pages": csp}}}
			},
		},
		{
			ID: "browser-action",
			Check: func(d *Document) bool {
				_, has := d.Get("browser_action")
				return has
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMinor, finding.CategoryManifestStructure,
					"browser_action was renamed to action in MV3",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				v, _ := d.Get("browser_action")
				d.Set("action", v)
				d.Delete("browser_action")
				return []Patch{{Field: "action", New: v}, {Field: "browser_action", Old: v}}
			},
		},
		{
			ID: "browser-style",
			Check: func(d *Document) bool {
				_, has := d.Get("action.browser_style")
				return has
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMinor, finding.CategoryBrowserStyle,
					"action.browser_style is deprecated and rejected by Firefox MV3",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				v, _ := d.Get("action.browser_style")
				d.Delete("action.browser_style")
				return []Patch{{Field: "action.browser_style", Old: v}}
			},
		},
		{
			ID: "side-panel",
			Check: func(d *Document) bool {
				_, has := d.Get("side_panel")
				return has
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityMajor, finding.CategorySidePanel,
					"side_panel has no Firefox support; sidebar_action is the equivalent surface",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				var panel string
				if p, ok := d.GetString("side_panel.default_path"); ok {
					panel = p
				}
				sidebar := map[string]any{"default_title": d.Name()}
				if panel != "" {
					sidebar["default_panel"] = panel
				}
				old, _ := d.Get("side_panel")
				d.Set("sidebar_action", sidebar)
				d.Delete("side_panel")
				return []Patch{
					{Field: "sidebar_action", New: sidebar},
					{Field: "side_panel", Old: old},
				}
			},
		},
		{
			ID: "content-scripts-all-frames",
			Check: func(d *Document) bool {
				entries, ok := d.GetList("content_scripts")
				if !ok {
					return false
				}
				for _, e := range entries {
					m, ok := e.(map[string]any)
					if !ok {
						continue
					}
					if af, has := m["all_frames"]; has && af == false {
						return true
					}
				}
				return false
			},
			Describe: func(d *Document) finding.Finding {
				return manifestFinding(finding.SeverityInfo, finding.CategoryManifestStructure,
					"content_scripts disable all_frames; Chrome and Firefox frame injection differ for same-origin iframes",
					"", true)
			},
			Fix: func(d *Document, _ Context) []Patch {
				entries, _ := d.GetList("content_scripts")
				for _, e := range entries {
					m, ok := e.(map[string]any)
					if !ok {
						continue
					}
					if af, has := m["all_frames"]; has && af == false {
						m["all_frames"] = true
					}
				}
				d.Set("content_scripts", entries)
				return []Patch{{Field: "content_scripts", New: entries}}
			},
		},
	}
}

// IsMatchPattern reports whether a permissions entry is a host match
// pattern rather than a named permission.
func IsMatchPattern(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "<") || strings.HasPrefix(s, "*")
}

// addWasmUnsafeEval appends 'wasm-unsafe-eval' to the script-src directive,
// or to the whole policy when no script-src is declared.
func addWasmUnsafeEval(csp string) string {
	if strings.Contains(csp, "wasm-unsafe-eval") {
		return csp
	}
	parts := strings.Split(csp, ";")
	for i, part := range parts {
		if strings.Contains(part, "script-src") {
			parts[i] = strings.TrimRight(part, " ") + " 'wasm-unsafe-eval'"
			return strings.Join(parts, ";")
		}
	}
	return strings.TrimRight(strings.TrimSpace(csp), ";") + "; script-src 'self' 'wasm-unsafe-eval'"
}

// Scan runs every rule check and returns the findings in rule order.
func Scan(d *Document) []finding.Finding {
	var out []finding.Finding
	for _, r := range Rules() {
		if r.Check(d) {
			f := r.Describe(d)
			f.AutoFixable = r.Fix != nil
			out = append(out, f)
		}
	}
	return out
}

// ApplyFixes mutates the document with every auto-fix whose check matches
// and returns the patches in rule order. Rules without a Fix are skipped;
// Scan already reported them.
func ApplyFixes(d *Document, ctx Context) []Patch {
	var patches []Patch
	for _, r := range Rules() {
		if r.Fix == nil || !r.Check(d) {
			continue
		}
		patches = append(patches, r.Fix(d, ctx)...)
	}
	return patches
}
