// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feature

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/manifest"
)

// DeclarativeRule is one extracted declarativeContent rule: the page
// conditions it matched declaratively and the action it triggered.
type DeclarativeRule struct {
	Location     finding.Location
	HostEquals   string
	HostContains string
	URLMatches   string
	CSS          []string
	ShowAction   bool
	IconPath     string
}

var (
	hostEqualsRe   = regexp.MustCompile(`hostEquals:\s*['"]([^'"]+)['"]`)
	hostContainsRe = regexp.MustCompile(`hostContains:\s*['"]([^'"]+)['"]`)
	urlMatchesRe   = regexp.MustCompile(`urlMatches:\s*['"]([^'"]+)['"]`)
	cssArrayRe     = regexp.MustCompile(`css:\s*\[([^\]]*)\]`)
	iconPathRe     = regexp.MustCompile(`path:\s*['"]([^'"]+)['"]`)
	quotedRe       = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

// ScanDeclarativeRules extracts declarativeContent rules with a text scan.
// addRules payloads are static object literals in practice; the scan pulls
// the condition fields out of the window around each addRules call.
func ScanDeclarativeRules(content []byte, filePath string) []DeclarativeRule {
	text := string(content)
	if !strings.Contains(text, "declarativeContent") || !strings.Contains(text, "addRules") {
		return nil
	}

	lines := strings.Split(text, "\n")
	var out []DeclarativeRule
	for i, line := range lines {
		if !strings.Contains(line, "addRules") {
			continue
		}
		end := i + 30
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[i:end], "\n")

		r := DeclarativeRule{
			Location:   finding.Location{File: filePath, Line: i + 1, Column: 1},
			ShowAction: strings.Contains(window, "ShowPageAction") || strings.Contains(window, "ShowAction"),
		}
		if m := hostEqualsRe.FindStringSubmatch(window); m != nil {
			r.HostEquals = m[1]
		}
		if m := hostContainsRe.FindStringSubmatch(window); m != nil {
			r.HostContains = m[1]
		}
		if m := urlMatchesRe.FindStringSubmatch(window); m != nil {
			r.URLMatches = m[1]
		}
		if m := cssArrayRe.FindStringSubmatch(window); m != nil {
			for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
				r.CSS = append(r.CSS, q[1])
			}
		}
		if strings.Contains(window, "SetIcon") {
			if m := iconPathRe.FindStringSubmatch(window); m != nil {
				r.IconPath = m[1]
			}
		}
		out = append(out, r)
	}
	return out
}

// matchPattern derives a host match pattern for injecting the generated
// checker. Only hostEquals yields a narrow pattern; contains and regex
// conditions are re-checked imperatively inside the script, so the script
// itself must reach every page.
func (r DeclarativeRule) matchPattern() string {
	if r.HostEquals != "" {
		return "*://" + r.HostEquals + "/*"
	}
	return "<all_urls>"
}

// needsMonitoring reports whether the rule's conditions depend on page
// state that can change after load.
func (r DeclarativeRule) needsMonitoring() bool {
	return len(r.CSS) > 0 || r.URLMatches != ""
}

// convertDeclarativeContent replaces declarativeContent rules with a
// generated content script that checks the conditions imperatively and a
// background handler that drives the page action.
func (c *Converter) convertDeclarativeContent(_ context.Context, f finding.Finding, files map[string][]byte, doc *manifest.Document) (*Artifacts, error) {
	content, ok := files[f.Location.File]
	if !ok {
		return nil, fmt.Errorf("source file %s not in extension", f.Location.File)
	}

	rules := ScanDeclarativeRules(content, f.Location.File)
	if len(rules) == 0 {
		return &Artifacts{
			Findings: []finding.Finding{{
				Severity:    finding.SeverityMajor,
				Category:    finding.CategoryDeclarativeContent,
				Location:    f.Location,
				Description: "declarativeContent usage could not be read as static addRules calls",
				Suggestion:  "replace the rules with a content script that checks the conditions and messages the background script",
				AutoFixable: false,
			}},
		}, nil
	}

	var matches []string
	monitoring := false
	for _, r := range rules {
		matches = append(matches, r.matchPattern())
		monitoring = monitoring || r.needsMonitoring()
	}
	matches = sortedUnique(matches)

	checker := buildConditionChecker(rules, monitoring)

	out := &Artifacts{
		NewFiles: []NewFile{
			{
				Path:    "content-scripts/page-condition-checker.js",
				Content: checker,
				Purpose: "checks the page conditions the declarativeContent rules declared",
			},
			{
				Path:    "background/page-condition-handler.js",
				Content: declarativeBackgroundJS,
				Purpose: "shows the page action when a condition message arrives",
			},
		},
		Instructions: []string{
			"declarativeContent rules now run as a content script plus messaging",
			"the page action appears when the generated checker reports a match",
		},
	}

	out.Patches = append(out.Patches,
		addContentScript(doc, matches, []string{"content-scripts/page-condition-checker.js"}, "document_idle"))
	if p, added := addPermission(doc, "pageAction"); added {
		out.Patches = append(out.Patches, p)
	}
	if _, ok := doc.GetList("background.scripts"); ok {
		out.Patches = append(out.Patches, addBackgroundScript(doc, "background/page-condition-handler.js"))
	} else {
		out.Instructions = append(out.Instructions,
			"add background/page-condition-handler.js to your background scripts")
	}
	return out, nil
}

// buildConditionChecker renders the generated content script. Rules with
// CSS conditions query their selectors; pure URL rules report immediately,
// since the injection pattern already encodes the URL condition.
func buildConditionChecker(rules []DeclarativeRule, monitoring bool) string {
	var checks []string
	for _, r := range rules {
		switch {
		case len(r.CSS) > 0:
			checks = append(checks, fmt.Sprintf(`  if (document.querySelectorAll('%s').length > 0) {
    notify('%s');
  }`, strings.Join(r.CSS, ", "), escapeJS(r.IconPath)))
		default:
			checks = append(checks, fmt.Sprintf(`  notify('%s');`, escapeJS(r.IconPath)))
		}
	}

	var b strings.Builder
	b.WriteString(`// Generated by foxlate: imperative replacement for declarativeContent
// rules. Conditions are checked on load`)
	if monitoring {
		b.WriteString(" and whenever the page mutates")
	}
	b.WriteString(`.

'use strict';

(function () {
  let notified = false;

  function notify(iconPath) {
    if (notified) {
      return;
    }
    notified = true;
    browser.runtime.sendMessage({
      type: 'page_condition_met',
      action: 'show_page_action',
      iconPath: iconPath || undefined
    });
  }

  function checkConditions() {
`)
	b.WriteString(strings.Join(checks, "\n"))
	b.WriteString(`
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', checkConditions);
  } else {
    checkConditions();
  }
`)
	if monitoring {
		b.WriteString(`
  const observer = new MutationObserver(checkConditions);
  observer.observe(document.documentElement, {
    childList: true,
    subtree: true
  });

  window.addEventListener('popstate', checkConditions);
`)
	}
	b.WriteString(`})();
`)
	return b.String()
}

func escapeJS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
