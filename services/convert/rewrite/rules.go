// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/foxlate/foxlate/services/convert/ast"
	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/finding"
)

// applyNamespaceRule rewrites a bare global chrome reference to browser.
// Declaration positions are left alone: only reads of the namespace object
// change spelling.
func (w *walker) applyNamespaceRule(n *sitter.Node) {
	src := w.sf.Content
	if n.Content(src) != "chrome" {
		return
	}
	if w.tracker.IsLocal("chrome") {
		return
	}

	if parent := n.Parent(); parent != nil {
		switch parent.Type() {
		case ast.NodeVariableDeclarator:
			if sameNode(parent.ChildByFieldName("name"), n) {
				return
			}
		case ast.NodeFormalParameters, ast.NodeObjectPattern, ast.NodeArrayPattern,
			ast.NodeRestPattern, ast.NodeImportSpecifier, ast.NodeNamespaceImport,
			ast.NodeImportClause:
			return
		case ast.NodeAssignmentPat:
			if sameNode(parent.ChildByFieldName("left"), n) {
				return
			}
		case ast.NodeMemberExpression:
			// The property side is a property_identifier, but guard anyway.
			if sameNode(parent.ChildByFieldName("property"), n) {
				return
			}
		case ast.NodePair:
			if sameNode(parent.ChildByFieldName("key"), n) {
				return
			}
		}
	}

	start, end := w.sf.Span(n)
	w.addEdit(edit.Replace(w.sf.Path, start, end, "browser", OriginNamespace))

	w.addFinding(finding.Finding{
		Severity:    finding.SeverityInfo,
		Category:    finding.CategoryAPINamespace,
		Location:    w.location(n),
		Description: "chrome namespace reference; Firefox exposes the API as browser",
		AutoFixable: true,
	})
}

// applyCallRules dispatches the call-site rules. Deprecated-API rewrites
// that reshape the argument list perform their own promisification and
// suppress the generic callback rule; property-only renames leave it active.
func (w *walker) applyCallRules(call *sitter.Node) {
	src := w.sf.Content
	callee := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if callee == nil || args == nil {
		return
	}
	path, ok := memberPath(callee, src)
	if !ok {
		return
	}
	segs := strings.Split(path, ".")
	if len(segs) < 2 || !w.isAPIBase(segs[0]) {
		return
	}
	apiPath := strings.Join(segs[1:], ".")

	switch apiPath {
	case "tabs.getSelected":
		w.rewriteGetSelected(call, callee, args)
		return
	case "tabs.getAllInWindow":
		w.rewriteGetAllInWindow(call, callee, args)
		return
	case "extension.getURL":
		w.renameInnerProperty(callee, "extension", "runtime")
	case "tabs.sendRequest":
		w.renameFinalProperty(callee, "sendMessage")
	case "scripting.executeScript":
		w.rewriteExecuteScriptKeys(call, args)
	}

	w.applyCallbackRule(call, segs, args)
}

func (w *walker) namedArgs(args *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, int(args.NamedChildCount()))
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == ast.NodeComment {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (w *walker) skipSite(n *sitter.Node, cat finding.Category, what string) {
	w.addFinding(finding.Finding{
		Severity:    finding.SeverityInfo,
		Category:    cat,
		Location:    w.location(n),
		Description: fmt.Sprintf("%s call does not match the expected shape; left unchanged", what),
		Suggestion:  "review this call site and migrate it by hand",
		AutoFixable: false,
	})
}

// rewriteGetSelected converts tabs.getSelected([windowId], cb) into
// tabs.query({active: true, currentWindow: true}).then(cb). Argument
// sub-expressions are never copied unless they are simple tokens, so edits
// produced elsewhere cannot land inside a removed span.
func (w *walker) rewriteGetSelected(call, callee, args *sitter.Node) {
	prop := callee.ChildByFieldName("property")
	named := w.namedArgs(args)
	aStart, aEnd := w.sf.Span(args)

	var cb *sitter.Node
	switch len(named) {
	case 0:
		// No callback form: just swap the call and its filter object.
		pStart, pEnd := w.sf.Span(prop)
		w.addEdit(edit.Replace(w.sf.Path, pStart, pEnd, "query", OriginDeprecated))
		w.addEdit(edit.Replace(w.sf.Path, aStart+1, aEnd-1, "{active: true, currentWindow: true}", OriginDeprecated))
		return
	case 1:
		if !isFunctionArg(named[0]) && named[0].Type() != ast.NodeIdentifier {
			w.skipSite(call, finding.CategoryDeprecatedAPI, "tabs.getSelected")
			return
		}
		cb = named[0]
	case 2:
		if !isSimpleExpr(named[0]) || (!isFunctionArg(named[1]) && named[1].Type() != ast.NodeIdentifier) {
			w.skipSite(call, finding.CategoryDeprecatedAPI, "tabs.getSelected")
			return
		}
		cb = named[1]
	default:
		w.skipSite(call, finding.CategoryDeprecatedAPI, "tabs.getSelected")
		return
	}

	pStart, pEnd := w.sf.Span(prop)
	cbStart, _ := w.sf.Span(cb)
	w.addEdit(edit.Replace(w.sf.Path, pStart, pEnd, "query", OriginDeprecated))
	w.addEdit(edit.Replace(w.sf.Path, aStart+1, cbStart,
		"{active: true, currentWindow: true}).then(", OriginDeprecated))
}

// rewriteGetAllInWindow converts tabs.getAllInWindow(windowId, cb) into
// tabs.query({windowId}).then(cb).
func (w *walker) rewriteGetAllInWindow(call, callee, args *sitter.Node) {
	prop := callee.ChildByFieldName("property")
	named := w.namedArgs(args)
	aStart, aEnd := w.sf.Span(args)

	if len(named) < 1 || len(named) > 2 || !isSimpleExpr(named[0]) {
		w.skipSite(call, finding.CategoryDeprecatedAPI, "tabs.getAllInWindow")
		return
	}
	winID := named[0].Content(w.sf.Content)

	pStart, pEnd := w.sf.Span(prop)
	w.addEdit(edit.Replace(w.sf.Path, pStart, pEnd, "query", OriginDeprecated))

	if len(named) == 1 {
		w.addEdit(edit.Replace(w.sf.Path, aStart+1, aEnd-1,
			fmt.Sprintf("{windowId: %s}", winID), OriginDeprecated))
		return
	}
	if !isFunctionArg(named[1]) && named[1].Type() != ast.NodeIdentifier {
		w.skipSite(call, finding.CategoryDeprecatedAPI, "tabs.getAllInWindow")
		return
	}
	cbStart, _ := w.sf.Span(named[1])
	w.addEdit(edit.Replace(w.sf.Path, aStart+1, cbStart,
		fmt.Sprintf("{windowId: %s}).then(", winID), OriginDeprecated))
}

// renameInnerProperty renames the middle segment of a two-level API path,
// e.g. extension.getURL -> runtime.getURL.
func (w *walker) renameInnerProperty(callee *sitter.Node, from, to string) {
	inner := callee.ChildByFieldName("object")
	if inner == nil || inner.Type() != ast.NodeMemberExpression {
		return
	}
	prop := inner.ChildByFieldName("property")
	if prop == nil || prop.Content(w.sf.Content) != from {
		return
	}
	start, end := w.sf.Span(prop)
	w.addEdit(edit.Replace(w.sf.Path, start, end, to, OriginDeprecated))
}

// renameFinalProperty renames the method segment of the callee.
func (w *walker) renameFinalProperty(callee *sitter.Node, to string) {
	prop := callee.ChildByFieldName("property")
	if prop == nil {
		return
	}
	start, end := w.sf.Span(prop)
	w.addEdit(edit.Replace(w.sf.Path, start, end, to, OriginDeprecated))
}

// rewriteExecuteScriptKeys renames the Chrome-only {function: f} injection
// key to Firefox's {func: f}.
func (w *walker) rewriteExecuteScriptKeys(call, args *sitter.Node) {
	named := w.namedArgs(args)
	if len(named) == 0 || named[0].Type() != ast.NodeObject {
		w.skipSite(call, finding.CategoryChromeOnlyAPI, "scripting.executeScript")
		return
	}
	obj := named[0]

	hasInjection := false
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		pair := obj.NamedChild(i)
		if pair.Type() != ast.NodePair {
			continue
		}
		key := pair.ChildByFieldName("key")
		if key == nil {
			continue
		}
		switch key.Content(w.sf.Content) {
		case "function":
			start, end := w.sf.Span(key)
			w.addEdit(edit.Replace(w.sf.Path, start, end, "func", OriginExecScript))
			hasInjection = true
		case "func", "files":
			hasInjection = true
		}
	}
	if !hasInjection {
		w.addFinding(finding.Finding{
			Severity:    finding.SeverityInfo,
			Category:    finding.CategoryChromeOnlyAPI,
			Location:    w.location(call),
			Description: "scripting.executeScript call has no func or files property",
			Suggestion:  "pass the injection as {func} or {files}; Firefox rejects calls without one",
			AutoFixable: false,
		})
	}
}

// applyCallbackRule converts a trailing completion callback into a .then
// chain. Only calls on the global API namespace qualify, and event listener
// registrations are excluded: their callbacks are not completions.
func (w *walker) applyCallbackRule(call *sitter.Node, segs []string, args *sitter.Node) {
	if len(segs) < 3 || isListenerPath(segs) {
		return
	}
	named := w.namedArgs(args)
	if len(named) == 0 {
		return
	}
	cb := named[len(named)-1]
	if !isFunctionArg(cb) {
		return
	}

	aStart, _ := w.sf.Span(args)
	prevEnd := aStart + 1
	if len(named) > 1 {
		_, prevEnd = w.sf.Span(named[len(named)-2])
	}
	cbStart, _ := w.sf.Span(cb)

	w.addEdit(edit.Replace(w.sf.Path, prevEnd, cbStart, ").then(", OriginCallback))
	w.addFinding(finding.Finding{
		Severity:    finding.SeverityMinor,
		Category:    finding.CategoryCallbackVsPromise,
		Location:    w.location(call),
		Description: fmt.Sprintf("%s uses a completion callback; Firefox APIs return promises", strings.Join(segs, ".")),
		AutoFixable: true,
	})
}

// applyChromeURLRule maps chrome:// page URLs in string literals to their
// about: equivalents. URLs with no Firefox counterpart become findings.
func (w *walker) applyChromeURLRule(str *sitter.Node) {
	text := str.Content(w.sf.Content)
	if len(text) < 2 {
		return
	}
	start, end := w.sf.Span(str)
	w.rewriteChromeURL(str, text[1:len(text)-1], start+1, end-1)
}

// applyChromeURLFragment maps chrome:// page URLs in the literal fragments
// of template strings. A URL interrupted by a substitution cannot be
// resolved statically, so it falls through to the unmapped finding.
func (w *walker) applyChromeURLFragment(frag *sitter.Node) {
	start, end := w.sf.Span(frag)
	w.rewriteChromeURL(frag, frag.Content(w.sf.Content), start, end)
}

func (w *walker) rewriteChromeURL(n *sitter.Node, url string, start, end int) {
	if !strings.HasPrefix(url, "chrome://") {
		return
	}

	mapped, ok := mapChromeURL(url)
	if !ok {
		w.addFinding(finding.Finding{
			Severity:    finding.SeverityMinor,
			Category:    finding.CategoryChromeOnlyAPI,
			Location:    w.location(n),
			Description: fmt.Sprintf("no Firefox equivalent for %s", url),
			Suggestion:  "replace the chrome:// URL with a Firefox about: page or remove the navigation",
			AutoFixable: false,
		})
		return
	}

	w.addEdit(edit.Replace(w.sf.Path, start, end, mapped, OriginChromeURL))
}

func mapChromeURL(u string) (string, bool) {
	switch {
	case u == "chrome://extensions" || strings.HasPrefix(u, "chrome://extensions/"):
		return "about:addons", true
	case u == "chrome://settings" || strings.HasPrefix(u, "chrome://settings/"):
		return "about:preferences", true
	case u == "chrome://history":
		return "about:history", true
	case u == "chrome://downloads":
		return "about:downloads", true
	case u == "chrome://bookmarks":
		return "about:bookmarks", true
	case u == "chrome://newtab":
		return "about:newtab", true
	case u == "chrome://flags":
		return "about:config", true
	}
	return "", false
}

// detectAPIUsage reports catalog hits for the full member chain. Only the
// outermost member expression of a chain is consulted, so sub-chains do not
// produce duplicate findings.
func (w *walker) detectAPIUsage(n *sitter.Node) {
	if parent := n.Parent(); parent != nil && parent.Type() == ast.NodeMemberExpression &&
		sameNode(parent.ChildByFieldName("object"), n) {
		return
	}

	path, ok := memberPath(n, w.sf.Content)
	if !ok {
		return
	}
	segs := strings.Split(path, ".")
	if len(segs) < 2 || !w.isAPIBase(segs[0]) {
		return
	}

	entry, matched, ok := w.cat.Lookup(path)
	if !ok {
		return
	}

	severity := finding.SeverityMajor
	auto := entry.HasConverter
	switch entry.FirefoxStatus {
	case catalog.StatusPartial:
		severity = finding.SeverityMinor
	case catalog.StatusDeprecated:
		severity = finding.SeverityMinor
		auto = true
	}

	w.addFinding(finding.Finding{
		Severity:    severity,
		Category:    finding.Category(entry.Category),
		Location:    w.location(n),
		Description: fmt.Sprintf("%s: %s", matched, entry.Description),
		Suggestion:  suggestionFor(entry, matched),
		AutoFixable: auto,
	})
}

func suggestionFor(e catalog.Entry, path string) string {
	if e.HasConverter {
		return ""
	}
	return fmt.Sprintf("no automated conversion for %s; consult the Firefox migration notes", path)
}
