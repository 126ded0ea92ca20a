// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rewrite walks parsed extension sources and produces the byte-span
// edits that translate Chrome API usage into the Firefox equivalents, along
// with the findings that describe what was detected. The walk is two-pass
// per scope: a scope's declarations are collected before any node inside it
// is rewritten, so shadowed identifiers are never touched.
package rewrite

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/foxlate/foxlate/services/convert/ast"
	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/finding"
)

var tracer = otel.Tracer("foxlate/convert/rewrite")

// Rule origin names, used in edits and overlap diagnostics.
const (
	OriginNamespace  = "namespace"
	OriginDeprecated = "deprecated-call"
	OriginExecScript = "execute-script-key"
	OriginCallback   = "callback-to-promise"
	OriginChromeURL  = "chrome-url"
	OriginPolyfill   = "polyfill"
)

// Result collects everything one walk produced for one file.
type Result struct {
	Edits    []edit.Edit
	Findings []finding.Finding
	// Counts maps rule origin to the number of sites it changed.
	Counts map[string]int
}

// Engine runs the rewrite rules and the catalog-backed detection over
// parsed sources.
//
// Thread Safety:
//
//	Engine is safe for concurrent use; each Process call allocates its own
//	walk state. The catalog it holds is immutable.
type Engine struct {
	cat *catalog.Catalog
}

// NewEngine creates an Engine bound to the given catalog.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Process walks one source file and returns its edits and findings.
//
// Description:
//
//	One walk serves both analysis and conversion: callers running analysis
//	only read Findings, callers converting also apply Edits. A tree with
//	syntax errors can still be walked; callers that cannot tolerate edits
//	near recovered regions check HasSyntaxErrors first and pass the file
//	through instead.
func (e *Engine) Process(ctx context.Context, sf *ast.SourceFile) (*Result, error) {
	ctx, span := tracer.Start(ctx, "rewrite.Process")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rewrite canceled: %w", err)
	}

	w := &walker{
		sf:      sf,
		cat:     e.cat,
		tracker: ast.NewScopeTracker(),
		res: &Result{
			Counts: make(map[string]int),
		},
	}

	root := sf.Root()
	w.tracker.DeclareProgramScope(root, sf.Content)
	w.walkChildren(root, nil)

	span.SetAttributes(
		attribute.String("file.path", sf.Path),
		attribute.Int("rewrite.edits", len(w.res.Edits)),
		attribute.Int("rewrite.findings", len(w.res.Findings)),
	)
	return w.res, nil
}

type walker struct {
	sf      *ast.SourceFile
	cat     *catalog.Catalog
	tracker *ast.ScopeTracker
	res     *Result
}

// sameNode compares nodes by span and type; tree-sitter wrappers are not
// pointer-comparable.
func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil &&
		a.StartByte() == b.StartByte() &&
		a.EndByte() == b.EndByte() &&
		a.Type() == b.Type()
}

// walk dispatches one node. noNewScope marks a statement block that belongs
// to the function scope just opened for its parent.
func (w *walker) walk(n *sitter.Node, noNewScope bool) {
	src := w.sf.Content

	switch {
	case ast.IsFunctionLike(n):
		w.tracker.Enter(ast.ScopeFunction)
		w.tracker.DeclareFunctionScope(n, src)
		body := n.ChildByFieldName("body")
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			w.walk(c, sameNode(c, body))
		}
		w.tracker.Exit()
		return

	case n.Type() == ast.NodeStatementBlock && !noNewScope:
		w.tracker.Enter(ast.ScopeBlock)
		w.tracker.DeclareBlockScope(n, src)
		w.walkChildren(n, nil)
		w.tracker.Exit()
		return

	case n.Type() == ast.NodeCatchClause:
		w.tracker.Enter(ast.ScopeBlock)
		w.tracker.DeclareBlockScope(n, src)
		w.walkChildren(n, nil)
		w.tracker.Exit()
		return

	case n.Type() == "for_statement" || n.Type() == "for_in_statement":
		// Loop-header let/const bindings scope over the whole loop.
		w.tracker.Enter(ast.ScopeBlock)
		w.tracker.DeclareBlockScope(n, src)
		w.walkChildren(n, nil)
		w.tracker.Exit()
		return

	case n.Type() == ast.NodeString:
		w.applyChromeURLRule(n)
		return

	case n.Type() == ast.NodeTemplateString:
		// The interpolated expressions are code; literal fragments are only
		// scanned for chrome:// URLs.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			switch c := n.NamedChild(i); c.Type() {
			case "template_substitution":
				w.walkChildren(c, nil)
			case ast.NodeStringFragment:
				w.applyChromeURLFragment(c)
			}
		}
		return

	case n.Type() == ast.NodeComment:
		return

	case n.Type() == ast.NodeCallExpression:
		w.applyCallRules(n)
		w.walkChildren(n, nil)
		return

	case n.Type() == ast.NodeMemberExpression:
		w.detectAPIUsage(n)
		w.walkChildren(n, nil)
		return

	case n.Type() == ast.NodeIdentifier:
		w.applyNamespaceRule(n)
		return
	}

	w.walkChildren(n, nil)
}

func (w *walker) walkChildren(n *sitter.Node, bodyOfFunction *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		w.walk(c, sameNode(c, bodyOfFunction))
	}
}

func (w *walker) addEdit(e edit.Edit) {
	w.res.Edits = append(w.res.Edits, e)
	w.res.Counts[e.Origin]++
}

func (w *walker) addFinding(f finding.Finding) {
	w.res.Findings = append(w.res.Findings, f)
}

func (w *walker) location(n *sitter.Node) finding.Location {
	line, col := w.sf.Position(int(n.StartByte()))
	return finding.Location{File: w.sf.Path, Line: line, Column: col}
}

// memberPath flattens a callee like chrome.tabs.query into its dotted path.
// Only chains of plain property accesses rooted at a bare identifier
// qualify; anything else (computed access, call results, optional chains
// with non-identifier links) returns ok=false.
func memberPath(n *sitter.Node, src []byte) (string, bool) {
	switch n.Type() {
	case ast.NodeIdentifier:
		return n.Content(src), true
	case ast.NodeMemberExpression:
		prop := n.ChildByFieldName("property")
		obj := n.ChildByFieldName("object")
		if prop == nil || obj == nil || prop.Type() != ast.NodePropertyIdentifier {
			return "", false
		}
		base, ok := memberPath(obj, src)
		if !ok {
			return "", false
		}
		return base + "." + prop.Content(src), true
	}
	return "", false
}

// isAPIBase reports whether the first path segment is the extension API
// namespace resolving to the global object at this point in the walk.
func (w *walker) isAPIBase(seg string) bool {
	return (seg == "chrome" || seg == "browser") && !w.tracker.IsLocal(seg)
}

// isListenerPath reports whether any segment is an event (onSomething) or
// the terminal segment is a listener registration. Listener callbacks stay
// callbacks.
func isListenerPath(segs []string) bool {
	for _, s := range segs {
		if len(s) > 2 && strings.HasPrefix(s, "on") && s[2] >= 'A' && s[2] <= 'Z' {
			return true
		}
	}
	switch segs[len(segs)-1] {
	case "addListener", "removeListener", "hasListener":
		return true
	}
	return false
}

func isFunctionArg(n *sitter.Node) bool {
	switch n.Type() {
	case ast.NodeArrowFunction, ast.NodeFunction, ast.NodeFunctionExpression:
		return true
	}
	return false
}

// isSimpleExpr limits argument shapes that rules may copy or delete without
// risking edits from other rules inside them.
func isSimpleExpr(n *sitter.Node) bool {
	switch n.Type() {
	case ast.NodeIdentifier, "number", "null", "undefined", "true", "false":
		return true
	}
	return false
}
