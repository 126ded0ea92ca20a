// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// ScopeKind classifies a lexical scope.
type ScopeKind int

const (
	ScopeGlobal ScopeKind = iota
	ScopeModule
	ScopeFunction
	ScopeBlock
)

type scope struct {
	parent int
	kind   ScopeKind
	names  map[string]struct{}
}

// ScopeTracker models the lexical scope chain during a tree walk.
//
// Description:
//
//	Scopes live in a flat arena addressed by integer handles; the current
//	scope is a cursor into it. The walker must fully populate a scope's
//	declarations (via Declare or DeclareBindings) before rewriting anything
//	inside that scope, so hoisted names shadow correctly regardless of
//	where in the block they are written.
//
// Thread Safety:
//
//	A ScopeTracker belongs to a single walk on a single goroutine.
type ScopeTracker struct {
	scopes  []scope
	current int
}

// NewScopeTracker creates a tracker positioned at the global scope.
func NewScopeTracker() *ScopeTracker {
	return &ScopeTracker{
		scopes:  []scope{{parent: -1, kind: ScopeGlobal, names: make(map[string]struct{})}},
		current: 0,
	}
}

// Enter pushes a child scope and returns its handle.
func (t *ScopeTracker) Enter(kind ScopeKind) int {
	t.scopes = append(t.scopes, scope{
		parent: t.current,
		kind:   kind,
		names:  make(map[string]struct{}),
	})
	t.current = len(t.scopes) - 1
	return t.current
}

// Exit pops back to the parent scope. Exiting the global scope is a no-op.
func (t *ScopeTracker) Exit() {
	if p := t.scopes[t.current].parent; p >= 0 {
		t.current = p
	}
}

// Declare records a binding in the current scope.
func (t *ScopeTracker) Declare(name string) {
	if name == "" {
		return
	}
	t.scopes[t.current].names[name] = struct{}{}
}

// Depth returns the number of scopes on the current chain, global included.
func (t *ScopeTracker) Depth() int {
	d := 1
	for i := t.current; t.scopes[i].parent >= 0; i = t.scopes[i].parent {
		d++
	}
	return d
}

// IsLocal reports whether name is bound in any non-global scope on the
// current chain. Top-level declarations do not count: a script-level
// `var chrome` still refers to the browser namespace object.
func (t *ScopeTracker) IsLocal(name string) bool {
	for i := t.current; i >= 0; i = t.scopes[i].parent {
		s := t.scopes[i]
		if s.kind == ScopeGlobal {
			return false
		}
		if _, ok := s.names[name]; ok {
			return true
		}
	}
	return false
}

// IsGlobalRef reports whether an occurrence of name resolves to the global
// object rather than a local binding.
func (t *ScopeTracker) IsGlobalRef(name string) bool {
	return !t.IsLocal(name)
}

// DeclareBindings walks a binding pattern node and declares every name it
// introduces: plain identifiers, object/array destructuring, defaults, and
// rest elements.
func (t *ScopeTracker) DeclareBindings(n *sitter.Node, src []byte) {
	if n == nil {
		return
	}
	switch n.Type() {
	case NodeIdentifier, NodeShorthandPatID:
		t.Declare(n.Content(src))
	case NodeObjectPattern, NodeArrayPattern, NodeFormalParameters:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.DeclareBindings(n.NamedChild(i), src)
		}
	case NodePairPattern:
		// The value side carries the binding; the key is a property name.
		t.DeclareBindings(n.ChildByFieldName("value"), src)
	case NodeRestPattern:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			t.DeclareBindings(n.NamedChild(i), src)
		}
	case NodeAssignmentPat:
		t.DeclareBindings(n.ChildByFieldName("left"), src)
	}
}

// DeclareFunctionScope populates the current (function) scope from a
// function-like node: its parameters, its own name for named expressions,
// and the hoisted var/function declarations of its body.
func (t *ScopeTracker) DeclareFunctionScope(fn *sitter.Node, src []byte) {
	if params := fn.ChildByFieldName("parameters"); params != nil {
		t.DeclareBindings(params, src)
	} else if p := fn.ChildByFieldName("parameter"); p != nil {
		// Single-parameter arrow functions have a bare identifier.
		t.DeclareBindings(p, src)
	}
	if name := fn.ChildByFieldName("name"); name != nil {
		t.Declare(name.Content(src))
	}
	if body := fn.ChildByFieldName("body"); body != nil && body.Type() == NodeStatementBlock {
		t.declareHoisted(body, src)
		t.declareLexical(body, src)
	}
}

// DeclareBlockScope populates the current (block) scope with the lexical
// declarations written directly in the block. var declarations are skipped
// here; they hoist to the enclosing function scope.
func (t *ScopeTracker) DeclareBlockScope(block *sitter.Node, src []byte) {
	if block.Type() == NodeCatchClause {
		if p := block.ChildByFieldName("parameter"); p != nil {
			t.DeclareBindings(p, src)
		}
		if body := block.ChildByFieldName("body"); body != nil {
			t.declareLexical(body, src)
		}
		return
	}
	t.declareLexical(block, src)
}

// DeclareProgramScope populates the top-level scope: every declaration form
// plus hoisted vars from nested blocks.
func (t *ScopeTracker) DeclareProgramScope(program *sitter.Node, src []byte) {
	t.declareHoisted(program, src)
	t.declareLexical(program, src)
	t.declareImports(program, src)
}

// declareLexical declares let/const, class, and function declarations that
// appear as direct children of the given node (unwrapping export wrappers).
func (t *ScopeTracker) declareLexical(n *sitter.Node, src []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == NodeExportStatement {
			if decl := child.ChildByFieldName("declaration"); decl != nil {
				child = decl
			}
		}
		switch child.Type() {
		case NodeLexicalDeclaration:
			t.declareDeclarators(child, src)
		case NodeFunctionDeclaration, NodeGeneratorDecl, NodeClassDeclaration:
			if name := child.ChildByFieldName("name"); name != nil {
				t.Declare(name.Content(src))
			}
		}
	}
}

// declareHoisted declares var and function declarations reachable from n
// without crossing a nested function boundary. This models hoisting to the
// nearest function (or program) scope.
func (t *ScopeTracker) declareHoisted(n *sitter.Node, src []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if IsFunctionLike(child) {
			continue
		}
		switch child.Type() {
		case NodeVariableDeclaration:
			t.declareDeclarators(child, src)
		case NodeFunctionDeclaration, NodeGeneratorDecl:
			if name := child.ChildByFieldName("name"); name != nil {
				t.Declare(name.Content(src))
			}
		}
		t.declareHoisted(child, src)
	}
}

func (t *ScopeTracker) declareDeclarators(decl *sitter.Node, src []byte) {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		d := decl.NamedChild(i)
		if d.Type() != NodeVariableDeclarator {
			continue
		}
		t.DeclareBindings(d.ChildByFieldName("name"), src)
	}
}

// declareImports declares names bound by import statements at the top level.
func (t *ScopeTracker) declareImports(program *sitter.Node, src []byte) {
	for i := 0; i < int(program.NamedChildCount()); i++ {
		stmt := program.NamedChild(i)
		if stmt.Type() != NodeImportStatement {
			continue
		}
		var visit func(*sitter.Node)
		visit = func(n *sitter.Node) {
			switch n.Type() {
			case NodeImportSpecifier:
				if alias := n.ChildByFieldName("alias"); alias != nil {
					t.Declare(alias.Content(src))
				} else if name := n.ChildByFieldName("name"); name != nil {
					t.Declare(name.Content(src))
				}
				return
			case NodeNamespaceImport:
				for j := 0; j < int(n.NamedChildCount()); j++ {
					if c := n.NamedChild(j); c.Type() == NodeIdentifier {
						t.Declare(c.Content(src))
					}
				}
				return
			case NodeIdentifier:
				// Default import binding.
				t.Declare(n.Content(src))
				return
			}
			for j := 0; j < int(n.NamedChildCount()); j++ {
				visit(n.NamedChild(j))
			}
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			c := stmt.NamedChild(j)
			if c.Type() == NodeImportClause {
				visit(c)
			}
		}
	}
}
