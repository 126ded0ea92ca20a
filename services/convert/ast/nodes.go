// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import sitter "github.com/smacker/go-tree-sitter"

// Grammar node type names shared by the javascript and typescript grammars.
// Only the kinds the converter inspects are listed.
const (
	NodeProgram            = "program"
	NodeIdentifier         = "identifier"
	NodePropertyIdentifier = "property_identifier"
	NodeMemberExpression   = "member_expression"
	NodeCallExpression     = "call_expression"
	NodeArguments          = "arguments"
	NodeString             = "string"
	NodeStringFragment     = "string_fragment"
	NodeTemplateString     = "template_string"
	NodeComment            = "comment"

	NodeFunctionDeclaration = "function_declaration"
	NodeFunctionExpression  = "function_expression"
	// Older javascript grammars name anonymous function expressions
	// plain "function".
	NodeFunction        = "function"
	NodeArrowFunction   = "arrow_function"
	NodeGeneratorDecl   = "generator_function_declaration"
	NodeGeneratorExpr   = "generator_function"
	NodeMethodDefinition = "method_definition"
	NodeClassDeclaration = "class_declaration"
	NodeStatementBlock   = "statement_block"

	NodeVariableDeclaration = "variable_declaration"
	NodeLexicalDeclaration  = "lexical_declaration"
	NodeVariableDeclarator  = "variable_declarator"
	NodeFormalParameters    = "formal_parameters"
	NodeCatchClause         = "catch_clause"

	NodeObjectPattern  = "object_pattern"
	NodeArrayPattern   = "array_pattern"
	NodePairPattern    = "pair_pattern"
	NodeRestPattern    = "rest_pattern"
	NodeAssignmentPat  = "assignment_pattern"
	NodeShorthandPatID = "shorthand_property_identifier_pattern"

	NodeImportStatement = "import_statement"
	NodeImportSpecifier = "import_specifier"
	NodeNamespaceImport = "namespace_import"
	NodeImportClause    = "import_clause"
	NodeExportStatement = "export_statement"

	NodeObject               = "object"
	NodePair                 = "pair"
	NodeShorthandPropertyID  = "shorthand_property_identifier"
	NodeAssignmentExpression = "assignment_expression"
	NodeExpressionStatement  = "expression_statement"
)

// IsFunctionLike reports whether the node introduces a function scope.
func IsFunctionLike(n *sitter.Node) bool {
	switch n.Type() {
	case NodeFunctionDeclaration, NodeFunctionExpression, NodeFunction,
		NodeArrowFunction, NodeGeneratorDecl, NodeGeneratorExpr,
		NodeMethodDefinition:
		return true
	}
	return false
}

// IsBlockScope reports whether the node introduces a block scope of its own.
// Statement blocks directly under a function body belong to the function
// scope; the walker handles that case.
func IsBlockScope(n *sitter.Node) bool {
	return n.Type() == NodeStatementBlock || n.Type() == NodeCatchClause
}

// IsStringLike reports whether the node is a literal the rewriter must never
// edit token contents inside of, except through dedicated string rules.
func IsStringLike(n *sitter.Node) bool {
	switch n.Type() {
	case NodeString, NodeTemplateString, NodeComment:
		return true
	}
	return false
}
