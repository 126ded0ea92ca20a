// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/foxlate/foxlate/services/convert/ast"
	"github.com/foxlate/foxlate/services/convert/edit"
)

// ModuleType classifies how a script loads its dependencies, which decides
// the shape of the polyfill glue prepended to it.
type ModuleType int

const (
	ModuleScript ModuleType = iota
	ModuleCommonJS
	ModuleESM
)

func (m ModuleType) String() string {
	switch m {
	case ModuleESM:
		return "esm"
	case ModuleCommonJS:
		return "commonjs"
	default:
		return "script"
	}
}

// DetectModuleType inspects a parsed source and classifies it. ES module
// syntax wins over CommonJS markers, which win over plain-script default.
func DetectModuleType(sf *ast.SourceFile) ModuleType {
	root := sf.Root()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		switch root.NamedChild(i).Type() {
		case ast.NodeImportStatement, ast.NodeExportStatement:
			return ModuleESM
		}
	}
	if hasCommonJSMarker(root, sf.Content) {
		return ModuleCommonJS
	}
	return ModuleScript
}

func hasCommonJSMarker(n *sitter.Node, src []byte) bool {
	switch n.Type() {
	case ast.NodeCallExpression:
		if fn := n.ChildByFieldName("function"); fn != nil &&
			fn.Type() == ast.NodeIdentifier && fn.Content(src) == "require" {
			return true
		}
	case ast.NodeMemberExpression:
		text := n.Content(src)
		if text == "module.exports" || strings.HasPrefix(text, "exports.") {
			return true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if hasCommonJSMarker(n.NamedChild(i), src) {
			return true
		}
	}
	return false
}

// PolyfillRelPath is where the packager writes the generated polyfill glue,
// relative to the extension root.
const PolyfillRelPath = "browser-polyfill.js"

// PolyfillEdit builds the insertion that makes the browser namespace
// available at the top of a file, matching its module style.
func PolyfillEdit(sf *ast.SourceFile, mt ModuleType) edit.Edit {
	var glue string
	switch mt {
	case ModuleESM:
		glue = "import './" + PolyfillRelPath + "';\n"
	case ModuleCommonJS:
		glue = "require('./" + PolyfillRelPath + "');\n"
	default:
		glue = "if (typeof browser === 'undefined') {\n  this.browser = this.chrome;\n}\n"
	}
	return edit.Insert(sf.Path, 0, glue, OriginPolyfill)
}

// PolyfillSource is the content of the generated browser-polyfill.js file
// referenced by module-style glue.
const PolyfillSource = `// Maps the chrome namespace onto browser for code that still references it,
// and the reverse for scripts loaded in contexts that only define chrome.
(function (root) {
  if (typeof root.browser === 'undefined' && typeof root.chrome !== 'undefined') {
    root.browser = root.chrome;
  }
})(typeof globalThis !== 'undefined' ? globalThis : this);
`
