// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ast

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestVariantForPath(t *testing.T) {
	cases := []struct {
		path    string
		variant Variant
		ok      bool
	}{
		{"background.js", VariantScript, true},
		{"worker.mjs", VariantScript, true},
		{"legacy.cjs", VariantScript, true},
		{"popup.jsx", VariantScript, true},
		{"options.ts", VariantTypeScript, true},
		{"panel.tsx", VariantTSX, true},
		{"manifest.json", "", false},
		{"icon.png", "", false},
	}

	for _, tc := range cases {
		v, ok := VariantForPath(tc.path)
		if ok != tc.ok || v != tc.variant {
			t.Errorf("VariantForPath(%q) = (%q, %v), want (%q, %v)", tc.path, v, ok, tc.variant, tc.ok)
		}
	}
}

func TestParseValidJavaScript(t *testing.T) {
	src := []byte("chrome.tabs.query({active: true}, tabs => console.log(tabs));\n")

	sf, err := NewParser().Parse(context.Background(), src, "background.js")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer sf.Close()

	if sf.HasSyntaxErrors() {
		t.Error("expected no syntax errors")
	}
	if sf.Root().Type() != NodeProgram {
		t.Errorf("root type = %q, want program", sf.Root().Type())
	}
	if sf.Hash == "" {
		t.Error("expected content hash")
	}
}

func TestParseTypeScript(t *testing.T) {
	src := []byte("const n: number = 1;\nexport function f(x: string): void {}\n")

	sf, err := NewParser().Parse(context.Background(), src, "options.ts")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer sf.Close()

	if sf.Variant != VariantTypeScript {
		t.Errorf("variant = %q, want typescript", sf.Variant)
	}
	if sf.HasSyntaxErrors() {
		t.Error("expected no syntax errors")
	}
}

func TestParseToleratesSyntaxErrors(t *testing.T) {
	src := []byte("function broken( {\n")

	sf, err := NewParser().Parse(context.Background(), src, "broken.js")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer sf.Close()

	if !sf.HasSyntaxErrors() {
		t.Error("expected syntax errors to be flagged")
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte{0xff, 0xfe, 0x00}, "bad.js")
	if !errors.Is(err, ErrInvalidContent) {
		t.Errorf("err = %v, want ErrInvalidContent", err)
	}
}

func TestParseRejectsUnsupportedExtension(t *testing.T) {
	_, err := NewParser().Parse(context.Background(), []byte("{}"), "manifest.json")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("err = %v, want ErrUnsupportedExtension", err)
	}
}

func TestParseRejectsOversizedFile(t *testing.T) {
	p := NewParser(WithMaxFileSize(16))
	_, err := p.Parse(context.Background(), []byte(strings.Repeat("x = 1;\n", 10)), "big.js")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestPosition(t *testing.T) {
	src := []byte("a;\nbb;\nccc;\n")
	sf, err := NewParser().Parse(context.Background(), src, "pos.js")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	defer sf.Close()

	line, col := sf.Position(0)
	if line != 1 || col != 1 {
		t.Errorf("Position(0) = %d:%d, want 1:1", line, col)
	}
	line, col = sf.Position(3) // first byte of "bb;"
	if line != 2 || col != 1 {
		t.Errorf("Position(3) = %d:%d, want 2:1", line, col)
	}
	line, col = sf.Position(8) // 'c' after "bb;\n" -> line 3 col 2
	if line != 3 || col != 2 {
		t.Errorf("Position(8) = %d:%d, want 3:2", line, col)
	}
}
