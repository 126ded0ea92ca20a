// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ast parses extension JavaScript and TypeScript sources with
// tree-sitter and provides the scope model the rewrite rules depend on.
// Trees are read-only; all modifications are expressed as byte-span edits
// elsewhere.
package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	// DefaultMaxFileSize is the largest source file Parse accepts.
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize triggers a slow-parse warning log.
	WarnFileSize = 1 * 1024 * 1024
)

var (
	// ErrFileTooLarge indicates the content exceeds the configured limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrUnsupportedExtension indicates the file extension maps to no
	// known grammar.
	ErrUnsupportedExtension = errors.New("unsupported file extension")

	// ErrSyntax indicates the grammar could not produce a usable tree.
	// Callers treat this as file-scoped: the file passes through
	// unmodified and a finding records the failure.
	ErrSyntax = errors.New("syntax error")
)

// Variant selects the grammar used for a source file.
type Variant string

const (
	VariantScript     Variant = "javascript"
	VariantTypeScript Variant = "typescript"
	VariantTSX        Variant = "tsx"
)

// VariantForPath maps a file extension to its grammar variant.
//
// Outputs:
//   - Variant: The grammar to use.
//   - bool: False when the extension is not a script type Foxlate parses.
func VariantForPath(filePath string) (Variant, bool) {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".js", ".mjs", ".cjs", ".jsx":
		return VariantScript, true
	case ".ts", ".mts", ".cts":
		return VariantTypeScript, true
	case ".tsx":
		return VariantTSX, true
	default:
		return "", false
	}
}

// SourceFile is one parsed extension source.
//
// Description:
//
//	SourceFile owns its tree-sitter tree and the original content bytes.
//	The tree is never mutated; rewrite rules read node spans from it and
//	emit edits against Content. Close must be called to release the tree.
//
// Thread Safety:
//
//	A SourceFile is safe for concurrent reads. Close must not race with
//	readers.
type SourceFile struct {
	Path    string
	Variant Variant
	Content []byte
	Hash    string

	tree *sitter.Tree
}

// Parser parses extension sources.
//
// Thread Safety:
//
//	Parser is safe for concurrent use; each Parse call creates its own
//	tree-sitter parser instance.
type Parser struct {
	maxFileSize int64
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithMaxFileSize caps the size of accepted source files.
func WithMaxFileSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// NewParser creates a Parser with defaults applied.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a SourceFile from raw content.
//
// Description:
//
//	The grammar is chosen from the file extension. Parsing is
//	error-tolerant: a tree containing syntax errors is still returned with
//	HasSyntaxErrors() true, so callers can decide whether partial rewrites
//	are safe. Only a nil tree is reported as ErrSyntax.
//
// Inputs:
//   - ctx: Checked before and after parsing; tree-sitter itself cannot be
//     interrupted mid-parse.
//   - content: Raw source bytes. Must be valid UTF-8.
//   - filePath: Extension-relative path with forward slashes.
//
// Outputs:
//   - *SourceFile: Never nil on success. Caller must Close it.
//   - error: ErrFileTooLarge, ErrInvalidContent, ErrUnsupportedExtension,
//     ErrSyntax, or a context error.
func (p *Parser) Parse(ctx context.Context, content []byte, filePath string) (*SourceFile, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	variant, ok := VariantForPath(filePath)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filePath)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	switch variant {
	case VariantTypeScript:
		parser.SetLanguage(typescript.GetLanguage())
	case VariantTSX:
		parser.SetLanguage(tsx.GetLanguage())
	default:
		parser.SetLanguage(javascript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		tree.Close()
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}
	if tree.RootNode() == nil {
		tree.Close()
		return nil, fmt.Errorf("%w: no parse tree for %s", ErrSyntax, filePath)
	}

	sf := &SourceFile{
		Path:    filePath,
		Variant: variant,
		Content: content,
		Hash:    hex.EncodeToString(hash[:]),
		tree:    tree,
	}

	setParseSpanResult(span, string(variant), sf.HasSyntaxErrors(), time.Since(start))
	return sf, nil
}

// Root returns the tree root node.
func (f *SourceFile) Root() *sitter.Node {
	return f.tree.RootNode()
}

// HasSyntaxErrors reports whether the grammar flagged any part of the tree.
func (f *SourceFile) HasSyntaxErrors() bool {
	root := f.tree.RootNode()
	return root == nil || root.HasError()
}

// Text returns the source text covered by a node.
func (f *SourceFile) Text(n *sitter.Node) string {
	return n.Content(f.Content)
}

// Span returns the byte range [start, end) of a node.
func (f *SourceFile) Span(n *sitter.Node) (int, int) {
	return int(n.StartByte()), int(n.EndByte())
}

// Position returns the 1-based line and column of a byte offset.
func (f *SourceFile) Position(offset int) (line, col int) {
	if offset > len(f.Content) {
		offset = len(f.Content)
	}
	line, col = 1, 1
	for _, b := range f.Content[:offset] {
		if b == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Close releases the underlying tree. Safe to call more than once.
func (f *SourceFile) Close() {
	if f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}
