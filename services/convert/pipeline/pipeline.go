// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline coordinates a whole conversion run: the manifest rules,
// the per-file rewrite passes, and the feature converters. Analyze and
// Convert are pure functions of their inputs; the only process-wide state
// they touch is the read-only catalog handed to them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/foxlate/foxlate/services/convert/ast"
	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/feature"
	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/manifest"
	"github.com/foxlate/foxlate/services/convert/rewrite"
)

var tracer = otel.Tracer("foxlate/convert/pipeline")

// Options tunes a run. The zero value is usable.
type Options struct {
	// Workers caps the parallel per-file rewrite tasks. Zero means one
	// worker per logical CPU.
	Workers int
	// CreatePolyfill injects the browser polyfill into files whose
	// namespace references were rewritten.
	CreatePolyfill bool
	// PreferWorkers lets feature converters pick Web Worker strategies for
	// offscreen documents that would otherwise need manual migration.
	PreferWorkers bool
	// MaxFileSizeBytes caps the source files the parser accepts. Zero keeps
	// the parser's default.
	MaxFileSizeBytes int64
	// StrictMinVersion overrides the minimum Firefox version written with
	// the generated add-on ID.
	StrictMinVersion string
	// URLPrompter, when set, lets feature converters ask for content
	// script match patterns they cannot derive from the source.
	URLPrompter feature.URLPrompter
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Analysis is the read-only view of what a conversion would have to do.
type Analysis struct {
	Findings       []finding.Finding
	FilesScanned   int
	CatalogVersion string
}

// Result is the full output of a conversion run.
type Result struct {
	// Files maps extension-relative paths to output bytes: rewritten
	// sources, untouched files, and generated files. Removed files are
	// absent.
	Files map[string][]byte
	// NewFiles describes the generated entries of Files.
	NewFiles []feature.NewFile
	// Manifest is the patched manifest document.
	Manifest *manifest.Document
	Patches  []manifest.Patch
	Findings []finding.Finding
	// Counts maps each modified file to the number of edits applied.
	Counts         map[string]int
	RemovedFiles   []string
	Instructions   []string
	RunID          string
	CatalogVersion string
}

// fileResult is one worker's output, reduced single-threaded afterwards.
type fileResult struct {
	path       string
	res        *rewrite.Result
	moduleType rewrite.ModuleType
	polyfill   edit.Edit
	// skipped is set instead of res when the file could not be parsed and
	// passes through unmodified.
	skipped *finding.Finding
}

// Analyze scans the manifest and every source file without changing
// anything.
func Analyze(ctx context.Context, files map[string][]byte, doc *manifest.Document, cat *catalog.Catalog, opts Options) (*Analysis, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Analyze",
		trace.WithAttributes(attribute.Int("files.count", len(files))))
	defer span.End()

	results, err := rewriteAll(ctx, files, cat, opts)
	if err != nil {
		return nil, err
	}

	findings := manifest.Scan(doc)
	for _, fr := range results {
		if fr.skipped != nil {
			findings = append(findings, *fr.skipped)
			continue
		}
		findings = append(findings, fr.res.Findings...)
	}
	finding.Sort(findings)

	return &Analysis{
		Findings:       findings,
		FilesScanned:   len(results),
		CatalogVersion: cat.Version(),
	}, nil
}

// Convert runs the full conversion. The input file map and manifest are
// never mutated; per-file failures downgrade that file to pass-through
// with a finding rather than aborting the run.
func Convert(ctx context.Context, files map[string][]byte, src *manifest.Document, cat *catalog.Catalog, opts Options) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Convert",
		trace.WithAttributes(attribute.Int("files.count", len(files))))
	defer span.End()

	doc := src.Clone()
	findings := manifest.Scan(doc)
	patches := manifest.ApplyFixes(doc, manifestContext(files, doc, opts))

	results, err := rewriteAll(ctx, files, cat, opts)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Files:          make(map[string][]byte, len(files)),
		Manifest:       doc,
		Patches:        patches,
		Counts:         make(map[string]int),
		RunID:          uuid.NewString(),
		CatalogVersion: cat.Version(),
	}
	for p, b := range files {
		out.Files[p] = b
	}

	conv := newFeatureConverter(opts)
	red := reducer{out: out, conv: conv, files: files, doc: doc,
		converted: make(map[finding.Category]bool), removed: make(map[string]bool)}

	out.Findings = append(out.Findings, findings...)
	for _, fr := range results {
		red.reduce(ctx, fr, opts)
	}
	red.finish(opts)

	finding.Sort(out.Findings)
	return out, nil
}

func newFeatureConverter(opts Options) *feature.Converter {
	fopts := []feature.Option{feature.WithWorkerPreference(opts.PreferWorkers)}
	if opts.URLPrompter != nil {
		fopts = append(fopts, feature.WithURLPrompter(opts.URLPrompter))
	}
	return feature.NewConverter(fopts...)
}

// manifestContext derives the fix context from the package contents: the
// service worker's importScripts chain and whether anything uses wasm.
func manifestContext(files map[string][]byte, doc *manifest.Document, opts Options) manifest.Context {
	mctx := manifest.Context{StrictMinVersion: opts.StrictMinVersion}
	if sw, ok := doc.GetString("background.service_worker"); ok {
		if body, ok := files[sw]; ok {
			mctx.WorkerScripts = rewrite.ScanImportScripts(body)
		}
	}
	for p, b := range files {
		if strings.HasSuffix(p, ".wasm") {
			mctx.NeedsWasm = true
			break
		}
		if _, ok := ast.VariantForPath(p); ok && strings.Contains(string(b), "WebAssembly") {
			mctx.NeedsWasm = true
			break
		}
	}
	return mctx
}

// sourcePaths lists the rewritable files in deterministic order.
func sourcePaths(files map[string][]byte) []string {
	var out []string
	for p := range files {
		if p == manifest.FileName {
			continue
		}
		if _, ok := ast.VariantForPath(p); ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// rewriteAll runs the parse and rewrite pass over every source file in
// parallel. Each worker writes only its own slot; the catalog is shared
// read-only, so no locks are needed.
func rewriteAll(ctx context.Context, files map[string][]byte, cat *catalog.Catalog, opts Options) ([]fileResult, error) {
	paths := sourcePaths(files)
	results := make([]fileResult, len(paths))

	eng := rewrite.NewEngine(cat)
	var popts []ast.ParserOption
	if opts.MaxFileSizeBytes > 0 {
		popts = append(popts, ast.WithMaxFileSize(opts.MaxFileSizeBytes))
	}
	parser := ast.NewParser(popts...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, p := range paths {
		g.Go(func() error {
			fr, err := rewriteOne(gctx, eng, parser, p, files[p])
			if err != nil {
				return err
			}
			results[i] = *fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func rewriteOne(ctx context.Context, eng *rewrite.Engine, parser *ast.Parser, path string, content []byte) (*fileResult, error) {
	sf, err := parser.Parse(ctx, content, path)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		f := finding.Finding{
			Severity:    finding.SeverityMajor,
			Category:    finding.CategoryEngine,
			Location:    finding.Location{File: path, Line: 1, Column: 1},
			Description: fmt.Sprintf("file could not be parsed and passes through unmodified: %v", err),
			Suggestion:  "convert this file by hand",
		}
		return &fileResult{path: path, skipped: &f}, nil
	}
	defer sf.Close()

	// Error nodes mean the grammar recovered by guessing; rewriting around
	// guesses risks corrupting the file, so it passes through untouched.
	if sf.HasSyntaxErrors() {
		f := finding.Finding{
			Severity:    finding.SeverityMajor,
			Category:    finding.CategoryEngine,
			Location:    finding.Location{File: path, Line: 1, Column: 1},
			Description: "file has syntax errors and passes through unmodified",
			Suggestion:  "fix the syntax errors and rerun, or convert this file by hand",
		}
		return &fileResult{path: path, skipped: &f}, nil
	}

	res, err := eng.Process(ctx, sf)
	if err != nil {
		return nil, err
	}
	mt := rewrite.DetectModuleType(sf)
	return &fileResult{
		path:       path,
		res:        res,
		moduleType: mt,
		polyfill:   rewrite.PolyfillEdit(sf, mt),
	}, nil
}

// reducer folds worker results into the final Result one file at a time.
type reducer struct {
	out   *Result
	conv  *feature.Converter
	files map[string][]byte
	doc   *manifest.Document
	// converted tracks doc-level feature categories already handled, so a
	// shim is emitted once per run no matter how many files hit the API.
	converted map[finding.Category]bool
	// removed dedupes RemovedFiles when several sources convert the same
	// document.
	removed      map[string]bool
	needPolyfill bool
}

// perFileCategories are feature conversions whose artifacts depend on the
// specific call sites in one file.
func perFileCategory(c finding.Category) bool {
	return c == finding.CategoryOffscreenDocument || c == finding.CategoryDeclarativeContent
}

// docLevelCategory are feature conversions that only touch the manifest and
// generated shims.
func docLevelCategory(c finding.Category) bool {
	switch c {
	case finding.CategoryTabGroups, finding.CategoryStorageSession, finding.CategorySidePanel:
		return true
	}
	return false
}

func (r *reducer) reduce(ctx context.Context, fr fileResult, opts Options) {
	if fr.skipped != nil {
		r.out.Findings = append(r.out.Findings, *fr.skipped)
		return
	}

	r.out.Findings = append(r.out.Findings, fr.res.Findings...)
	edits := append([]edit.Edit(nil), fr.res.Edits...)

	seen := make(map[finding.Category]bool)
	for _, f := range fr.res.Findings {
		if !f.AutoFixable {
			continue
		}
		switch {
		case perFileCategory(f.Category) && !seen[f.Category]:
			seen[f.Category] = true
			edits = append(edits, r.convertFeature(ctx, f)...)
		case docLevelCategory(f.Category) && !r.converted[f.Category]:
			r.converted[f.Category] = true
			r.convertFeature(ctx, f)
		}
	}

	if opts.CreatePolyfill && fr.res.Counts[rewrite.OriginNamespace] > 0 {
		edits = append(edits, fr.polyfill)
		if fr.moduleType != rewrite.ModuleScript {
			r.needPolyfill = true
		}
	}

	if len(edits) == 0 {
		return
	}
	merged, err := edit.Apply(string(r.files[fr.path]), edits)
	if err != nil {
		r.out.Findings = append(r.out.Findings, finding.Finding{
			Severity:    finding.SeverityMajor,
			Category:    finding.CategoryEngine,
			Location:    finding.Location{File: fr.path, Line: 1, Column: 1},
			Description: fmt.Sprintf("conflicting edits; file passes through unmodified: %v", err),
			Suggestion:  "apply the remaining changes to this file by hand",
		})
		return
	}
	r.out.Files[fr.path] = []byte(merged)
	r.out.Counts[fr.path] = len(edits)
}

// convertFeature runs one feature strategy and folds its artifacts into the
// result. Returned edits target the finding's file and merge with that
// file's rewrite edits.
func (r *reducer) convertFeature(ctx context.Context, f finding.Finding) []edit.Edit {
	art, err := r.conv.Convert(ctx, f, r.files, r.doc)
	if err != nil {
		r.out.Findings = append(r.out.Findings, finding.Finding{
			Severity:    finding.SeverityMajor,
			Category:    f.Category,
			Location:    f.Location,
			Description: fmt.Sprintf("automatic conversion failed: %v", err),
			Suggestion:  "convert this usage by hand",
		})
		return nil
	}

	for _, nf := range art.NewFiles {
		if _, dup := r.out.Files[nf.Path]; dup {
			continue
		}
		r.out.Files[nf.Path] = []byte(nf.Content)
		r.out.NewFiles = append(r.out.NewFiles, nf)
	}
	r.out.Patches = append(r.out.Patches, art.Patches...)
	r.out.Findings = append(r.out.Findings, art.Findings...)
	r.out.Instructions = append(r.out.Instructions, art.Instructions...)
	for _, rm := range art.RemovedFiles {
		delete(r.out.Files, rm)
		if !r.removed[rm] {
			r.removed[rm] = true
			r.out.RemovedFiles = append(r.out.RemovedFiles, rm)
		}
	}
	return art.Edits
}

// finish emits run-wide artifacts after all files are reduced.
func (r *reducer) finish(opts Options) {
	if r.needPolyfill {
		nf := feature.NewFile{
			Path:    rewrite.PolyfillRelPath,
			Content: rewrite.PolyfillSource,
			Purpose: "defines the browser namespace for module files that import it",
		}
		if _, dup := r.out.Files[nf.Path]; !dup {
			r.out.Files[nf.Path] = []byte(nf.Content)
			r.out.NewFiles = append(r.out.NewFiles, nf)
		}
	}
	sort.Strings(r.out.RemovedFiles)
	sort.Slice(r.out.NewFiles, func(i, j int) bool {
		return r.out.NewFiles[i].Path < r.out.NewFiles[j].Path
	})
}
