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
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/manifest"
)

// Purpose classifies what an offscreen document exists to do.
type Purpose string

const (
	PurposeCanvas  Purpose = "canvas"
	PurposeAudio   Purpose = "audio"
	PurposeDOM     Purpose = "dom"
	PurposeNetwork Purpose = "network"
	PurposeUnknown Purpose = "unknown"
)

// Classification weights and thresholds. A family above highWater counts as
// a purpose; more than one such family makes the document mixed. Documents
// above autoConvertLimit are too entangled to rewrite mechanically.
const (
	weightCanvas  = 10
	weightAudio   = 10
	weightDOM     = 5
	weightNetwork = 3
	libraryBonus  = 20
	highWater     = 15

	autoConvertLimit = 70
	splitLimit       = 80
)

// OffscreenUsage is one offscreen.createDocument call site.
type OffscreenUsage struct {
	Location finding.Location
	// Offset is the byte offset of the call's line start in the source
	// file, for placing a marker edit at the site.
	Offset        int
	DocumentURL   string
	Reasons       []string
	Justification string
}

var (
	createDocumentRe = regexp.MustCompile(`(?:chrome|browser)\.offscreen\.createDocument`)
	urlFieldRe       = regexp.MustCompile(`url:\s*['"]([^'"]+)['"]`)
	justificationRe  = regexp.MustCompile(`justification:\s*['"]([^'"]+)['"]`)
	reasonTokenRe    = regexp.MustCompile(`[A-Z][A-Z_]+[A-Z]`)
	scriptSrcRe      = regexp.MustCompile(`<script[^>]*src=["']([^"']+)["']`)
	httpURLRe        = regexp.MustCompile(`https?://([A-Za-z0-9][A-Za-z0-9.-]*)`)
)

// ScanOffscreenUsage finds offscreen.createDocument calls with a line scan.
// The option object is usually written inline on a few lines, so the scan
// joins the call line with its immediate continuation lines.
func ScanOffscreenUsage(content []byte, filePath string) []OffscreenUsage {
	lines := strings.Split(string(content), "\n")
	var out []OffscreenUsage
	offset := 0
	for i, line := range lines {
		lineStart := offset
		offset += len(line) + 1
		if !createDocumentRe.MatchString(line) {
			continue
		}
		// Join up to the next few lines so multi-line option objects are
		// visible to the field extractors.
		end := i + 8
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[i:end], "\n")

		u := OffscreenUsage{
			Location: finding.Location{File: filePath, Line: i + 1, Column: 1},
			Offset:   lineStart,
		}
		if m := urlFieldRe.FindStringSubmatch(window); m != nil {
			u.DocumentURL = m[1]
		}
		if m := justificationRe.FindStringSubmatch(window); m != nil {
			u.Justification = m[1]
		}
		if idx := strings.Index(window, "reasons:"); idx >= 0 {
			u.Reasons = reasonTokenRe.FindAllString(window[idx:], -1)
		}
		out = append(out, u)
	}
	return out
}

// DocAnalysis summarizes what an offscreen document's scripts do.
type DocAnalysis struct {
	CanvasOps       int
	AudioOps        int
	DOMOps          int
	NetworkOps      int
	MessageHandlers int
	Dependencies    []string

	Primary    Purpose
	MixedWith  []Purpose
	Complexity int

	// TargetPatterns are host match patterns derived from URLs the
	// document's code references statically.
	TargetPatterns []string
}

// knownLibraries maps library name fragments to the purpose they imply.
var knownLibraries = map[string]Purpose{
	"three":   PurposeCanvas,
	"fabric":  PurposeCanvas,
	"konva":   PurposeCanvas,
	"tone":    PurposeAudio,
	"audio":   PurposeAudio,
	"cheerio": PurposeDOM,
	"jsdom":   PurposeDOM,
}

// AnalyzeOffscreenDocument reads the offscreen HTML page from the extension
// file map, collects its inline and referenced scripts, and classifies the
// work they do.
func AnalyzeOffscreenDocument(files map[string][]byte, htmlPath string) (*DocAnalysis, error) {
	html, ok := files[htmlPath]
	if !ok {
		return nil, fmt.Errorf("offscreen document %s not found in extension", htmlPath)
	}

	scripts := extractInlineScripts(string(html))
	for _, m := range scriptSrcRe.FindAllStringSubmatch(string(html), -1) {
		ref := resolveRelative(htmlPath, m[1])
		if body, ok := files[ref]; ok {
			scripts = append(scripts, string(body))
		} else {
			slog.Warn("offscreen document references missing script",
				slog.String("document", htmlPath),
				slog.String("script", m[1]))
		}
	}

	a := &DocAnalysis{}
	for _, s := range scripts {
		classifyScript(s, a)
	}
	a.Primary, a.MixedWith = determinePurpose(a)
	a.Complexity = complexityScore(a)
	a.TargetPatterns = extractTargetPatterns(scripts)
	return a, nil
}

func extractInlineScripts(html string) []string {
	var scripts []string
	rest := html
	for {
		open := strings.Index(rest, "<script")
		if open < 0 {
			break
		}
		tagEnd := strings.Index(rest[open:], ">")
		if tagEnd < 0 {
			break
		}
		bodyStart := open + tagEnd + 1
		close := strings.Index(rest[bodyStart:], "</script>")
		if close < 0 {
			break
		}
		if body := strings.TrimSpace(rest[bodyStart : bodyStart+close]); body != "" {
			scripts = append(scripts, body)
		}
		rest = rest[bodyStart+close+len("</script>"):]
	}
	return scripts
}

func resolveRelative(htmlPath, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return strings.TrimPrefix(ref, "/")
	}
	return path.Join(path.Dir(htmlPath), ref)
}

func classifyScript(script string, a *DocAnalysis) {
	if strings.Contains(script, "getContext") || strings.Contains(script, "canvas") ||
		strings.Contains(script, "OffscreenCanvas") {
		a.CanvasOps++
	}
	if strings.Contains(script, "AudioContext") || strings.Contains(script, "createOscillator") ||
		strings.Contains(script, "createGain") {
		a.AudioOps++
	}
	if strings.Contains(script, "querySelector") || strings.Contains(script, "createElement") ||
		strings.Contains(script, "innerHTML") || strings.Contains(script, "DOMParser") {
		a.DOMOps++
	}
	if strings.Contains(script, "fetch") || strings.Contains(script, "XMLHttpRequest") ||
		strings.Contains(script, "axios") {
		a.NetworkOps++
	}
	if strings.Contains(script, "runtime.onMessage") || strings.Contains(script, "addEventListener('message'") {
		a.MessageHandlers++
	}
	for lib := range knownLibraries {
		if strings.Contains(script, lib) && !contains(a.Dependencies, lib) {
			a.Dependencies = append(a.Dependencies, lib)
		}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func determinePurpose(a *DocAnalysis) (Purpose, []Purpose) {
	scores := map[Purpose]int{
		PurposeCanvas:  a.CanvasOps * weightCanvas,
		PurposeAudio:   a.AudioOps * weightAudio,
		PurposeDOM:     a.DOMOps * weightDOM,
		PurposeNetwork: a.NetworkOps * weightNetwork,
	}
	for _, dep := range a.Dependencies {
		if p, ok := knownLibraries[dep]; ok {
			scores[p] += libraryBonus
		}
	}

	// Deterministic iteration order.
	order := []Purpose{PurposeCanvas, PurposeAudio, PurposeDOM, PurposeNetwork}

	var high []Purpose
	for _, p := range order {
		if scores[p] > highWater {
			high = append(high, p)
		}
	}
	if len(high) > 1 {
		return high[0], high[1:]
	}

	best, bestScore := PurposeUnknown, 0
	for _, p := range order {
		if scores[p] > bestScore {
			best, bestScore = p, scores[p]
		}
	}
	return best, nil
}

func complexityScore(a *DocAnalysis) int {
	score := min(a.CanvasOps, 30) + min(a.DOMOps, 30) + min(a.AudioOps, 20) + min(len(a.Dependencies)*5, 20)
	return min(score, 100)
}

func extractTargetPatterns(scripts []string) []string {
	var patterns []string
	for _, s := range scripts {
		for _, m := range httpURLRe.FindAllStringSubmatch(s, -1) {
			patterns = append(patterns, "*://"+m[1]+"/*")
		}
	}
	return sortedUnique(patterns)
}

// convertOffscreen runs the strategy table for one offscreen finding.
func (c *Converter) convertOffscreen(ctx context.Context, f finding.Finding, files map[string][]byte, doc *manifest.Document) (*Artifacts, error) {
	content, ok := files[f.Location.File]
	if !ok {
		return nil, fmt.Errorf("source file %s not in extension", f.Location.File)
	}

	usages := ScanOffscreenUsage(content, f.Location.File)
	if len(usages) == 0 {
		// The finding came from the tree walk; a call shape the scanner
		// cannot read still needs a manual pointer.
		return manualArtifacts(f, "offscreen.createDocument call could not be analyzed",
			[]string{"move the offscreen work to a worker, a content script, or the background script"}), nil
	}

	out := &Artifacts{}
	for _, u := range usages {
		art, err := c.convertOneOffscreen(ctx, u, files, doc)
		if err != nil {
			return nil, err
		}
		out.merge(art)
	}
	return out, nil
}

func (c *Converter) convertOneOffscreen(ctx context.Context, u OffscreenUsage, files map[string][]byte, doc *manifest.Document) (*Artifacts, error) {
	if u.DocumentURL == "" {
		return manualArtifacts(finding.Finding{Location: u.Location},
			"offscreen.createDocument call does not name its document statically",
			[]string{"identify the offscreen page and migrate its logic by hand"}), nil
	}

	analysis, err := AnalyzeOffscreenDocument(files, u.DocumentURL)
	if err != nil {
		return manualArtifacts(finding.Finding{Location: u.Location},
			err.Error(),
			[]string{"the offscreen document was not found in the package; migrate its logic by hand"}), nil
	}

	art, err := c.applyOffscreenStrategy(ctx, u, analysis, doc)
	if err != nil {
		return nil, err
	}
	if len(art.NewFiles) > 0 {
		art.Edits = append(art.Edits, edit.Insert(u.Location.File, u.Offset,
			"// foxlate: the offscreen work below now runs in generated files; remove this call\n",
			"offscreen-convert"))
	}
	return art, nil
}

// workerLimit is the complexity ceiling for worker conversions. Preferring
// workers trades review effort for automation on the heavier documents.
func (c *Converter) workerLimit() int {
	if c.preferWorkers {
		return splitLimit
	}
	return autoConvertLimit
}

// splitCeiling bounds the mixed-purpose split. With the worker preference
// every mixed document splits; the score cap is 100.
func (c *Converter) splitCeiling() int {
	if c.preferWorkers {
		return 101
	}
	return splitLimit
}

func (c *Converter) applyOffscreenStrategy(ctx context.Context, u OffscreenUsage, a *DocAnalysis, doc *manifest.Document) (*Artifacts, error) {
	switch {
	case a.Primary == PurposeCanvas && len(a.MixedWith) == 0 && a.Complexity < c.workerLimit():
		return canvasWorkerArtifacts(u), nil

	case a.Primary == PurposeAudio && len(a.MixedWith) == 0 && a.Complexity < c.workerLimit():
		return audioWorkerArtifacts(u), nil

	case a.Primary == PurposeNetwork && len(a.MixedWith) == 0:
		return networkBackgroundArtifacts(u, doc), nil

	case a.Primary == PurposeDOM && len(a.MixedWith) == 0:
		return c.domContentScriptArtifacts(ctx, u, a, doc)

	case len(a.MixedWith) > 0 && a.Complexity < c.splitCeiling():
		out := &Artifacts{Instructions: []string{
			fmt.Sprintf("offscreen document %s serves several purposes; each was converted separately", u.DocumentURL),
		}}
		for _, p := range append([]Purpose{a.Primary}, a.MixedWith...) {
			part, err := c.applyOffscreenStrategy(ctx, u, &DocAnalysis{
				Primary:        p,
				Complexity:     a.Complexity,
				TargetPatterns: a.TargetPatterns,
			}, doc)
			if err != nil {
				return nil, err
			}
			out.merge(part)
		}
		// The document itself is listed once.
		out.RemovedFiles = sortedUnique(out.RemovedFiles)
		return out, nil

	default:
		return manualArtifacts(finding.Finding{Location: u.Location},
			fmt.Sprintf("offscreen document %s is too complex to convert automatically (score %d/100)", u.DocumentURL, a.Complexity),
			manualSuggestions(a)), nil
	}
}

func manualSuggestions(a *DocAnalysis) []string {
	var out []string
	if a.CanvasOps > 0 {
		out = append(out, fmt.Sprintf("%d canvas operations: consider a Web Worker with OffscreenCanvas", a.CanvasOps))
	}
	if a.AudioOps > 0 {
		out = append(out, fmt.Sprintf("%d audio operations: consider an Audio Worklet or Web Worker", a.AudioOps))
	}
	if a.DOMOps > 0 {
		out = append(out, fmt.Sprintf("%d DOM operations: consider a content script on the target pages", a.DOMOps))
	}
	if a.NetworkOps > 0 {
		out = append(out, fmt.Sprintf("%d network operations: these can move to the background script", a.NetworkOps))
	}
	if len(out) == 0 {
		out = append(out, "migrate the offscreen logic by hand")
	}
	return out
}

func manualArtifacts(f finding.Finding, desc string, suggestions []string) *Artifacts {
	return &Artifacts{
		Findings: []finding.Finding{{
			Severity:    finding.SeverityMajor,
			Category:    finding.CategoryOffscreenDocument,
			Location:    f.Location,
			Description: desc,
			Suggestion:  strings.Join(suggestions, "; "),
			AutoFixable: false,
		}},
	}
}

func canvasWorkerArtifacts(u OffscreenUsage) *Artifacts {
	return &Artifacts{
		NewFiles: []NewFile{{
			Path:    "workers/canvas-worker.js",
			Content: canvasWorkerJS,
			Purpose: "Web Worker running the canvas work the offscreen document did",
		}},
		RemovedFiles: []string{u.DocumentURL},
		Instructions: []string{
			"canvas work moved to a Web Worker; initialize it with canvas.transferControlToOffscreen()",
			canvasInitSnippet,
		},
	}
}

func audioWorkerArtifacts(u OffscreenUsage) *Artifacts {
	return &Artifacts{
		NewFiles: []NewFile{{
			Path:    "workers/audio-worker.js",
			Content: audioWorkerJS,
			Purpose: "Web Worker running the audio work the offscreen document did",
		}},
		RemovedFiles: []string{u.DocumentURL},
		Instructions: []string{
			"audio work moved to a Web Worker; post {type: 'init'} before playing",
		},
	}
}

func networkBackgroundArtifacts(u OffscreenUsage, doc *manifest.Document) *Artifacts {
	out := &Artifacts{
		NewFiles: []NewFile{{
			Path:    "background/network-handler.js",
			Content: networkHandlerJS,
			Purpose: "background message handler replacing the offscreen fetch proxy",
		}},
		RemovedFiles: []string{u.DocumentURL},
		Instructions: []string{
			"network requests now run in the background script; callers send {type: 'fetch_request'} messages",
		},
	}
	if _, ok := doc.GetList("background.scripts"); ok {
		out.Patches = append(out.Patches, addBackgroundScript(doc, "background/network-handler.js"))
	} else {
		out.Instructions = append(out.Instructions,
			"add background/network-handler.js to your background scripts")
	}
	return out
}

// domContentScriptArtifacts moves DOM parsing into a content script. The
// match patterns must come from the code, the createDocument justification,
// or the operator; the converter never invents <all_urls> on its own.
func (c *Converter) domContentScriptArtifacts(ctx context.Context, u OffscreenUsage, a *DocAnalysis, doc *manifest.Document) (*Artifacts, error) {
	patterns := a.TargetPatterns
	if len(patterns) == 0 {
		patterns = patternsFromJustification(u.Justification)
	}

	if len(patterns) == 0 && c.prompt != nil {
		supplied, err := c.prompt(ctx, []string{"*://*.example.com/*"})
		if err != nil {
			return nil, fmt.Errorf("url prompt: %w", err)
		}
		patterns = sortedUnique(supplied)
	}

	if len(patterns) == 0 {
		return &Artifacts{
			Findings: []finding.Finding{{
				Severity:    finding.SeverityMajor,
				Category:    finding.CategoryOffscreenDocument,
				Location:    u.Location,
				Description: "DOM parsing must move to a content script, but no target URL patterns could be determined",
				Suggestion:  "re-run with --interactive or add the content script with explicit match patterns",
				AutoFixable: false,
			}},
		}, nil
	}

	out := &Artifacts{
		NewFiles: []NewFile{{
			Path:    "content-scripts/dom-parser.js",
			Content: domParserJS,
			Purpose: "content script doing the DOM parsing the offscreen document did",
		}},
		RemovedFiles: []string{u.DocumentURL},
		Instructions: []string{
			fmt.Sprintf("DOM parsing moved to a content script running on: %s", strings.Join(patterns, ", ")),
			"the background script receives {type: 'dom_parse_complete'} messages with the results",
		},
	}
	out.Patches = append(out.Patches, addContentScript(doc, patterns, []string{"content-scripts/dom-parser.js"}, "document_idle"))
	return out, nil
}

func patternsFromJustification(j string) []string {
	var out []string
	for _, m := range httpURLRe.FindAllStringSubmatch(j, -1) {
		out = append(out, "*://"+m[1]+"/*")
	}
	return sortedUnique(out)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
