// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feature

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxlate/foxlate/services/convert/finding"
	"github.com/foxlate/foxlate/services/convert/manifest"
)

func testDoc(t *testing.T, src string) *manifest.Document {
	t.Helper()
	d, err := manifest.Parse([]byte(src))
	require.NoError(t, err)
	return d
}

const bareManifest = `{"name": "x", "version": "1.0", "manifest_version": 3}`
const bgManifest = `{"name": "x", "version": "1.0", "manifest_version": 3, "background": {"scripts": ["bg.js"]}}`

func TestScanOffscreenUsage(t *testing.T) {
	src := []byte(`async function setup() {
  await chrome.offscreen.createDocument({
    url: 'offscreen.html',
    reasons: ['AUDIO_PLAYBACK'],
    justification: 'play notification sounds'
  });
}`)

	usages := ScanOffscreenUsage(src, "bg.js")

	require.Len(t, usages, 1)
	assert.Equal(t, "offscreen.html", usages[0].DocumentURL)
	assert.Equal(t, []string{"AUDIO_PLAYBACK"}, usages[0].Reasons)
	assert.Equal(t, "play notification sounds", usages[0].Justification)
	assert.Equal(t, 2, usages[0].Location.Line)
}

func TestAnalyzeOffscreenDocumentCanvas(t *testing.T) {
	files := map[string][]byte{
		"offscreen.html": []byte(`<html><body>
<script>
const ctx = canvas.getContext('2d');
ctx.fillRect(0, 0, 10, 10);
</script>
</body></html>`),
	}

	a, err := AnalyzeOffscreenDocument(files, "offscreen.html")

	require.NoError(t, err)
	assert.Equal(t, PurposeCanvas, a.Primary)
	assert.Empty(t, a.MixedWith)
	assert.Less(t, a.Complexity, autoConvertLimit)
}

func TestAnalyzeOffscreenDocumentReferencedScript(t *testing.T) {
	files := map[string][]byte{
		"pages/offscreen.html": []byte(`<html><script src="../js/parse.js"></script></html>`),
		"js/parse.js":          []byte(`document.querySelectorAll('a'); const feed = 'https://news.example.com/rss';`),
	}

	a, err := AnalyzeOffscreenDocument(files, "pages/offscreen.html")

	require.NoError(t, err)
	assert.Equal(t, PurposeDOM, a.Primary)
	assert.Equal(t, []string{"*://news.example.com/*"}, a.TargetPatterns)
}

func TestConvertOffscreenCanvasWorker(t *testing.T) {
	files := map[string][]byte{
		"bg.js":          []byte(`chrome.offscreen.createDocument({url: 'offscreen.html', reasons: ['WORKERS'], justification: 'draw'});`),
		"offscreen.html": []byte(`<html><script>const c = canvas.getContext('2d');</script></html>`),
	}
	doc := testDoc(t, bareManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryOffscreenDocument, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Equal(t, "workers/canvas-worker.js", art.NewFiles[0].Path)
	assert.Contains(t, art.NewFiles[0].Content, "getContext('2d')")
	assert.Equal(t, []string{"offscreen.html"}, art.RemovedFiles)

	// The init snippet telling callers how to hand over the canvas ships
	// as an instruction, not a file.
	assert.Contains(t, art.Instructions[1], "transferControlToOffscreen")

	// The call site gets a marker edit at the start of its line.
	require.Len(t, art.Edits, 1)
	assert.Equal(t, "bg.js", art.Edits[0].Path)
	assert.Equal(t, 0, art.Edits[0].Start)
	assert.Equal(t, art.Edits[0].Start, art.Edits[0].End)
}

func TestConvertOffscreenNetworkToBackground(t *testing.T) {
	files := map[string][]byte{
		"bg.js":          []byte(`chrome.offscreen.createDocument({url: 'offscreen.html', reasons: ['WORKERS'], justification: 'proxy'});`),
		"offscreen.html": []byte(`<html><script>fetch('/data').then(r => r.json());</script></html>`),
	}
	doc := testDoc(t, bgManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryOffscreenDocument, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Equal(t, "background/network-handler.js", art.NewFiles[0].Path)

	scripts, _ := doc.GetList("background.scripts")
	assert.Contains(t, scripts, any("background/network-handler.js"))
}

func TestConvertOffscreenDOMWithoutURLsNeedsManualInput(t *testing.T) {
	files := map[string][]byte{
		"bg.js":          []byte(`chrome.offscreen.createDocument({url: 'offscreen.html', reasons: ['DOM_SCRAPING'], justification: 'scrape'});`),
		"offscreen.html": []byte(`<html><script>document.querySelectorAll('table');</script></html>`),
	}
	doc := testDoc(t, bareManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryOffscreenDocument, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)
	assert.Empty(t, art.NewFiles, "no content script may be generated without target URLs")
	require.Len(t, art.Findings, 1)
	assert.False(t, art.Findings[0].AutoFixable)
	assert.Contains(t, art.Findings[0].Description, "no target URL patterns")

	// The manifest must not have gained a content script entry.
	_, has := doc.Get("content_scripts")
	assert.False(t, has)
}

func TestConvertOffscreenDOMWithPrompter(t *testing.T) {
	files := map[string][]byte{
		"bg.js":          []byte(`chrome.offscreen.createDocument({url: 'offscreen.html', reasons: ['DOM_SCRAPING'], justification: 'scrape'});`),
		"offscreen.html": []byte(`<html><script>document.querySelectorAll('table');</script></html>`),
	}
	doc := testDoc(t, bareManifest)

	prompter := func(_ context.Context, _ []string) ([]string, error) {
		return []string{"*://data.example.org/*"}, nil
	}

	art, err := NewConverter(WithURLPrompter(prompter)).Convert(context.Background(),
		finding.Finding{Category: finding.CategoryOffscreenDocument, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Equal(t, "content-scripts/dom-parser.js", art.NewFiles[0].Path)

	list, ok := doc.GetList("content_scripts")
	require.True(t, ok)
	entry := list[0].(map[string]any)
	assert.Equal(t, []any{"*://data.example.org/*"}, entry["matches"])
}

func TestConvertOffscreenMixedSplits(t *testing.T) {
	files := map[string][]byte{
		"bg.js": []byte(`chrome.offscreen.createDocument({url: 'offscreen.html', reasons: ['WORKERS'], justification: 'media'});`),
		"offscreen.html": []byte(`<html>
<script>const c = canvas.getContext('2d');</script>
<script>canvas.toBlob(done);</script>
<script>const ac = new AudioContext();</script>
<script>ac.createOscillator();</script>
</html>`),
	}
	doc := testDoc(t, bareManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryOffscreenDocument, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)

	var paths []string
	for _, nf := range art.NewFiles {
		paths = append(paths, nf.Path)
	}
	assert.Contains(t, paths, "workers/canvas-worker.js")
	assert.Contains(t, paths, "workers/audio-worker.js")
}

func TestWorkerPreferenceRaisesComplexityCeiling(t *testing.T) {
	u := OffscreenUsage{
		Location:    finding.Location{File: "bg.js", Line: 1, Column: 1},
		DocumentURL: "offscreen.html",
	}
	a := &DocAnalysis{Primary: PurposeCanvas, Complexity: 75}
	doc := testDoc(t, bareManifest)

	art, err := NewConverter().applyOffscreenStrategy(context.Background(), u, a, doc)
	require.NoError(t, err)
	assert.Empty(t, art.NewFiles)
	require.Len(t, art.Findings, 1)
	assert.False(t, art.Findings[0].AutoFixable)

	art, err = NewConverter(WithWorkerPreference(true)).applyOffscreenStrategy(context.Background(), u, a, doc)
	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Equal(t, "workers/canvas-worker.js", art.NewFiles[0].Path)
}

func TestScanDeclarativeRules(t *testing.T) {
	src := []byte(`chrome.declarativeContent.onPageChanged.addRules([{
  conditions: [new chrome.declarativeContent.PageStateMatcher({
    pageUrl: { hostEquals: 'www.example.com' },
    css: ['video', '.player']
  })],
  actions: [new chrome.declarativeContent.ShowPageAction()]
}]);`)

	rules := ScanDeclarativeRules(src, "bg.js")

	require.Len(t, rules, 1)
	assert.Equal(t, "www.example.com", rules[0].HostEquals)
	assert.Equal(t, []string{"video", ".player"}, rules[0].CSS)
	assert.True(t, rules[0].ShowAction)
	assert.Equal(t, "*://www.example.com/*", rules[0].matchPattern())
}

func TestConvertDeclarativeContent(t *testing.T) {
	files := map[string][]byte{
		"bg.js": []byte(`chrome.declarativeContent.onPageChanged.addRules([{
  conditions: [new chrome.declarativeContent.PageStateMatcher({
    pageUrl: { hostEquals: 'www.example.com' },
    css: ['video']
  })],
  actions: [new chrome.declarativeContent.ShowPageAction()]
}]);`),
	}
	doc := testDoc(t, bgManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryDeclarativeContent, Location: finding.Location{File: "bg.js", Line: 1}},
		files, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 2)
	assert.Contains(t, art.NewFiles[0].Content, "querySelectorAll('video')")

	perms, _ := doc.GetList("permissions")
	assert.Contains(t, perms, any("pageAction"))

	cs, ok := doc.GetList("content_scripts")
	require.True(t, ok)
	entry := cs[0].(map[string]any)
	assert.Equal(t, []any{"*://www.example.com/*"}, entry["matches"])
}

func TestConvertTabGroupsStub(t *testing.T) {
	doc := testDoc(t, bgManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryTabGroups, Location: finding.Location{File: "bg.js", Line: 3}},
		map[string][]byte{}, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Equal(t, TabGroupsStubPath, art.NewFiles[0].Path)
	assert.Contains(t, art.NewFiles[0].Content, "browser.tabGroups = TabGroupsStub")

	scripts, _ := doc.GetList("background.scripts")
	assert.Contains(t, scripts, any(TabGroupsStubPath))
}

func TestConvertStorageSessionShim(t *testing.T) {
	doc := testDoc(t, bareManifest)

	art, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryStorageSession},
		map[string][]byte{}, doc)

	require.NoError(t, err)
	require.Len(t, art.NewFiles, 1)
	assert.Contains(t, art.NewFiles[0].Content, "ns.storage.session")
	// Without background.scripts the shim ships with a loading instruction.
	assert.NotEmpty(t, art.Instructions)
}

func TestConvertUnknownCategoryIsError(t *testing.T) {
	_, err := NewConverter().Convert(context.Background(),
		finding.Finding{Category: finding.CategoryEngine},
		map[string][]byte{}, testDoc(t, bareManifest))

	assert.Error(t, err)
}
