// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxlate/foxlate/services/convert/ast"
	"github.com/foxlate/foxlate/services/convert/catalog"
	"github.com/foxlate/foxlate/services/convert/edit"
	"github.com/foxlate/foxlate/services/convert/finding"
)

func process(t *testing.T, src string) (string, *Result) {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)

	sf, err := ast.NewParser().Parse(context.Background(), []byte(src), "test.js")
	require.NoError(t, err)
	t.Cleanup(sf.Close)

	res, err := NewEngine(cat).Process(context.Background(), sf)
	require.NoError(t, err)

	out, err := edit.Apply(src, res.Edits)
	require.NoError(t, err)
	return out, res
}

func TestNamespaceRewrite(t *testing.T) {
	out, res := process(t, "chrome.tabs.query({});")

	assert.Equal(t, "browser.tabs.query({});", out)
	assert.Equal(t, 1, res.Counts[OriginNamespace])
}

func TestNamespaceShadowedByParameter(t *testing.T) {
	src := "function f(chrome) { chrome.tabs.query({}); }\nchrome.runtime.reload();"

	out, _ := process(t, src)

	assert.Equal(t, "function f(chrome) { chrome.tabs.query({}); }\nbrowser.runtime.reload();", out)
}

func TestNamespaceShadowedAtDepth(t *testing.T) {
	src := `function a() {
  const chrome = makeFake();
  function b() {
    if (x) {
      chrome.tabs.query({});
    }
  }
}
chrome.storage.local.get("k");`

	out, _ := process(t, src)

	assert.Contains(t, out, `      chrome.tabs.query({});`)
	assert.Contains(t, out, `browser.storage.local.get("k");`)
}

func TestNamespaceVarHoistingShadows(t *testing.T) {
	// The var is written below the use but hoists over the whole function.
	src := "function f() { chrome.tabs.query({}); var chrome = fake(); }"

	out, _ := process(t, src)

	assert.Equal(t, src, out)
}

func TestNamespaceDeclarationSiteUntouched(t *testing.T) {
	src := "const chrome = stub();\nchrome.runtime.reload();"

	out, _ := process(t, src)

	// Top-level bindings do not shadow the namespace, but the declaration
	// name itself is never rewritten.
	assert.Contains(t, out, "const chrome = stub();")
	assert.Contains(t, out, "browser.runtime.reload();")
}

func TestStringAndCommentLiteralsUntouched(t *testing.T) {
	src := "// chrome.tabs stays\nconst s = \"chrome.tabs.query\";\nconst m = 'prefer chrome';"

	out, _ := process(t, src)

	assert.Equal(t, src, out)
}

func TestTemplateSubstitutionIsRewritten(t *testing.T) {
	src := "const s = `chrome id: ${chrome.runtime.id}`;"

	out, _ := process(t, src)

	assert.Equal(t, "const s = `chrome id: ${browser.runtime.id}`;", out)
}

func TestCallbackToPromise(t *testing.T) {
	src := "chrome.tabs.query({active: true}, tabs => render(tabs));"

	out, res := process(t, src)

	assert.Equal(t, "browser.tabs.query({active: true}).then(tabs => render(tabs));", out)
	assert.Equal(t, 1, res.Counts[OriginCallback])

	var cb []finding.Finding
	for _, f := range res.Findings {
		if f.Category == finding.CategoryCallbackVsPromise {
			cb = append(cb, f)
		}
	}
	require.Len(t, cb, 1)
	assert.True(t, cb[0].AutoFixable)
}

func TestCallbackOnlyArgument(t *testing.T) {
	src := "chrome.tabs.getCurrent(function(tab) { use(tab); });"

	out, _ := process(t, src)

	assert.Equal(t, "browser.tabs.getCurrent().then(function(tab) { use(tab); });", out)
}

func TestListenerCallbackStaysCallback(t *testing.T) {
	src := "chrome.runtime.onMessage.addListener((msg, sender, respond) => { respond(1); });"

	out, res := process(t, src)

	assert.Equal(t, "browser.runtime.onMessage.addListener((msg, sender, respond) => { respond(1); });", out)
	assert.Zero(t, res.Counts[OriginCallback])
}

func TestNestedCallbacksConvertIndependently(t *testing.T) {
	src := "chrome.tabs.query({}, tabs => { chrome.storage.local.get('k', v => use(tabs, v)); });"

	out, _ := process(t, src)

	assert.Equal(t,
		"browser.tabs.query({}).then(tabs => { browser.storage.local.get('k').then(v => use(tabs, v)); });",
		out)
}

func TestDeprecatedGetSelected(t *testing.T) {
	src := "chrome.tabs.getSelected(function(tab) { open(tab.id); });"

	out, _ := process(t, src)

	assert.Equal(t,
		"browser.tabs.query({active: true, currentWindow: true}).then(function(tab) { open(tab.id); });",
		out)
}

func TestDeprecatedGetSelectedWithWindowID(t *testing.T) {
	src := "chrome.tabs.getSelected(1, tab => open(tab));"

	out, _ := process(t, src)

	assert.Equal(t,
		"browser.tabs.query({active: true, currentWindow: true}).then(tab => open(tab));",
		out)
}

func TestDeprecatedGetAllInWindow(t *testing.T) {
	src := "chrome.tabs.getAllInWindow(winId, tabs => count(tabs));"

	out, _ := process(t, src)

	assert.Equal(t, "browser.tabs.query({windowId: winId}).then(tabs => count(tabs));", out)
}

func TestDeprecatedUnrecognizedShapeIsSkipped(t *testing.T) {
	src := "chrome.tabs.getSelected(getWin(), cb, extra);"

	out, res := process(t, src)

	// Only the namespace changes; the call shape is reported, not guessed at.
	assert.Equal(t, "browser.tabs.getSelected(getWin(), cb, extra);", out)

	found := false
	for _, f := range res.Findings {
		if f.Category == finding.CategoryDeprecatedAPI && !f.AutoFixable && f.Suggestion != "" {
			found = true
		}
	}
	assert.True(t, found, "expected a manual-review finding for the skipped site")
}

func TestDeprecatedExtensionGetURL(t *testing.T) {
	src := "const u = chrome.extension.getURL('page.html');"

	out, _ := process(t, src)

	assert.Equal(t, "const u = browser.runtime.getURL('page.html');", out)
}

func TestDeprecatedSendRequest(t *testing.T) {
	src := "chrome.tabs.sendRequest(tabId, payload, resp => handle(resp));"

	out, _ := process(t, src)

	assert.Equal(t, "browser.tabs.sendMessage(tabId, payload).then(resp => handle(resp));", out)
}

func TestExecuteScriptKeyRename(t *testing.T) {
	src := "chrome.scripting.executeScript({target: {tabId: 1}, function: inject});"

	out, _ := process(t, src)

	assert.Equal(t, "browser.scripting.executeScript({target: {tabId: 1}, func: inject});", out)
}

func TestExecuteScriptMissingInjectionWarns(t *testing.T) {
	src := "chrome.scripting.executeScript({target: {tabId: 1}});"

	_, res := process(t, src)

	found := false
	for _, f := range res.Findings {
		if f.Category == finding.CategoryChromeOnlyAPI && !f.AutoFixable {
			found = true
		}
	}
	assert.True(t, found)
}

func TestChromeURLMapping(t *testing.T) {
	src := `chrome.tabs.create({url: "chrome://extensions"});`

	out, _ := process(t, src)

	assert.Equal(t, `browser.tabs.create({url: "about:addons"});`, out)
}

func TestChromeURLWithoutEquivalent(t *testing.T) {
	src := `chrome.tabs.create({url: "chrome://gpu"});`

	out, res := process(t, src)

	assert.Equal(t, `browser.tabs.create({url: "chrome://gpu"});`, out)

	found := false
	for _, f := range res.Findings {
		if !f.AutoFixable && f.Severity == finding.SeverityMinor {
			found = true
		}
	}
	assert.True(t, found)
}

func TestChromeURLInTemplateString(t *testing.T) {
	src := "chrome.tabs.create({url: `chrome://extensions`});"

	out, res := process(t, src)

	assert.Equal(t, "browser.tabs.create({url: `about:addons`});", out)
	assert.Equal(t, 1, res.Counts[OriginChromeURL])
}

func TestChromeURLSplitBySubstitution(t *testing.T) {
	src := "chrome.tabs.create({url: `chrome://${page}`});"

	out, res := process(t, src)

	assert.Contains(t, out, "`chrome://${page}`")

	found := false
	for _, f := range res.Findings {
		if f.Category == finding.CategoryChromeOnlyAPI && !f.AutoFixable {
			found = true
		}
	}
	assert.True(t, found, "a fragment cut off by a substitution is reported, not rewritten")
}

func TestDetectChromeOnlyAPI(t *testing.T) {
	src := "chrome.offscreen.createDocument({url: 'off.html', reasons: ['DOM_PARSER'], justification: 'parse'});"

	_, res := process(t, src)

	var hit *finding.Finding
	for i := range res.Findings {
		if res.Findings[i].Category == finding.CategoryOffscreenDocument {
			hit = &res.Findings[i]
		}
	}
	require.NotNil(t, hit, "expected an offscreen finding")
	assert.Equal(t, finding.SeverityMajor, hit.Severity)
	assert.True(t, hit.AutoFixable)
}

func TestDetectDoesNotDuplicateSubChains(t *testing.T) {
	src := "chrome.tabGroups.query({});"

	_, res := process(t, src)

	count := 0
	for _, f := range res.Findings {
		if f.Category == finding.CategoryTabGroups {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestConversionIsIdempotent(t *testing.T) {
	src := `chrome.tabs.query({active: true}, tabs => render(tabs));
chrome.tabs.getSelected(tab => open(tab));
chrome.tabs.create({url: "chrome://settings"});`

	first, _ := process(t, src)
	second, res := process(t, first)

	assert.Equal(t, first, second)
	assert.Empty(t, res.Edits)
}

func TestProcessDeterministic(t *testing.T) {
	src := "chrome.tabs.query({}, t => a(t));\nchrome.runtime.reload();\n"

	out1, res1 := process(t, src)
	out2, res2 := process(t, src)

	assert.Equal(t, out1, out2)
	assert.Equal(t, res1.Findings, res2.Findings)
	assert.Equal(t, res1.Counts, res2.Counts)
}
