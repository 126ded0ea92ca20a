// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feature

import (
	"github.com/foxlate/foxlate/services/convert/manifest"
)

// Shim file locations inside the converted extension.
const (
	TabGroupsStubPath      = "shims/tab-groups-stub.js"
	StorageSessionShimPath = "shims/storage-session-shim.js"
	SidePanelShimPath      = "shims/side-panel-shim.js"
)

// convertTabGroups emits the tab-groups stub. The stub changes nothing
// functionally; it exists so code paths touching tab groups degrade to
// warnings instead of TypeErrors.
func (c *Converter) convertTabGroups(doc *manifest.Document) (*Artifacts, error) {
	out := &Artifacts{
		NewFiles: []NewFile{{
			Path:    TabGroupsStubPath,
			Content: tabGroupsStubJS,
			Purpose: "keeps tabGroups calls from crashing; Firefox has no tab group API",
		}},
		Instructions: []string{
			"tabGroups calls are stubbed: they warn and return placeholders, and tab grouping features will not work",
		},
	}
	if _, ok := doc.GetList("background.scripts"); ok {
		out.Patches = append(out.Patches, addBackgroundScript(doc, TabGroupsStubPath))
	} else {
		out.Instructions = append(out.Instructions,
			"load "+TabGroupsStubPath+" before any script that touches tabGroups")
	}
	return out, nil
}

// convertStorageSession emits the in-memory storage.session shim.
func (c *Converter) convertStorageSession(doc *manifest.Document) (*Artifacts, error) {
	out := &Artifacts{
		NewFiles: []NewFile{{
			Path:    StorageSessionShimPath,
			Content: storageSessionShimJS,
			Purpose: "in-memory storage.session replacement for Firefox versions without it",
		}},
		Instructions: []string{
			"storage.session is shimmed with an in-memory map scoped to the background context",
		},
	}
	if _, ok := doc.GetList("background.scripts"); ok {
		out.Patches = append(out.Patches, addBackgroundScript(doc, StorageSessionShimPath))
	} else {
		out.Instructions = append(out.Instructions,
			"load "+StorageSessionShimPath+" before any script that touches storage.session")
	}
	return out, nil
}

// convertSidePanelScripts emits the sidebarAction adapter. The manifest
// side of side_panel is handled by the manifest rule list; this covers the
// runtime calls.
func (c *Converter) convertSidePanelScripts(doc *manifest.Document) (*Artifacts, error) {
	out := &Artifacts{
		NewFiles: []NewFile{{
			Path:    SidePanelShimPath,
			Content: sidePanelShimJS,
			Purpose: "adapts sidePanel calls to Firefox's sidebarAction",
		}},
		Instructions: []string{
			"sidePanel calls are routed to sidebarAction; panel behavior options have no equivalent and warn",
		},
	}
	if _, ok := doc.GetList("background.scripts"); ok {
		out.Patches = append(out.Patches, addBackgroundScript(doc, SidePanelShimPath))
	} else {
		out.Instructions = append(out.Instructions,
			"load "+SidePanelShimPath+" before any script that touches sidePanel")
	}
	return out, nil
}
