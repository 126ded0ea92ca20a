// Copyright (C) 2025 Foxlate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package feature

// Generated JavaScript emitted into converted extensions. The files carry a
// generation marker comment so developers know where they came from.

const canvasWorkerJS = `// Generated by foxlate: canvas work moved out of the offscreen document.

'use strict';

let canvas = null;
let ctx = null;

self.addEventListener('message', async (event) => {
  const { type, data } = event.data;

  switch (type) {
    case 'init':
      canvas = event.data.canvas;
      ctx = canvas.getContext('2d');
      self.postMessage({ type: 'ready' });
      break;

    case 'render':
      if (ctx && data) {
        ctx.fillStyle = data.color || '#000';
        ctx.fillRect(data.x || 0, data.y || 0, data.width || 100, data.height || 100);
        self.postMessage({ type: 'render_complete' });
      }
      break;

    default:
      console.error('canvas worker: unknown message type', type);
  }
});
`

const canvasInitSnippet = `const canvasWorker = new Worker('workers/canvas-worker.js');
const canvas = document.querySelector('canvas');
if (canvas) {
  const offscreen = canvas.transferControlToOffscreen();
  canvasWorker.postMessage({ type: 'init', canvas: offscreen }, [offscreen]);
}`

const audioWorkerJS = `// Generated by foxlate: audio work moved out of the offscreen document.

'use strict';

let audioContext = null;

self.addEventListener('message', async (event) => {
  const { type, data } = event.data;

  switch (type) {
    case 'init':
      audioContext = new AudioContext();
      self.postMessage({ type: 'ready' });
      break;

    case 'play':
      if (audioContext && data.frequency) {
        const oscillator = audioContext.createOscillator();
        oscillator.frequency.value = data.frequency;
        oscillator.connect(audioContext.destination);
        oscillator.start();
        setTimeout(() => oscillator.stop(), data.duration || 1000);
        self.postMessage({ type: 'playing' });
      }
      break;

    case 'stop':
      if (audioContext) {
        audioContext.close();
      }
      break;
  }
});
`

const networkHandlerJS = `// Generated by foxlate: the offscreen fetch proxy now lives in the
// background script, which has full fetch() access in Firefox.

browser.runtime.onMessage.addListener((message, sender, sendResponse) => {
  if (message.type === 'fetch_request') {
    (async () => {
      try {
        const response = await fetch(message.url, message.options);
        const data = await response.json();
        sendResponse({ success: true, data });
      } catch (error) {
        sendResponse({ success: false, error: error.message });
      }
    })();
    return true; // respond asynchronously
  }
});
`

const domParserJS = `// Generated by foxlate: DOM parsing moved from the offscreen document
// into a content script running on the target pages.

'use strict';

function extractData() {
  return {
    title: document.title,
    headings: Array.from(document.querySelectorAll('h1, h2, h3')).map(h => h.textContent),
    links: Array.from(document.querySelectorAll('a')).map(a => a.href)
  };
}

browser.runtime.sendMessage({
  type: 'dom_parse_complete',
  data: extractData()
});
`

const tabGroupsStubJS = `// Generated by foxlate: Firefox has no tab group API. This stub keeps the
// call surface alive so the rest of the extension runs; the calls warn and
// return structurally valid placeholders, and the events never fire.

'use strict';

const TabGroupsStub = {
  query: async () => {
    console.warn('tabGroups.query() called - returning empty array');
    return [];
  },

  create: async (createProperties) => {
    console.warn('tabGroups.create() called - returning placeholder group');
    return {
      id: -1,
      title: createProperties?.title || '',
      color: 'grey',
      collapsed: false
    };
  },

  update: async (groupId, updateProperties) => {
    console.warn('tabGroups.update() called - no-op');
    return { id: groupId, ...updateProperties };
  },

  get: async (groupId) => {
    console.warn('tabGroups.get() called - returning placeholder group');
    return { id: groupId, title: '', color: 'grey', collapsed: false };
  },

  move: async (groupId) => {
    console.warn('tabGroups.move() called - no-op');
    return { id: groupId };
  },

  onCreated: {
    addListener: () => { console.warn('tabGroups.onCreated will never fire'); },
    removeListener: () => {},
    hasListener: () => false
  },

  onUpdated: {
    addListener: () => { console.warn('tabGroups.onUpdated will never fire'); },
    removeListener: () => {},
    hasListener: () => false
  },

  onRemoved: {
    addListener: () => { console.warn('tabGroups.onRemoved will never fire'); },
    removeListener: () => {},
    hasListener: () => false
  },

  onMoved: {
    addListener: () => { console.warn('tabGroups.onMoved will never fire'); },
    removeListener: () => {},
    hasListener: () => false
  }
};

if (typeof browser !== 'undefined' && !browser.tabGroups) {
  browser.tabGroups = TabGroupsStub;
}
if (typeof chrome !== 'undefined' && !chrome.tabGroups) {
  chrome.tabGroups = TabGroupsStub;
}
`

const storageSessionShimJS = `// Generated by foxlate: in-memory stand-in for storage.session. Data lives
// for the background context's lifetime, which matches Chrome's semantics
// closely enough for most callers.

'use strict';

(function () {
  const ns = typeof browser !== 'undefined' ? browser : chrome;
  if (!ns || !ns.storage || ns.storage.session) {
    return;
  }

  const store = new Map();

  ns.storage.session = {
    get: async (keys) => {
      if (keys == null) {
        return Object.fromEntries(store);
      }
      const list = typeof keys === 'string' ? [keys] : Array.isArray(keys) ? keys : Object.keys(keys);
      const out = {};
      for (const k of list) {
        if (store.has(k)) {
          out[k] = store.get(k);
        } else if (!Array.isArray(keys) && typeof keys === 'object') {
          out[k] = keys[k];
        }
      }
      return out;
    },

    set: async (items) => {
      for (const [k, v] of Object.entries(items)) {
        store.set(k, v);
      }
    },

    remove: async (keys) => {
      const list = typeof keys === 'string' ? [keys] : keys;
      for (const k of list) {
        store.delete(k);
      }
    },

    clear: async () => {
      store.clear();
    }
  };
})();
`

const sidePanelShimJS = `// Generated by foxlate: maps sidePanel calls onto Firefox's sidebarAction.

'use strict';

(function () {
  const ns = typeof browser !== 'undefined' ? browser : chrome;
  if (!ns || ns.sidePanel || !ns.sidebarAction) {
    return;
  }

  ns.sidePanel = {
    open: async () => ns.sidebarAction.open(),

    setOptions: async (options) => {
      if (options && options.path) {
        await ns.sidebarAction.setPanel({ panel: options.path });
      }
    },

    getOptions: async () => {
      const panel = await ns.sidebarAction.getPanel({});
      return { path: panel, enabled: true };
    },

    setPanelBehavior: async () => {
      console.warn('sidePanel.setPanelBehavior has no sidebarAction equivalent');
    }
  };
})();
`

const declarativeBackgroundJS = `// Generated by foxlate: background handler for the content script that
// replaced the declarativeContent rules.

browser.runtime.onMessage.addListener((message, sender) => {
  if (message.type === 'page_condition_met' && sender.tab?.id) {
    browser.pageAction.show(sender.tab.id);

    if (message.iconPath) {
      browser.pageAction.setIcon({
        tabId: sender.tab.id,
        path: message.iconPath
      });
    }
  }
});
`
