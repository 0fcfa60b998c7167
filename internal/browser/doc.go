// Package browser implements the crawler's Launcher, Browser,
// BrowserContext and Page interfaces on top of headless Chrome via
// chromedp.
//
// One Chrome process is shared by the whole run. Every domain gets its
// own browser context (separate cookies and cache) and a tab in it.
// Anchors are read by serializing the rendered DOM and parsing it with
// goquery, so attribute reads never race with page scripts.
package browser
