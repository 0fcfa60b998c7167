// Package crawler discovers product page URLs on e-commerce sites.
//
// # Architecture
//
// An Orchestrator launches one shared browser and runs a DomainCrawler per
// seed domain concurrently. Each DomainCrawler is a small state machine:
//
//	Init -> Rendering -> Extracting -> Done
//	            |  ^
//	            v  |
//	           Retry -> FallbackFetch -> Done
//
// The homepage is rendered in an isolated browser context and its anchors
// are resolved (Resolve), deduplicated and classified (Classifier) into the
// domain's Frontier as products or same-site category URLs. When rendering
// fails on every attempt, the root is fetched once over plain HTTP and its
// href attributes are scanned for product URLs only.
//
// Design decision: the browser, HTTP client and header generator are
// interfaces. The crawl logic is tested with in-memory fakes, and the
// chromedp and net/http adapters live in their own packages.
//
// # Errors
//
// Nothing that goes wrong while crawling a domain is returned to the caller.
// Failures are appended to a model.ErrorLog shared by the run, and every
// domain still produces a (possibly empty) model.DomainResult.
//
// # Category following
//
// By default discovered category URLs are only collected. With
// Options.FollowCategories they are rendered breadth-first, up to
// Options.MaxDepth hops below the homepage and Options.MaxPages pages.
//
// # Usage
//
//	orch := crawler.NewOrchestrator(launcher, client, headers,
//		crawler.WithConcurrency(10),
//	)
//	result, err := orch.Run(ctx, []string{"https://shop.example"})
package crawler
