// Package model defines the data shared by the crawler, the reports and
// the run history.
//
// This package contains the following main types:
//   - DomainResult: the final state of one domain crawl
//   - Result: every DomainResult of a run plus its CrawlErrors
//   - CrawlError: a recorded failure with its kind and timestamp
//   - ErrorLog: the shared, append-only collector of CrawlErrors
//
// Design decision: the types live in their own package so that crawler,
// report and database can all depend on them without import cycles.
package model
