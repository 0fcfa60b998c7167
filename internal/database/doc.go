// Package database stores the history of crawl runs in SQLite.
//
// The RunDB keeps, per run:
//   - the run itself (ID, start and end time, totals)
//   - per-domain statistics with a SHA3-256 digest of the product set
//   - every product URL found
//   - every CrawlError recorded
//
// History is only ever read by the history command; a crawl never resumes
// from it.
//
// Design decision: SQLite via modernc.org/sqlite keeps the history a
// single CGO-free file in the XDG data directory.
package database
