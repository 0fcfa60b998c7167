// Package report writes the outcome of a crawl run.
//
// Writers:
//   - JSONWriter: the product artifact, {"<domain>": ["<url>", ...]}
//   - MarkdownWriter: a run summary for sharing
//   - TextWriter: a terminal summary
//   - XLSXWriter: an Excel workbook with summary, products and errors
//
// Design decision: writers live apart from the model package so that new
// formats never touch the data structures.
package report
