package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/productscan/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter writes a GitHub flavored Markdown run summary.
type MarkdownWriter struct {
	baseWriter

	title cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      cases.Title(language.English),
	}
}

// Write outputs the summary.
func (w *MarkdownWriter) Write(result *model.Result) (int, error) {
	if result == nil {
		return 0, ErrNilResult
	}

	md := markdown.NewMarkdown(w.output)
	w.writeHeader(md, result)
	w.writeStrategies(md, result)
	w.writeDomains(md, result)
	w.writeProducts(md, result)
	w.writeErrors(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.Result) {
	md.H1("Product Scan Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", result.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", result.Elapsed().Round(time.Millisecond).String()},
			{"Domains", strconv.Itoa(len(result.Domains))},
			{"Product URLs", strconv.Itoa(result.TotalProducts())},
			{"Errors", strconv.Itoa(len(result.Errors))},
		},
	})
	md.PlainText("")

	failed := failedDomains(result)
	switch {
	case len(result.Domains) > 0 && failed == len(result.Domains):
		md.Cautionf("No domain could be fetched. %d error(s) recorded.", len(result.Errors))
	case failed > 0:
		md.Warningf("%d of %d domain(s) could not be fetched.", failed, len(result.Domains))
	case len(result.Errors) > 0:
		md.Note(fmt.Sprintf("All domains fetched; %d non-fatal error(s) recorded.", len(result.Errors)))
	default:
		md.Tip("All domains fetched without errors.")
	}
	md.PlainText("")
}

// writeStrategies charts how the domains were fetched.
func (w *MarkdownWriter) writeStrategies(md *markdown.Markdown, result *model.Result) {
	counts := strategyCounts(result)
	if len(result.Domains) == 0 {
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Strategy"),
		piechart.WithShowData(true),
	)
	for _, s := range []model.Strategy{model.StrategyRender, model.StrategyFallback, model.StrategyNone} {
		if counts[s] > 0 {
			chart.LabelAndIntValue(w.title.String(s.String()), uint64(counts[s])) //nolint:gosec // counts are non-negative
		}
	}

	md.H2("Fetch Strategy")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, result *model.Result) {
	md.H2("Domains")
	md.PlainText("")

	if len(result.Domains) == 0 {
		md.PlainText("No domains crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Domains))
	for _, d := range result.Domains {
		rows = append(rows, []string{
			"`" + d.Domain + "`",
			w.title.String(d.Strategy.String()),
			strconv.Itoa(len(d.Products)),
			strconv.Itoa(len(d.Categories)),
			strconv.Itoa(d.PagesRendered),
			strconv.Itoa(d.Attempts),
			strconv.Itoa(len(result.ErrorsFor(d.Domain))),
			d.Duration.Round(time.Millisecond).String(),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Strategy", "Products", "Categories", "Pages", "Attempts", "Errors", "Duration"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeProducts lists product URLs per domain in collapsible sections.
func (w *MarkdownWriter) writeProducts(md *markdown.Markdown, result *model.Result) {
	md.H2("Product URLs")
	md.PlainText("")

	if result.TotalProducts() == 0 {
		md.PlainText("No product URLs found.")
		md.PlainText("")
		return
	}

	for _, d := range result.Domains {
		if len(d.Products) == 0 {
			continue
		}
		md.Details(fmt.Sprintf("%s (%d)", d.Domain, len(d.Products)), bulletText(d.Products))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, result *model.Result) {
	md.H2("Errors")
	md.PlainText("")

	if len(result.Errors) == 0 {
		md.PlainText("No errors recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		u := e.URL
		if u == "" {
			u = "-"
		}
		rows = append(rows, []string{
			"`" + e.Domain + "`",
			e.Kind.String(),
			truncateString(u, 60),
			truncateString(e.Message, 80),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Kind", "URL", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [productscan](https://github.com/nao1215/productscan)*")
}

func bulletText(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
	return sb.String()
}

// failedDomains counts domains for which no page could be fetched.
func failedDomains(result *model.Result) int {
	n := 0
	for _, d := range result.Domains {
		if d.Strategy == model.StrategyNone || d.Strategy == "" {
			n++
		}
	}
	return n
}

func strategyCounts(result *model.Result) map[model.Strategy]int {
	counts := make(map[model.Strategy]int, 3)
	for _, d := range result.Domains {
		s := d.Strategy
		if s == "" {
			s = model.StrategyNone
		}
		counts[s]++
	}
	return counts
}

// truncateString truncates s to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
