package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/productscan/internal/model"
)

// TextWriter writes a plain-text run summary for the terminal.
//
// Design decision: plain ASCII without colors so the output can be piped.
type TextWriter struct {
	baseWriter

	// listProducts prints every product URL under its domain.
	listProducts bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithProductList prints every product URL, not only the counts.
func WithProductList(list bool) TextWriterOption {
	return func(w *TextWriter) {
		w.listProducts = list
	}
}

// NewTextWriter creates a TextWriter.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *TextWriter) Write(result *model.Result) (int, error) {
	if result == nil {
		return 0, ErrNilResult
	}

	var sb strings.Builder
	rule := strings.Repeat("-", 70)

	sb.WriteString("\n")
	sb.WriteString(rule + "\n")
	sb.WriteString("PRODUCT SCAN SUMMARY\n")
	sb.WriteString(rule + "\n\n")
	fmt.Fprintf(&sb, "Domains:  %d\n", len(result.Domains))
	fmt.Fprintf(&sb, "Products: %d\n", result.TotalProducts())
	fmt.Fprintf(&sb, "Errors:   %d\n", len(result.Errors))
	fmt.Fprintf(&sb, "Elapsed:  %s\n\n", result.Elapsed().Round(time.Millisecond))

	for _, d := range result.Domains {
		fmt.Fprintf(&sb, "  [%s] %s: %d product(s), %d category page(s)\n",
			d.Strategy, d.Domain, len(d.Products), len(d.Categories))
		if w.listProducts {
			for _, p := range d.Products {
				fmt.Fprintf(&sb, "      %s\n", p)
			}
		}
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\n" + rule + "\n")
		sb.WriteString("ERRORS\n")
		sb.WriteString(rule + "\n\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&sb, "  [%s] %s\n", strings.ToUpper(e.Kind.String()), e.Error())
		}
	}
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}
