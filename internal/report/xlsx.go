package report

import (
	"fmt"
	"io"

	"github.com/nao1215/productscan/internal/model"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook.
const (
	SheetSummary  = "Summary"
	SheetProducts = "Products"
	SheetErrors   = "Errors"
)

// XLSXWriter writes an Excel workbook with one sheet per view of the run:
// per-domain summary, one product URL per row, and the error list.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{baseWriter: newBaseWriter(output)}
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Write outputs the workbook.
func (w *XLSXWriter) Write(result *model.Result) (int, error) {
	if result == nil {
		return 0, ErrNilResult
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return 0, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetProducts, SheetErrors} {
		if _, err := f.NewSheet(name); err != nil {
			return 0, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	if err := writeRows(f, SheetSummary, summaryRows(result)); err != nil {
		return 0, err
	}
	if err := writeRows(f, SheetProducts, productRows(result)); err != nil {
		return 0, err
	}
	if err := writeRows(f, SheetErrors, errorRows(result)); err != nil {
		return 0, err
	}

	if err := f.SetPanes(SheetProducts, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, fmt.Errorf("freeze header: %w", err)
	}

	cw := &countingWriter{w: w.output}
	if err := f.Write(cw); err != nil {
		return cw.n, fmt.Errorf("write workbook: %w", err)
	}
	return cw.n, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func summaryRows(result *model.Result) [][]any {
	rows := [][]any{{"Domain", "Strategy", "Products", "Categories", "Pages", "Attempts", "Errors", "Duration (s)"}}
	for _, d := range result.Domains {
		rows = append(rows, []any{
			d.Domain,
			d.Strategy.String(),
			len(d.Products),
			len(d.Categories),
			d.PagesRendered,
			d.Attempts,
			len(result.ErrorsFor(d.Domain)),
			d.Duration.Seconds(),
		})
	}
	return rows
}

func productRows(result *model.Result) [][]any {
	rows := [][]any{{"Domain", "Product URL"}}
	for _, d := range result.Domains {
		for _, p := range d.Products {
			rows = append(rows, []any{d.Domain, p})
		}
	}
	return rows
}

func errorRows(result *model.Result) [][]any {
	rows := [][]any{{"Time", "Domain", "Kind", "URL", "Message"}}
	for _, e := range result.Errors {
		rows = append(rows, []any{e.Time.Format("2006-01-02 15:04:05"), e.Domain, e.Kind.String(), e.URL, e.Message})
	}
	return rows
}
