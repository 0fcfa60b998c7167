package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/productscan/internal/model"
	"github.com/xuri/excelize/v2"
)

func sampleResult() *model.Result {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &model.Result{
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
		Domains: []model.DomainResult{
			{
				Domain:        "https://shop.test/",
				Products:      []string{"https://shop.test/dp/123", "https://shop.test/p/9"},
				Categories:    []string{"https://shop.test/category/a"},
				VisitedCount:  5,
				PagesRendered: 1,
				Attempts:      1,
				Strategy:      model.StrategyRender,
				Duration:      3 * time.Second,
			},
			{
				Domain:   "https://down.test/",
				Products: []string{},
				Attempts: 3,
				Strategy: model.StrategyNone,
				Duration: 90 * time.Second,
			},
		},
		Errors: []model.CrawlError{
			model.NewCrawlError("https://down.test/", "https://down.test/", model.ErrorKindFallback, "status 503"),
		},
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("artifact shape", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(sampleResult()); err != nil {
			t.Fatalf("Write: %v", err)
		}

		var got map[string][]string
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 domains, got %d", len(got))
		}
		if len(got["https://shop.test/"]) != 2 {
			t.Errorf("unexpected products %v", got["https://shop.test/"])
		}
		if v, ok := got["https://down.test/"]; !ok || len(v) != 0 {
			t.Errorf("expected empty list for failed domain, got %v (present=%v)", v, ok)
		}
	})

	t.Run("four space indent and empty list literal", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(sampleResult()); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "\n    \"https://down.test/\": []") {
			t.Errorf("expected 4-space indent and [] for empty domain:\n%s", out)
		}
		if !strings.HasSuffix(out, "}\n") {
			t.Error("expected trailing newline")
		}
	})

	t.Run("compact", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("")).WriteValue(map[string]int{"a": 1}); err != nil {
			t.Fatalf("WriteValue: %v", err)
		}
		if buf.String() != "{\"a\":1}\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("nil result", func(t *testing.T) {
		t.Parallel()

		if _, err := NewJSONWriter(io.Discard).Write(nil); !errors.Is(err, ErrNilResult) {
			t.Errorf("expected ErrNilResult, got %v", err)
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("full report", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(sampleResult())
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if n == 0 {
			t.Error("expected bytes written")
		}

		out := buf.String()
		for _, want := range []string{
			"# Product Scan Report",
			"## Domains",
			"`https://shop.test/`",
			"Render",
			"mermaid",
			"https://shop.test/dp/123",
			"## Errors",
			"status 503",
			"1 of 2 domain(s) could not be fetched",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
	})

	t.Run("empty run", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(&model.Result{}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "No domains crawled.") || !strings.Contains(out, "No errors recorded.") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("all failed", func(t *testing.T) {
		t.Parallel()

		r := sampleResult()
		r.Domains = r.Domains[1:]

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if !strings.Contains(buf.String(), "No domain could be fetched") {
			t.Errorf("expected caution alert:\n%s", buf.String())
		}
	})
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewTextWriter(&buf, WithProductList(true)).Write(sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Products: 2",
		"[render] https://shop.test/: 2 product(s), 1 category page(s)",
		"      https://shop.test/p/9",
		"[FALLBACK]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	if _, err := NewTextWriter(&buf).Write(sampleResult()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Contains(buf.String(), "      https://shop.test/p/9") {
		t.Error("product list should be hidden by default")
	}
}

func TestXLSXWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := NewXLSXWriter(&buf).Write(sampleResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	products, err := f.GetRows(SheetProducts)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(products))
	}
	if products[1][1] != "https://shop.test/dp/123" {
		t.Errorf("unexpected first product %v", products[1])
	}

	summary, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(summary) != 3 || summary[2][1] != "none" {
		t.Errorf("unexpected summary %v", summary)
	}

	errs, err := f.GetRows(SheetErrors)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(errs) != 2 || errs[1][2] != "fallback" {
		t.Errorf("unexpected errors sheet %v", errs)
	}
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	n, err := NewMultiWriter(NewJSONWriter(&a), NewTextWriter(&b)).Write(sampleResult())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != a.Len()+b.Len() {
		t.Errorf("expected %d bytes, got %d", a.Len()+b.Len(), n)
	}

	if _, err := NewMultiWriter(NewJSONWriter(&a)).Write(nil); !errors.Is(err, ErrNilResult) {
		t.Errorf("expected ErrNilResult, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "out", "nested", "product_urls.json")
		err := WriteFile(path, sampleResult(), func(w io.Writer) Writer { return NewJSONWriter(w) })
		if err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "https://shop.test/dp/123") {
			t.Errorf("unexpected file content %s", data)
		}
	})

	t.Run("write error is returned", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "x.json")
		err := WriteFile(path, nil, func(w io.Writer) Writer { return NewJSONWriter(w) })
		if !errors.Is(err, ErrNilResult) {
			t.Errorf("expected ErrNilResult, got %v", err)
		}
	})
}
