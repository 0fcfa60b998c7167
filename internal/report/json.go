package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/productscan/internal/model"
)

// DefaultIndent is the artifact indentation.
const DefaultIndent = "    "

// JSONWriter writes the product artifact: an object mapping each seed
// domain to its sorted product URLs. Every seed has a key, even when no
// product was found.
type JSONWriter struct {
	baseWriter

	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets the indentation. An empty string writes compact JSON.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = indent
	}
}

// NewJSONWriter creates a JSONWriter with four-space indentation.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		indent:     DefaultIndent,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the artifact.
func (w *JSONWriter) Write(result *model.Result) (int, error) {
	if result == nil {
		return 0, ErrNilResult
	}
	return w.WriteValue(result.Products())
}

// WriteValue marshals any value with the writer's indentation.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent != "" {
		data, err = json.MarshalIndent(v, "", w.indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
