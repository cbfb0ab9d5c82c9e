package export

import (
	"encoding/json"
	"io"

	"github.com/masahif/tiendacrawl/internal/model"
)

// JSONWriter writes the product list as an indented JSON array with the
// images kept as nested arrays.
type JSONWriter struct {
	indent string
}

// NewJSONWriter creates a JSONWriter using two-space indentation
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{indent: "  "}
}

// Extension implements Writer
func (w *JSONWriter) Extension() string { return "json" }

// Write implements Writer
func (w *JSONWriter) Write(out io.Writer, result *model.CrawlResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", w.indent)
	// Keep accents and currency text as written on the storefront.
	enc.SetEscapeHTML(false)

	products := result.Products
	if products == nil {
		products = []model.ProductRecord{}
	}
	return enc.Encode(products)
}
