package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/masahif/tiendacrawl/internal/model"
)

// ImageDelimiter joins the image list into the single CSV image column
const ImageDelimiter = ", "

// CSVHeader is the fixed column order of the product file
var CSVHeader = []string{"nombre", "precio", "descripcion", "url", "imagenes"}

// CSVWriter writes one row per product
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// Extension implements Writer
func (w *CSVWriter) Extension() string { return "csv" }

// Write implements Writer
func (w *CSVWriter) Write(out io.Writer, result *model.CrawlResult) error {
	cw := csv.NewWriter(out)

	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, p := range result.Products {
		row := []string{p.Name, p.Price, p.Description, p.URL, strings.Join(p.Images, ImageDelimiter)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a product file written by CSVWriter. The image column is
// split on ImageDelimiter; an empty column yields no images.
func ReadCSV(in io.Reader) ([]model.ProductRecord, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing CSV header")
	}
	if err != nil {
		return nil, err
	}
	if !slices.Equal(header, CSVHeader) {
		return nil, fmt.Errorf("unexpected CSV header %v", header)
	}

	products := []model.ProductRecord{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		images := []string{}
		if row[4] != "" {
			images = strings.Split(row[4], ImageDelimiter)
		}

		products = append(products, model.ProductRecord{
			Name:        row[0],
			Price:       row[1],
			Description: row[2],
			URL:         row[3],
			Images:      images,
		})
	}

	return products, nil
}
