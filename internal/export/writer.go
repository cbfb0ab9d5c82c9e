// Package export writes crawl results to the output files: CSV and JSON
// product lists and a Markdown run report.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/masahif/tiendacrawl/internal/config"
	"github.com/masahif/tiendacrawl/internal/model"
)

// Writer serializes a crawl result in one format
type Writer interface {
	// Write outputs the result to w
	Write(w io.Writer, result *model.CrawlResult) error

	// Extension is the file extension, without the dot
	Extension() string
}

// ForFormat returns the writer for a configured format name
func ForFormat(format string) (Writer, error) {
	switch format {
	case config.FormatCSV:
		return NewCSVWriter(), nil
	case config.FormatJSON:
		return NewJSONWriter(), nil
	case config.FormatMarkdown:
		return NewMarkdownWriter(), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// WriteFiles creates dir if needed and writes result as dir/name.<ext> for
// every format. It returns the paths written.
func WriteFiles(dir, name string, formats []string, result *model.CrawlResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for _, format := range formats {
		w, err := ForFormat(format)
		if err != nil {
			return paths, err
		}

		path := filepath.Join(dir, name+"."+w.Extension())
		if err := writeFile(path, w, result); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func writeFile(path string, w Writer, result *model.CrawlResult) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := w.Write(f, result); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
