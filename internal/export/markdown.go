package export

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/masahif/tiendacrawl/internal/model"
)

// MarkdownWriter writes a human-readable run report: run properties, the
// product table and the skipped units.
type MarkdownWriter struct {
	maxDescription int
}

// NewMarkdownWriter creates a MarkdownWriter
func NewMarkdownWriter() *MarkdownWriter {
	return &MarkdownWriter{maxDescription: 80}
}

// Extension implements Writer
func (w *MarkdownWriter) Extension() string { return "md" }

// Write implements Writer
func (w *MarkdownWriter) Write(out io.Writer, result *model.CrawlResult) error {
	md := markdown.NewMarkdown(out)

	w.writeHeader(md, result)
	w.writeProducts(md, result)
	w.writeFailures(md, result)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1("Catalog Crawl Report")
	md.PlainText("")

	st := result.Stats
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + result.RunID + "`"},
			{"Storefront", result.BaseURL},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", result.Duration().Round(time.Second).String()},
			{"Stop Reason", st.StopReason},
			{"Pages Visited", strconv.Itoa(st.PagesVisited)},
			{"Products", strconv.Itoa(st.Products)},
			{"Item Failures", strconv.Itoa(st.ItemFailures)},
			{"Images Saved", strconv.Itoa(st.ImagesSaved)},
			{"Images Reused", strconv.Itoa(st.ImagesCached)},
			{"Image Failures", strconv.Itoa(st.ImageFailures)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeProducts(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Products")
	md.PlainText("")

	if len(result.Products) == 0 {
		md.PlainText("No products were extracted.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(result.Products))
	for _, p := range result.Products {
		rows = append(rows, []string{
			markdown.Link(p.Name, p.URL),
			p.Price,
			truncate(p.Description, w.maxDescription),
			strconv.Itoa(len(p.Images)),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Name", "Price", "Description", "Images"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Failures) == 0 {
		return
	}

	md.H2("Skipped")
	md.PlainText("")

	rows := make([][]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		rows = append(rows, []string{f.Kind, f.URL, truncate(f.Message, w.maxDescription)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// truncate shortens s to at most maxLen runes with an ellipsis
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
