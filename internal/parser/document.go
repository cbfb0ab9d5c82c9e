// Package parser wraps parsed storefront HTML and extracts item links,
// pagination links and product fields from it.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed page whose links resolve against the site base URL
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse decodes body according to contentType (falling back to <meta>
// sniffing) and builds a queryable document. Relative references are resolved
// against base, not against the page URL.
func Parse(body []byte, contentType string, base *url.URL) (*Document, error) {
	if base == nil {
		return nil, fmt.Errorf("base URL is required")
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode HTML: %w", err)
	}

	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return &Document{
		doc:  goquery.NewDocumentFromNode(root),
		base: base,
	}, nil
}

// ParseString is Parse for already-decoded markup
func ParseString(markup string, base *url.URL) (*Document, error) {
	return Parse([]byte(markup), "text/html; charset=utf-8", base)
}

// Selection exposes the document root for selector strategies
func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// Resolve turns an href or src into an absolute URL without fragment
func (d *Document) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	abs := d.base.ResolveReference(u)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}

// text joins the trimmed text nodes under every node of sel with sep
func text(sel *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// ownText returns the concatenated text nodes that are direct children of n
func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
