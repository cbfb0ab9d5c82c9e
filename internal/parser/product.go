package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/masahif/tiendacrawl/internal/model"
)

// Strategy extracts one candidate value for a field. ok is false when the
// strategy found nothing usable.
type Strategy interface {
	Extract(root *goquery.Selection) (value string, ok bool)
}

// Chain tries strategies in order; the first hit wins
type Chain []Strategy

// Extract returns the first strategy's value, or "" when none matched
func (c Chain) Extract(root *goquery.Selection) string {
	for _, s := range c {
		if v, ok := s.Extract(root); ok {
			return v
		}
	}
	return ""
}

// FirstText selects the first element matching Selector and returns its text,
// pieces joined with Separator.
type FirstText struct {
	Selector  string
	Separator string
}

// Extract implements Strategy
func (s FirstText) Extract(root *goquery.Selection) (string, bool) {
	sel := root.Find(s.Selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return text(sel, s.Separator), true
}

// OwnTextContains selects the first element matching Selector whose direct
// text contains Substr.
type OwnTextContains struct {
	Selector string
	Substr   string
}

// Extract implements Strategy
func (s OwnTextContains) Extract(root *goquery.Selection) (string, bool) {
	var value string
	var found bool

	root.Find(s.Selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(ownText(sel.Nodes[0]), s.Substr) {
			value, found = text(sel, ""), true
			return false
		}
		return true
	})

	return value, found
}

// FieldChains holds the extraction chain for every scalar product field
type FieldChains struct {
	Name        Chain
	Price       Chain
	Description Chain
}

// DefaultFieldChains returns the chains for Tiendanube storefront pages
func DefaultFieldChains() FieldChains {
	return FieldChains{
		Name: Chain{
			FirstText{Selector: "h1"},
		},
		Price: Chain{
			FirstText{Selector: ".price"},
			OwnTextContains{Selector: "span", Substr: "$"},
		},
		Description: Chain{
			// A single group selector keeps document order across the three classes.
			FirstText{Selector: ".product-description, .descripcion, .description", Separator: " "},
		},
	}
}

// Product builds the record for an item detail page. Missing fields are
// empty strings; this never fails.
func (d *Document) Product(pageURL string, fields FieldChains) model.ProductRecord {
	root := d.Selection()

	return model.ProductRecord{
		Name:        fields.Name.Extract(root),
		Price:       fields.Price.Extract(root),
		Description: fields.Description.Extract(root),
		URL:         pageURL,
		Images:      d.ImageURLs(),
	}
}

// ImageURLs returns every img src on the page, resolved, in document order
func (d *Document) ImageURLs() []string {
	images := []string{}
	d.doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if abs, ok := d.Resolve(src); ok {
			images = append(images, abs)
		}
	})
	return images
}
