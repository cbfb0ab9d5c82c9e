package parser

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// NextIndicators are the anchor text fragments that mark the "next page" link
var NextIndicators = []string{"Sig", "→"}

// ItemLinks returns the absolute, page-locally deduplicated item URLs on a
// catalog page: hrefs containing marker whose resolved path is not the
// catalog root itself. The result is sorted.
func (d *Document) ItemLinks(marker, rootPath string) []string {
	seen := make(map[string]struct{})

	d.doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, marker) || href == rootPath {
			return
		}

		abs, ok := d.Resolve(href)
		if !ok {
			return
		}
		if u, err := url.Parse(abs); err == nil && u.Path == rootPath && u.RawQuery == "" {
			return
		}

		seen[abs] = struct{}{}
	})

	links := make([]string, 0, len(seen))
	for link := range seen {
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// NextPage returns the absolute URL of the first anchor whose text contains
// one of NextIndicators, or "" when the page has none.
func (d *Document) NextPage() string {
	var next string

	d.doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.TrimSpace(a.Text())
		for _, ind := range NextIndicators {
			if strings.Contains(label, ind) {
				href, _ := a.Attr("href")
				if abs, ok := d.Resolve(href); ok {
					next = abs
					return false
				}
			}
		}
		return true
	})

	return next
}
