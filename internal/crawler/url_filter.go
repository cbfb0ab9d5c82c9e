package crawler

import (
	"fmt"
	"regexp"
)

// URLFilter applies include/exclude patterns to discovered item links
type URLFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewURLFilter compiles the patterns
func NewURLFilter(include, exclude []string) (*URLFilter, error) {
	f := &URLFilter{}

	for _, p := range include {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
		f.include = append(f.include, re)
	}

	for _, p := range exclude {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		f.exclude = append(f.exclude, re)
	}

	return f, nil
}

// Allow reports whether link passes the filter. When include patterns are
// set the link must match at least one; it must match no exclude pattern.
func (f *URLFilter) Allow(link string) bool {
	if len(f.include) > 0 {
		matched := false
		for _, re := range f.include {
			if re.MatchString(link) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, re := range f.exclude {
		if re.MatchString(link) {
			return false
		}
	}

	return true
}

// Apply returns the allowed links, preserving order
func (f *URLFilter) Apply(links []string) []string {
	out := links[:0:0]
	for _, l := range links {
		if f.Allow(l) {
			out = append(out, l)
		}
	}
	return out
}
