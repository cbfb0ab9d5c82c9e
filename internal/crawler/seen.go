package crawler

// SeenSet is the run-scoped record of item links that have been claimed for
// processing. It only grows.
type SeenSet struct {
	links map[string]struct{}
}

// NewSeenSet returns an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{links: make(map[string]struct{})}
}

// Add claims link and reports whether it was new
func (s *SeenSet) Add(link string) bool {
	if _, ok := s.links[link]; ok {
		return false
	}
	s.links[link] = struct{}{}
	return true
}

// Len returns the number of claimed links
func (s *SeenSet) Len() int {
	return len(s.links)
}
