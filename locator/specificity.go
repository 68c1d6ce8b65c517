package locator

import (
	"sort"
	"strings"
)

// Attribute patterns that raise a locator's priority when its value
// mentions them.
var (
	DefaultIdentityAttrs = []string{"data-card-id", "data-list-id"}
	DefaultTestIDAttrs   = []string{"data-testid"}
)

type ranker struct {
	identity []string
	testID   []string
}

func (r ranker) mentions(l LocatorSpec, patterns []string) bool {
	v := strings.ToLower(l.Value)
	for _, p := range patterns {
		if strings.Contains(v, p) {
			return true
		}
	}
	return false
}

// specificity orders locators so the strongest run first. A nil
// confidence counts as 0 here.
func (r ranker) specificity(l LocatorSpec) float64 {
	var s float64
	if l.Confidence != nil {
		s = *l.Confidence
	}
	if r.mentions(l, r.identity) {
		s += 5
	}
	if r.mentions(l, r.testID) {
		s += 2
	}
	switch l.Type {
	case TypeID:
		s += 3
	case TypeText:
		s += 1.5
	}
	return s
}

// confidence is the weight added per hit. Identity locators are trusted
// at least 0.95.
func (r ranker) confidence(l LocatorSpec) float64 {
	c := l.weight()
	if r.mentions(l, r.identity) && c < 0.95 {
		c = 0.95
	}
	return c
}

// sorted returns a copy of locs ordered by descending specificity, ties
// keeping the recorded order.
func (r ranker) sorted(locs []LocatorSpec) []LocatorSpec {
	out := make([]LocatorSpec, len(locs))
	copy(out, locs)
	sort.SliceStable(out, func(i, j int) bool {
		return r.specificity(out[i]) > r.specificity(out[j])
	})
	return out
}
