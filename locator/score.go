package locator

import (
	"math"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/relocate/locator/internal/query"
)

// Signal weights.
const (
	tagWeight          = 2.0
	hrefWeight         = 5.0
	attrWeight         = 2.0
	textExactWeight    = 2.5
	textPartialWeight  = 1.2
	ancestorWeight     = 3.0
	classWeight        = 0.4
	visibleWeight      = 1.0
	ancestorTagMatch   = 0.6
	ancestorIndexMax   = 0.4
	ancestorIndexDecay = 0.2
)

// AcceptThreshold is the minimum score a frame's top candidate needs.
const AcceptThreshold = 2.0

// Score rates how well n matches the recorded target. It is pure: the same
// node, target and layout always give the same result.
func Score(n *html.Node, t *TargetDescriptor, layout Layout) float64 {
	if n == nil || t == nil || n.Type != html.ElementNode {
		return 0
	}
	fp := t.Fingerprint
	var score float64

	if fp.Tag != "" && query.Tag(n) == strings.ToLower(fp.Tag) {
		score += tagWeight
	}

	if hrefMatches(n, t.Context.Frame.Href) {
		score += hrefWeight
	}

	for name, want := range fp.Attrs {
		if v, ok := query.Attr(n, name); ok && v != "" && v == want {
			score += attrWeight
		}
	}

	if want := query.NormalizeText(fp.Text); want != "" {
		if txt := query.ElementText(n); txt != "" {
			switch {
			case txt == want:
				score += textExactWeight
			case strings.Contains(txt, want) || strings.Contains(want, txt):
				score += textPartialWeight
			}
		}
	}

	if len(t.Context.AncestorTrail) > 0 {
		score += ancestorSimilarity(n, t.Context.AncestorTrail) * ancestorWeight
	}

	if len(fp.ClassTokens) > 0 {
		have := make(map[string]bool)
		for _, c := range query.Classes(n) {
			have[c] = true
		}
		seen := make(map[string]bool)
		for _, c := range fp.ClassTokens {
			if have[c] && !seen[c] {
				score += classWeight
			}
			seen[c] = true
		}
	}

	if layout != nil {
		if box, ok := layout.Box(n); ok && box.Visible() {
			score += visibleWeight
		}
	}

	return score
}

// hrefMatches is the identity-link heuristic: a link-shaped node whose
// reference is part of the recorded frame href, or the other way round.
func hrefMatches(n *html.Node, recorded string) bool {
	if recorded == "" {
		return false
	}
	href, ok := query.Attr(n, "href")
	if !ok && n.DataAtom != atom.A {
		return false
	}
	if href == "" {
		return false
	}
	if strings.Contains(recorded, href) || strings.Contains(href, recorded) {
		return true
	}
	if p := recordedPath(recorded); p != "" {
		return strings.Contains(href, p)
	}
	return false
}

// recordedPath returns the path, query and fragment of an absolute href,
// or "" when that part carries no identity.
func recordedPath(recorded string) string {
	u, err := url.Parse(recorded)
	if err != nil || u.Host == "" {
		return ""
	}
	p := u.EscapedPath()
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		p += "#" + u.EscapedFragment()
	}
	if p == "" || p == "/" {
		return ""
	}
	return p
}

// ancestorSimilarity walks up len(trail) parents and compares each level
// with the trail entry of the same rank. The result is in [0,1].
func ancestorSimilarity(n *html.Node, trail []AncestorStep) float64 {
	var matches float64
	cur := n
	for i := 0; i < len(trail); i++ {
		parent := query.ParentElement(cur)
		if parent == nil {
			break
		}
		cur = parent
		rec := trail[i]
		if rec.Tag != "" && strings.ToLower(rec.Tag) == query.Tag(cur) {
			matches += ancestorTagMatch
		}
		diff := math.Abs(float64(rec.Index - query.Index(cur)))
		matches += math.Max(ancestorIndexMax-diff*ancestorIndexDecay, 0)
	}
	return math.Min(matches/float64(len(trail)), 1)
}
