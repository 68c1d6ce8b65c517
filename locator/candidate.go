package locator

import (
	"sort"

	"golang.org/x/net/html"
)

// candidate is a node under consideration in one frame search. It never
// outlives the resolve call that created it.
type candidate struct {
	node  *html.Node
	score float64
	why   []string
}

// candidateSet deduplicates candidates by node identity and keeps them in
// discovery order.
type candidateSet struct {
	target *TargetDescriptor
	layout Layout
	byNode map[*html.Node]*candidate
	list   []*candidate
}

func newCandidateSet(t *TargetDescriptor, layout Layout) *candidateSet {
	return &candidateSet{
		target: t,
		layout: layout,
		byNode: make(map[*html.Node]*candidate),
	}
}

// push adds confidence×2 to every node's candidate, creating it with its
// base score the first time the node is seen.
func (s *candidateSet) push(nodes []*html.Node, why string, confidence float64) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		c, ok := s.byNode[n]
		if !ok {
			c = &candidate{node: n, score: Score(n, s.target, s.layout)}
			s.byNode[n] = c
			s.list = append(s.list, c)
		}
		c.score += confidence * 2
		c.why = append(c.why, why)
	}
}

func (s *candidateSet) empty() bool { return len(s.list) == 0 }

// best ranks candidates by descending score, ties keeping discovery order,
// and returns the top one when it reaches AcceptThreshold.
func (s *candidateSet) best() (*candidate, bool) {
	if len(s.list) == 0 {
		return nil, false
	}
	ranked := make([]*candidate, len(s.list))
	copy(ranked, s.list)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	top := ranked[0]
	return top, top.score >= AcceptThreshold
}
