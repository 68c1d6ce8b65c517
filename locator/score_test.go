package locator

import (
	"context"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator/internal/query"
)

type hiddenLayout struct{}

func (hiddenLayout) Box(*html.Node) (Box, bool) {
	return Box{Width: 10, Height: 10, Display: "none"}, true
}

func TestScore_IsPure(t *testing.T) {
	doc := mustParse(t, `<html><body><ul><li><a id="c" class="card big" href="/c/abc/title">Card</a></li></ul></body></html>`)
	n := byID(t, doc, "c")
	target := &TargetDescriptor{
		Fingerprint: Fingerprint{Tag: "a", Text: "Card", ClassTokens: []string{"card"}, Attrs: map[string]string{"id": "c"}},
		Context: Context{
			AncestorTrail: []AncestorStep{{Tag: "li", Index: 0}, {Tag: "ul", Index: 0}},
			Frame:         FrameRef{Href: "https://board.test/c/abc/title"},
		},
	}
	first := Score(n, target, visibleLayout{})
	for i := 0; i < 5; i++ {
		if got := Score(n, target, visibleLayout{}); got != first {
			t.Fatalf("call %d: got %v, want %v", i, got, first)
		}
	}
	// tag 2 + href 5 + attr 2 + text 2.5 + ancestors 3 + class 0.4 + visible 1.
	if !approx(first, 15.9) {
		t.Errorf("score: got %v, want 15.9", first)
	}
}

func TestScore_Signals(t *testing.T) {
	doc := mustParse(t, `<html><body>
<div><div><span id="s" class="a b" data-x="1">Save draft</span></div></div>
<a id="l" href="https://other.test/c/xyz?tab=2">open</a>
<a id="root" href="/">home</a>
</body></html>`)
	span := byID(t, doc, "s")

	cases := []struct {
		name   string
		target TargetDescriptor
		layout Layout
		want   float64
	}{
		{"tag case-insensitive", TargetDescriptor{Fingerprint: Fingerprint{Tag: "SPAN"}}, nil, 2},
		{"partial text", TargetDescriptor{Fingerprint: Fingerprint{Text: "Save"}}, nil, 1.2},
		{"text contained in fingerprint", TargetDescriptor{Fingerprint: Fingerprint{Text: "Save draft now"}}, nil, 1.2},
		{"attr mismatch", TargetDescriptor{Fingerprint: Fingerprint{Attrs: map[string]string{"data-x": "2"}}}, nil, 0},
		{"attr empty", TargetDescriptor{Fingerprint: Fingerprint{Attrs: map[string]string{"data-y": ""}}}, nil, 0},
		{"classes", TargetDescriptor{Fingerprint: Fingerprint{ClassTokens: []string{"a", "b", "c", "a"}}}, nil, 0.8},
		{"hidden", TargetDescriptor{}, hiddenLayout{}, 0},
		{"visible", TargetDescriptor{}, visibleLayout{}, 1},
		// parent div index 0 vs 2: 0.6 + 0; grandparent div index 0 vs 0: 0.6 + 0.4.
		{"ancestor drift", TargetDescriptor{Context: Context{AncestorTrail: []AncestorStep{{Tag: "div", Index: 2}, {Tag: "div", Index: 0}}}}, nil, 2.4},
	}
	for _, tc := range cases {
		if got := Score(span, &tc.target, tc.layout); !approx(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	link := byID(t, doc, "l")
	byPath := &TargetDescriptor{Context: Context{Frame: FrameRef{Href: "https://board.test/c/xyz?tab=2"}}}
	if got := Score(link, byPath, nil); got != hrefWeight {
		t.Errorf("href by path: got %v, want %v", got, hrefWeight)
	}
	home := byID(t, doc, "root")
	if got := Score(home, byPath, nil); got != hrefWeight {
		t.Errorf("relative '/' is a substring of any absolute href: got %v", got)
	}
	if got := Score(span, byPath, nil); got != 0 {
		t.Errorf("non-link: got %v, want 0", got)
	}
	if got := Score(nil, byPath, nil); got != 0 {
		t.Errorf("nil node: got %v", got)
	}
}

func TestBuildDescriptor_RoundTrip(t *testing.T) {
	recorded := mustParse(t, `<html><body>
<div class="board"><div class="list" data-list-id="todo">
  <a class="card-title js-x1" href="/c/aa/first">First card</a>
  <a class="card-title js-x2" href="/c/bb/second">Second card</a>
</div></div>
</body></html>`)
	links := query.ByTag(recorded, "a")
	target := BuildDescriptor(links[1], "https://board.test/c/bb/second")
	if target == nil {
		t.Fatal("BuildDescriptor returned nil")
	}
	if target.Fingerprint.Tag != "a" || target.Fingerprint.Text != "Second card" {
		t.Errorf("fingerprint: got %+v", target.Fingerprint)
	}
	if len(target.Context.AncestorTrail) != 2 || target.Context.AncestorTrail[0].Tag != "div" {
		t.Errorf("trail: got %+v", target.Context.AncestorTrail)
	}
	if sel := Selector(links[1]); sel != "a.card-title" {
		t.Errorf("selector: got %s, want a.card-title", sel)
	}

	// The live page gained a card above and lost the js-* classes.
	live := mustParse(t, `<html><body>
<div class="board"><div class="list" data-list-id="todo">
  <a class="card-title" href="/c/zz/new">New card</a>
  <a class="card-title" href="/c/aa/first">First card</a>
  <a class="card-title" href="/c/bb/second">Second card</a>
</div></div>
</body></html>`)
	r := NewResolver(Config{Source: staticFrames(&Frame{Root: live}), Clock: newFakeClock()})
	res := r.ResolveTarget(context.Background(), target)
	if !res.OK() {
		t.Fatalf("status: got %s (%v)", res.Status, res.Debug)
	}
	if href, _ := query.Attr(res.Node, "href"); href != "/c/bb/second" {
		t.Errorf("resolved href: got %q, want /c/bb/second", href)
	}
}

func TestSelector(t *testing.T) {
	doc := mustParse(t, `<html><body>
<div aria-label='Say "hi"'><span><b id="in">x</b></span></div>
<p class="note x9"><i>y</i></p>
<p><i class="ok">a</i><i id="nth">b</i></p>
</body></html>`)

	if got := Selector(byID(t, doc, "in")); got != `div[aria-label="Say \"hi\""]` {
		t.Errorf("stable attr: got %s", got)
	}
	if got := Selector(byID(t, doc, "nth")); got != "html:nth-of-type(1) > body:nth-of-type(1) > p:nth-of-type(2) > i:nth-of-type(2)" {
		t.Errorf("nth path: got %s", got)
	}
	cls := mustParse(t, `<html><body><button class="primary btn-2 save">Go</button></body></html>`)
	if got := Selector(query.ByTag(cls, "button")[0]); got != "button.primary.save" {
		t.Errorf("classes: got %s", got)
	}
}
