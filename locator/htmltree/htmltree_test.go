package htmltree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/internal/query"
)

const page = `<html><body>
<button id="top">Save</button>
<iframe srcdoc="<p id='inner'>one</p><iframe src='deep.html'></iframe>"></iframe>
<iframe src="side.html"></iframe>
<iframe src="missing.html"></iframe>
</body></html>`

func element(t *testing.T, root *html.Node, id string) *html.Node {
	t.Helper()
	got, _ := query.New().ByID(root, id)
	if len(got) != 1 {
		t.Fatalf("no #%s", id)
	}
	return got[0]
}

func TestFrames_Order(t *testing.T) {
	loader := LoaderFunc(func(_ context.Context, href string) (string, error) {
		if href == "https://app.test/side.html" {
			return `<p id="side">side</p>`, nil
		}
		return "", errors.New("not found")
	})
	src := New(page, Config{Href: "https://app.test/index.html", Loader: loader})

	frames := src.Frames(context.Background())
	want := []string{"https://app.test/index.html", "about:srcdoc", "https://app.test/side.html"}
	if len(frames) != len(want) {
		hrefs := make([]string, len(frames))
		for i, f := range frames {
			hrefs[i] = f.Href
		}
		t.Fatalf("frames: got %v, want %v", hrefs, want)
	}
	for i, w := range want {
		if frames[i].Href != w {
			t.Errorf("frame %d: got %q, want %q", i, frames[i].Href, w)
		}
	}
	element(t, frames[1].Root, "inner")
	element(t, frames[2].Root, "side")
}

func TestFrames_FreshTreeEachCall(t *testing.T) {
	src := New(`<p id="a">a</p>`, Config{})
	first := src.Frames(context.Background())
	second := src.Frames(context.Background())
	if first[0].Root == second[0].Root {
		t.Error("frames must be re-parsed on every call")
	}

	src.SetDocument(`<p id="b">b</p>`)
	element(t, src.Frames(context.Background())[0].Root, "b")
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "child.html"), []byte(`<i id="c">c</i>`), 0o644); err != nil {
		t.Fatal(err)
	}
	src := New(`<iframe src="child.html"></iframe><iframe src="../etc/passwd"></iframe>`,
		Config{Href: "file:///index.html", Loader: DirLoader(dir)})

	frames := src.Frames(context.Background())
	if len(frames) != 2 {
		t.Fatalf("frames: got %d, want 2", len(frames))
	}
	element(t, frames[1].Root, "c")
}

func TestStaticLayout(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body>
<div id="shown">x</div>
<div id="none" style="display: none"><span id="inherit">y</span></div>
<div id="vis" style="visibility:hidden"><span id="back" style="visibility: visible">z</span></div>
<div id="fade" style="opacity: 0.0"><b id="fadechild">w</b></div>
<div id="flat" style="height:0px">v</div>
<p id="attr" hidden>u</p>
<input id="h" type="hidden" value="1">
</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	l := NewStaticLayout(doc)

	cases := map[string]bool{
		"shown":     true,
		"none":      false,
		"inherit":   false,
		"vis":       false,
		"back":      true,
		"fade":      false,
		"fadechild": false,
		"flat":      false,
		"attr":      false,
		"h":         false,
	}
	for id, want := range cases {
		box, ok := l.Box(element(t, doc, id))
		if !ok {
			t.Errorf("%s: no box", id)
			continue
		}
		if box.Visible() != want {
			t.Errorf("%s: visible got %v, want %v (%+v)", id, box.Visible(), want, box)
		}
	}
}

func TestResolveAgainstNestedFrame(t *testing.T) {
	src := New(`<html><body><p>outer</p><iframe srcdoc="<button id='go'>Go</button>"></iframe></body></html>`, Config{})
	r := locator.NewResolver(locator.Config{Source: src})
	res := r.ResolveTarget(context.Background(), &locator.TargetDescriptor{
		Fingerprint:       locator.Fingerprint{Tag: "button", Text: "Go"},
		PreferredLocators: []locator.LocatorSpec{{Type: locator.TypeID, Value: "go", Confidence: locator.Confidence(0.9)}},
	})
	if !res.OK() {
		t.Fatalf("status: got %s (%v)", res.Status, res.Debug)
	}
	if res.Frame.Href != "about:srcdoc" {
		t.Errorf("frame: got %q", res.Frame.Href)
	}
	// tag 2 + text 2.5 + visible 1 + 0.9×2
	if res.Score < 7.29 || res.Score > 7.31 {
		t.Errorf("score: got %v, want 7.3", res.Score)
	}
}
