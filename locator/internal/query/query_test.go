package query

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Board</title><script>var x = "Save";</script></head>
<body>
<nav aria-label="Primary"><a href="/home">Home</a></nav>
<main>
  <div class="list" data-list-id="l1">
    <h2>To   do</h2>
    <button id="save" class="btn primary">  Save
    </button>
    <button class="btn"><span>Save</span> draft</button>
    <input type="submit" value="Send">
    <label for="q">Search cards</label><input id="q" type="text" placeholder="Find">
    <a href="/c/abc123/card-title" class="card">Card title</a>
    <div role="button tab" aria-label="Close panel">x</div>
  </div>
</main>
</body>
</html>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestNormalizeText(t *testing.T) {
	cases := map[string]string{
		"  Save\n  ": "Save",
		"To \t  do":  "To do",
		"":           "",
		"\n\n":       "",
		"a  b c   d": "a b c d",
	}
	for in, want := range cases {
		if got := NormalizeText(in); got != want {
			t.Errorf("NormalizeText(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestByID(t *testing.T) {
	doc := parse(t, testPage)
	e := New()

	got, err := e.ByID(doc, "save")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if len(got) != 1 || Tag(got[0]) != "button" {
		t.Fatalf("ByID(save): got %d nodes", len(got))
	}

	got, _ = e.ByID(doc, "missing")
	if len(got) != 0 {
		t.Errorf("ByID(missing): got %d, want 0", len(got))
	}
	got, _ = e.ByID(doc, "")
	if len(got) != 0 {
		t.Errorf("ByID(empty): got %d, want 0", len(got))
	}
}

func TestByCSS(t *testing.T) {
	doc := parse(t, testPage)
	e := New()

	got, err := e.ByCSS(doc, "div[data-list-id='l1'] > button.btn")
	if err != nil {
		t.Fatalf("ByCSS: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ByCSS: got %d, want 2", len(got))
	}
	if v, _ := Attr(got[0], "id"); v != "save" {
		t.Errorf("ByCSS: first match should be #save (document order)")
	}
}

func TestByCSS_InvalidSelectorIsSwallowed(t *testing.T) {
	doc := parse(t, testPage)
	got, err := New().ByCSS(doc, "button[[[")
	if len(got) != 0 {
		t.Errorf("invalid selector: got %d nodes, want 0", len(got))
	}
	var qe *Error
	if !errors.As(err, &qe) {
		t.Fatalf("invalid selector: want *Error, got %v", err)
	}
	if qe.Strategy != "css" {
		t.Errorf("Strategy: got %q, want css", qe.Strategy)
	}
}

func TestByXPath(t *testing.T) {
	doc := parse(t, testPage)
	e := New()

	got, err := e.ByXPath(doc, "//button[@id='save'] | //h2")
	if err != nil {
		t.Fatalf("ByXPath: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ByXPath: got %d, want 2", len(got))
	}
	if Tag(got[0]) != "h2" || Tag(got[1]) != "button" {
		t.Errorf("ByXPath: want document order h2, button; got %s, %s", Tag(got[0]), Tag(got[1]))
	}

	// Text results are dropped, only elements survive.
	got, err = e.ByXPath(doc, "//h2/text()")
	if err != nil {
		t.Fatalf("ByXPath text(): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ByXPath text(): got %d, want 0", len(got))
	}
}

func TestByXPath_InvalidExpressionIsSwallowed(t *testing.T) {
	doc := parse(t, testPage)
	got, err := New().ByXPath(doc, "//button[@id=")
	if len(got) != 0 {
		t.Errorf("invalid xpath: got %d nodes", len(got))
	}
	var qe *Error
	if !errors.As(err, &qe) || qe.Strategy != "xpath" {
		t.Fatalf("invalid xpath: want xpath *Error, got %v", err)
	}
}

func TestByRole(t *testing.T) {
	doc := parse(t, testPage)
	e := New()

	buttons, _ := e.ByRole(doc, "button", "")
	// two <button>, the submit input and the explicit role="button tab" div.
	if len(buttons) != 4 {
		t.Fatalf("ByRole(button): got %d, want 4", len(buttons))
	}

	named, _ := e.ByRole(doc, "button", "save")
	if len(named) != 2 {
		t.Fatalf("ByRole(button, save): got %d, want 2", len(named))
	}

	closeBtn, _ := e.ByRole(doc, "BUTTON", "close")
	if len(closeBtn) != 1 || Tag(closeBtn[0]) != "div" {
		t.Fatalf("ByRole(button, close): got %d", len(closeBtn))
	}

	links, _ := e.ByRole(doc, "link", "card")
	if len(links) != 1 {
		t.Errorf("ByRole(link, card): got %d, want 1", len(links))
	}

	boxes, _ := e.ByRole(doc, "textbox", "search cards")
	if len(boxes) != 1 {
		t.Errorf("ByRole(textbox, label): got %d, want 1", len(boxes))
	}

	nav, _ := e.ByRole(doc, "navigation", "primary")
	if len(nav) != 1 {
		t.Errorf("ByRole(navigation): got %d, want 1", len(nav))
	}
}

func TestByText(t *testing.T) {
	doc := parse(t, testPage)
	e := New()

	got, _ := e.ByText(doc, "Save", "")
	// #save equals "Save"; the span equals "Save"; its button ("Save draft")
	// contains it but has a matching child so it is not innermost.
	if len(got) != 2 {
		t.Fatalf("ByText(Save): got %d, want 2", len(got))
	}
	if v, _ := Attr(got[0], "id"); v != "save" {
		t.Errorf("ByText(Save): first should be #save")
	}
	if Tag(got[1]) != "span" {
		t.Errorf("ByText(Save): second should be span, got %s", Tag(got[1]))
	}

	withTag, _ := e.ByText(doc, "save", "button")
	if len(withTag) != 0 {
		t.Errorf("ByText is case-sensitive: got %d", len(withTag))
	}
	withTag, _ = e.ByText(doc, "Save", "button")
	if len(withTag) != 2 {
		t.Errorf("ByText(Save, button): got %d, want 2", len(withTag))
	}

	collapsed, _ := e.ByText(doc, " To do ", "")
	if len(collapsed) != 1 || Tag(collapsed[0]) != "h2" {
		t.Errorf("ByText(To do): whitespace should be collapsed")
	}

	values, _ := e.ByText(doc, "Send", "")
	if len(values) != 1 || Tag(values[0]) != "input" {
		t.Errorf("ByText(Send): want the submit input via its value")
	}
}

func TestXPathAndIndex(t *testing.T) {
	doc := parse(t, `<html><body><div></div><div><p>a</p><p id="x">b</p></div></body></html>`)
	got, _ := New().ByID(doc, "x")
	if len(got) != 1 {
		t.Fatal("ByID(x) failed")
	}
	if p := XPath(got[0]); p != "/html/body/div[2]/p[2]" {
		t.Errorf("XPath: got %q", p)
	}
	if i := Index(got[0]); i != 1 {
		t.Errorf("Index: got %d, want 1", i)
	}
	if b := Body(doc); Tag(b) != "body" {
		t.Errorf("Body: got %q", Tag(b))
	}
}
