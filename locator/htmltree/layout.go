package htmltree

import (
	"strconv"
	"strings"

	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/internal/query"
)

// StaticLayout derives boxes from markup alone: inline style, the hidden
// attribute and hidden inputs. Elements without an explicit size count as
// 1×1 so that only declared hiding makes them invisible.
type StaticLayout struct {
	boxes map[*html.Node]locator.Box
}

// NewStaticLayout computes the layout of every element under root.
func NewStaticLayout(root *html.Node) *StaticLayout {
	l := &StaticLayout{boxes: make(map[*html.Node]locator.Box)}
	l.walk(root, locator.Box{Width: 1, Height: 1, Display: "block", Visibility: "visible", Opacity: "1"})
	return l
}

// Box implements locator.Layout.
func (l *StaticLayout) Box(n *html.Node) (locator.Box, bool) {
	b, ok := l.boxes[n]
	return b, ok
}

func (l *StaticLayout) walk(n *html.Node, parent locator.Box) {
	box := parent
	if n.Type == html.ElementNode {
		box = l.compute(n, parent)
		l.boxes[n] = box
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		l.walk(c, box)
	}
}

// compute applies n's own declarations on top of what it inherits. A hidden
// ancestor display and a zero opacity cannot be undone by descendants;
// visibility can.
func (l *StaticLayout) compute(n *html.Node, parent locator.Box) locator.Box {
	box := locator.Box{
		Width:      1,
		Height:     1,
		Display:    "block",
		Visibility: parent.Visibility,
		Opacity:    parent.Opacity,
	}
	if parent.Display == "none" {
		box.Display = "none"
	}

	switch n.DataAtom {
	case atom.Head, atom.Script, atom.Style, atom.Template, atom.Noscript, atom.Title, atom.Meta, atom.Link:
		box.Display = "none"
	case atom.Input:
		if typ, ok := query.Attr(n, "type"); ok && strings.EqualFold(typ, "hidden") {
			box.Display = "none"
		}
	}
	if _, ok := query.Attr(n, "hidden"); ok {
		box.Display = "none"
	}

	style, ok := query.Attr(n, "style")
	if !ok || strings.TrimSpace(style) == "" {
		return box
	}
	decls, err := parser.ParseDeclarations(style)
	if err != nil {
		return box
	}
	for _, d := range decls {
		v := strings.ToLower(strings.TrimSpace(d.Value))
		switch strings.ToLower(d.Property) {
		case "display":
			if box.Display != "none" {
				box.Display = v
			}
		case "visibility":
			box.Visibility = v
		case "opacity":
			if opacityZero(v) {
				box.Opacity = "0"
			}
		case "width":
			box.Width = length(v, box.Width)
		case "height":
			box.Height = length(v, box.Height)
		}
	}
	return box
}

func opacityZero(v string) bool {
	f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
	return err == nil && f == 0
}

// length reads a CSS length; anything that is not a plain number of px
// (or unitless) keeps the default.
func length(v string, def float64) float64 {
	v = strings.TrimSuffix(v, "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
