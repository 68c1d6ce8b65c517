package query

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NormalizeText trims s and collapses internal whitespace runs to one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TextContent concatenates the text nodes under n, skipping script, style,
// noscript and template content.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipText(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

// ElementText is the normalized text of an element: its text content, or
// its value attribute for form controls without text.
func ElementText(n *html.Node) string {
	if txt := NormalizeText(TextContent(n)); txt != "" {
		return txt
	}
	v, _ := Attr(n, "value")
	return NormalizeText(v)
}

func skipText(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// ByText returns elements whose normalized text matches text.
//
// With a tag filter, every element of that tag whose text equals or contains
// the target is returned. Without one, elements whose text equals the target
// are returned along with the innermost elements containing it, so that
// wrappers up to <body> do not flood the result.
func (e *Engine) ByText(root *html.Node, text, tag string) ([]*html.Node, error) {
	want := NormalizeText(text)
	if want == "" || root == nil {
		return nil, nil
	}
	tag = strings.ToLower(strings.TrimSpace(tag))

	memo := make(map[*html.Node]string)
	textOf := func(n *html.Node) string {
		if v, ok := memo[n]; ok {
			return v
		}
		v := ElementText(n)
		memo[n] = v
		return v
	}

	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		switch n.DataAtom {
		case atom.Head:
			return false
		case atom.Html, atom.Body:
			return true
		}
		if skipText(n) {
			return false
		}
		// Form controls carry their text in value, which the parent's text
		// content does not include, so the walk always descends.
		txt := textOf(n)
		if !strings.Contains(txt, want) {
			return true
		}
		switch {
		case tag != "":
			if Tag(n) == tag {
				out = append(out, n)
			}
		case txt == want:
			out = append(out, n)
		default:
			inner := false
			for _, c := range Children(n) {
				if strings.Contains(textOf(c), want) {
					inner = true
					break
				}
			}
			if !inner {
				out = append(out, n)
			}
		}
		return true
	})
	return out, nil
}
