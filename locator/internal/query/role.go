package query

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ByRole returns elements whose explicit or implicit ARIA role equals role.
// A non-empty name keeps only elements whose accessible name contains it,
// case-insensitively.
func (e *Engine) ByRole(root *html.Node, role, name string) ([]*html.Node, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" || root == nil {
		return nil, nil
	}
	name = strings.ToLower(NormalizeText(name))

	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if Role(n) != role {
			return true
		}
		if name != "" && !strings.Contains(strings.ToLower(AccessibleName(root, n)), name) {
			return true
		}
		out = append(out, n)
		return true
	})
	return out, nil
}

// Role returns the first token of the explicit role attribute, or the
// implicit role of the element.
func Role(n *html.Node) string {
	if v, ok := Attr(n, "role"); ok {
		if f := strings.Fields(strings.ToLower(v)); len(f) > 0 {
			return f[0]
		}
	}
	return implicitRole(n)
}

func implicitRole(n *html.Node) string {
	switch n.DataAtom {
	case atom.A, atom.Area:
		if _, ok := Attr(n, "href"); ok {
			return "link"
		}
		return ""
	case atom.Button, atom.Summary:
		return "button"
	case atom.Input:
		return inputRole(n)
	case atom.Textarea:
		return "textbox"
	case atom.Select:
		if _, multi := Attr(n, "multiple"); multi {
			return "listbox"
		}
		if size, _ := Attr(n, "size"); size != "" && size != "0" && size != "1" {
			return "listbox"
		}
		return "combobox"
	case atom.Option:
		return "option"
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return "heading"
	case atom.Img:
		if alt, ok := Attr(n, "alt"); ok && alt == "" {
			return "presentation"
		}
		return "img"
	case atom.Nav:
		return "navigation"
	case atom.Main:
		return "main"
	case atom.Header:
		return "banner"
	case atom.Footer:
		return "contentinfo"
	case atom.Aside:
		return "complementary"
	case atom.Form:
		return "form"
	case atom.Table:
		return "table"
	case atom.Tr:
		return "row"
	case atom.Td:
		return "cell"
	case atom.Th:
		return "columnheader"
	case atom.Ul, atom.Ol, atom.Menu:
		return "list"
	case atom.Li:
		return "listitem"
	case atom.Dialog:
		return "dialog"
	case atom.Article:
		return "article"
	case atom.Section:
		return "region"
	case atom.Hr:
		return "separator"
	case atom.Progress:
		return "progressbar"
	case atom.Fieldset, atom.Details:
		return "group"
	case atom.Output:
		return "status"
	}
	return ""
}

func inputRole(n *html.Node) string {
	typ, _ := Attr(n, "type")
	_, hasList := Attr(n, "list")
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "button", "submit", "reset", "image":
		return "button"
	case "checkbox":
		return "checkbox"
	case "radio":
		return "radio"
	case "range":
		return "slider"
	case "number":
		return "spinbutton"
	case "hidden", "file", "color", "date", "datetime-local", "month", "time", "week", "password":
		return ""
	case "search":
		if hasList {
			return "combobox"
		}
		return "searchbox"
	default:
		if hasList {
			return "combobox"
		}
		return "textbox"
	}
}

// AccessibleName approximates the accessible name of n: aria-labelledby,
// aria-label, an associated <label>, alt, text content, button value, title
// and placeholder, in that order.
func AccessibleName(root, n *html.Node) string {
	if ids, ok := Attr(n, "aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if ref, _ := (&Engine{}).ByID(root, id); len(ref) > 0 {
				parts = append(parts, ElementText(ref[0]))
			}
		}
		if s := NormalizeText(strings.Join(parts, " ")); s != "" {
			return s
		}
	}
	if v, _ := Attr(n, "aria-label"); NormalizeText(v) != "" {
		return NormalizeText(v)
	}
	if s := labelText(root, n); s != "" {
		return s
	}
	if v, _ := Attr(n, "alt"); NormalizeText(v) != "" {
		return NormalizeText(v)
	}
	if n.DataAtom != atom.Input && n.DataAtom != atom.Textarea && n.DataAtom != atom.Select {
		if s := NormalizeText(TextContent(n)); s != "" {
			return s
		}
	}
	if n.DataAtom == atom.Input && inputRole(n) == "button" {
		if v, _ := Attr(n, "value"); NormalizeText(v) != "" {
			return NormalizeText(v)
		}
	}
	if v, _ := Attr(n, "title"); NormalizeText(v) != "" {
		return NormalizeText(v)
	}
	v, _ := Attr(n, "placeholder")
	return NormalizeText(v)
}

func labelText(root, n *html.Node) string {
	switch n.DataAtom {
	case atom.Input, atom.Textarea, atom.Select, atom.Button, atom.Meter, atom.Output, atom.Progress:
	default:
		return ""
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return NormalizeText(TextContent(p))
		}
	}
	id, ok := Attr(n, "id")
	if !ok || id == "" {
		return ""
	}
	var label string
	Walk(root, func(l *html.Node) bool {
		if label != "" {
			return false
		}
		if l.DataAtom == atom.Label {
			if f, _ := Attr(l, "for"); f == id {
				label = NormalizeText(TextContent(l))
			}
		}
		return true
	})
	return label
}
