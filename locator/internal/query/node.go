package query

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of attribute key on n and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Classes returns the class tokens of n.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return strings.Fields(v)
}

// Tag returns the lower-case tag name of an element, or "" for other nodes.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}

// ParentElement returns the parent of n if it is an element.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// Children returns the element children of n in order.
func Children(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// Index returns the position of n among its parent's element children, or 0
// when n has no parent element.
func Index(n *html.Node) int {
	if ParentElement(n) == nil {
		return 0
	}
	i := 0
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			i++
		}
	}
	return i
}

// Body returns the <body> of the document containing root, falling back to
// the document element.
func Body(root *html.Node) *html.Node {
	var body, docEl *html.Node
	Walk(root, func(n *html.Node) bool {
		if body != nil {
			return false
		}
		switch n.DataAtom {
		case atom.Html:
			if docEl == nil {
				docEl = n
			}
		case atom.Body:
			body = n
			return false
		}
		return true
	})
	if body != nil {
		return body
	}
	return docEl
}

// XPath returns the positional path of an element: "/html/body/div[2]/a".
// An index is only written when the element has an earlier sibling with the
// same tag.
func XPath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		tag := strings.ToLower(cur.Data)
		idx := 0
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && strings.ToLower(s.Data) == tag {
				idx++
			}
		}
		if idx > 0 {
			parts = append(parts, tag+"["+strconv.Itoa(idx+1)+"]")
		} else {
			parts = append(parts, tag)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}
