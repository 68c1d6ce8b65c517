package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ByCSS returns every element matching a CSS selector group, in document
// order. An unparsable selector yields *Error.
func (e *Engine) ByCSS(root *html.Node, selector string) ([]*html.Node, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || root == nil {
		return nil, nil
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, &Error{Strategy: "css", Expr: selector, Err: err}
	}
	return cascadia.QueryAll(root, sel), nil
}

// ByTag returns the descendants of root (root excluded) with the given tag.
// An empty tag or "*" matches every element.
func ByTag(root *html.Node, tag string) []*html.Node {
	tag = strings.ToLower(strings.TrimSpace(tag))
	var out []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, func(n *html.Node) bool {
			if tag == "" || tag == "*" || Tag(n) == tag {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// ByXPath evaluates an XPath expression and returns its element results in
// document order. Compile and evaluation failures yield *Error.
func (e *Engine) ByXPath(root *html.Node, expr string) (nodes []*html.Node, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || root == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			nodes, err = nil, &Error{Strategy: "xpath", Expr: expr, Err: fmt.Errorf("evaluate: %v", r)}
		}
	}()

	res, qerr := htmlquery.QueryAll(root, expr)
	if qerr != nil {
		return nil, &Error{Strategy: "xpath", Expr: expr, Err: qerr}
	}
	for _, n := range res {
		if n.Type == html.ElementNode {
			nodes = append(nodes, n)
		}
	}
	sortDocumentOrder(root, nodes)
	return nodes, nil
}

func sortDocumentOrder(root *html.Node, nodes []*html.Node) {
	if len(nodes) < 2 {
		return
	}
	pos := make(map[*html.Node]int)
	i := 0
	Walk(root, func(n *html.Node) bool {
		pos[n] = i
		i++
		return true
	})
	sort.SliceStable(nodes, func(a, b int) bool { return pos[nodes[a]] < pos[nodes[b]] })
}
