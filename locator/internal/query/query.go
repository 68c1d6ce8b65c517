// Package query implements the locator strategies (id, css, role, text,
// xpath) over golang.org/x/net/html trees.
//
// Every strategy is read-only and synchronous. Malformed selectors and
// expressions never escape as panics: they come back as *Error with an empty
// result, and callers are expected to log and move on.
package query

import (
	"fmt"

	"golang.org/x/net/html"
)

// Error reports a strategy that could not evaluate its expression.
type Error struct {
	Strategy string
	Expr     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query: %s %q: %v", e.Strategy, e.Expr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Engine is the default strategy set. The zero value is ready to use.
type Engine struct{}

// New returns the default strategy set.
func New() *Engine { return &Engine{} }

// ByID returns the first element whose id attribute equals id.
func (e *Engine) ByID(root *html.Node, id string) ([]*html.Node, error) {
	if id == "" || root == nil {
		return nil, nil
	}
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if v, ok := Attr(n, "id"); ok && v == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil, nil
	}
	return []*html.Node{found}, nil
}

// Walk visits every element under root in document order. Returning false
// from fn skips the element's subtree.
func Walk(root *html.Node, fn func(*html.Node) bool) {
	if root == nil {
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if !fn(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
