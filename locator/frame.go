package locator

import (
	"context"
	"time"

	"golang.org/x/net/html"
)

// Frame is one execution context with its own node tree. Frames are
// re-discovered on every attempt and must not be kept after a resolve call.
type Frame struct {
	// Root is the document node of the frame's tree.
	Root *html.Node
	Href string
	// Layout answers rendering questions about nodes of Root. Nil means
	// nothing is known and no node counts as visible.
	Layout Layout
}

// Box is the rendered state of an element.
type Box struct {
	Width      float64
	Height     float64
	Display    string
	Visibility string
	Opacity    string
}

// Visible reports a positive box that display, visibility and opacity do
// not hide.
func (b Box) Visible() bool {
	return b.Width > 0 && b.Height > 0 &&
		b.Display != "none" &&
		b.Visibility != "hidden" &&
		b.Opacity != "0"
}

// Layout is the layout/visibility introspection of a frame.
type Layout interface {
	Box(n *html.Node) (Box, bool)
}

// FrameSource enumerates the frames reachable from the top context, main
// frame first. Inaccessible frames are omitted; it never fails.
type FrameSource interface {
	Frames(ctx context.Context) []*Frame
}

// FrameSourceFunc adapts a function to FrameSource.
type FrameSourceFunc func(ctx context.Context) []*Frame

// Frames calls f.
func (f FrameSourceFunc) Frames(ctx context.Context) []*Frame { return f(ctx) }

// StabilityWaiter blocks until the tree stops mutating rapidly or budget
// elapses. It has no failure mode.
type StabilityWaiter interface {
	AwaitStable(ctx context.Context, budget time.Duration)
}

type nopWaiter struct{}

func (nopWaiter) AwaitStable(context.Context, time.Duration) {}

// Strategies are the five query primitives evaluated against a frame root.
// Errors of type *query.Error are evaluation failures the resolver logs and
// ignores; any other error aborts the attempt.
type Strategies interface {
	ByID(root *html.Node, id string) ([]*html.Node, error)
	ByCSS(root *html.Node, selector string) ([]*html.Node, error)
	ByRole(root *html.Node, role, name string) ([]*html.Node, error)
	ByText(root *html.Node, text, tag string) ([]*html.Node, error)
	ByXPath(root *html.Node, expr string) ([]*html.Node, error)
}
