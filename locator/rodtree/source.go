// Package rodtree exposes a live Chrome page to the resolver. Each Frames
// call snapshots every reachable frame into an html tree plus the rendered
// box of each element, keyed by positional xpath.
package rodtree

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/internal/query"
)

// snapshotJS returns the frame's address, markup and the rendered box of
// every element. The path format must stay in step with query.XPath.
const snapshotJS = `() => {
	const path = (el) => {
		const parts = [];
		for (let n = el; n && n.nodeType === 1; n = n.parentElement) {
			const tag = n.tagName.toLowerCase();
			let i = 1;
			for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.tagName === n.tagName) i++;
			}
			parts.unshift(i > 1 ? tag + "[" + i + "]" : tag);
		}
		return "/" + parts.join("/");
	};
	const boxes = {};
	for (const el of document.querySelectorAll("*")) {
		const r = el.getBoundingClientRect();
		const s = getComputedStyle(el);
		boxes[path(el)] = {w: r.width, h: r.height, d: s.display, v: s.visibility, o: s.opacity};
	}
	return {href: location.href, html: document.documentElement.outerHTML, boxes};
}`

// SnapshotBox is the rendered state of one element as reported by the page.
type SnapshotBox struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
	D string  `json:"d"`
	V string  `json:"v"`
	O string  `json:"o"`
}

type snapshot struct {
	Href  string                 `json:"href"`
	HTML  string                 `json:"html"`
	Boxes map[string]SnapshotBox `json:"boxes"`
}

// Config configures a Source.
type Config struct {
	// MaxDepth bounds frame nesting. Default: 8.
	MaxDepth int
	// EvalTimeout bounds each frame snapshot. Default: 5s.
	EvalTimeout time.Duration
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 8
	}
	if c.EvalTimeout <= 0 {
		c.EvalTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Source implements locator.FrameSource over a rod page.
type Source struct {
	page *rod.Page
	cfg  Config
}

// New returns a Source for page.
func New(page *rod.Page, cfg Config) *Source {
	cfg.defaults()
	return &Source{page: page, cfg: cfg}
}

// Frames snapshots the page, then each iframe depth-first in document
// order. Detached and cross-origin frames are skipped.
func (s *Source) Frames(ctx context.Context) []*locator.Frame {
	var out []*locator.Frame
	s.collect(ctx, s.page, 0, &out)
	return out
}

func (s *Source) collect(ctx context.Context, p *rod.Page, depth int, out *[]*locator.Frame) {
	if ctx.Err() != nil {
		return
	}
	f, err := s.snapshot(ctx, p)
	if err != nil {
		s.cfg.Logger.Debug("rodtree: frame skipped", "depth", depth, "error", err)
		return
	}
	*out = append(*out, f)
	if depth >= s.cfg.MaxDepth {
		return
	}

	els, err := p.Context(ctx).Elements("iframe, frame")
	if err != nil {
		s.cfg.Logger.Debug("rodtree: list frames", "href", f.Href, "error", err)
		return
	}
	for _, el := range els {
		child, err := el.Frame()
		if err != nil {
			s.cfg.Logger.Debug("rodtree: frame inaccessible", "parent", f.Href, "error", err)
			continue
		}
		s.collect(ctx, child, depth+1, out)
	}
}

func (s *Source) snapshot(ctx context.Context, p *rod.Page) (*locator.Frame, error) {
	ectx, cancel := context.WithTimeout(ctx, s.cfg.EvalTimeout)
	defer cancel()

	res, err := p.Context(ectx).Eval(snapshotJS)
	if err != nil {
		return nil, fmt.Errorf("rodtree: snapshot: %w", err)
	}
	var snap snapshot
	if err := res.Value.Unmarshal(&snap); err != nil {
		return nil, fmt.Errorf("rodtree: decode snapshot: %w", err)
	}
	return Parse(snap.Href, snap.HTML, snap.Boxes)
}

// Parse turns a snapshot into a Frame. It is exported for replaying saved
// snapshots.
func Parse(href, markup string, boxes map[string]SnapshotBox) (*locator.Frame, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("rodtree: parse: %w", err)
	}
	return &locator.Frame{Root: root, Href: href, Layout: newLayout(boxes)}, nil
}

// layout answers Box queries from the snapshot's xpath-keyed boxes.
type layout struct {
	boxes map[string]SnapshotBox
}

func newLayout(boxes map[string]SnapshotBox) *layout {
	return &layout{boxes: boxes}
}

func (l *layout) Box(n *html.Node) (locator.Box, bool) {
	b, ok := l.boxes[query.XPath(n)]
	if !ok {
		return locator.Box{}, false
	}
	return locator.Box{Width: b.W, Height: b.H, Display: b.D, Visibility: b.V, Opacity: b.O}, true
}
