// Package htmltree is a frame source over static HTML documents. Every
// Frames call parses the markup afresh, so callers may swap the document
// between attempts to simulate a page that keeps changing.
package htmltree

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/internal/query"
)

// DefaultMaxDepth bounds frame nesting.
const DefaultMaxDepth = 8

// Loader fetches the markup of a nested frame's src, already resolved
// against the parent frame's address.
type Loader interface {
	Load(ctx context.Context, href string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, href string) (string, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, href string) (string, error) { return f(ctx, href) }

// DirLoader serves file: and relative frame addresses from a directory.
func DirLoader(dir string) Loader {
	return LoaderFunc(func(_ context.Context, href string) (string, error) {
		u, err := url.Parse(href)
		if err != nil {
			return "", err
		}
		if u.Scheme != "" && u.Scheme != "file" {
			return "", fmt.Errorf("htmltree: %s: not a local frame", href)
		}
		p := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(u.Path, "/")))
		if rel, err := filepath.Rel(dir, p); err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("htmltree: %s: outside %s", href, dir)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
}

// Config configures a Source.
type Config struct {
	// Href is the address of the top document. Relative frame sources are
	// resolved against it.
	Href string
	// Loader serves frame src addresses. Nil means only srcdoc frames are
	// followed.
	Loader   Loader
	MaxDepth int
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Source serves frames parsed from an HTML document.
type Source struct {
	cfg Config

	mu  sync.RWMutex
	doc string
}

// New returns a Source over doc.
func New(doc string, cfg Config) *Source {
	cfg.defaults()
	return &Source{cfg: cfg, doc: doc}
}

// SetDocument replaces the top document seen by later Frames calls.
func (s *Source) SetDocument(doc string) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

// Frames implements locator.FrameSource: the top document first, then
// each nested frame depth-first in document order. Frames that cannot be
// loaded or parsed are left out.
func (s *Source) Frames(ctx context.Context) []*locator.Frame {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	var out []*locator.Frame
	s.collect(ctx, doc, s.cfg.Href, 0, &out)
	return out
}

func (s *Source) collect(ctx context.Context, doc, href string, depth int, out *[]*locator.Frame) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		s.cfg.Logger.Debug("htmltree: parse frame", "href", href, "error", err)
		return
	}
	*out = append(*out, &locator.Frame{Root: root, Href: href, Layout: NewStaticLayout(root)})
	if depth >= s.cfg.MaxDepth {
		return
	}

	for _, el := range frameElements(root) {
		if ctx.Err() != nil {
			return
		}
		if srcdoc, ok := query.Attr(el, "srcdoc"); ok {
			s.collect(ctx, srcdoc, "about:srcdoc", depth+1, out)
			continue
		}
		src, _ := query.Attr(el, "src")
		src = strings.TrimSpace(src)
		if src == "" || s.cfg.Loader == nil {
			continue
		}
		child := resolveRef(href, src)
		body, err := s.cfg.Loader.Load(ctx, child)
		if err != nil {
			s.cfg.Logger.Debug("htmltree: frame skipped", "src", child, "error", err)
			continue
		}
		s.collect(ctx, body, child, depth+1, out)
	}
}

func frameElements(root *html.Node) []*html.Node {
	var out []*html.Node
	query.Walk(root, func(n *html.Node) bool {
		if n.DataAtom == atom.Iframe || n.DataAtom == atom.Frame {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

func resolveRef(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return r.String()
	}
	return b.ResolveReference(r).String()
}
