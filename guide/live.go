package guide

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/relocate/browser"
	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/rodtree"
	"github.com/hazyhaar/relocate/locator/stability"
	"github.com/hazyhaar/relocate/safe"
)

// LivePage is a page a playback session resolves against between steps.
type LivePage struct {
	URL       string
	Source    locator.FrameSource
	Stability locator.StabilityWaiter
	close     func() error
}

// NewLivePage assembles a LivePage. closeFn may be nil.
func NewLivePage(url string, src locator.FrameSource, st locator.StabilityWaiter, closeFn func() error) *LivePage {
	return &LivePage{URL: url, Source: src, Stability: st, close: closeFn}
}

// Close releases the page.
func (p *LivePage) Close() error {
	if p == nil || p.close == nil {
		return nil
	}
	return p.close()
}

// Opener opens live pages for playback sessions.
type Opener interface {
	Open(ctx context.Context, url string) (*LivePage, error)
}

// BrowserOpener opens pages in the shared Chrome. Mutations reported by CDP
// feed a Quiescence that serves as the page's stability waiter.
type BrowserOpener struct {
	Manager *browser.Manager
	// Quiet is the mutation-free window awaited before each attempt.
	Quiet time.Duration
	// AllowPrivate lets sessions open loopback and private addresses.
	AllowPrivate bool
	Logger       *slog.Logger
}

// Open implements Opener.
func (o *BrowserOpener) Open(ctx context.Context, url string) (*LivePage, error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := safe.CheckURL(url, o.AllowPrivate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := o.Manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("guide: start browser: %w", err)
	}
	tab, err := o.Manager.OpenTab(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("guide: open %s: %w", url, err)
	}

	q := stability.New(stability.Config{Window: o.Quiet})
	feedCtx, cancel := context.WithCancel(context.Background())
	go rodtree.Feed(feedCtx, tab.Page, q, logger)

	src := rodtree.New(tab.Page, rodtree.Config{Logger: logger})
	return NewLivePage(url, src, q, func() error {
		cancel()
		return tab.Close()
	}), nil
}
