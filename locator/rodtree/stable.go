package rodtree

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/relocate/locator/stability"
)

// Waiter uses rod's snapshot-diff stability check. Errors, including the
// budget running out, end the wait silently.
type Waiter struct {
	Page *rod.Page
	// Quiet is the stable period rod must observe. Default: 250ms.
	Quiet time.Duration
	// Diff is the tolerated change ratio between snapshots.
	Diff float64
}

// AwaitStable implements locator.StabilityWaiter.
func (w *Waiter) AwaitStable(ctx context.Context, budget time.Duration) {
	if budget <= 0 {
		return
	}
	quiet := w.Quiet
	if quiet <= 0 {
		quiet = stability.DefaultWindow
	}
	wctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	_ = w.Page.Context(wctx).WaitDOMStable(quiet, w.Diff)
}

// Feed forwards the page's CDP DOM events into q until ctx is done. It
// blocks; run it in its own goroutine.
func Feed(ctx context.Context, page *rod.Page, q *stability.Quiescence, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p := page.Context(ctx)
	if err := (proto.DOMEnable{}).Call(p); err != nil {
		logger.Warn("rodtree: enable DOM events", "error", err)
		return
	}
	// Without a full document request CDP only reports mutations on nodes
	// the client has already seen.
	if _, err := (proto.DOMGetDocument{Depth: ptr(-1), Pierce: true}).Call(p); err != nil {
		logger.Debug("rodtree: get document", "error", err)
	}

	wait := p.EachEvent(
		func(*proto.DOMChildNodeInserted) { q.Notify() },
		func(*proto.DOMChildNodeRemoved) { q.Notify() },
		func(*proto.DOMAttributeModified) { q.Notify() },
		func(*proto.DOMAttributeRemoved) { q.Notify() },
		func(*proto.DOMCharacterDataModified) { q.Notify() },
		func(*proto.DOMDocumentUpdated) { q.Notify() },
	)
	wait()
}

func ptr[T any](v T) *T { return &v }
