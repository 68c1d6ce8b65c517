// Package stability waits for a document to stop mutating. Mutation events
// come from whatever observes the page (a CDP DOM feed, a test) through
// Notify; AwaitStable returns once the quiet window has passed without one.
package stability

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the quiet period that counts as stable.
const DefaultWindow = 250 * time.Millisecond

// Config controls a Quiescence.
type Config struct {
	// Window is the mutation-free period. Default: 250ms.
	Window time.Duration
	// Now is the time source. Default: time.Now.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Quiescence tracks mutation activity. It is safe for concurrent use and
// implements locator.StabilityWaiter.
type Quiescence struct {
	cfg Config

	mu        sync.Mutex
	last      time.Time
	mutations uint64
	changed   chan struct{}
}

// New returns a Quiescence with no recorded activity.
func New(cfg Config) *Quiescence {
	cfg.defaults()
	return &Quiescence{cfg: cfg, changed: make(chan struct{})}
}

// Notify records one mutation and wakes every waiter.
func (q *Quiescence) Notify() {
	q.mu.Lock()
	q.last = q.cfg.Now()
	q.mutations++
	close(q.changed)
	q.changed = make(chan struct{})
	q.mu.Unlock()
}

// Mutations returns the number of mutations seen so far.
func (q *Quiescence) Mutations() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mutations
}

func (q *Quiescence) state() (time.Time, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last, q.changed
}

// AwaitStable returns when no mutation has been seen for the window, when
// budget elapses or when ctx is done, whichever comes first.
func (q *Quiescence) AwaitStable(ctx context.Context, budget time.Duration) {
	if budget <= 0 {
		return
	}
	deadline := time.NewTimer(budget)
	defer deadline.Stop()

	for {
		last, changed := q.state()
		quietFor := q.cfg.Now().Sub(last)
		if last.IsZero() || quietFor >= q.cfg.Window {
			return
		}
		quiet := time.NewTimer(q.cfg.Window - quietFor)
		select {
		case <-ctx.Done():
			quiet.Stop()
			return
		case <-deadline.C:
			quiet.Stop()
			return
		case <-quiet.C:
		case <-changed:
			quiet.Stop()
		}
	}
}
