// Package locator re-finds a recorded UI element in a live, possibly mutated
// document. A TargetDescriptor captured at record time is matched against
// every frame of the current page with several independent strategies; hits
// are scored, deduplicated and ranked, and the best one is returned.
//
// Resolution is bounded by a wall-clock budget and a retry count, with a
// linear backoff between attempts. Nothing escapes ResolveTarget as an
// error: failures are reported in the Result and its debug trace.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator/internal/query"
)

// Defaults.
const (
	DefaultTimeout     = 8 * time.Second
	DefaultRetries     = 3
	DefaultStableLimit = 1500 * time.Millisecond
	backoffStep        = 200 * time.Millisecond
)

// Fallback confidences.
const (
	ancestorConfidence = 0.3
	textConfidence     = 0.2
)

// Config wires a Resolver to its collaborators.
type Config struct {
	// Source enumerates the frames to search. Required.
	Source FrameSource
	// Strategies evaluates locators. Default: the html-tree query engine.
	Strategies Strategies
	// Stability is awaited before each attempt. Default: no wait.
	Stability StabilityWaiter
	Clock     Clock
	Logger    *slog.Logger

	// Timeout is the total budget of one resolve call. Default: 8s.
	Timeout time.Duration
	// Retries is the number of attempts after the first. Zero means the
	// default of 3; use a negative value for a single attempt.
	Retries int
	// StableLimit caps each stability wait. Default: 1500ms.
	StableLimit time.Duration

	IdentityAttrs []string
	TestIDAttrs   []string
}

func (c *Config) defaults() {
	if c.Strategies == nil {
		c.Strategies = query.New()
	}
	if c.Stability == nil {
		c.Stability = nopWaiter{}
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	} else if c.Retries < 0 {
		c.Retries = 0
	}
	if c.StableLimit <= 0 {
		c.StableLimit = DefaultStableLimit
	}
	if c.IdentityAttrs == nil {
		c.IdentityAttrs = DefaultIdentityAttrs
	}
	if c.TestIDAttrs == nil {
		c.TestIDAttrs = DefaultTestIDAttrs
	}
}

// Resolver locates recorded targets. It is immutable after NewResolver and
// safe for concurrent use; every call owns its own candidates and trace.
type Resolver struct {
	cfg    Config
	rank   ranker
	logger *slog.Logger
}

// NewResolver returns a Resolver. A nil Source is replaced by one that
// yields no frames, so every call fails.
func NewResolver(cfg Config) *Resolver {
	cfg.defaults()
	if cfg.Source == nil {
		cfg.Source = FrameSourceFunc(func(context.Context) []*Frame { return nil })
	}
	return &Resolver{
		cfg:    cfg,
		rank:   ranker{identity: cfg.IdentityAttrs, testID: cfg.TestIDAttrs},
		logger: cfg.Logger,
	}
}

type resolveOptions struct {
	timeout time.Duration
	retries int
}

// ResolveOption overrides a Config value for one call.
type ResolveOption func(*resolveOptions)

// WithTimeout sets the total budget of the call.
func WithTimeout(d time.Duration) ResolveOption {
	return func(o *resolveOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetries sets the number of attempts after the first.
func WithRetries(n int) ResolveOption {
	return func(o *resolveOptions) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// match is a frame's accepted candidate.
type match struct {
	frame *Frame
	cand  *candidate
}

// trace accumulates the debug entries of one call.
type trace struct {
	entries []DebugEntry
	logger  *slog.Logger
}

func (tr *trace) add(typ, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	tr.entries = append(tr.entries, DebugEntry{Type: typ, Message: msg})
	tr.logger.Debug("locator: "+msg, "type", typ)
}

// ResolveTarget searches for t until it is found, the retries are used up,
// the budget is spent or ctx is done. Attempt k (0-based) is followed by a
// backoff of 200ms×(k+1), clamped to the remaining budget; the last attempt
// is not.
func (r *Resolver) ResolveTarget(ctx context.Context, t *TargetDescriptor, opts ...ResolveOption) *Result {
	o := resolveOptions{timeout: r.cfg.Timeout, retries: r.cfg.Retries}
	for _, fn := range opts {
		fn(&o)
	}

	tr := &trace{logger: r.logger}
	res := &Result{Status: StatusHardFail}
	if t == nil {
		res.Error = "locator: nil target"
		res.Debug = tr.entries
		return res
	}

	clock := r.cfg.Clock
	start := clock.Now()
	var lastErr error

	for attempt := 0; attempt <= o.retries; attempt++ {
		remaining := o.timeout - clock.Now().Sub(start)
		if remaining <= 0 {
			tr.add(DebugInfo, "budget of %s exhausted before attempt %d", o.timeout, attempt+1)
			break
		}
		res.Attempts++

		m, err := r.attempt(ctx, t, attempt, start, o.timeout, tr)
		if m != nil {
			res.Status = StatusSuccess
			res.Node = m.cand.node
			res.Frame = m.frame
			res.Score = m.cand.score
			res.Why = m.cand.why
			res.Debug = tr.entries
			r.logger.Debug("locator: resolved",
				"attempt", attempt+1, "score", m.cand.score, "why", m.cand.why, "frame", m.frame.Href)
			return res
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				lastErr = err
				tr.add(DebugError, "cancelled: %v", err)
				break
			}
			lastErr = err
			tr.add(DebugError, "%v", err)
			r.logger.Warn("locator: attempt failed", "attempt", attempt+1, "error", err)
		}

		if attempt == o.retries {
			break
		}
		delay := backoffStep * time.Duration(attempt+1)
		if left := o.timeout - clock.Now().Sub(start); delay > left {
			delay = left
		}
		if delay > 0 {
			if err := clock.Sleep(ctx, delay); err != nil {
				lastErr = err
				tr.add(DebugError, "cancelled during backoff: %v", err)
				break
			}
		}
	}

	if lastErr != nil {
		res.Error = lastErr.Error()
	} else {
		res.Error = "unable to resolve target"
	}
	res.Debug = tr.entries
	r.logger.Debug("locator: hard fail", "attempts", res.Attempts, "error", res.Error)
	return res
}

// attempt runs one stability wait and frame scan. A nil match with a nil
// error is a soft timeout.
func (r *Resolver) attempt(ctx context.Context, t *TargetDescriptor, n int, start time.Time, timeout time.Duration, tr *trace) (m *match, err error) {
	defer func() {
		if p := recover(); p != nil {
			m, err = nil, &AttemptError{Attempt: n + 1, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	clock := r.cfg.Clock
	remaining := timeout - clock.Now().Sub(start)
	stop := clock.AfterFunc(remaining, func() {
		r.logger.Warn("locator: attempt overran budget", "attempt", n+1, "budget", remaining)
	})
	defer stop()

	wait := remaining
	if wait > r.cfg.StableLimit {
		wait = r.cfg.StableLimit
	}
	r.cfg.Stability.AwaitStable(ctx, wait)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if clock.Now().Sub(start) >= timeout {
		tr.add(DebugInfo, "budget exhausted during stability wait")
		return nil, nil
	}

	for _, f := range r.cfg.Source.Frames(ctx) {
		if f == nil || f.Root == nil {
			continue
		}
		c, err := r.resolveInFrame(f, t, tr)
		if err != nil {
			return nil, &AttemptError{Attempt: n + 1, Err: err}
		}
		if c != nil {
			return &match{frame: f, cand: c}, nil
		}
	}
	return nil, nil
}

// resolveInFrame gathers candidates from the locators, then the fallbacks,
// and returns the frame's accepted candidate if any.
func (r *Resolver) resolveInFrame(f *Frame, t *TargetDescriptor, tr *trace) (*candidate, error) {
	set := newCandidateSet(t, f.Layout)

	for _, l := range r.rank.sorted(t.PreferredLocators) {
		if l.Type == "" {
			continue
		}
		nodes, err := r.run(f.Root, l)
		if err != nil {
			var qe *query.Error
			if errors.As(err, &qe) {
				tr.add(DebugWarn, "%s locator skipped: %v", l.Type, err)
				continue
			}
			return nil, fmt.Errorf("%s locator %q: %w", l.Type, l.Value, err)
		}
		set.push(nodes, l.Type, r.rank.confidence(l))
	}

	if set.empty() && len(t.Context.AncestorTrail) > 0 {
		if anchor := ancestorAnchor(f.Root, t.Context.AncestorTrail); anchor != nil {
			set.push(query.ByTag(anchor, t.Fingerprint.Tag), "ancestorTrail", ancestorConfidence)
		} else {
			tr.add(DebugWarn, "ancestor anchor not found in %s", frameName(f))
		}
	}

	if set.empty() && t.Fingerprint.Text != "" {
		nodes, err := r.cfg.Strategies.ByText(f.Root, t.Fingerprint.Text, "")
		if err != nil {
			var qe *query.Error
			if !errors.As(err, &qe) {
				return nil, fmt.Errorf("fingerprint text: %w", err)
			}
			tr.add(DebugWarn, "fingerprint text search skipped: %v", err)
		}
		set.push(nodes, "fingerprint-text", textConfidence)
	}

	top, ok := set.best()
	if top != nil && !ok {
		tr.add(DebugInfo, "best candidate in %s scored %.2f, below %.1f", frameName(f), top.score, AcceptThreshold)
	}
	if !ok {
		return nil, nil
	}
	return top, nil
}

func (r *Resolver) run(root *html.Node, l LocatorSpec) ([]*html.Node, error) {
	s := r.cfg.Strategies
	switch l.Type {
	case TypeID:
		return s.ByID(root, l.Value)
	case TypeCSS:
		return s.ByCSS(root, l.Value)
	case TypeRole:
		role := l.Role
		if role == "" {
			role = l.Value
		}
		return s.ByRole(root, role, l.Name)
	case TypeText:
		return s.ByText(root, l.Value, l.Tag)
	case TypeXPath:
		return s.ByXPath(root, l.Value)
	}
	return nil, &query.Error{Strategy: l.Type, Expr: l.Value, Err: errors.New("unknown locator type")}
}

// ancestorAnchor follows the recorded trail down from <body>, outermost
// step first, clamping each index into the children that exist.
func ancestorAnchor(root *html.Node, trail []AncestorStep) *html.Node {
	cur := query.Body(root)
	for i := len(trail) - 1; i >= 0 && cur != nil; i-- {
		kids := query.Children(cur)
		if len(kids) == 0 {
			return nil
		}
		idx := trail[i].Index
		if idx >= len(kids) {
			idx = len(kids) - 1
		}
		if idx < 0 {
			idx = 0
		}
		cur = kids[idx]
	}
	return cur
}

func frameName(f *Frame) string {
	if f.Href == "" {
		return "frame"
	}
	return f.Href
}
