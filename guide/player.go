package guide

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/relocate/idgen"
	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/htmltree"
)

// SessionState is the position of a playback session in its lifecycle.
type SessionState string

const (
	// StatePlaying: steps remain to be shown.
	StatePlaying SessionState = "playing"
	// StateDone: every step was shown; the session stays until stopped.
	StateDone SessionState = "done"
)

// OutcomeKind tells what happened to a NextStep request.
type OutcomeKind string

const (
	StepReady    OutcomeKind = "step_ready"
	StepNotFound OutcomeKind = "step_not_found"
	PlaybackDone OutcomeKind = "playback_done"
)

// PageSnapshot is a page the caller captured itself.
type PageSnapshot struct {
	URL  string `json:"url,omitempty"`
	HTML string `json:"html"`
}

// Resolution reports a resolve call to clients.
type Resolution struct {
	*locator.Result
	FrameHref string `json:"frame_href,omitempty"`
}

// NewResolution wraps res for clients.
func NewResolution(res *locator.Result) *Resolution {
	r := &Resolution{Result: res}
	if res.Frame != nil {
		r.FrameHref = res.Frame.Href
	}
	return r
}

type session struct {
	mu      sync.Mutex
	id      string
	guide   *Guide
	index   int
	state   SessionState
	started time.Time
	live    *LivePage
	// lastUsed is the unix-nano time of the last request on the session.
	lastUsed atomic.Int64
}

func (s *session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

// PlayerConfig configures a Player.
type PlayerConfig struct {
	// Resolve is the template of every resolver the player builds; its
	// Source and Stability are replaced per call.
	Resolve locator.Config
	// Opener serves live sessions. Nil disables them.
	Opener    Opener
	Previewer *Previewer
	Logger    *slog.Logger
	// SessionTTL is how long a session may stay idle before it is stopped
	// and its live page closed. Default: 30m.
	SessionTTL time.Duration

	now func() time.Time
}

// Player runs playback sessions. It is safe for concurrent use; requests
// on one session are serialised.
type Player struct {
	cfg   PlayerConfig
	store *Store

	mu       sync.Mutex
	sessions map[string]*session

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewPlayer returns a Player reading guides from store.
func NewPlayer(store *Store, cfg PlayerConfig) *Player {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Previewer == nil {
		cfg.Previewer = NewPreviewer()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	p := &Player{
		cfg:      cfg,
		store:    store,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.janitor()
	return p
}

// janitor stops idle sessions until Close.
func (p *Player) janitor() {
	defer close(p.done)
	every := min(p.cfg.SessionTTL/2, time.Minute)
	if every <= 0 {
		every = p.cfg.SessionTTL
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.expire()
		}
	}
}

// expire stops every session idle for longer than SessionTTL and reports
// how many it stopped.
func (p *Player) expire() int {
	cutoff := p.cfg.now().Add(-p.cfg.SessionTTL).UnixNano()
	p.mu.Lock()
	var idle []string
	for id, s := range p.sessions {
		if s.lastUsed.Load() < cutoff {
			idle = append(idle, id)
		}
	}
	p.mu.Unlock()

	n := 0
	for _, id := range idle {
		if _, err := p.Stop(&StopPlayback{SessionID: id}); err == nil {
			p.cfg.Logger.Info("guide: session expired", "session", id, "ttl", p.cfg.SessionTTL)
			n++
		}
	}
	return n
}

// Start opens a session on guide guideID. With live set, the guide is
// played against a browser page opened on url, or on the guide's start URL
// when url is empty.
func (p *Player) Start(ctx context.Context, req *StartPlayback) (*PlaybackStarted, error) {
	g, err := p.store.Get(ctx, req.GuideID)
	if err != nil {
		return nil, err
	}
	now := p.cfg.now()
	s := &session{id: idgen.Session(), guide: g, state: StatePlaying, started: now}
	s.touch(now)

	if req.Live {
		if p.cfg.Opener == nil {
			return nil, fmt.Errorf("%w: live playback is not available", ErrInvalidInput)
		}
		url := req.URL
		if url == "" {
			url = g.StartURL
		}
		if url == "" {
			return nil, fmt.Errorf("%w: live playback needs a url", ErrInvalidInput)
		}
		if s.live, err = p.cfg.Opener.Open(ctx, url); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	p.sessions[s.id] = s
	p.mu.Unlock()

	p.cfg.Logger.Info("guide: playback started", "session", s.id, "guide", g.ID, "live", s.live != nil)
	return &PlaybackStarted{
		SessionID: s.id,
		GuideID:   g.ID,
		Title:     g.Title,
		StepCount: len(g.Steps),
		Live:      s.live != nil,
	}, nil
}

func (p *Player) session(id string) (*session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return s, nil
}

// Next resolves the session's current step against page, or against the
// session's live page when page is nil. The session advances only when
// the element is found.
func (p *Player) Next(ctx context.Context, req *NextStep) (*StepOutcome, error) {
	s, err := p.session(req.SessionID)
	if err != nil {
		return nil, err
	}
	s.touch(p.cfg.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.touch(p.cfg.now()) }()

	out := &StepOutcome{SessionID: s.id, StepIndex: s.index, StepCount: len(s.guide.Steps)}
	if s.state == StateDone || s.index >= len(s.guide.Steps) {
		s.state = StateDone
		out.Kind = PlaybackDone
		return out, nil
	}

	var (
		src      locator.FrameSource
		waiter   locator.StabilityWaiter
		pageHref string
	)
	switch {
	case req.Page != nil && req.Page.HTML != "":
		pageHref = req.Page.URL
		src = htmltree.New(req.Page.HTML, htmltree.Config{Href: pageHref, Logger: p.cfg.Logger})
	case s.live != nil:
		pageHref = s.live.URL
		src, waiter = s.live.Source, s.live.Stability
	default:
		return nil, fmt.Errorf("%w: no page to resolve against", ErrInvalidInput)
	}

	step := s.guide.Steps[s.index]
	out.Step = &step
	res := p.resolve(ctx, src, waiter, step.descriptor())
	out.Resolution = NewResolution(res)
	if !res.OK() {
		out.Kind = StepNotFound
		p.cfg.Logger.Info("guide: step not found", "session", s.id, "step", s.index, "error", res.Error)
		return out, nil
	}

	out.Kind = StepReady
	href := pageHref
	if res.Frame != nil && res.Frame.Href != "" {
		href = res.Frame.Href
	}
	out.Preview = p.cfg.Previewer.Render(res.Node, href)
	s.index++
	if s.index >= len(s.guide.Steps) {
		s.state = StateDone
	}
	return out, nil
}

func (p *Player) resolve(ctx context.Context, src locator.FrameSource, waiter locator.StabilityWaiter, t *locator.TargetDescriptor) *locator.Result {
	cfg := p.cfg.Resolve
	cfg.Source = src
	cfg.Stability = waiter
	if cfg.Logger == nil {
		cfg.Logger = p.cfg.Logger
	}
	return locator.NewResolver(cfg).ResolveTarget(ctx, t)
}

// Stop ends a session and closes its live page.
func (p *Player) Stop(req *StopPlayback) (*PlaybackStopped, error) {
	p.mu.Lock()
	s, ok := p.sessions[req.SessionID]
	delete(p.sessions, req.SessionID)
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, req.SessionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.live.Close(); err != nil {
		p.cfg.Logger.Warn("guide: close live page", "session", s.id, "error", err)
	}
	p.cfg.Logger.Info("guide: playback stopped", "session", s.id, "steps_shown", s.index,
		"duration_ms", p.cfg.now().Sub(s.started).Milliseconds())
	return &PlaybackStopped{SessionID: s.id, StepsShown: s.index}, nil
}

// Close stops the janitor and every session.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		close(p.stop)
		<-p.done
	})
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()
	for _, id := range ids {
		_, _ = p.Stop(&StopPlayback{SessionID: id})
	}
}

// Resolve resolves t once against a caller-supplied page.
func (p *Player) Resolve(ctx context.Context, req *ResolveRequest) (*Resolved, error) {
	if req.Page == nil || req.Page.HTML == "" {
		return nil, fmt.Errorf("%w: page html is required", ErrInvalidInput)
	}
	if req.Target == nil {
		return nil, fmt.Errorf("%w: target is required", ErrInvalidInput)
	}
	src := htmltree.New(req.Page.HTML, htmltree.Config{Href: req.Page.URL, Logger: p.cfg.Logger})
	res := p.resolve(ctx, src, nil, req.Target)
	out := &Resolved{Resolution: NewResolution(res)}
	if res.OK() {
		href := req.Page.URL
		if res.Frame != nil && res.Frame.Href != "" {
			href = res.Frame.Href
		}
		out.Preview = p.cfg.Previewer.Render(res.Node, href)
	}
	return out, nil
}
