package guide

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/relocate/kit"
)

// Service answers the guide protocol over a Store and a Player.
type Service struct {
	Store  *Store
	Player *Player
	logger *slog.Logger
	wraps  []func(op string) kit.Middleware
}

// NewService returns a Service.
func NewService(store *Store, player *Player, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: store, Player: player, logger: logger}
}

// Use adds a middleware to every endpoint built afterwards. It must be
// called before the transports are registered.
func (s *Service) Use(wrap func(op string) kit.Middleware) {
	s.wraps = append(s.wraps, wrap)
}

func (s *Service) chain(op string) kit.Middleware {
	mws := []kit.Middleware{kit.Logging(s.logger, op)}
	for _, w := range s.wraps {
		mws = append(mws, w(op))
	}
	return kit.Chain(mws...)
}

// Dispatch executes one request.
func (s *Service) Dispatch(ctx context.Context, req Request) (Response, error) {
	switch r := req.(type) {
	case *Ping:
		return &Pong{Ready: true}, nil
	case *ListGuides:
		guides, err := s.Store.List(ctx)
		if err != nil {
			return nil, err
		}
		return &GuideList{Guides: guides}, nil
	case *SaveGuide:
		g := r.Guide
		if err := s.Store.Save(ctx, &g); err != nil {
			return nil, err
		}
		return &GuideSaved{Guide: &g}, nil
	case *StartPlayback:
		started, err := s.Player.Start(ctx, r)
		if err != nil {
			return nil, err
		}
		return started, nil
	case *NextStep:
		out, err := s.Player.Next(ctx, r)
		if err != nil {
			return nil, err
		}
		return out, nil
	case *StopPlayback:
		stopped, err := s.Player.Stop(r)
		if err != nil {
			return nil, err
		}
		return stopped, nil
	default:
		return nil, fmt.Errorf("%w: unsupported request %T", ErrInvalidInput, req)
	}
}

// Endpoint exposes Dispatch as a kit.Endpoint, logged under op.
func (s *Service) Endpoint(op string) kit.Endpoint {
	return s.chain(op)(func(ctx context.Context, req any) (any, error) {
		r, ok := req.(Request)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported request %T", ErrInvalidInput, req)
		}
		return s.Dispatch(ctx, r)
	})
}

// ResolveEndpoint exposes the one-shot resolve as a kit.Endpoint.
func (s *Service) ResolveEndpoint() kit.Endpoint {
	return s.chain("resolve")(func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*ResolveRequest)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported request %T", ErrInvalidInput, req)
		}
		return s.Player.Resolve(ctx, r)
	})
}

// deleteEndpoint deletes the guide named by a guideIDReq.
func (s *Service) deleteEndpoint() kit.Endpoint {
	return s.chain("guide_delete")(func(ctx context.Context, req any) (any, error) {
		r, ok := req.(*guideIDReq)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported request %T", ErrInvalidInput, req)
		}
		if err := s.Store.Delete(ctx, r.ID); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": r.ID}, nil
	})
}
