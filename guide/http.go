package guide

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/relocate/auth"
	"github.com/hazyhaar/relocate/kit"
	"github.com/hazyhaar/relocate/safe"
)

// NewRouter returns the HTTP API. With a secret, every /api route requires
// a bearer token signed with it; without one the API is open.
func NewRouter(s *Service, secret []byte) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, withRequestID, middleware.Recoverer)
	if len(secret) > 0 {
		r.Use(auth.Middleware(secret))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if len(secret) > 0 {
			r.Use(auth.RequireAuth)
		}
		s.RegisterHTTP(r)
	})
	return r
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RegisterHTTP registers the guide endpoints on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Post("/api/messages", s.handleMessage)
	r.Post("/api/resolve", s.handleResolve)

	r.Route("/api/guides", func(r chi.Router) {
		r.Get("/", s.handleListGuides)
		r.Post("/", s.handleSaveGuide)
		r.Get("/{id}", s.handleGetGuide)
		r.Put("/{id}", s.handleSaveGuide)
		r.Delete("/{id}", s.handleDeleteGuide)
	})
}

func (s *Service) handleMessage(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	if err := readJSON(r, &env); err != nil {
		writeMessageError(w, err)
		return
	}
	req, err := Decode(env)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	resp, err := s.Endpoint(env.Type)(r.Context(), req)
	if err != nil {
		writeMessageError(w, err)
		return
	}
	out, err := Encode(resp.(Response))
	if err != nil {
		writeMessageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp, err := s.ResolveEndpoint()(r.Context(), &req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleListGuides(w http.ResponseWriter, r *http.Request) {
	guides, err := s.Store.List(r.Context())
	if err != nil {
		s.logger.Error("guide: list", "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, guides)
}

func (s *Service) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	g, err := s.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Service) handleSaveGuide(w http.ResponseWriter, r *http.Request) {
	var g Guide
	if err := readJSON(r, &g); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	code := http.StatusCreated
	if id := chi.URLParam(r, "id"); id != "" {
		g.ID = id
		code = http.StatusOK
	}
	resp, err := s.Endpoint(TypeSaveGuide)(r.Context(), &SaveGuide{Guide: g})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, code, resp.(*GuideSaved).Guide)
}

func (s *Service) handleDeleteGuide(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deleteEndpoint()(r.Context(), &guideIDReq{ID: chi.URLParam(r, "id")}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func readJSON(r *http.Request, v any) error {
	data, err := safe.ReadLimited(r.Body, safe.MaxBody)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, safe.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeMessageError(w http.ResponseWriter, err error) {
	env, _ := Encode(&ErrorMessage{Error: err.Error()})
	writeJSON(w, statusFor(err), env)
}
