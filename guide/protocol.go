package guide

import (
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/relocate/locator"
)

// Message types. The set is closed: Decode rejects anything else.
const (
	TypePing          = "ping"
	TypeListGuides    = "list_guides"
	TypeSaveGuide     = "save_guide"
	TypeStartPlayback = "start_playback"
	TypeNextStep      = "next_step"
	TypeStopPlayback  = "stop_playback"

	TypePong            = "pong"
	TypeGuideList       = "guide_list"
	TypeGuideSaved      = "guide_saved"
	TypePlaybackStarted = "playback_started"
	TypeStepOutcome     = "step_outcome"
	TypePlaybackStopped = "playback_stopped"
	TypeError           = "error"
)

// Envelope is the wire form of every message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one of the messages a client sends.
type Request interface{ requestType() string }

// Response is one of the messages the coordinator answers with.
type Response interface{ responseType() string }

type Ping struct{}

type ListGuides struct{}

type SaveGuide struct {
	Guide Guide `json:"guide"`
}

type StartPlayback struct {
	GuideID string `json:"guide_id"`
	// Live plays the guide in a browser page opened on URL, or on the
	// guide's start URL.
	Live bool   `json:"live,omitempty"`
	URL  string `json:"url,omitempty"`
}

type NextStep struct {
	SessionID string `json:"session_id"`
	// Page is the current page. It may be omitted for live sessions.
	Page *PageSnapshot `json:"page,omitempty"`
}

type StopPlayback struct {
	SessionID string `json:"session_id"`
}

type guideIDReq struct {
	ID string `json:"id"`
}

func (r guideIDReq) AuditDetail() string { return "guide=" + r.ID }

func (Ping) requestType() string          { return TypePing }
func (ListGuides) requestType() string    { return TypeListGuides }
func (SaveGuide) requestType() string     { return TypeSaveGuide }
func (StartPlayback) requestType() string { return TypeStartPlayback }
func (NextStep) requestType() string      { return TypeNextStep }
func (StopPlayback) requestType() string  { return TypeStopPlayback }

// AuditDetail identifies the guide or session a request acts on.
func (r SaveGuide) AuditDetail() string     { return "guide=" + r.Guide.ID }
func (r StartPlayback) AuditDetail() string { return "guide=" + r.GuideID }
func (r NextStep) AuditDetail() string      { return "session=" + r.SessionID }
func (r StopPlayback) AuditDetail() string  { return "session=" + r.SessionID }

type Pong struct {
	Ready bool `json:"ready"`
}

type GuideList struct {
	Guides []Summary `json:"guides"`
}

type GuideSaved struct {
	Guide *Guide `json:"guide"`
}

type PlaybackStarted struct {
	SessionID string `json:"session_id"`
	GuideID   string `json:"guide_id"`
	Title     string `json:"title"`
	StepCount int    `json:"step_count"`
	Live      bool   `json:"live"`
}

// StepOutcome answers NextStep. Step and Resolution are set unless Kind is
// PlaybackDone; Preview only when the step is ready.
type StepOutcome struct {
	Kind       OutcomeKind `json:"kind"`
	SessionID  string      `json:"session_id"`
	StepIndex  int         `json:"step_index"`
	StepCount  int         `json:"step_count"`
	Step       *Step       `json:"step,omitempty"`
	Resolution *Resolution `json:"resolution,omitempty"`
	Preview    *Preview    `json:"preview,omitempty"`
}

type PlaybackStopped struct {
	SessionID  string `json:"session_id"`
	StepsShown int    `json:"steps_shown"`
}

// ErrorMessage carries a failed request back to the client.
type ErrorMessage struct {
	Error string `json:"error"`
}

func (Pong) responseType() string            { return TypePong }
func (GuideList) responseType() string       { return TypeGuideList }
func (GuideSaved) responseType() string      { return TypeGuideSaved }
func (PlaybackStarted) responseType() string { return TypePlaybackStarted }
func (StepOutcome) responseType() string     { return TypeStepOutcome }
func (PlaybackStopped) responseType() string { return TypePlaybackStopped }
func (ErrorMessage) responseType() string    { return TypeError }

// ResolveRequest asks for a one-shot resolution outside any session.
type ResolveRequest struct {
	Target *locator.TargetDescriptor `json:"target"`
	Page   *PageSnapshot             `json:"page"`
}

// AuditDetail names the target without the page.
func (r ResolveRequest) AuditDetail() string {
	if r.Target == nil {
		return ""
	}
	return fmt.Sprintf("tag=%s locators=%d", r.Target.Fingerprint.Tag, len(r.Target.PreferredLocators))
}

// Resolved answers ResolveRequest.
type Resolved struct {
	*Resolution
	Preview *Preview `json:"preview,omitempty"`
}

// Decode turns an envelope into its typed request.
func Decode(env Envelope) (Request, error) {
	var req Request
	switch env.Type {
	case TypePing:
		req = &Ping{}
	case TypeListGuides:
		req = &ListGuides{}
	case TypeSaveGuide:
		req = &SaveGuide{}
	case TypeStartPlayback:
		req = &StartPlayback{}
	case TypeNextStep:
		req = &NextStep{}
	case TypeStopPlayback:
		req = &StopPlayback{}
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, env.Type)
	}
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, req); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalidInput, env.Type, err)
		}
	}
	return req, nil
}

// Encode wraps resp in an envelope.
func Encode(resp Response) (Envelope, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return Envelope{}, fmt.Errorf("guide: encode %s: %w", resp.responseType(), err)
	}
	return Envelope{Type: resp.responseType(), Payload: data}, nil
}
