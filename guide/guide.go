// Package guide stores recorded walkthroughs and plays them back: each step
// carries the descriptor of the element the user acted on, and playback
// re-locates that element on the current page before the step is shown.
package guide

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/relocate/locator"
)

// Sentinel errors, mapped to HTTP status codes by the handlers.
var (
	ErrNotFound     = errors.New("guide: not found")
	ErrInvalidInput = errors.New("guide: invalid input")
	ErrNoSession    = errors.New("guide: no such playback session")
)

// Step actions.
const (
	ActionClick = "click"
	ActionType  = "type"
)

// Guide is a recorded sequence of steps.
type Guide struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartURL  string `json:"start_url,omitempty"`
	Steps     []Step `json:"steps"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Step is one recorded interaction.
type Step struct {
	ID          string `json:"id"`
	Instruction string `json:"instruction"`
	Action      string `json:"action"`
	// Value is the text typed by a "type" step.
	Value string `json:"value,omitempty"`
	// Selector is the css selector captured with the step. It is used as a
	// locator when Target carries none.
	Selector string                   `json:"selector,omitempty"`
	Target   locator.TargetDescriptor `json:"target"`
	// Screenshot is a data URL of the page when the step was recorded.
	Screenshot string `json:"screenshot,omitempty"`
}

// Summary is the list view of a guide.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartURL  string `json:"start_url,omitempty"`
	StepCount int    `json:"step_count"`
	UpdatedAt int64  `json:"updated_at"`
}

// normalize trims the guide in place and checks it can be stored.
func (g *Guide) normalize() error {
	g.Title = strings.TrimSpace(g.Title)
	if g.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(g.Steps) == 0 {
		return fmt.Errorf("%w: a guide needs at least one step", ErrInvalidInput)
	}
	seen := make(map[string]int, len(g.Steps))
	for i := range g.Steps {
		s := &g.Steps[i]
		if s.ID != "" {
			if j, dup := seen[s.ID]; dup {
				return fmt.Errorf("%w: steps %d and %d share id %q", ErrInvalidInput, j, i, s.ID)
			}
			seen[s.ID] = i
		}
		s.Instruction = strings.TrimSpace(s.Instruction)
		if s.Instruction == "" {
			s.Instruction = "Step recorded"
		}
		switch s.Action {
		case "":
			s.Action = ActionClick
		case ActionClick, ActionType:
		default:
			return fmt.Errorf("%w: step %d: unknown action %q", ErrInvalidInput, i, s.Action)
		}
		if s.descriptor() == nil {
			return fmt.Errorf("%w: step %d: no target and no selector", ErrInvalidInput, i)
		}
	}
	return nil
}

// selectorConfidence weights a bare recorded selector.
const selectorConfidence = 0.7

// descriptor returns what playback resolves for s: its Target, completed
// with a css locator for Selector when the target names no locators. Nil
// means there is nothing to look for.
func (s *Step) descriptor() *locator.TargetDescriptor {
	t := s.Target
	if len(t.PreferredLocators) == 0 && s.Selector != "" {
		t.PreferredLocators = []locator.LocatorSpec{{
			Type:       locator.TypeCSS,
			Value:      s.Selector,
			Confidence: locator.Confidence(selectorConfidence),
		}}
	}
	if len(t.PreferredLocators) == 0 && t.Fingerprint.Tag == "" && t.Fingerprint.Text == "" {
		return nil
	}
	return &t
}
