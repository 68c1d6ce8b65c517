package locator

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Locator types.
const (
	TypeID    = "id"
	TypeCSS   = "css"
	TypeRole  = "role"
	TypeText  = "text"
	TypeXPath = "xpath"
)

// TargetDescriptor is everything recorded about an element at capture time.
// It is frozen once recorded; the resolver never mutates it.
type TargetDescriptor struct {
	Fingerprint       Fingerprint   `json:"fingerprint" yaml:"fingerprint"`
	PreferredLocators []LocatorSpec `json:"preferredLocators,omitempty" yaml:"preferredLocators,omitempty"`
	Context           Context       `json:"context,omitempty" yaml:"context,omitempty"`
}

// Fingerprint holds the descriptive attributes of the recorded element.
type Fingerprint struct {
	Tag         string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text        string            `json:"text,omitempty" yaml:"text,omitempty"`
	ClassTokens []string          `json:"classTokens,omitempty" yaml:"classTokens,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty"`
}

// LocatorSpec names one strategy and the value to query it with.
// Confidence is the caller's trust in the locator, in [0,1]; nil means the
// recorder did not assign one.
type LocatorSpec struct {
	Type       string   `json:"type" yaml:"type"`
	Value      string   `json:"value,omitempty" yaml:"value,omitempty"`
	Role       string   `json:"role,omitempty" yaml:"role,omitempty"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tag        string   `json:"tag,omitempty" yaml:"tag,omitempty"`
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Confidence returns a pointer to c, for building LocatorSpec literals.
func Confidence(c float64) *float64 { return &c }

// Context locates the element within its page.
type Context struct {
	AncestorTrail []AncestorStep `json:"ancestorTrail,omitempty" yaml:"ancestorTrail,omitempty"`
	Frame         FrameRef       `json:"frame,omitempty" yaml:"frame,omitempty"`
}

// AncestorStep is one (tag, sibling index) pair of the recorded trail.
type AncestorStep struct {
	Tag   string `json:"tag,omitempty" yaml:"tag,omitempty"`
	Index int    `json:"index" yaml:"index"`
}

// FrameRef identifies the frame the element was recorded in.
type FrameRef struct {
	Href string `json:"href,omitempty" yaml:"href,omitempty"`
}

// weight is the confidence used when scoring a locator's hits.
func (l LocatorSpec) weight() float64 {
	if l.Confidence == nil {
		return 0.5
	}
	return *l.Confidence
}

// DecodeDescriptor reads a descriptor serialised as YAML or JSON.
func DecodeDescriptor(data []byte) (*TargetDescriptor, error) {
	var t TargetDescriptor
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("locator: decode descriptor: %w", err)
	}
	if t.Fingerprint.Tag == "" && t.Fingerprint.Text == "" && len(t.PreferredLocators) == 0 {
		return nil, errors.New("locator: decode descriptor: no fingerprint and no locators")
	}
	return &t, nil
}
