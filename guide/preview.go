package guide

import (
	"bytes"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator"
)

// maxPreviewHTML caps the markup rendered for a matched element.
const maxPreviewHTML = 16 << 10

// Preview describes a matched element to a client that cannot see the page.
type Preview struct {
	Tag      string `json:"tag"`
	Selector string `json:"selector"`
	// HTML is the element's outer markup, sanitised.
	HTML     string `json:"html"`
	Markdown string `json:"markdown,omitempty"`
}

// Previewer renders previews. It is safe for concurrent use.
type Previewer struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// NewPreviewer returns a Previewer using the UGC sanitising policy.
func NewPreviewer() *Previewer {
	return &Previewer{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Render previews n. frameHref makes relative links absolute in the
// markdown.
func (p *Previewer) Render(n *html.Node, frameHref string) *Preview {
	if n == nil {
		return nil
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	raw := buf.String()
	if len(raw) > maxPreviewHTML {
		raw = raw[:maxPreviewHTML]
	}

	pv := &Preview{
		Tag:      n.Data,
		Selector: locator.Selector(n),
		HTML:     p.policy.Sanitize(raw),
	}
	var opts []converter.ConvertOptionFunc
	if frameHref != "" {
		opts = append(opts, converter.WithDomain(frameHref))
	}
	if md, err := p.md.ConvertString(pv.HTML, opts...); err == nil {
		pv.Markdown = strings.TrimSpace(md)
	}
	return pv
}
