package locator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/locator/internal/query"
)

// StableAttrs are the attributes a recorded selector prefers, most stable
// first.
var StableAttrs = []string{
	"gh",
	"data-tooltip",
	"aria-label",
	"data-action",
	"data-id",
	"role",
	"name",
	"placeholder",
}

const (
	stableAttrDepth = 5
	maxTextLocator  = 80
	maxFingerprint  = 200
)

var stableClass = regexp.MustCompile(`^[a-zA-Z-]+$`)

var cssQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Selector builds the CSS selector a recorder would save for n: a stable
// attribute on n or one of its 5 nearest ancestors, else n's stable
// classes, else the full nth-of-type path.
func Selector(n *html.Node) string {
	sel, _ := selector(n)
	return sel
}

// selector also reports how much the selector can be trusted.
func selector(n *html.Node) (string, float64) {
	if n == nil || n.Type != html.ElementNode {
		return "", 0
	}
	cur := n
	for depth := 0; depth < stableAttrDepth && cur != nil; depth++ {
		for _, a := range StableAttrs {
			if v, ok := query.Attr(cur, a); ok && strings.TrimSpace(v) != "" {
				return fmt.Sprintf(`%s[%s="%s"]`, query.Tag(cur), a, cssQuoter.Replace(v)), 0.7
			}
		}
		cur = query.ParentElement(cur)
	}

	if cls := stableClasses(n); len(cls) > 0 {
		return query.Tag(n) + "." + strings.Join(cls, "."), 0.5
	}

	var path []string
	for cur = n; cur != nil; cur = query.ParentElement(cur) {
		seg := query.Tag(cur)
		if cls := stableClasses(cur); len(cls) > 0 {
			seg += "." + strings.Join(cls, ".")
		}
		nth := 1
		for s := cur.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == cur.Data {
				nth++
			}
		}
		seg += fmt.Sprintf(":nth-of-type(%d)", nth)
		path = append([]string{seg}, path...)
	}
	return strings.Join(path, " > "), 0.4
}

func stableClasses(n *html.Node) []string {
	var out []string
	for _, c := range query.Classes(n) {
		if stableClass.MatchString(c) {
			out = append(out, c)
		}
	}
	return out
}

// fingerprintAttrs are copied into the fingerprint when present.
var fingerprintAttrs = append([]string{"id", "data-testid", "data-card-id", "data-list-id"}, StableAttrs...)

// BuildDescriptor records n the way a recorder does: its fingerprint, the
// trail of ancestors up to <body> and a set of preferred locators. frameHref
// is the address of the document n lives in.
func BuildDescriptor(n *html.Node, frameHref string) *TargetDescriptor {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	text := query.ElementText(n)

	fp := Fingerprint{
		Tag:         query.Tag(n),
		Text:        truncate(text, maxFingerprint),
		ClassTokens: query.Classes(n),
	}
	for _, a := range fingerprintAttrs {
		if v, ok := query.Attr(n, a); ok && v != "" {
			if fp.Attrs == nil {
				fp.Attrs = make(map[string]string)
			}
			fp.Attrs[a] = v
		}
	}

	var trail []AncestorStep
	for p := query.ParentElement(n); p != nil; p = query.ParentElement(p) {
		tag := query.Tag(p)
		if tag == "body" || tag == "html" {
			break
		}
		trail = append(trail, AncestorStep{Tag: tag, Index: query.Index(p)})
	}

	var locs []LocatorSpec
	if id, ok := query.Attr(n, "id"); ok && id != "" {
		locs = append(locs, LocatorSpec{Type: TypeID, Value: id, Confidence: Confidence(0.9)})
	}
	if sel, conf := selector(n); sel != "" {
		locs = append(locs, LocatorSpec{Type: TypeCSS, Value: sel, Confidence: Confidence(conf)})
	}
	if role := query.Role(n); role != "" {
		root := n
		for root.Parent != nil {
			root = root.Parent
		}
		locs = append(locs, LocatorSpec{
			Type:       TypeRole,
			Role:       role,
			Name:       query.AccessibleName(root, n),
			Confidence: Confidence(0.6),
		})
	}
	if text != "" && utf8.RuneCountInString(text) <= maxTextLocator {
		locs = append(locs, LocatorSpec{Type: TypeText, Value: text, Tag: fp.Tag, Confidence: Confidence(0.8)})
	}
	locs = append(locs, LocatorSpec{Type: TypeXPath, Value: query.XPath(n), Confidence: Confidence(0.3)})

	return &TargetDescriptor{
		Fingerprint:       fp,
		PreferredLocators: locs,
		Context: Context{
			AncestorTrail: trail,
			Frame:         FrameRef{Href: frameHref},
		},
	}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
