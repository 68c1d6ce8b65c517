package rodtree

import (
	"context"
	"testing"

	"github.com/hazyhaar/relocate/locator"
)

func TestParse_LayoutByXPath(t *testing.T) {
	boxes := map[string]SnapshotBox{
		"/html/body/div/button":    {W: 0, H: 0, D: "none", V: "visible", O: "1"},
		"/html/body/div[2]/button": {W: 60, H: 24, D: "inline-block", V: "visible", O: "1"},
	}
	f, err := Parse("https://app.test/", `<html><body>
<div><button>Save</button></div>
<div><button>Save</button></div>
</body></html>`, boxes)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	r := locator.NewResolver(locator.Config{
		Source: locator.FrameSourceFunc(func(context.Context) []*locator.Frame { return []*locator.Frame{f} }),
	})
	res := r.ResolveTarget(context.Background(), &locator.TargetDescriptor{
		Fingerprint:       locator.Fingerprint{Tag: "button", Text: "Save"},
		PreferredLocators: []locator.LocatorSpec{{Type: locator.TypeText, Value: "Save", Tag: "button", Confidence: locator.Confidence(0.9)}},
	})
	if !res.OK() {
		t.Fatalf("status: got %s", res.Status)
	}
	box, ok := f.Layout.Box(res.Node)
	if !ok || !box.Visible() {
		t.Errorf("resolved the hidden button: %+v", box)
	}
}

func TestLayout_UnknownNode(t *testing.T) {
	f, err := Parse("", `<p>x</p>`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.Layout.Box(f.Root.FirstChild); ok {
		t.Error("no boxes were captured, Box must report false")
	}
}
