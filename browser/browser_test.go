package browser

import (
	"context"
	"errors"
	"testing"
)

func TestShouldBlock(t *testing.T) {
	block := map[string]bool{"images": true, "fonts": true, "xhr": true}
	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Stylesheet": false,
		"Media":      false,
		"XHR":        true,
		"Document":   false,
	}
	for typ, want := range cases {
		if got := shouldBlock(block, typ); got != want {
			t.Errorf("shouldBlock(%q): got %v, want %v", typ, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeHeadless, "headless": ModeHeadless, "headful": ModeHeadful} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q): got %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("kiosk"); err == nil {
		t.Error("ParseMode(kiosk): want error")
	}
}

func TestXSocket(t *testing.T) {
	cases := map[string]string{
		":99":   "/tmp/.X11-unix/X99",
		":0.0":  "/tmp/.X11-unix/X0",
		":12.3": "/tmp/.X11-unix/X12",
	}
	for display, want := range cases {
		got, err := xSocket(display)
		if err != nil || got != want {
			t.Errorf("xSocket(%q): got %q, %v, want %q", display, got, err, want)
		}
	}
	for _, bad := range []string{"", "99", ":x", "host:1"} {
		if _, err := xSocket(bad); err == nil {
			t.Errorf("xSocket(%q): want error", bad)
		}
	}
}

func TestNeedsXvfb(t *testing.T) {
	cases := []struct {
		cfg  Config
		want bool
	}{
		{Config{Mode: ModeHeadless}, false},
		{Config{Mode: ModeHeadful}, true},
		{Config{Mode: ModeHeadful, RemoteURL: "ws://chrome:9222"}, false},
	}
	for _, c := range cases {
		if got := c.cfg.needsXvfb(); got != c.want {
			t.Errorf("needsXvfb(%+v): got %v, want %v", c.cfg, got, c.want)
		}
	}
}

func TestClosedManager(t *testing.T) {
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close: got %v, want ErrClosed", err)
	}
	if err := m.Restart(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Restart after Close: got %v, want ErrClosed", err)
	}
	if _, err := m.OpenTab(context.Background(), "about:blank"); err == nil {
		t.Error("OpenTab without browser: want error")
	}
}
