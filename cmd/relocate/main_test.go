package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/relocate/audit"
	"github.com/hazyhaar/relocate/dbopen"
	"github.com/hazyhaar/relocate/internal/config"
)

const page = `<html><body>
<div class="toolbar"><button id="save" class="btn" data-testid="save-btn">Save</button></div>
</body></html>`

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func quickConfig() *config.Config {
	cfg := config.Default()
	cfg.Resolve.Timeout = time.Second
	cfg.Resolve.Retries = -1
	return cfg
}

func TestRunResolve_HTML(t *testing.T) {
	dir := t.TempDir()
	o := options{htmlPath: writeTemp(t, dir, "page.html", page)}
	o.target = writeTemp(t, dir, "target.yaml", `
fingerprint:
  tag: button
  text: Save
preferredLocators:
  - type: id
    value: save
`)
	if err := runResolve(context.Background(), quietLogger(), quickConfig(), o); err != nil {
		t.Fatalf("runResolve: %v", err)
	}
}

func TestRunResolve_NotFound(t *testing.T) {
	dir := t.TempDir()
	o := options{
		htmlPath: writeTemp(t, dir, "page.html", page),
		target:   writeTemp(t, dir, "target.json", `{"fingerprint":{"tag":"select","text":"Country"}}`),
	}
	err := runResolve(context.Background(), quietLogger(), quickConfig(), o)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("got %v", err)
	}
}

func TestRunResolve_NeedsPage(t *testing.T) {
	dir := t.TempDir()
	o := options{target: writeTemp(t, dir, "target.json", `{"fingerprint":{"tag":"button"}}`)}
	if err := runResolve(context.Background(), quietLogger(), quickConfig(), o); err == nil {
		t.Fatal("resolve without a page accepted")
	}
}

func TestRunDescribe(t *testing.T) {
	dir := t.TempDir()
	o := options{htmlPath: writeTemp(t, dir, "page.html", page), describe: "#save"}
	if err := runDescribe(context.Background(), quietLogger(), quickConfig(), o); err != nil {
		t.Fatalf("describe: %v", err)
	}
	o.describe = "select"
	if err := runDescribe(context.Background(), quietLogger(), quickConfig(), o); err == nil {
		t.Fatal("describe of a missing element succeeded")
	}
	o.describe = "[[["
	if err := runDescribe(context.Background(), quietLogger(), quickConfig(), o); err == nil {
		t.Fatal("bad selector accepted")
	}
}

func TestAuditHandler(t *testing.T) {
	trail, err := audit.New(dbopen.OpenMemory(t), audit.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer trail.Close()
	ctx := context.Background()
	for _, op := range []string{"resolve", "next_step"} {
		if err := trail.Log(ctx, &audit.Entry{Op: op}); err != nil {
			t.Fatal(err)
		}
	}

	rec := httptest.NewRecorder()
	auditHandler(trail, quietLogger())(rec, httptest.NewRequest(http.MethodGet, "/api/audit?op=resolve&limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var entries []audit.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Op != "resolve" {
		t.Fatalf("entries: %+v", entries)
	}
}
