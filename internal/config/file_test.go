package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relocate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	cfg, err := LoadFile(writeFile(t, "store:\n  path: /var/lib/relocate/guides.db\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolve.Timeout != 8*time.Second || cfg.Resolve.Retries != 3 {
		t.Errorf("resolve defaults: %+v", cfg.Resolve)
	}
	if cfg.Resolve.StableLimit != 1500*time.Millisecond || cfg.Resolve.QuietWindow != 250*time.Millisecond {
		t.Errorf("stability defaults: %+v", cfg.Resolve)
	}
	if cfg.Browser.Mode != "headless" || cfg.Browser.XvfbDisplay != ":99" {
		t.Errorf("browser defaults: %+v", cfg.Browser)
	}
	if cfg.Server.Addr != ":8420" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Store.Path != "/var/lib/relocate/guides.db" {
		t.Errorf("store path: got %q", cfg.Store.Path)
	}
	if cfg.Playback.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl: got %v", cfg.Playback.SessionTTL)
	}
	if cfg.Store.AuditRetention != 720*time.Hour {
		t.Errorf("audit retention: got %v", cfg.Store.AuditRetention)
	}
}

func TestLoadFile_Values(t *testing.T) {
	t.Setenv(EnvJWTSecret, "")
	cfg, err := LoadFile(writeFile(t, `
resolve:
  timeout: 3s
  retries: -1
  quiet_window: 100ms
playback:
  session_ttl: 5m
browser:
  remote: ws://chrome:9222
  mode: headful
  resource_blocking: [image, font]
server:
  addr: 127.0.0.1:9000
  jwt_secret: from-file
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Resolve.Timeout != 3*time.Second || cfg.Resolve.Retries != -1 {
		t.Errorf("resolve: %+v", cfg.Resolve)
	}
	if cfg.Resolve.QuietWindow != 100*time.Millisecond {
		t.Errorf("quiet window: got %v", cfg.Resolve.QuietWindow)
	}
	if cfg.Playback.SessionTTL != 5*time.Minute {
		t.Errorf("session ttl: got %v", cfg.Playback.SessionTTL)
	}
	if cfg.Browser.Remote != "ws://chrome:9222" || cfg.Browser.Mode != "headful" {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("blocking: %v", cfg.Browser.ResourceBlocking)
	}
	if cfg.Server.JWTSecret != "from-file" {
		t.Errorf("secret: got %q", cfg.Server.JWTSecret)
	}
}

func TestLoadFile_EnvSecretWins(t *testing.T) {
	t.Setenv(EnvJWTSecret, "from-env")
	cfg, err := LoadFile(writeFile(t, "server:\n  jwt_secret: from-file\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.JWTSecret != "from-env" {
		t.Errorf("secret: got %q, want from-env", cfg.Server.JWTSecret)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := LoadFile(writeFile(t, "resolve: [")); err == nil {
		t.Error("malformed yaml accepted")
	}
}
