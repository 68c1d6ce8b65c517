package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// xvfbReady bounds how long Xvfb may take to open its socket.
const xvfbReady = 3 * time.Second

// needsXvfb reports whether launch must provide a virtual display: only a
// locally launched headful Chrome renders into one.
func (c *Config) needsXvfb() bool {
	return c.Mode == ModeHeadful && c.RemoteURL == ""
}

// xSocket maps an X display such as ":99" or ":99.0" to its unix socket.
func xSocket(display string) (string, error) {
	num, ok := strings.CutPrefix(display, ":")
	if !ok {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("display %q: %w", display, err)
	}
	return filepath.Join("/tmp/.X11-unix", "X"+num), nil
}

func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}
	display := m.cfg.XvfbDisplay
	sock, err := xSocket(display)
	if err != nil {
		return err
	}
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	deadline := time.Now().Add(xvfbReady)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			m.stopXvfb()
			return fmt.Errorf("xvfb: %s not ready after %s", sock, xvfbReady)
		}
		time.Sleep(50 * time.Millisecond)
	}

	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		_ = m.xvfb.Process.Kill()
		_ = m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
}
