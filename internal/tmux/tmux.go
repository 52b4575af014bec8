package tmux

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

// specialKeys maps symbolic key names accepted over the wire to tmux
// send-keys key names.
var specialKeys = map[string]string{
	"enter":     "Enter",
	"escape":    "Escape",
	"tab":       "Tab",
	"backspace": "BSpace",
	"space":     "Space",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"pageup":    "PageUp",
	"pagedown":  "PageDown",
	"home":      "Home",
	"end":       "End",
	"ctrl-c":    "C-c",
	"ctrl-d":    "C-d",
	"ctrl-z":    "C-z",
	"ctrl-l":    "C-l",
	"ctrl-r":    "C-r",
	"ctrl-u":    "C-u",
}

// Tmux drives a local tmux server through its CLI. It implements Capability.
type Tmux struct {
	// bin is the tmux executable name or path.
	bin string
}

// New returns a tmux-backed capability using the given executable.
// An empty bin defaults to "tmux" resolved via PATH.
func New(bin string) *Tmux {
	if bin == "" {
		bin = "tmux"
	}
	return &Tmux{bin: bin}
}

func (t *Tmux) run(args ...string) (string, error) {
	cmd := exec.Command(t.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.String(), fmt.Errorf("tmux %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// ListSessions implements Capability.
func (t *Tmux) ListSessions() ([]string, error) {
	out, err := t.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		// A tmux server with zero sessions exits non-zero; treat it as an
		// empty listing rather than a failure.
		if strings.Contains(err.Error(), "no server running") ||
			strings.Contains(err.Error(), "no sessions") {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// CaptureSnapshot implements Capability. The -e flag preserves escape
// sequences so colors and cursor styling survive the mirror.
func (t *Tmux) CaptureSnapshot(name string) ([]byte, error) {
	out, err := t.run("capture-pane", "-p", "-e", "-t", name)
	if err != nil {
		if !t.sessionExists(name) {
			return nil, ErrSessionUnavailable
		}
		return nil, err
	}
	return []byte(out), nil
}

// SendKeys implements Capability. The -l flag sends the text literally so
// tmux does not interpret key names inside user input.
func (t *Tmux) SendKeys(name, text string) error {
	_, err := t.run("send-keys", "-t", name, "-l", text)
	return err
}

// SendSpecialKey implements Capability.
func (t *Tmux) SendSpecialKey(name, key string) error {
	mapped, ok := specialKeys[strings.ToLower(key)]
	if !ok {
		return fmt.Errorf("unknown special key %q", key)
	}
	_, err := t.run("send-keys", "-t", name, mapped)
	return err
}

// Resize implements Capability.
func (t *Tmux) Resize(name string, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", cols, rows)
	}
	_, err := t.run("resize-window", "-t", name,
		"-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))
	return err
}

// Create implements Capability.
func (t *Tmux) Create(name, cwd string) error {
	args := []string{"new-session", "-d", "-s", name}
	if cwd != "" {
		args = append(args, "-c", cwd)
	}
	_, err := t.run(args...)
	return err
}

// Kill implements Capability.
func (t *Tmux) Kill(name string) error {
	_, err := t.run("kill-session", "-t", name)
	return err
}

// IsAvailable implements Capability.
func (t *Tmux) IsAvailable() bool {
	if _, err := exec.LookPath(t.bin); err != nil {
		logger.Debugf("tmux not found in PATH: %v", err)
		return false
	}
	return true
}

// Version implements Capability.
func (t *Tmux) Version() (string, bool) {
	out, err := t.run("-V")
	if err != nil {
		return "", false
	}
	return parseVersion(out), true
}

func (t *Tmux) sessionExists(name string) bool {
	cmd := exec.Command(t.bin, "has-session", "-t", name)
	return cmd.Run() == nil
}

// parseVersion extracts the version from "tmux 3.4" style output.
func parseVersion(out string) string {
	out = strings.TrimSpace(out)
	if rest, ok := strings.CutPrefix(out, "tmux "); ok {
		return rest
	}
	return out
}
