package execsvc

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

const (
	defaultTimeout = 30 * time.Second
	maxTimeout     = 10 * time.Minute
)

// Config controls the command-execution service.
type Config struct {
	// AllowedCommands restricts which commands may run. Each entry is
	// tried first as a literal prefix of the command line and then as a
	// regular expression. An empty list allows everything.
	AllowedCommands []string
	// DefaultTimeout applies when a request carries no timeout.
	DefaultTimeout time.Duration
	// MaxTimeout caps any requested timeout.
	MaxTimeout time.Duration
	// Shell is the shell used to run command lines (default /bin/sh).
	Shell string
	// Pty runs commands under a pseudo-terminal, merging output. Commands
	// that probe for a TTY behave as if run interactively.
	Pty bool
}

// KeySender is the capability subset used for session-delegated execution.
type KeySender interface {
	SendKeys(name, text string) error
	SendSpecialKey(name, key string) error
}

// Service executes remote commands with a bounded lifetime. The timeout is
// the one place a collaborator operation is itself time-bounded: on expiry
// the child process group is forcibly terminated and a timeout result is
// returned so the surrounding dispatch loop never hangs.
type Service struct {
	cfg  Config
	keys KeySender
}

// New creates the execution service. keys may be nil when session
// delegation is unavailable.
func New(cfg Config, keys KeySender) *Service {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaultTimeout
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = maxTimeout
	}
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	return &Service{cfg: cfg, keys: keys}
}

// Execute runs one exec request and returns its result. Timeouts produce a
// result, not an error; errors are reserved for rejected or unstartable
// commands.
func (s *Service) Execute(req *wire.ExecRequest) (*types.ExecResult, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}
	if !commandAllowed(s.cfg.AllowedCommands, command) {
		return nil, fmt.Errorf("command not allowed: %s", command)
	}

	if req.SessionID != "" {
		return s.delegate(req.SessionID, command)
	}

	timeout := s.cfg.DefaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Millisecond
	}
	if timeout > s.cfg.MaxTimeout {
		timeout = s.cfg.MaxTimeout
	}

	logger.Debugf("exec: %s (timeout=%s pty=%v)", command, timeout, s.cfg.Pty)
	return s.runLocal(req, command, timeout)
}

// delegate types the command into a local session instead of spawning a
// subprocess. The acknowledgement is fire-and-forget: there is no exit
// status to report.
func (s *Service) delegate(session, command string) (*types.ExecResult, error) {
	if s.keys == nil {
		return nil, fmt.Errorf("session delegation is not available")
	}
	if err := s.keys.SendKeys(session, command); err != nil {
		return nil, fmt.Errorf("failed to send command to session %s: %w", session, err)
	}
	if err := s.keys.SendSpecialKey(session, "enter"); err != nil {
		return nil, fmt.Errorf("failed to submit command in session %s: %w", session, err)
	}
	return &types.ExecResult{
		ExitCode: 0,
		Stdout:   fmt.Sprintf("command dispatched to session %s", session),
	}, nil
}

func (s *Service) runLocal(req *wire.ExecRequest, command string, timeout time.Duration) (*types.ExecResult, error) {
	if s.cfg.Pty {
		cmd := s.buildCmd(command, req.Cwd)
		res, err := runPty(cmd, timeout)
		if err == nil {
			return res, nil
		}
		logger.Warnf("pty exec failed, falling back to pipes: %v", err)
	}
	return runPipes(s.buildCmd(command, req.Cwd), timeout)
}

func (s *Service) buildCmd(command, cwd string) *exec.Cmd {
	cmd := exec.Command(s.cfg.Shell, "-c", command)
	if cwd != "" {
		cmd.Dir = cwd
	}
	return cmd
}

// runPipes executes cmd with separate stdout/stderr capture and a hard
// timeout.
func runPipes(cmd *exec.Cmd, timeout time.Duration) (*types.ExecResult, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return &types.ExecResult{
			ExitCode:   exitCode(err),
			Stdout:     stdout.String(),
			Stderr:     stderr.String(),
			DurationMs: time.Since(start).Milliseconds(),
		}, nil

	case <-time.After(timeout):
		killProcessGroup(cmd)
		<-done
		return &types.ExecResult{
			ExitCode:   -1,
			Stdout:     stdout.String(),
			Stderr:     strings.TrimSpace(stderr.String() + "\ncommand timed out after " + timeout.String()),
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}
}

// commandAllowed reports whether command matches any configured pattern.
// Each pattern is tried as a literal prefix first and then as a regular
// expression; patterns that fail to compile only match as prefixes.
func commandAllowed(patterns []string, command string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if strings.HasPrefix(command, pattern) {
			return true
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// lockedBuffer is a mutex-guarded buffer for pty output, which is written
// by the copy goroutine while timeout handling may read it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
