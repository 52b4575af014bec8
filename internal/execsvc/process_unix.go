//go:build darwin || linux

package execsvc

import (
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

// configureProcessGroup starts cmd in a new process group so
// killProcessGroup can terminate the entire child process tree.
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup forcibly terminates the cmd process group, falling back
// to a direct kill of the parent process.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid > 0 {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
	_ = cmd.Process.Kill()
}

// runPty executes cmd under a pseudo-terminal with merged output. The child
// becomes a session leader via pty.Start, so group kill still reaches the
// whole tree on timeout.
func runPty(cmd *exec.Cmd, timeout time.Duration) (*types.ExecResult, error) {
	start := time.Now()
	f, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start pty: %w", err)
	}
	defer f.Close()

	var out lockedBuffer
	readDone := make(chan struct{})
	go func() {
		// io.Copy ends with EIO on Linux once the child side closes.
		_, _ = io.Copy(&out, f)
		close(readDone)
	}()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case werr := <-done:
		waitOrTimeout(readDone, time.Second)
		return &types.ExecResult{
			ExitCode:   exitCode(werr),
			Stdout:     out.String(),
			DurationMs: time.Since(start).Milliseconds(),
		}, nil

	case <-time.After(timeout):
		killProcessGroup(cmd)
		<-done
		waitOrTimeout(readDone, time.Second)
		return &types.ExecResult{
			ExitCode:   -1,
			Stdout:     out.String(),
			Stderr:     strings.TrimSpace("command timed out after " + timeout.String()),
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}
}

func waitOrTimeout(ch <-chan struct{}, d time.Duration) {
	select {
	case <-ch:
	case <-time.After(d):
	}
}
