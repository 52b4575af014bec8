//go:build !darwin && !linux

package execsvc

import (
	"fmt"
	"os/exec"
	"time"

	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

func configureProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// runPty is unsupported on this platform; callers fall back to pipes.
func runPty(cmd *exec.Cmd, timeout time.Duration) (*types.ExecResult, error) {
	return nil, fmt.Errorf("pty execution is not supported on this platform")
}
