package tmux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	require.Equal(t, "3.4", parseVersion("tmux 3.4\n"))
	require.Equal(t, "3.3a", parseVersion("tmux 3.3a"))
	require.Equal(t, "next-3.5", parseVersion("tmux next-3.5"))
	require.Equal(t, "weird output", parseVersion("weird output\n"))
}

func TestSpecialKeysMapping(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Enter", specialKeys["enter"])
	require.Equal(t, "C-c", specialKeys["ctrl-c"])
	require.Equal(t, "BSpace", specialKeys["backspace"])
	_, ok := specialKeys["ctrl-alt-del"]
	require.False(t, ok)
}

func TestSendSpecialKeyRejectsUnknownKey(t *testing.T) {
	t.Parallel()

	// Rejection happens before any tmux invocation, so this is safe even
	// when tmux is not installed.
	tm := New("/nonexistent/tmux")
	err := tm.SendSpecialKey("dev", "hyperkey")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown special key")
}

func TestSendSpecialKeyIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	tm := New("/nonexistent/tmux")
	// "Enter" maps fine; the failure here is the missing binary, not the key.
	err := tm.SendSpecialKey("dev", "Enter")
	require.Error(t, err)
	require.NotContains(t, err.Error(), "unknown special key")
}

func TestResizeRejectsInvalidDimensions(t *testing.T) {
	t.Parallel()

	tm := New("/nonexistent/tmux")
	require.Error(t, tm.Resize("dev", 0, 40))
	require.Error(t, tm.Resize("dev", 80, -1))
}

func TestIsAvailableMissingBinary(t *testing.T) {
	t.Parallel()

	require.False(t, New("/nonexistent/tmux").IsAvailable())
}
