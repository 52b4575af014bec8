package agent

import (
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sessioncast/sessioncast-cli/internal/config"
)

// fakeCapability implements tmux.Capability for orchestrator tests.
type fakeCapability struct {
	mu       sync.Mutex
	sessions []string
	listErr  error
	created  []string
	killed   []string
}

func (f *fakeCapability) ListSessions() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.sessions...), nil
}

func (f *fakeCapability) CaptureSnapshot(name string) ([]byte, error) { return nil, nil }
func (f *fakeCapability) SendKeys(name, text string) error            { return nil }
func (f *fakeCapability) SendSpecialKey(name, key string) error       { return nil }
func (f *fakeCapability) Resize(name string, cols, rows int) error    { return nil }

func (f *fakeCapability) Create(name, cwd string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	f.sessions = append(f.sessions, name)
	return nil
}

func (f *fakeCapability) Kill(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, name)
	return nil
}

func (f *fakeCapability) IsAvailable() bool       { return true }
func (f *fakeCapability) Version() (string, bool) { return "3.4", true }

type fakePair struct {
	name     string
	started  int
	stoppedN int
}

func (p *fakePair) start() { p.started++ }
func (p *fakePair) stop()  { p.stoppedN++ }

func newTestOrchestrator(t *testing.T, cap *fakeCapability) (*Orchestrator, map[string]*fakePair) {
	t.Helper()
	o, err := New(&config.Config{
		MachineID: "m1",
		RelayURL:  "ws://127.0.0.1:1/v1/agent",
	}, cap)
	require.NoError(t, err)

	pairs := make(map[string]*fakePair)
	o.newPair = func(name string) sessionPair {
		p := &fakePair{name: name}
		pairs[name] = p
		return p
	}
	return o, pairs
}

func TestScanTracksNewSessions(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev", "build"}}
	o, pairs := newTestOrchestrator(t, cap)

	o.scan()
	got := o.TrackedSessions()
	sort.Strings(got)
	require.Equal(t, []string{"build", "dev"}, got)
	require.Equal(t, 1, pairs["dev"].started)
	require.Equal(t, 1, pairs["build"].started)
}

func TestScanStopsVanishedSessionsOnly(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev", "build"}}
	o, pairs := newTestOrchestrator(t, cap)
	o.scan()

	cap.mu.Lock()
	cap.sessions = []string{"dev"}
	cap.mu.Unlock()
	o.scan()

	require.Equal(t, []string{"dev"}, o.TrackedSessions())
	require.Equal(t, 1, pairs["build"].stoppedN, "vanished pair stopped exactly once")
	require.Zero(t, pairs["dev"].stoppedN, "surviving pair untouched")
	require.Equal(t, 1, pairs["dev"].started)
}

func TestScanFailureKeepsTracking(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev"}}
	o, pairs := newTestOrchestrator(t, cap)
	o.scan()

	cap.mu.Lock()
	cap.listErr = fmt.Errorf("tmux went away")
	cap.mu.Unlock()
	o.scan()

	require.Equal(t, []string{"dev"}, o.TrackedSessions())
	require.Zero(t, pairs["dev"].stoppedN)
}

func TestHandleCreateSessionSanitizesAndScans(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{}
	o, _ := newTestOrchestrator(t, cap)

	o.handleCreateSession("my session!")
	require.Equal(t, []string{"my_session_"}, cap.created)

	// The out-of-cycle scan request is pending.
	select {
	case <-o.rescan:
	default:
		t.Fatal("expected a rescan request")
	}
}

func TestHandleCreateSessionRejectsInvalidNames(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{}
	o, _ := newTestOrchestrator(t, cap)

	o.handleCreateSession("!!!")
	o.handleCreateSession("")
	require.Empty(t, cap.created, "no session created for all-invalid input")
}

func TestHandleCreateSessionIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev"}}
	o, _ := newTestOrchestrator(t, cap)
	o.scan()

	o.handleCreateSession("dev")
	require.Empty(t, cap.created)
}

func TestHandleRemoteKill(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev"}}
	o, pairs := newTestOrchestrator(t, cap)
	o.scan()

	o.handleRemoteKill("dev")
	require.Equal(t, []string{"dev"}, cap.killed)
	require.Empty(t, o.TrackedSessions())
	require.Equal(t, 1, pairs["dev"].stoppedN)
}

func TestStopClearsAllPairs(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{sessions: []string{"dev", "build"}}
	o, pairs := newTestOrchestrator(t, cap)
	o.scan()

	o.Stop()
	o.Stop() // idempotent

	require.Empty(t, o.TrackedSessions())
	require.Equal(t, 1, pairs["dev"].stoppedN)
	require.Equal(t, 1, pairs["build"].stoppedN)
}

func TestReportLimitDeliversOnce(t *testing.T) {
	t.Parallel()

	cap := &fakeCapability{}
	o, _ := newTestOrchestrator(t, cap)

	meta := map[string]string{"resource": "sessions", "current": "11", "max": "10"}
	o.reportLimit(meta)
	o.reportLimit(map[string]string{"resource": "other"})

	select {
	case got := <-o.Fatal():
		require.Equal(t, meta, got)
	case <-time.After(time.Second):
		t.Fatal("expected a fatal notice")
	}
}

func TestSanitizeSessionName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "my_session_", SanitizeSessionName("my session!"))
	require.Equal(t, "dev-2_feature", SanitizeSessionName("dev-2_feature"))
	require.Equal(t, "", SanitizeSessionName("!!!"))
	require.Equal(t, "", SanitizeSessionName(""))
	require.Equal(t, "a_b", SanitizeSessionName("a b"))
}

func TestFormatLimitNoticePassesMetaThrough(t *testing.T) {
	t.Parallel()

	notice := FormatLimitNotice(map[string]string{
		"resource": "sessions",
		"current":  "11",
		"max":      "10",
		"message":  "Plan limit reached.",
	})
	require.Contains(t, notice, "sessions")
	require.Contains(t, notice, "11 of 10")
	require.Contains(t, notice, "Plan limit reached.")
}
