package capture

import (
	"bytes"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/sessioncast/sessioncast-cli/internal/tmux"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

const (
	// activeInterval is the capture cadence while the session changed
	// within the activity window.
	activeInterval = 50 * time.Millisecond
	// idleInterval is the cadence for sessions with no recent changes.
	idleInterval = 200 * time.Millisecond
	// disconnectedWait is how long to wait before re-checking a link
	// without a live transport (also used after a failed capture).
	disconnectedWait = 500 * time.Millisecond
	// activityWindow decides whether a session counts as active.
	activityWindow = 2 * time.Second
	// forceResendInterval bounds how stale a viewer's screen can get: an
	// unchanged screen is resent this often to recover viewers that
	// joined mid-stream or dropped a frame.
	forceResendInterval = 10 * time.Second
	// startupJitterMax spreads first ticks out so simultaneous session
	// discovery does not burst captures.
	startupJitterMax = 5 * time.Second
)

// Snapshotter is the capability subset the scheduler consumes.
type Snapshotter interface {
	CaptureSnapshot(name string) ([]byte, error)
}

// ScreenSender is the link subset the scheduler transmits through.
type ScreenSender interface {
	Connected() bool
	SendScreen(payload string, compressed bool) bool
}

// Scheduler drives periodic screen snapshots for exactly one session
// through exactly one relay link, adapting its cadence to activity. All
// capture state is owned by the scheduler and never shared across sessions.
type Scheduler struct {
	session string
	snap    Snapshotter
	sender  ScreenSender

	// Capture state, touched only by the run loop (and by tick in tests).
	lastContent     []byte
	lastChangeAt    time.Time
	lastForceSendAt time.Time

	stop     chan struct{}
	stopOnce sync.Once
	started  bool
	mu       sync.Mutex

	jitter func() float64
}

// NewScheduler creates a scheduler bound to one session and one link.
func NewScheduler(session string, snap Snapshotter, sender ScreenSender) *Scheduler {
	return &Scheduler{
		session: session,
		snap:    snap,
		sender:  sender,
		stop:    make(chan struct{}),
		jitter:  rand.Float64,
	}
}

// Start begins the unbounded capture cycle. Repeated calls are no-ops.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Stop halts the capture cycle idempotently.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) run() {
	// Startup jitter avoids synchronized capture bursts when many
	// sessions are discovered at once.
	delay := time.Duration(s.jitter() * float64(startupJitterMax))
	for {
		select {
		case <-s.stop:
			return
		case <-time.After(delay):
		}
		delay = s.tick(time.Now())
	}
}

// tick runs one capture cycle and returns the delay until the next one.
func (s *Scheduler) tick(now time.Time) time.Duration {
	// Capture never proceeds without a live transport.
	if !s.sender.Connected() {
		return disconnectedWait
	}

	content, err := s.snap.CaptureSnapshot(s.session)
	if err != nil {
		if !errors.Is(err, tmux.ErrSessionUnavailable) &&
			logger.Every("capture:"+s.session, 30*time.Second) {
			logger.Warnf("[%s] capture failed: %v", s.session, err)
		}
		return disconnectedWait
	}

	changed := !bytes.Equal(content, s.lastContent)
	if changed {
		s.lastContent = content
		s.lastChangeAt = now
	}

	force := now.Sub(s.lastForceSendAt) > forceResendInterval
	if changed || force {
		payload, compressed := EncodeFrame(content)
		if s.sender.SendScreen(payload, compressed) {
			s.lastForceSendAt = now
		}
	}

	if now.Sub(s.lastChangeAt) <= activityWindow {
		return activeInterval
	}
	return idleInterval
}
