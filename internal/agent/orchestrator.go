package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sessioncast/sessioncast-cli/internal/capture"
	"github.com/sessioncast/sessioncast-cli/internal/config"
	"github.com/sessioncast/sessioncast-cli/internal/control"
	"github.com/sessioncast/sessioncast-cli/internal/execsvc"
	"github.com/sessioncast/sessioncast-cli/internal/llm"
	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/internal/relay"
	"github.com/sessioncast/sessioncast-cli/internal/tmux"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

// scanInterval is how often the orchestrator reconciles tracked pairs with
// the live local session set. The timer is not re-armed until the previous
// scan's synchronous work completes.
const scanInterval = 5 * time.Second

// sessionPair is one tracked {relay link, capture scheduler} unit. Each
// pair's lifecycle is independent of every other's.
type sessionPair interface {
	start()
	stop()
}

type realPair struct {
	link  *relay.Link
	sched *capture.Scheduler
}

func (p *realPair) start() {
	p.link.Connect()
	p.sched.Start()
}

func (p *realPair) stop() {
	p.sched.Stop()
	p.link.Destroy()
}

// Orchestrator polls the capability layer for live local sessions and keeps
// one relay link + capture scheduler pair per session, creating and
// destroying pairs as sessions appear and disappear. It also owns the
// control channel client when one is configured.
type Orchestrator struct {
	cfg     *config.Config
	cap     tmux.Capability
	control *control.Client

	mu    sync.Mutex
	pairs map[string]sessionPair

	stop     chan struct{}
	stopOnce sync.Once
	rescan   chan struct{}
	fatal    chan map[string]string

	// newPair builds a pair for a session name; replaced in tests.
	newPair func(name string) sessionPair
}

// New assembles the orchestrator and, when configured, the control channel
// with its exec and LLM collaborators.
func New(cfg *config.Config, capability tmux.Capability) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:    cfg,
		cap:    capability,
		pairs:  make(map[string]sessionPair),
		stop:   make(chan struct{}),
		rescan: make(chan struct{}, 1),
		fatal:  make(chan map[string]string, 1),
	}
	o.newPair = o.buildPair

	if cfg.Control != nil {
		ctl, err := buildControl(cfg, capability, o.reportLimit)
		if err != nil {
			return nil, err
		}
		o.control = ctl
	}
	return o, nil
}

func buildControl(cfg *config.Config, capability tmux.Capability, onLimit func(map[string]string)) (*control.Client, error) {
	cc := cfg.Control

	var executor control.Executor
	if cc.Exec != nil {
		def, max := cc.Exec.ExecTimeouts()
		executor = execsvc.New(execsvc.Config{
			AllowedCommands: cc.Exec.AllowedCommands,
			DefaultTimeout:  def,
			MaxTimeout:      max,
			Pty:             cc.Exec.Pty,
		}, capability)
	}

	var chat control.ChatProxy
	if cc.LLM != nil {
		client, err := llm.New(llm.Config{
			BaseURL: cc.LLM.BaseURL,
			APIKey:  cc.LLM.APIKey,
			Model:   cc.LLM.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("invalid llm config: %w", err)
		}
		chat = client
	}

	return control.NewClient(control.Config{
		URL:             cfg.RelayURL,
		AgentID:         cc.AgentID,
		MachineID:       cfg.MachineID,
		AuthToken:       cfg.AuthToken,
		Capability:      capability,
		Exec:            executor,
		LLM:             chat,
		OnLimitExceeded: onLimit,
	}), nil
}

// Start performs an immediate scan and then keeps scanning until Stop.
func (o *Orchestrator) Start() {
	if o.control != nil {
		o.control.Start()
	}
	o.scan()
	go o.loop()
}

func (o *Orchestrator) loop() {
	for {
		select {
		case <-o.stop:
			return
		case <-o.rescan:
			o.scan()
		case <-time.After(scanInterval):
			o.scan()
		}
	}
}

// scan reconciles tracked pairs against the current local session set.
// Tracking uses set membership only; no ordering across sessions.
func (o *Orchestrator) scan() {
	names, err := o.cap.ListSessions()
	if err != nil {
		if logger.Every("orchestrator-scan", 30*time.Second) {
			logger.Warnf("session scan failed: %v", err)
		}
		return
	}

	current := make(map[string]struct{}, len(names))
	for _, name := range names {
		current[name] = struct{}{}
	}

	var started, stopped []sessionPair
	o.mu.Lock()
	for name := range current {
		if _, tracked := o.pairs[name]; tracked {
			continue
		}
		logger.Infof("tracking new session %q", name)
		p := o.newPair(name)
		o.pairs[name] = p
		started = append(started, p)
	}
	for name, p := range o.pairs {
		if _, alive := current[name]; alive {
			continue
		}
		logger.Infof("session %q disappeared; stopping its pair", name)
		delete(o.pairs, name)
		stopped = append(stopped, p)
	}
	o.mu.Unlock()

	for _, p := range stopped {
		p.stop()
	}
	for _, p := range started {
		p.start()
	}
}

// buildPair wires a relay link and capture scheduler for one session.
func (o *Orchestrator) buildPair(name string) sessionPair {
	sessionID := wire.SessionID(o.cfg.MachineID, name)
	link := relay.NewLink(relay.Config{
		URL:       o.cfg.RelayURL,
		SessionID: sessionID,
		Label:     name,
		MachineID: o.cfg.MachineID,
		AuthToken: o.cfg.AuthToken,
		Events: relay.Events{
			Keys: func(text string) {
				if err := o.cap.SendKeys(name, text); err != nil {
					logger.Warnf("[%s] send-keys failed: %v", sessionID, err)
				}
			},
			Resize: func(cols, rows int) {
				if err := o.cap.Resize(name, cols, rows); err != nil {
					logger.Warnf("[%s] resize to %dx%d failed: %v", sessionID, cols, rows, err)
				}
			},
			CreateSession: func(requested string) {
				go o.handleCreateSession(requested)
			},
			KillSession: func() {
				go o.handleRemoteKill(name)
			},
			LimitExceeded: o.reportLimit,
		},
	})
	sched := capture.NewScheduler(name, o.cap, link)
	return &realPair{link: link, sched: sched}
}

// handleCreateSession services a remote create-session request.
func (o *Orchestrator) handleCreateSession(requested string) {
	name := SanitizeSessionName(requested)
	if name == "" {
		logger.Warnf("rejecting create-session request with invalid name %q", requested)
		return
	}

	o.mu.Lock()
	_, exists := o.pairs[name]
	o.mu.Unlock()
	if exists {
		logger.Debugf("create-session %q ignored: already tracked", name)
		return
	}

	if err := o.cap.Create(name, ""); err != nil {
		logger.Warnf("failed to create session %q: %v", name, err)
		return
	}
	logger.Infof("created session %q on remote request", name)
	o.requestScan()
}

// handleRemoteKill tears down the local session behind a remote kill. The
// link has already destroyed itself by the time this fires.
func (o *Orchestrator) handleRemoteKill(name string) {
	o.mu.Lock()
	p, tracked := o.pairs[name]
	delete(o.pairs, name)
	o.mu.Unlock()

	if tracked {
		p.stop()
	}
	if err := o.cap.Kill(name); err != nil {
		logger.Warnf("failed to kill session %q: %v", name, err)
	} else {
		logger.Infof("session %q killed on remote request", name)
	}
}

// requestScan triggers an out-of-cycle scan without waiting for the tick.
func (o *Orchestrator) requestScan() {
	select {
	case o.rescan <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) reportLimit(meta map[string]string) {
	select {
	case o.fatal <- meta:
	default:
	}
}

// Fatal delivers the meta of a terminal limit-exceeded relay error. The
// process is expected to print a notice and exit non-zero.
func (o *Orchestrator) Fatal() <-chan map[string]string {
	return o.fatal
}

// Stop halts scanning, stops the control channel and every tracked pair,
// and clears the tracking map. Idempotent.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stop)
		if o.control != nil {
			o.control.Stop()
		}

		o.mu.Lock()
		pairs := o.pairs
		o.pairs = make(map[string]sessionPair)
		o.mu.Unlock()

		for _, p := range pairs {
			p.stop()
		}
		logger.Infof("orchestrator stopped")
	})
}

// TrackedSessions returns the currently tracked session names.
func (o *Orchestrator) TrackedSessions() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := make([]string, 0, len(o.pairs))
	for name := range o.pairs {
		names = append(names, name)
	}
	return names
}

// SanitizeSessionName reduces a requested session name to the characters
// tmux targeting can handle: alphanumerics, '-' and '_'. Invalid runes are
// replaced with '_'; a request with no valid runes at all is rejected by
// returning "".
func SanitizeSessionName(name string) string {
	var b strings.Builder
	valid := 0
	for _, r := range name {
		if isSessionNameRune(r) {
			b.WriteRune(r)
			valid++
		} else {
			b.WriteRune('_')
		}
	}
	if valid == 0 {
		return ""
	}
	return b.String()
}

func isSessionNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
