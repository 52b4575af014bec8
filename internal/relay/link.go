package relay

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
)

const (
	// reconnectBase is the first reconnect delay; each consecutive failure
	// doubles it up to reconnectMax.
	reconnectBase = 2 * time.Second
	reconnectMax  = 60 * time.Second

	// maxReconnectAttempts is how many consecutive failures are tolerated
	// before the circuit breaker trips.
	maxReconnectAttempts = 5

	// circuitCooldown is how long the breaker suspends reconnection.
	circuitCooldown = 120 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// Events carries the typed callbacks a Link emits. Unset callbacks are
// skipped. Callbacks run on the link's read loop; handlers that block must
// hand off to their own goroutine.
type Events struct {
	// Connected fires after the register handshake has been sent.
	Connected func()
	// Disconnected fires on any unexpected close (not caused by Destroy).
	Disconnected func(code int, reason string)
	// Keys fires for keystroke messages addressed to this link's session.
	Keys func(text string)
	// Resize fires when both cols and rows parsed as integers.
	Resize func(cols, rows int)
	// CreateSession fires with the requested new session name.
	CreateSession func(name string)
	// KillSession fires for a kill addressed to this session, immediately
	// before the link destroys itself.
	KillSession func()
	// LimitExceeded fires for the terminal, non-retryable relay error. The
	// meta map is passed through opaquely.
	LimitExceeded func(meta map[string]string)
	// Request receives control-channel requests (exec, llm_chat, send_keys,
	// list_sessions). Left unset on per-session links.
	Request func(msg *wire.Message)
}

// Config describes one relay link.
type Config struct {
	// URL is the relay websocket endpoint.
	URL string
	// SessionID is the routing key this link registers under.
	SessionID string
	// Label is the human-readable session label sent in the handshake.
	Label string
	// MachineID identifies this agent machine.
	MachineID string
	// AuthToken is included in the handshake when present.
	AuthToken string
	// Events receives inbound traffic and lifecycle notifications.
	Events Events
}

// State is a snapshot of a link's connection state.
type State struct {
	Connected         bool
	ReconnectAttempts uint
	CircuitOpen       bool
	CircuitResetAt    time.Time
	Destroyed         bool
}

// Link owns a single websocket connection to the relay for one session (or
// for the control channel), its registration handshake, and a
// circuit-breaker-gated reconnection state machine. All state is owned
// exclusively by the link; the orchestrator holds it only as an opaque
// handle.
type Link struct {
	cfg Config

	mu             sync.Mutex
	conn           *websocket.Conn
	connected      bool
	connecting     bool
	destroyed      bool
	attempts       uint
	circuitOpen    bool
	circuitResetAt time.Time
	timer          *time.Timer

	// writeMu serializes frames on the socket.
	writeMu sync.Mutex

	// Seams for tests; production uses the defaults from NewLink.
	dial      func(url string) (*websocket.Conn, error)
	afterFunc func(d time.Duration, f func()) *time.Timer
	now       func() time.Time
	jitter    func() float64
}

// NewLink creates a link. It does not connect; call Connect.
func NewLink(cfg Config) *Link {
	return &Link{
		cfg:       cfg,
		dial:      defaultDial,
		afterFunc: time.AfterFunc,
		now:       time.Now,
		jitter:    rand.Float64,
	}
}

func defaultDial(rawURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(rawURL, nil)
	return conn, err
}

// Connect starts the connection attempt. It is a no-op while the link is
// already connecting or connected, and after Destroy.
func (l *Link) Connect() {
	l.mu.Lock()
	if l.destroyed || l.connecting || l.connected {
		l.mu.Unlock()
		return
	}
	l.connecting = true
	l.mu.Unlock()

	go l.connectOnce()
}

// connectOnce performs one dial. On success it sends the register
// handshake and starts the read loop; on failure it feeds the reconnection
// state machine.
func (l *Link) connectOnce() {
	conn, err := l.dial(l.cfg.URL)

	l.mu.Lock()
	l.connecting = false
	if l.destroyed {
		l.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		l.mu.Unlock()
		if logger.Every("relay-dial:"+l.cfg.SessionID, 30*time.Second) {
			logger.Warnf("[%s] relay dial failed: %v", l.cfg.SessionID, err)
		}
		l.scheduleReconnect()
		return
	}

	// A successful open resets the attempt counter and the circuit flag,
	// regardless of prior state.
	l.conn = conn
	l.connected = true
	l.attempts = 0
	l.circuitOpen = false
	l.stopTimerLocked()
	l.mu.Unlock()

	logger.Debugf("[%s] relay connected", l.cfg.SessionID)

	// No application traffic precedes registration.
	reg := wire.Register(l.cfg.SessionID, l.cfg.Label, l.cfg.MachineID, l.cfg.AuthToken)
	if !l.Send(reg) {
		logger.Warnf("[%s] failed to send register handshake", l.cfg.SessionID)
	}

	if l.cfg.Events.Connected != nil {
		l.cfg.Events.Connected()
	}

	go l.readLoop(conn)
}

func (l *Link) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code, reason := closeInfo(err)
			l.handleClose(code, reason)
			return
		}
		msg, derr := wire.Decode(data)
		if derr != nil {
			// Malformed frames are dropped, never fatal.
			logger.Warnf("[%s] dropping malformed relay message: %v", l.cfg.SessionID, derr)
			continue
		}
		l.dispatch(msg)
	}
}

// dispatch routes one inbound message to the configured callbacks.
func (l *Link) dispatch(msg *wire.Message) {
	ev := l.cfg.Events
	switch msg.Type {
	case wire.TypeKeys:
		// Reject anything not addressed to this session; this guards
		// against a shared or misrouted connection.
		if msg.Session != l.cfg.SessionID {
			logger.Debugf("[%s] dropping keys addressed to %q", l.cfg.SessionID, msg.Session)
			return
		}
		if ev.Keys != nil {
			ev.Keys(msg.Payload)
		}

	case wire.TypeResize:
		cols, okCols := msg.MetaInt(wire.MetaCols)
		rows, okRows := msg.MetaInt(wire.MetaRows)
		if !okCols || !okRows {
			logger.Debugf("[%s] dropping resize with non-numeric dimensions", l.cfg.SessionID)
			return
		}
		if ev.Resize != nil {
			ev.Resize(cols, rows)
		}

	case wire.TypeCreateSession:
		name := msg.MetaString(wire.MetaSessionName)
		if name == "" {
			return
		}
		if ev.CreateSession != nil {
			ev.CreateSession(name)
		}

	case wire.TypeKillSession:
		if msg.Session != l.cfg.SessionID {
			return
		}
		if ev.KillSession != nil {
			ev.KillSession()
		}
		l.Destroy()

	case wire.TypeError:
		if msg.MetaString(wire.MetaCode) == wire.ErrorCodeLimitExceeded {
			// Terminal condition: disable reconnection and surface to the
			// process instead of retrying.
			meta := msg.Meta
			l.Destroy()
			if ev.LimitExceeded != nil {
				ev.LimitExceeded(meta)
			}
			return
		}
		logger.Warnf("[%s] relay error: %s (code=%q)",
			l.cfg.SessionID, msg.Payload, msg.MetaString(wire.MetaCode))

	case wire.TypeExec, wire.TypeLlmChat, wire.TypeSendKeys, wire.TypeListSessions:
		if ev.Request != nil {
			ev.Request(msg)
		} else {
			logger.Debugf("[%s] ignoring control request %q on session link", l.cfg.SessionID, msg.Type)
		}

	default:
		logger.Tracef("[%s] ignoring relay message type %q", l.cfg.SessionID, msg.Type)
	}
}

// handleClose reacts to an unexpected socket close.
func (l *Link) handleClose(code int, reason string) {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
	l.connected = false
	l.mu.Unlock()

	logger.Debugf("[%s] relay disconnected: code=%d reason=%q", l.cfg.SessionID, code, reason)
	if l.cfg.Events.Disconnected != nil {
		l.cfg.Events.Disconnected(code, reason)
	}
	l.scheduleReconnect()
}

// scheduleReconnect advances the reconnection state machine by one step.
func (l *Link) scheduleReconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.destroyed || l.circuitOpen {
		return
	}

	l.attempts++
	if l.attempts > maxReconnectAttempts {
		l.attempts = 0
		l.circuitOpen = true
		l.circuitResetAt = l.now().Add(circuitCooldown)
		logger.Warnf("[%s] reconnect circuit open; pausing attempts for %s",
			l.cfg.SessionID, circuitCooldown)
		l.armTimerLocked(circuitCooldown, l.circuitCheck)
		return
	}

	delay := backoffDelay(l.attempts, l.jitter())
	if logger.Every("relay-reconnect:"+l.cfg.SessionID, 30*time.Second) {
		logger.Infof("[%s] reconnecting in %s (attempt %d)", l.cfg.SessionID, delay, l.attempts)
	}
	l.armTimerLocked(delay, l.reconnectAttempt)
}

// reconnectAttempt fires when a scheduled reconnect delay elapses.
func (l *Link) reconnectAttempt() {
	l.mu.Lock()
	if l.destroyed || l.connected || l.connecting {
		l.mu.Unlock()
		return
	}
	l.connecting = true
	l.mu.Unlock()

	l.connectOnce()
}

// circuitCheck fires when the breaker cooldown elapses. If the timer fired
// early (drift), it re-arms for the remaining interval.
func (l *Link) circuitCheck() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	now := l.now()
	if now.Before(l.circuitResetAt) {
		l.armTimerLocked(l.circuitResetAt.Sub(now), l.circuitCheck)
		l.mu.Unlock()
		return
	}

	// Resume with a fresh attempt counter.
	l.circuitOpen = false
	l.attempts = 1
	delay := backoffDelay(l.attempts, l.jitter())
	logger.Infof("[%s] circuit closed; reconnecting in %s", l.cfg.SessionID, delay)
	l.armTimerLocked(delay, l.reconnectAttempt)
	l.mu.Unlock()
}

// backoffDelay computes the jittered exponential delay for the given
// attempt. jitter must be in [0, 1); the result lies in
// [base*2^(attempt-1), base*2^(attempt-1)*1.5), capped at reconnectMax*1.5.
func backoffDelay(attempt uint, jitter float64) time.Duration {
	exp := reconnectBase << (attempt - 1)
	if exp > reconnectMax {
		exp = reconnectMax
	}
	return exp + time.Duration(jitter*0.5*float64(exp))
}

func (l *Link) armTimerLocked(d time.Duration, f func()) {
	l.stopTimerLocked()
	l.timer = l.afterFunc(d, f)
}

func (l *Link) stopTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Send writes one message to the relay. It returns false without error when
// the socket is not open; it never blocks beyond the write deadline.
func (l *Link) Send(msg *wire.Message) bool {
	l.mu.Lock()
	conn := l.conn
	open := l.connected && !l.destroyed
	l.mu.Unlock()
	if !open || conn == nil {
		return false
	}

	data, err := msg.Encode()
	if err != nil {
		logger.Errorf("[%s] failed to encode %s message: %v", l.cfg.SessionID, msg.Type, err)
		return false
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Debugf("[%s] relay write failed: %v", l.cfg.SessionID, err)
		return false
	}
	return true
}

// SendScreen transmits one screen frame for this link's session.
func (l *Link) SendScreen(payload string, compressed bool) bool {
	typ := wire.TypeScreen
	if compressed {
		typ = wire.TypeScreenGz
	}
	return l.Send(&wire.Message{
		Type:    typ,
		Session: l.cfg.SessionID,
		Payload: payload,
	})
}

// Destroy terminates the socket, cancels all pending timers and
// permanently disables reconnection. Safe to call multiple times.
func (l *Link) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	l.destroyed = true
	l.connected = false
	l.connecting = false
	l.circuitOpen = false
	l.stopTimerLocked()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
	logger.Debugf("[%s] link destroyed", l.cfg.SessionID)
}

// Connected reports whether the link currently holds an open socket.
func (l *Link) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// SessionID returns the routing key this link registers under.
func (l *Link) SessionID() string {
	return l.cfg.SessionID
}

// State returns a snapshot of the link's connection state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Connected:         l.connected,
		ReconnectAttempts: l.attempts,
		CircuitOpen:       l.circuitOpen,
		CircuitResetAt:    l.circuitResetAt,
		Destroyed:         l.destroyed,
	}
}

func closeInfo(err error) (int, string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	return -1, err.Error()
}
