package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Message types exchanged with the relay. The enumeration is open: unknown
// types are logged and dropped by receivers, never treated as fatal.
const (
	TypeRegister      = "register"
	TypeKeys          = "keys"
	TypeResize        = "resize"
	TypeCreateSession = "createSession"
	TypeKillSession   = "killSession"
	TypeScreen        = "screen"
	TypeScreenGz      = "screenGz"
	TypeError         = "error"

	// Control-channel request/response types.
	TypeExec         = "exec"
	TypeLlmChat      = "llm_chat"
	TypeSendKeys     = "send_keys"
	TypeListSessions = "list_sessions"
	TypeAPIResponse  = "api_response"
)

// RoleHost identifies the agent side of a relay connection during the
// register handshake.
const RoleHost = "host"

// Well-known meta keys.
const (
	MetaRequestID   = "requestId"
	MetaCols        = "cols"
	MetaRows        = "rows"
	MetaSessionName = "sessionName"
	MetaLabel       = "label"
	MetaMachineID   = "machineId"
	MetaAuthToken   = "authToken"
	MetaCode        = "code"
	MetaPayload     = "payload"
)

// ErrorCodeLimitExceeded marks the one terminal, non-retryable relay error:
// the account exceeded its session limit and the agent must shut down
// instead of reconnecting.
const ErrorCodeLimitExceeded = "LIMIT_EXCEEDED"

// SessionSeparator joins a machine id and a local session name into the
// globally unique relay routing key.
const SessionSeparator = "::"

// SessionID builds the relay routing key for a local session.
func SessionID(machineID, name string) string {
	return machineID + SessionSeparator + name
}

// ControlSessionID builds the routing key for an agent's control channel.
// The control channel is not tied to any terminal session; it reuses the
// session-id namespace with a reserved suffix so the relay can route it the
// same way.
func ControlSessionID(agentID string) string {
	return agentID + SessionSeparator + "_control_"
}

// Message is the wire unit exchanged over every relay socket.
//
// Payload carries opaque base64 or raw text depending on Type; Meta carries
// structured key-value side data (request ids, dimensions, error codes).
// Error meta fields are opaque pass-through strings: the agent surfaces them
// without re-deriving their content.
type Message struct {
	Type    string            `json:"type"`
	Role    string            `json:"role,omitempty"`
	Session string            `json:"session,omitempty"`
	Payload string            `json:"payload,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Decode parses a JSON frame into a Message.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode relay message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("relay message missing type")
	}
	return &msg, nil
}

// Encode serializes the message to its JSON wire form.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay message: %w", err)
	}
	return data, nil
}

// MetaString returns the meta value for key, or "" when absent.
func (m *Message) MetaString(key string) string {
	if m.Meta == nil {
		return ""
	}
	return m.Meta[key]
}

// MetaInt parses the meta value for key as a decimal integer.
func (m *Message) MetaInt(key string) (int, bool) {
	raw := m.MetaString(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Register builds the handshake message sent immediately after a socket
// opens. No application traffic precedes it; the relay uses it to route
// subsequent messages by session id.
func Register(sessionID, label, machineID, authToken string) *Message {
	meta := map[string]string{
		MetaLabel:     label,
		MetaMachineID: machineID,
	}
	if authToken != "" {
		meta[MetaAuthToken] = authToken
	}
	return &Message{
		Type:    TypeRegister,
		Role:    RoleHost,
		Session: sessionID,
		Meta:    meta,
	}
}
