package wire

import (
	"encoding/json"
	"fmt"

	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

// ExecRequest is the meta.payload body of an "exec" control request.
type ExecRequest struct {
	// Command is the shell command line to run.
	Command string `json:"command"`
	// Cwd is the working directory (optional).
	Cwd string `json:"cwd,omitempty"`
	// Timeout is the execution budget in milliseconds (optional).
	Timeout int `json:"timeout,omitempty"`
	// SessionID delegates execution into a local tmux session instead of a
	// standalone subprocess (fire-and-forget acknowledgement).
	SessionID string `json:"sessionId,omitempty"`
}

// ChatRequest is the meta.payload body of an "llm_chat" control request.
type ChatRequest struct {
	Model       string              `json:"model,omitempty"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream,omitempty"`
}

// SendKeysRequest is the meta.payload body of a "send_keys" control request.
type SendKeysRequest struct {
	// Target is the local session name to receive the keystrokes.
	Target string `json:"target"`
	// Keys is the literal text to type.
	Keys string `json:"keys"`
	// Enter appends an Enter press after the keys.
	Enter bool `json:"enter,omitempty"`
}

// ExecResponse is the api_response body for an "exec" request.
type ExecResponse struct {
	Success bool              `json:"success"`
	Result  *types.ExecResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// SendKeysResponse is the api_response body for a "send_keys" request.
type SendKeysResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ListSessionsResponse is the api_response body for a "list_sessions"
// request. Sessions is always present: failures reply with an empty list
// plus the error string.
type ListSessionsResponse struct {
	Success  bool     `json:"success"`
	Sessions []string `json:"sessions"`
	Error    string   `json:"error,omitempty"`
}

// ChatResponse is the api_response body for an "llm_chat" request. Exactly
// one of Result or Error is set.
type ChatResponse struct {
	Result *types.ChatResult `json:"result,omitempty"`
	Error  *types.ChatError  `json:"error,omitempty"`
}

// ParsePayload decodes the JSON request body carried in meta.payload.
func ParsePayload(m *Message, v any) error {
	raw := m.MetaString(MetaPayload)
	if raw == "" {
		return fmt.Errorf("%s request missing payload", m.Type)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to parse %s payload: %w", m.Type, err)
	}
	return nil
}

// APIResponse builds the api_response message answering a control request,
// echoing the request id verbatim and carrying the JSON-encoded body in
// meta.payload.
func APIResponse(requestID string, body any) (*Message, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode api response: %w", err)
	}
	return &Message{
		Type: TypeAPIResponse,
		Meta: map[string]string{
			MetaRequestID: requestID,
			MetaPayload:   string(data),
		},
	}, nil
}
