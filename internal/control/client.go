package control

import (
	"context"

	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/internal/relay"
	"github.com/sessioncast/sessioncast-cli/pkg/logger"
	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

// Executor runs remote exec requests.
type Executor interface {
	Execute(req *wire.ExecRequest) (*types.ExecResult, error)
}

// ChatProxy forwards chat requests to the configured LLM provider.
type ChatProxy interface {
	Chat(ctx context.Context, req *wire.ChatRequest) (*types.ChatResult, error)
}

// SessionControl is the capability subset the control channel needs.
type SessionControl interface {
	ListSessions() ([]string, error)
	SendKeys(name, text string) error
	SendSpecialKey(name, key string) error
}

// Config describes the control channel.
type Config struct {
	// URL is the relay websocket endpoint.
	URL string
	// AgentID identifies this agent's control channel at the relay.
	AgentID string
	// MachineID identifies the machine in the handshake.
	MachineID string
	// AuthToken is included in the handshake when present.
	AuthToken string
	// Capability handles send_keys and list_sessions requests.
	Capability SessionControl
	// Exec handles exec requests; nil disables them.
	Exec Executor
	// LLM handles llm_chat requests; nil disables them.
	LLM ChatProxy
	// OnLimitExceeded surfaces the terminal relay error to the process.
	OnLimitExceeded func(meta map[string]string)
}

// Client maintains one relay connection, independent of any terminal
// session, and dispatches structured remote requests to local services. It
// shares the Link reconnection state machine and lives for the process
// lifetime. Collaborator failures are converted to structured error
// responses, never propagated: a malformed or failing request must not
// crash the agent.
type Client struct {
	cfg  Config
	link *relay.Link
}

// NewClient creates the control channel client. Call Start to connect.
func NewClient(cfg Config) *Client {
	c := &Client{cfg: cfg}
	c.link = relay.NewLink(relay.Config{
		URL:       cfg.URL,
		SessionID: wire.ControlSessionID(cfg.AgentID),
		Label:     "control",
		MachineID: cfg.MachineID,
		AuthToken: cfg.AuthToken,
		Events: relay.Events{
			Connected: func() {
				logger.Infof("control channel connected (agent %s)", cfg.AgentID)
			},
			Request:       c.handleRequest,
			LimitExceeded: cfg.OnLimitExceeded,
		},
	})
	return c
}

// Start connects the control channel.
func (c *Client) Start() {
	c.link.Connect()
}

// Stop tears the control channel down permanently.
func (c *Client) Stop() {
	c.link.Destroy()
}

// handleRequest runs on the link's read loop; the actual work moves to its
// own goroutine so a slow exec or LLM call never stalls inbound traffic.
func (c *Client) handleRequest(msg *wire.Message) {
	requestID := msg.MetaString(wire.MetaRequestID)
	if requestID == "" {
		// No response is owed without a correlation id.
		logger.Tracef("ignoring %s request without requestId", msg.Type)
		return
	}

	go func() {
		body := c.dispatch(msg)
		if body == nil {
			return
		}
		resp, err := wire.APIResponse(requestID, body)
		if err != nil {
			logger.Errorf("failed to build response for %s request %s: %v", msg.Type, requestID, err)
			return
		}
		if !c.link.Send(resp) {
			logger.Warnf("dropped response for %s request %s: control channel not connected",
				msg.Type, requestID)
		}
	}()
}

// dispatch executes one control request and returns the response body.
func (c *Client) dispatch(msg *wire.Message) any {
	switch msg.Type {
	case wire.TypeExec:
		return c.handleExec(msg)
	case wire.TypeLlmChat:
		return c.handleChat(msg)
	case wire.TypeSendKeys:
		return c.handleSendKeys(msg)
	case wire.TypeListSessions:
		return c.handleListSessions()
	default:
		logger.Debugf("unknown control request type %q", msg.Type)
		return nil
	}
}

func (c *Client) handleExec(msg *wire.Message) *wire.ExecResponse {
	var req wire.ExecRequest
	if err := wire.ParsePayload(msg, &req); err != nil {
		return &wire.ExecResponse{Success: false, Error: err.Error()}
	}
	if c.cfg.Exec == nil {
		return &wire.ExecResponse{Success: false, Error: "command execution is not configured"}
	}

	result, err := c.cfg.Exec.Execute(&req)
	if err != nil {
		return &wire.ExecResponse{Success: false, Error: err.Error()}
	}
	return &wire.ExecResponse{Success: true, Result: result}
}

func (c *Client) handleChat(msg *wire.Message) *wire.ChatResponse {
	var req wire.ChatRequest
	if err := wire.ParsePayload(msg, &req); err != nil {
		return &wire.ChatResponse{Error: &types.ChatError{
			Message: err.Error(), Type: "invalid_request",
		}}
	}
	if c.cfg.LLM == nil {
		return &wire.ChatResponse{Error: &types.ChatError{
			Message: "llm proxy is not configured", Type: "configuration_error",
		}}
	}

	result, err := c.cfg.LLM.Chat(context.Background(), &req)
	if err != nil {
		return &wire.ChatResponse{Error: &types.ChatError{
			Message: err.Error(), Type: "upstream_error",
		}}
	}
	return &wire.ChatResponse{Result: result}
}

func (c *Client) handleSendKeys(msg *wire.Message) *wire.SendKeysResponse {
	var req wire.SendKeysRequest
	if err := wire.ParsePayload(msg, &req); err != nil {
		return &wire.SendKeysResponse{Success: false, Error: err.Error()}
	}
	if req.Target == "" || req.Keys == "" {
		return &wire.SendKeysResponse{Success: false, Error: "target and keys are required"}
	}
	if c.cfg.Capability == nil {
		return &wire.SendKeysResponse{Success: false, Error: "session control is not available"}
	}

	if err := c.cfg.Capability.SendKeys(req.Target, req.Keys); err != nil {
		return &wire.SendKeysResponse{Success: false, Error: err.Error()}
	}
	if req.Enter {
		if err := c.cfg.Capability.SendSpecialKey(req.Target, "enter"); err != nil {
			return &wire.SendKeysResponse{Success: false, Error: err.Error()}
		}
	}
	return &wire.SendKeysResponse{Success: true}
}

func (c *Client) handleListSessions() *wire.ListSessionsResponse {
	if c.cfg.Capability == nil {
		return &wire.ListSessionsResponse{Success: false, Sessions: []string{},
			Error: "session control is not available"}
	}
	sessions, err := c.cfg.Capability.ListSessions()
	if err != nil {
		return &wire.ListSessionsResponse{Success: false, Sessions: []string{}, Error: err.Error()}
	}
	if sessions == nil {
		sessions = []string{}
	}
	return &wire.ListSessionsResponse{Success: true, Sessions: sessions}
}
