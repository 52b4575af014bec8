// Package api is the plain request/response HTTP client for the relay's
// management API. It backs the interactive subcommands and the pairing
// flow; the streaming session traffic never goes through here.
package api

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

const defaultTimeout = 10 * time.Second

// Client talks to the relay HTTP API.
type Client struct {
	http *resty.Client
}

// New creates an API client for the given base URL. The token may be empty
// for unauthenticated endpoints (pairing).
func New(baseURL, token string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		http.SetAuthToken(token)
	}
	return &Client{http: http}
}

// apiError is the relay's error envelope.
type apiError struct {
	Error string `json:"error"`
}

func (e *apiError) message(resp *resty.Response) string {
	if e.Error != "" {
		return e.Error
	}
	return resp.Status()
}

// PairingRequest starts a pairing flow for a machine.
type PairingRequest struct {
	MachineID string `json:"machineId"`
	Label     string `json:"label,omitempty"`
}

// Pairing is an open pairing request awaiting approval.
type Pairing struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PairingStatus is the poll result for an open pairing request.
type PairingStatus struct {
	Status string `json:"status"` // "pending" or "authorized"
	Token  string `json:"token,omitempty"`
}

// StartPairing registers a pairing request and returns the URL the user
// approves from another device.
func (c *Client) StartPairing(ctx context.Context, req PairingRequest) (*Pairing, error) {
	var result Pairing
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1/auth/pair")
	if err != nil {
		return nil, fmt.Errorf("pairing request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pairing request failed: %s", apiErr.message(resp))
	}
	if result.ID == "" || result.URL == "" {
		return nil, fmt.Errorf("pairing response missing id or url")
	}
	return &result, nil
}

// PollPairing checks whether the pairing request has been approved.
func (c *Client) PollPairing(ctx context.Context, id string) (*PairingStatus, error) {
	var result PairingStatus
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get("/v1/auth/pair/" + id)
	if err != nil {
		return nil, fmt.Errorf("pairing poll failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pairing poll failed: %s", apiErr.message(resp))
	}
	return &result, nil
}

// ListSessions returns the live sessions the relay knows for a machine.
func (c *Client) ListSessions(ctx context.Context, machineID string) ([]types.SessionInfo, error) {
	var result struct {
		Sessions []types.SessionInfo `json:"sessions"`
	}
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&apiErr).
		Get("/v1/machines/" + machineID + "/sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list sessions failed: %s", apiErr.message(resp))
	}
	return result.Sessions, nil
}

// SendKeys injects a one-off keystroke sequence into a remote session.
func (c *Client) SendKeys(ctx context.Context, sessionID, keys string, enter bool) error {
	body := struct {
		Keys  string `json:"keys"`
		Enter bool   `json:"enter,omitempty"`
	}{Keys: keys, Enter: enter}

	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post("/v1/sessions/" + sessionID + "/keys")
	if err != nil {
		return fmt.Errorf("send keys failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send keys failed: %s", apiErr.message(resp))
	}
	return nil
}
