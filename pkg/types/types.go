package types

// SessionInfo describes one live tmux session on a machine, as reported by
// the relay API or the local capability layer.
type SessionInfo struct {
	// Name is the local tmux session name.
	Name string `json:"name"`
	// MachineID is the owning machine id.
	MachineID string `json:"machineId,omitempty"`
	// SessionID is the globally unique relay routing key.
	SessionID string `json:"sessionId,omitempty"`
}

// MachineInfo describes one registered agent machine.
type MachineInfo struct {
	// MachineID is the machine's unique id.
	MachineID string `json:"machineId"`
	// Online reports whether the agent currently holds a relay connection.
	Online bool `json:"online"`
	// Sessions is the number of sessions the machine is streaming.
	Sessions int `json:"sessions,omitempty"`
}

// ExecResult is the outcome of a remote command execution.
type ExecResult struct {
	// ExitCode is the process exit code (-1 when the command timed out or
	// failed to start).
	ExitCode int `json:"exitCode"`
	// Stdout is the captured standard output.
	Stdout string `json:"stdout"`
	// Stderr is the captured standard error.
	Stderr string `json:"stderr"`
	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// ChatMessage is a single chat-completion message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatChoice is one completion choice in a chat result.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatUsage is the token accounting block of a chat result.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResult mirrors the standard chat-completion response shape.
type ChatResult struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatError is the structured error object returned when an LLM call fails.
type ChatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
