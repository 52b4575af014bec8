package storage

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// SaveToken persists an access token with restrictive permissions.
func SaveToken(path, token string) error {
	if err := os.WriteFile(path, []byte(strings.TrimSpace(token)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write access token: %w", err)
	}
	return nil
}

// LoadToken reads a stored access token. A missing file returns "", nil.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadOrCreateMachineID returns the stable machine id stored at path,
// generating and persisting a fresh one on first run.
func LoadOrCreateMachineID(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to persist machine id: %w", err)
	}
	return id, nil
}
