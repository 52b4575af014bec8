package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sessioncast/sessioncast-cli/internal/protocol/wire"
	"github.com/sessioncast/sessioncast-cli/pkg/types"
)

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestChatForwardsRequest(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody chatRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.ChatResult{
			ID:    "cmpl-1",
			Model: gotBody.Model,
			Choices: []types.ChatChoice{{
				Message: types.ChatMessage{Role: "assistant", Content: "hi"},
			}},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, APIKey: "sk-test", Model: "default-model"})
	require.NoError(t, err)

	result, err := client.Chat(context.Background(), &wire.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "cmpl-1", result.ID)
	require.Equal(t, "Bearer sk-test", gotAuth)
	require.Equal(t, "default-model", gotBody.Model, "config model fills in when request omits one")
}

func TestChatRequestModelWins(t *testing.T) {
	t.Parallel()

	var gotBody chatRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(types.ChatResult{Model: gotBody.Model})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Model: "default-model"})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &wire.ChatRequest{
		Model:    "requested-model",
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.NoError(t, err)
	require.Equal(t, "requested-model", gotBody.Model)
}

func TestChatRequiresMessages(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &wire.ChatRequest{})
	require.Error(t, err)
}

func TestChatRequiresSomeModel(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &wire.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no model")
}

func TestChatSurfacesUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "invalid api key", "type": "auth_error"},
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Model: "m"})
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), &wire.ChatRequest{
		Messages: []types.ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid api key")
}
