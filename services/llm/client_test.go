package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicRequestShape(t *testing.T) {
	t.Run("system block carries ephemeral cache control", func(t *testing.T) {
		req := anthropicRequest{
			Model: "claude-3-5-sonnet-20240620",
			Messages: []anthropicMessage{
				{Role: "user", Content: "explain this finding"},
			},
			System: []systemBlock{{
				Type:         "text",
				Text:         "claims reviewer context",
				CacheControl: &cacheControl{Type: "ephemeral"},
			}},
			MaxTokens: 4096,
		}
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		assert.Contains(t, string(payload), `"cache_control":{"type":"ephemeral"}`)
	})

	t.Run("empty system is omitted entirely", func(t *testing.T) {
		req := anthropicRequest{
			Model:     "claude-3-5-sonnet-20240620",
			Messages:  []anthropicMessage{{Role: "user", Content: "hi"}},
			MaxTokens: 4096,
		}
		payload, err := json.Marshal(req)
		require.NoError(t, err)
		assert.NotContains(t, string(payload), `"system"`)
	})
}

func TestOllamaOptions(t *testing.T) {
	t.Run("defaults favor factual output", func(t *testing.T) {
		options := ollamaOptions(GenerationParams{})
		assert.Equal(t, float32(0.2), options["temperature"])
		assert.Equal(t, 20, options["top_k"])
		assert.Equal(t, float32(0.9), options["top_p"])
		assert.Equal(t, 8192, options["num_predict"])
		assert.NotContains(t, options, "stop")
	})

	t.Run("params override defaults", func(t *testing.T) {
		temp := float32(0.7)
		maxTokens := 256
		options := ollamaOptions(GenerationParams{
			Temperature: &temp,
			MaxTokens:   &maxTokens,
			Stop:        []string{"END"},
		})
		assert.Equal(t, float32(0.7), options["temperature"])
		assert.Equal(t, 256, options["num_predict"])
		assert.Equal(t, []string{"END"}, options["stop"])
	})
}

func TestOllamaChat(t *testing.T) {
	var captured ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: Message{Role: "assistant", Content: "the claim looks fine"},
			Done:    true,
		})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "llama3.1")
	client, err := NewOllamaClient()
	require.NoError(t, err)

	reply, err := client.Chat(context.Background(), "reviewer context",
		[]Message{{Role: "user", Content: "is this claim ok?"}}, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "the claim looks fine", reply)

	// The system prompt travels as the first system-role message.
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "reviewer context", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.False(t, captured.Stream)
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "generated text", Done: true})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "llama3.1")
	client, err := NewOllamaClient()
	require.NoError(t, err)

	reply, err := client.Generate(context.Background(), "say something", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "generated text", reply)
}

func TestOllamaModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'missing' not found"})
	}))
	defer server.Close()

	t.Setenv("OLLAMA_BASE_URL", server.URL)
	t.Setenv("OLLAMA_MODEL", "missing")
	client, err := NewOllamaClient()
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hello", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull")
}
