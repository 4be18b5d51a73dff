package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chatOK = `{
  "model": "llama-3.3-70b-versatile",
  "choices": [{"message": {"role": "assistant", "content": "` + "```json\\n[]\\n```" + `"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
}`

func TestOpenAICompatChat(t *testing.T) {
	var got chatCompletionRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatOK))
	}))
	defer ts.Close()

	p := NewGroq(Config{BaseURL: ts.URL, APIKey: "gsk-test"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "usr"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultGroqModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: "sys"}, got.Messages[0])
	assert.Equal(t, Message{Role: RoleUser, Content: "usr"}, got.Messages[1])
	assert.Zero(t, got.Temperature)
	assert.Zero(t, got.MaxTokens)

	assert.Equal(t, "```json\n[]\n```", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 16, resp.TotalTokens)
}

func TestOpenAICompatOmitsTuningFields(t *testing.T) {
	var raw map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(chatOK))
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "m"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)

	assert.NotContains(t, raw, "temperature")
	assert.NotContains(t, raw, "max_tokens")
}

func TestOpenAICompatNoAuthHeaderWithoutKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(chatOK))
	}))
	defer ts.Close()

	p := NewOllama(Config{BaseURL: ts.URL})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
}

func TestOpenAICompatSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p := NewGroq(Config{BaseURL: ts.URL, APIKey: "k"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "overloaded")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAICompatNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"m","choices":[]}`))
	}))
	defer ts.Close()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "m"})
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.EqualError(t, err, "no choices in response")
}

func TestOpenAICompatCanceledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatOK))
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOpenAICompat(Config{BaseURL: ts.URL, Model: "m"})
	_, err := p.Chat(ctx, ChatRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
