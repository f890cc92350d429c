package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ollamaServer(t *testing.T, status int, body string, seen *generateRequest) *AssistantService {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewAssistantService(srv.URL+"/", "phi3:mini", 5*time.Second)
}

func TestAssistantRespond_Success(t *testing.T) {
	var seen generateRequest
	body := `{"model":"phi3:mini","created_at":"2025-06-01T12:00:00Z","response":"Try a short walk.","done":true,"context":[1,2,3],"total_duration":1200,"eval_count":42}`
	assistant := ollamaServer(t, http.StatusOK, body, &seen)

	resp, err := assistant.Respond(context.Background(), "u1", AssistantRequest{
		Prompt:       "  How do I keep my streak?  ",
		SystemPrompt: "Be kind.",
		Context:      []int{9},
	})
	require.NoError(t, err)

	assert.Equal(t, "phi3:mini", seen.Model)
	assert.Equal(t, "How do I keep my streak?", seen.Prompt)
	assert.False(t, seen.Stream)
	assert.Equal(t, "Be kind.", seen.System)
	assert.Equal(t, []int{9}, seen.Context)

	assert.Equal(t, "Try a short walk.", resp.Response)
	assert.Equal(t, "How do I keep my streak?", resp.Prompt)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, []int{1, 2, 3}, resp.Context)
	assert.Equal(t, int64(42), resp.Meta.EvalCount)
	assert.Equal(t, "2025-06-01T12:00:00Z", resp.Meta.CreatedAt)
}

func TestAssistantRespond_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"model not loaded"}`},
		{"invalid json", http.StatusOK, `not json`},
		{"missing response", http.StatusOK, `{"model":"phi3:mini","done":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assistant := ollamaServer(t, tt.status, tt.body, nil)
			_, err := assistant.Respond(context.Background(), "u1", AssistantRequest{Prompt: "hi"})
			assert.True(t, apperr.Is(err, apperr.KindUpstream))
		})
	}
}

func TestAssistantRespond_EmptyPrompt(t *testing.T) {
	assistant := NewAssistantService("http://127.0.0.1:0", "phi3:mini", time.Second)
	_, err := assistant.Respond(context.Background(), "u1", AssistantRequest{Prompt: "   "})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestAssistantRespond_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assistant := NewAssistantService(url, "phi3:mini", time.Second)
	_, err := assistant.Respond(context.Background(), "u1", AssistantRequest{Prompt: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
