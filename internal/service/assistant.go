package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/tidwall/gjson"
)

const maxAssistantResponse = 4 << 20

type AssistantRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt"`
	Context      []int  `json:"context"`
}

type AssistantMeta struct {
	CreatedAt     string `json:"created_at,omitempty"`
	TotalDuration int64  `json:"total_duration,omitempty"`
	LoadDuration  int64  `json:"load_duration,omitempty"`
	EvalCount     int64  `json:"eval_count,omitempty"`
	EvalDuration  int64  `json:"eval_duration,omitempty"`
}

type AssistantResponse struct {
	Prompt   string        `json:"prompt"`
	Response string        `json:"response"`
	Model    string        `json:"model"`
	UserID   string        `json:"user_id"`
	Meta     AssistantMeta `json:"meta"`
	Context  []int         `json:"context,omitempty"`
}

// AssistantService forwards reflection prompts to an Ollama server
type AssistantService struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewAssistantService(baseURL, model string, timeout time.Duration) *AssistantService {
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &AssistantService{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	System  string `json:"system,omitempty"`
	Context []int  `json:"context,omitempty"`
}

func (s *AssistantService) Respond(ctx context.Context, userID string, req AssistantRequest) (*AssistantResponse, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, apperr.BadRequest("prompt is required")
	}

	body, err := json.Marshal(generateRequest{
		Model:   s.model,
		Prompt:  prompt,
		System:  strings.TrimSpace(req.SystemPrompt),
		Context: req.Context,
	})
	if err != nil {
		return nil, apperr.Internal("failed to encode assistant request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("failed to build assistant request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream("assistant request failed", err)
	}
	defer func() {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAssistantResponse))
	if err != nil {
		return nil, apperr.Upstream("failed to read assistant response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(fmt.Sprintf("assistant returned status %d", resp.StatusCode), nil)
	}

	return s.parse(userID, prompt, raw)
}

func (s *AssistantService) parse(userID, prompt string, raw []byte) (*AssistantResponse, error) {
	if !gjson.ValidBytes(raw) {
		return nil, apperr.Upstream("invalid JSON received from assistant", nil)
	}

	result := gjson.ParseBytes(raw)
	text := result.Get("response").String()
	if text == "" {
		return nil, apperr.Upstream("assistant response missing 'response'", nil)
	}

	model := result.Get("model").String()
	if model == "" {
		model = s.model
	}

	out := &AssistantResponse{
		Prompt:   prompt,
		Response: text,
		Model:    model,
		UserID:   userID,
		Meta: AssistantMeta{
			CreatedAt:     result.Get("created_at").String(),
			TotalDuration: result.Get("total_duration").Int(),
			LoadDuration:  result.Get("load_duration").Int(),
			EvalCount:     result.Get("eval_count").Int(),
			EvalDuration:  result.Get("eval_duration").Int(),
		},
	}
	for _, v := range result.Get("context").Array() {
		out.Context = append(out.Context, int(v.Int()))
	}

	return out, nil
}
