package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaChatAdapter talks to a local Ollama server's /api/chat endpoint.
//
// Thread Safety: safe for concurrent use; http.Client is itself safe.
type OllamaChatAdapter struct {
	baseURL      string
	defaultModel string
	client       *http.Client
}

// NewOllamaChatAdapter constructs an adapter bound to one default model.
func NewOllamaChatAdapter(baseURL, defaultModel string) *OllamaChatAdapter {
	return &OllamaChatAdapter{
		baseURL:      baseURL,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []ollamaChatMessage  `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  ollamaChatReqOptions `json:"options,omitempty"`
}

type ollamaChatReqOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

func (a *OllamaChatAdapter) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}

	req := ollamaChatRequest{
		Model:  model,
		Stream: false,
		Options: ollamaChatReqOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling ollama chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building ollama chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama chat returned status %d: %s", resp.StatusCode, SafeLogString(string(raw)))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing ollama chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama chat error: %s", out.Error)
	}
	return out.Message.Content, nil
}
