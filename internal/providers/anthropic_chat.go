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

const anthropicAPIVersion = "2023-06-01"
const anthropicDefaultBaseURL = "https://api.anthropic.com/v1/messages"

// AnthropicChatAdapter is a minimal chat-only client for the Anthropic
// Messages API, grounded on the same request/response shape the teacher's
// services/llm Anthropic client uses, trimmed to what ChatClient needs.
type AnthropicChatAdapter struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

func NewAnthropicChatAdapter(apiKey, defaultModel string) *AnthropicChatAdapter {
	return &AnthropicChatAdapter{
		apiKey:       apiKey,
		baseURL:      anthropicDefaultBaseURL,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

type anthropicChatReqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicChatRequest struct {
	Model       string                    `json:"model"`
	Messages    []anthropicChatReqMessage `json:"messages"`
	System      string                    `json:"system,omitempty"`
	MaxTokens   int                       `json:"max_tokens"`
	Temperature *float64                  `json:"temperature,omitempty"`
}

type anthropicChatContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicChatResponse struct {
	Content []anthropicChatContent `json:"content"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicChatAdapter) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	req := anthropicChatRequest{Model: model, MaxTokens: maxTokens}
	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicChatReqMessage{Role: m.Role, Content: m.Content})
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling anthropic chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building anthropic chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading anthropic chat response: %w", err)
	}

	var out anthropicChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing anthropic chat response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("anthropic chat error: %s", SafeLogString(out.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic chat returned status %d", resp.StatusCode)
	}

	var text string
	for _, c := range out.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	return text, nil
}
