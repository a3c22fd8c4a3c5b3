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

const openAIDefaultBaseURL = "https://api.openai.com/v1/chat/completions"

// OpenAIChatAdapter is a minimal chat-only client for the OpenAI Chat
// Completions API.
type OpenAIChatAdapter struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

func NewOpenAIChatAdapter(apiKey, defaultModel string) *OpenAIChatAdapter {
	return &OpenAIChatAdapter{
		apiKey:       apiKey,
		baseURL:      openAIDefaultBaseURL,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

type openAIChatReqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string                  `json:"model"`
	Messages    []openAIChatReqMessage  `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float64                 `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatReqMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *OpenAIChatAdapter) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}

	req := openAIChatRequest{Model: model, MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	for _, m := range messages {
		req.Messages = append(req.Messages, openAIChatReqMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling openai chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building openai chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("openai chat request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading openai chat response: %w", err)
	}

	var out openAIChatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing openai chat response (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("openai chat error: %s", SafeLogString(out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai chat returned no choices (status %d)", resp.StatusCode)
	}
	return out.Choices[0].Message.Content, nil
}
