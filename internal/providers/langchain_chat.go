package providers

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangchainChatAdapter wraps any langchaingo llms.Model (OpenAI-compatible
// gateways, local runtimes, etc.) behind the ChatClient contract, giving
// operators a fifth provider option beyond the four hand-rolled adapters
// without toolscout needing its own client for every OpenAI-compatible
// backend langchaingo already supports.
type LangchainChatAdapter struct {
	model llms.Model
}

func NewLangchainChatAdapter(model llms.Model) *LangchainChatAdapter {
	return &LangchainChatAdapter{model: model}
}

func (a *LangchainChatAdapter) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	var lcMessages []llms.MessageContent
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		lcMessages = append(lcMessages, llms.TextParts(role, m.Content))
	}

	callOpts := []llms.CallOption{}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	resp, err := a.model.GenerateContent(ctx, lcMessages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("langchain generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain returned no choices")
	}
	return resp.Choices[0].Content, nil
}
