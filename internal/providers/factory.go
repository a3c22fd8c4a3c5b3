package providers

import "fmt"

// Factory creates the right ChatClient adapter for a ProviderConfig, the
// same central-creation-point role the teacher's ProviderFactory plays for
// Router/ParamExtractor adapters.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// CreateChatClient builds the adapter matching cfg.Provider. Cloud providers
// are wrapped in a per-instance rate limiter (cfg.RateLimitRPS); Ollama,
// being local, never is.
func (f *Factory) CreateChatClient(cfg ProviderConfig) (ChatClient, error) {
	switch cfg.Provider {
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = ResolveOllamaURL()
		}
		return NewOllamaChatAdapter(cfg.BaseURL, cfg.Model), nil

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY required for anthropic provider")
		}
		return NewRateLimitedChatClient(NewAnthropicChatAdapter(cfg.APIKey, cfg.Model), cfg.RateLimitRPS, 1), nil

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY required for openai provider")
		}
		return NewRateLimitedChatClient(NewOpenAIChatAdapter(cfg.APIKey, cfg.Model), cfg.RateLimitRPS, 1), nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY required for gemini provider")
		}
		return NewRateLimitedChatClient(NewGeminiChatAdapter(cfg.APIKey, cfg.Model), cfg.RateLimitRPS, 1), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %q (valid: %v)", cfg.Provider, ValidProviders)
	}
}
