// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// defaultCloudRateLimitRPS is the fallback per-provider request rate for
// cloud LLM backends when TOOLSCOUT_<ROLE>_RATE_LIMIT_RPS is unset. Ollama
// is local and is never rate-limited, mirroring the teacher's own egress
// rate limiter exempting it.
const defaultCloudRateLimitRPS = 2.0

// Provider constants for supported LLM backends.
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Role constants for the two LLM-backed pipeline stages.
const (
	RoleExtractor = "EXTRACTOR"
	RolePlanner   = "PLANNER"
)

// ProviderConfig holds the configuration for a single LLM provider instance.
type ProviderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	// RateLimitRPS caps outbound requests per second for this provider
	// instance. Zero (Ollama's default) disables limiting.
	RateLimitRPS float64
}

// RoleConfig holds the per-role provider configuration for the two LLM
// collaborators the pipeline depends on.
type RoleConfig struct {
	Extractor ProviderConfig
	Planner   ProviderConfig
}

// ValidProviders is the closed set of valid provider names.
var ValidProviders = []string{ProviderOllama, ProviderAnthropic, ProviderOpenAI, ProviderGemini}

func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ResolveOllamaURL resolves the Ollama server URL, preferring
// OLLAMA_BASE_URL, falling back to the deprecated OLLAMA_URL with a warning,
// then to the conventional local default.
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		slog.Warn("OLLAMA_URL is deprecated, use OLLAMA_BASE_URL instead", slog.String("ollama_url", url))
		return url
	}
	return "http://localhost:11434"
}

// LoadRoleConfig reads TOOLSCOUT_<ROLE>_PROVIDER / TOOLSCOUT_<ROLE>_MODEL
// for each role, falling back to Ollama with the given model fallbacks.
func LoadRoleConfig(extractorModelFallback, plannerModelFallback string) (*RoleConfig, error) {
	extractorCfg, err := loadSingleRoleConfig(RoleExtractor, extractorModelFallback)
	if err != nil {
		return nil, fmt.Errorf("loading extractor role config: %w", err)
	}
	plannerCfg, err := loadSingleRoleConfig(RolePlanner, plannerModelFallback)
	if err != nil {
		return nil, fmt.Errorf("loading planner role config: %w", err)
	}
	return &RoleConfig{Extractor: extractorCfg, Planner: plannerCfg}, nil
}

func loadSingleRoleConfig(role, modelFallback string) (ProviderConfig, error) {
	providerEnv := fmt.Sprintf("TOOLSCOUT_%s_PROVIDER", role)
	modelEnv := fmt.Sprintf("TOOLSCOUT_%s_MODEL", role)

	provider := os.Getenv(providerEnv)
	if provider == "" {
		provider = ProviderOllama
	}
	if !isValidProvider(provider) {
		return ProviderConfig{}, fmt.Errorf("invalid provider %q for %s (valid: %v)", provider, providerEnv, ValidProviders)
	}

	model := os.Getenv(modelEnv)
	if model == "" {
		model = modelFallback
	}

	cfg := ProviderConfig{Provider: provider, Model: model}
	switch provider {
	case ProviderOllama:
		cfg.BaseURL = ResolveOllamaURL()
	case ProviderAnthropic:
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		cfg.RateLimitRPS = defaultCloudRateLimitRPS
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.RateLimitRPS = defaultCloudRateLimitRPS
	case ProviderGemini:
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		cfg.RateLimitRPS = defaultCloudRateLimitRPS
	}

	if rpsEnv := os.Getenv(fmt.Sprintf("TOOLSCOUT_%s_RATE_LIMIT_RPS", role)); rpsEnv != "" {
		rps, err := strconv.ParseFloat(rpsEnv, 64)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("TOOLSCOUT_%s_RATE_LIMIT_RPS: invalid float %q: %w", role, rpsEnv, err)
		}
		cfg.RateLimitRPS = rps
	}

	explicitProvider := os.Getenv(providerEnv)
	if explicitProvider != "" && cfg.Model == "" {
		return ProviderConfig{}, fmt.Errorf(
			"%s is %q but no model specified (set %s or pass a fallback)",
			providerEnv, provider, modelEnv,
		)
	}

	return cfg, nil
}

// InferProvider infers a provider from a model name prefix, for display.
func InferProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "gpt-"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "gemini-"):
		return ProviderGemini
	default:
		return ""
	}
}
