package card

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported vision providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
)

// ProviderConfig selects and authenticates a vision model.
type ProviderConfig struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	case ProviderOllama:
		return "llava"
	case ProviderMistral:
		return "pixtral-12b-2409"
	default:
		return "gpt-4o-mini"
	}
}

// NewModel builds the langchaingo client for cfg.Provider.
func NewModel(ctx context.Context, cfg ProviderConfig) (llms.Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(provider)
	}

	switch provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY")
		}
		opts := []openai.Option{openai.WithModel(model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY")
		}
		return googleai.New(ctx, googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(model))
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
		}
		return anthropic.New(anthropic.WithModel(model), anthropic.WithToken(cfg.APIKey))
	case ProviderOllama:
		host := cfg.BaseURL
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(host))
	case ProviderMistral:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing MISTRAL_API_KEY")
		}
		return mistral.New(mistral.WithModel(model), mistral.WithAPIKey(cfg.APIKey))
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", cfg.Provider)
	}
}

// NewRelayFromConfig builds the model and wraps it in a Relay.
func NewRelayFromConfig(ctx context.Context, cfg ProviderConfig) (*Relay, error) {
	m, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(provider)
	}
	return NewRelay(m, provider, model, cfg.MaxTokens), nil
}
