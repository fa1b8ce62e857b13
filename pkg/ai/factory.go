package ai

import (
	"context"
	"fmt"

	"sage-backend/pkg/gemini"

	"github.com/rs/zerolog"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	GeminiAPIKey string

	// Ollama settings are read through getters so they can be changed at runtime.
	GetOllamaBaseURL func() string
	GetOllamaModel   func() string
}

// NewProvider creates a Provider based on the config.
// Switch AI provider by changing config.Provider
func NewProvider(cfg Config, log zerolog.Logger) (Provider, error) {
	ollama := func() Provider {
		if cfg.GetOllamaBaseURL == nil {
			return NewOllamaService("", "")
		}
		return NewOllamaServiceWithGetters(cfg.GetOllamaBaseURL, cfg.GetOllamaModel)
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return &geminiProvider{svc: gemini.NewGeminiService(cfg.GeminiAPIKey)}, nil

	case ProviderOllama:
		return ollama(), nil

	default:
		// Hosted providers first when keys are present, local Ollama last
		chain := NewFallbackService(log,
			NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
			&geminiProvider{svc: gemini.NewGeminiService(cfg.GeminiAPIKey)},
			ollama(),
		)
		if !chain.Available() {
			return nil, fmt.Errorf("no AI provider configured")
		}
		return chain, nil
	}
}

// geminiProvider adapts the Gemini REST client to Provider.
type geminiProvider struct {
	svc *gemini.GeminiService
}

func (g *geminiProvider) Name() string    { return g.svc.Name() }
func (g *geminiProvider) Available() bool { return g.svc.Available() }

func (g *geminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return g.svc.Generate(ctx, req.System, req.Prompt, req.JSON, req.Temperature)
}
