package ai

import (
	"context"
)

// CompletionRequest is one prompt sent to a language model.
type CompletionRequest struct {
	System      string
	Prompt      string
	JSON        bool // ask for a JSON object reply
	Temperature float64
	MaxTokens   int
}

// Provider is a text completion backend.
// Implement this interface to add new AI providers (OpenAI, Gemini, Ollama, etc.)
type Provider interface {
	Name() string
	Available() bool
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
