package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OllamaService implements Provider using an Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
	client     *http.Client
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	return NewOllamaServiceWithGetters(
		func() string { return baseURL },
		func() string { return model },
	)
}

// NewOllamaServiceWithGetters creates a new Ollama service whose settings can change at runtime
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
		client:     &http.Client{},
	}
}

func (o *OllamaService) Name() string {
	return string(ProviderOllama)
}

func (o *OllamaService) Available() bool {
	return o.getBaseURL() != ""
}

// Complete implements Provider
func (o *OllamaService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	url := o.getBaseURL() + "/api/generate"

	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	payload := map[string]interface{}{
		"model":   o.getModel(),
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}
	if req.System != "" {
		payload["system"] = req.System
	}
	if req.JSON {
		payload["format"] = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Response, nil
}
