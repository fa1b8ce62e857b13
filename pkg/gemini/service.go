package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/"

type GeminiService struct {
	ApiKey   string
	Model    string
	Endpoint string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey, Model: "gemini-2.5-flash", Endpoint: defaultEndpoint}
}

func (g *GeminiService) Name() string {
	return "gemini"
}

func (g *GeminiService) Available() bool {
	return g.ApiKey != ""
}

// Generate sends one prompt to generateContent. The system instruction is prepended when set.
func (g *GeminiService) Generate(ctx context.Context, system, prompt string, jsonReply bool, temperature float64) (string, error) {
	url := g.Endpoint + g.Model + ":generateContent?key=" + g.ApiKey

	text := prompt
	if system != "" {
		text = system + "\n\n" + prompt
	}

	generationConfig := map[string]interface{}{"temperature": temperature}
	if jsonReply {
		generationConfig["responseMimeType"] = "application/json"
	}
	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": text}}},
		},
		"generationConfig": generationConfig,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	for _, cand := range result.Candidates {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", fmt.Errorf("no content returned")
}
