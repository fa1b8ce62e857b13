package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"sage-backend/pkg/ai"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RuntimeSettings holds the AI settings that can change while the server runs.
type RuntimeSettings struct {
	Provider      string `json:"provider"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// SettingsHandler serves /api/settings/ai and rebuilds the AI provider when the
// provider type changes. Ollama settings are read live through the getters.
type SettingsHandler struct {
	mu        sync.RWMutex
	settings  RuntimeSettings
	base      ai.Config
	assistant *ai.Service
	log       zerolog.Logger
	client    *http.Client
}

func NewSettingsHandler(base ai.Config, assistant *ai.Service, ollamaBaseURL, ollamaModel string, log zerolog.Logger) *SettingsHandler {
	h := &SettingsHandler{
		settings: RuntimeSettings{
			Provider:      string(base.Provider),
			OllamaBaseURL: ollamaBaseURL,
			OllamaModel:   ollamaModel,
		},
		assistant: assistant,
		log:       log,
		client:    &http.Client{Timeout: 5 * time.Second},
	}
	base.GetOllamaBaseURL = h.OllamaBaseURL
	base.GetOllamaModel = h.OllamaModel
	h.base = base
	return h
}

// ProviderConfig returns the AI config bound to the live settings.
func (h *SettingsHandler) ProviderConfig() ai.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cfg := h.base
	cfg.Provider = ai.ProviderType(h.settings.Provider)
	return cfg
}

func (h *SettingsHandler) OllamaBaseURL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings.OllamaBaseURL
}

func (h *SettingsHandler) OllamaModel() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings.OllamaModel
}

func (h *SettingsHandler) current() RuntimeSettings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings
}

type UpdateAISettingsRequest struct {
	Provider      string `json:"provider,omitempty"`
	OllamaBaseURL string `json:"ollama_base_url,omitempty"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GET /api/settings/ai
func (h *SettingsHandler) GetAISettings(c *gin.Context) {
	s := h.current()
	c.JSON(http.StatusOK, gin.H{
		"provider":        s.Provider,
		"active":          h.activeProvider(),
		"ollama_base_url": s.OllamaBaseURL,
		"ollama_model":    s.OllamaModel,
	})
}

// PUT /api/settings/ai
func (h *SettingsHandler) UpdateAISettings(c *gin.Context) {
	var req UpdateAISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	switch ai.ProviderType(provider) {
	case "", ai.ProviderOpenAI, ai.ProviderGemini, ai.ProviderOllama, ai.ProviderAuto:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be one of openai, gemini, ollama, auto"})
		return
	}

	h.mu.Lock()
	previous := h.settings
	if req.OllamaBaseURL != "" {
		h.settings.OllamaBaseURL = strings.TrimRight(req.OllamaBaseURL, "/")
	}
	if req.OllamaModel != "" {
		h.settings.OllamaModel = req.OllamaModel
	}
	if provider != "" {
		h.settings.Provider = provider
	}
	changed := h.settings.Provider != previous.Provider
	h.mu.Unlock()

	if changed && h.assistant != nil {
		p, err := ai.NewProvider(h.ProviderConfig(), h.log)
		if err != nil {
			h.mu.Lock()
			h.settings.Provider = previous.Provider
			h.mu.Unlock()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.assistant.SetProvider(p)
		h.log.Info().Str("provider", p.Name()).Msg("AI provider switched")
	}

	s := h.current()
	c.JSON(http.StatusOK, gin.H{
		"message":         "AI settings updated successfully",
		"provider":        s.Provider,
		"active":          h.activeProvider(),
		"ollama_base_url": s.OllamaBaseURL,
		"ollama_model":    s.OllamaModel,
	})
}

// POST /api/settings/ai/test checks that the Ollama server answers.
func (h *SettingsHandler) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = h.OllamaBaseURL()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(req.OllamaBaseURL, "/")+"/api/tags", nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"connected": false, "error": "invalid ollama_base_url"})
		return
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": err.Error()})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "status_code": resp.StatusCode})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "ollama_base_url": req.OllamaBaseURL})
}

func (h *SettingsHandler) activeProvider() string {
	if h.assistant == nil {
		return ""
	}
	return h.assistant.ProviderName()
}
