package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	authUsecase "sage-backend/internal/auth/usecase"
	composeDelivery "sage-backend/internal/compose/delivery"
	composeUsecase "sage-backend/internal/compose/usecase"
	mailDelivery "sage-backend/internal/mail/delivery"
	"sage-backend/internal/mail/domain"
	mailRepo "sage-backend/internal/mail/repository"
	mailUsecase "sage-backend/internal/mail/usecase"
	"sage-backend/pkg/ai"
	"sage-backend/pkg/aurinko"
	"sage-backend/pkg/config"
	"sage-backend/pkg/gmail"
	"sage-backend/pkg/imap"
	"sage-backend/pkg/logger"
	"sage-backend/pkg/metrics"
	"sage-backend/pkg/sse"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type Handler struct {
	config          *config.Config
	log             zerolog.Logger
	registry        *prometheus.Registry
	sessions        authUsecase.SessionUsecase
	sseManager      *sse.Manager
	coordinator     *mailUsecase.SummaryCoordinator
	sweeper         *mailUsecase.SessionSweeper
	mailHandler     *mailDelivery.MailHandler
	composeHandler  *composeDelivery.ComposeHandler
	settingsHandler *SettingsHandler
	server          *http.Server
}

// MailBackend is the message source and sender chosen by MAIL_PROVIDER.
type MailBackend struct {
	Source    domain.MessageSource
	Sender    domain.MailSender
	Inspector mailDelivery.MessageInspector
}

// NewMailBackend builds the configured provider. IMAP has no sender and no inspector.
func NewMailBackend(cfg *config.Config, log zerolog.Logger) (MailBackend, error) {
	switch cfg.MailProvider {
	case "", "aurinko":
		client := aurinko.NewClient(cfg.AurinkoBaseURL, cfg.ThreadScanLimit, logger.Component(log, "Aurinko"))
		return MailBackend{Source: client, Sender: client, Inspector: client}, nil
	case "gmail":
		svc := gmail.NewService(logger.Component(log, "Gmail"))
		return MailBackend{Source: svc, Sender: svc}, nil
	case "imap":
		svc := imap.NewService(imap.Config{
			Server:    cfg.IMAPServer,
			Port:      cfg.IMAPPort,
			TLS:       cfg.IMAPTLS,
			Username:  cfg.IMAPUsername,
			Mailbox:   cfg.IMAPMailbox,
			ScanLimit: cfg.ThreadScanLimit,
		}, logger.Component(log, "IMAP"))
		return MailBackend{Source: svc}, nil
	}
	return MailBackend{}, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
}

// NewHandler wires every component. db may be nil, which disables the summary cache.
func NewHandler(cfg *config.Config, db *gorm.DB, log zerolog.Logger) (*Handler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	backend, err := NewMailBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	// AI service starts without a provider; the settings handler owns provider selection.
	assistant := ai.NewService(nil, cfg.AIRateInterval, cfg.AITimeout, logger.Component(log, "AI"))
	settings := NewSettingsHandler(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiApiKey,
	}, assistant, cfg.OllamaBaseURL, cfg.OllamaModel, logger.Component(log, "Settings"))

	if provider, err := ai.NewProvider(settings.ProviderConfig(), log); err != nil {
		log.Warn().Err(err).Msg("AI provider unavailable, summaries disabled")
	} else {
		assistant.SetProvider(provider)
		log.Info().Str("provider", provider.Name()).Msg("AI service initialized")
	}

	var transcriber composeUsecase.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber = ai.NewTranscriber(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}

	var summaryCache mailRepo.ThreadSummaryRepository
	if db != nil {
		summaryCache = mailRepo.NewThreadSummaryRepository(db)
	}

	sseManager := sse.NewManager(logger.Component(log, "SSE"))
	go sseManager.Run()

	threads := mailUsecase.NewThreadUsecase(backend.Source, m, cfg.RenderConcurrency, cfg.InboxLimit, logger.Component(log, "ThreadService"))
	coordinator := mailUsecase.NewSummaryCoordinator(assistant, summaryCache, m, 3, logger.Component(log, "SummaryCoordinator"))
	coordinator.Start()
	view := mailUsecase.NewViewUsecase(threads, coordinator, sseManager, m, cfg.SummaryMaxMessages, logger.Component(log, "ViewSession"))
	sweeper := mailUsecase.NewSessionSweeper(view, time.Minute, cfg.ViewIdleTimeout, logger.Component(log, "SessionSweeper"))
	sweeper.Start()

	mailHandler := mailDelivery.NewMailHandler(threads, view, sseManager)
	if backend.Inspector != nil {
		mailHandler.SetInspector(backend.Inspector)
	}

	compose := composeUsecase.NewComposeUsecase(assistant, transcriber, backend.Sender, logger.Component(log, "Compose"))

	return &Handler{
		config:          cfg,
		log:             log,
		registry:        registry,
		sessions:        authUsecase.NewSessionUsecase(cfg.JWTSecret),
		sseManager:      sseManager,
		coordinator:     coordinator,
		sweeper:         sweeper,
		mailHandler:     mailHandler,
		composeHandler:  composeDelivery.NewComposeHandler(compose),
		settingsHandler: settings,
	}, nil
}

func (h *Handler) Start(addr string) error {
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.log.Info().Str("addr", addr).Msg("server listening")
	if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, then the SSE hub and the summary workers.
func (h *Handler) Shutdown(ctx context.Context) error {
	var err error
	if h.server != nil {
		err = h.server.Shutdown(ctx)
	}
	h.sweeper.Stop()
	h.sseManager.Stop()
	h.coordinator.Stop()
	return err
}
