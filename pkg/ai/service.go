package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxBullets = 3

// Draft is a generated outgoing message.
type Draft struct {
	To      string `json:"to,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Command is an interpreted voice instruction.
type Command struct {
	Action      string `json:"action"`
	Response    string `json:"response"`
	Draft       string `json:"draft,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
}

var commandActions = map[string]bool{
	"reply": true, "archive": true, "forward": true, "snooze": true,
	"schedule": true, "search": true, "compose": true, "chat": true,
}

// Service runs the mail assistant prompts against a Provider. Calls are rate limited
// and bounded by a timeout.
type Service struct {
	mu       sync.RWMutex
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	log      zerolog.Logger
}

func NewService(provider Provider, interval, timeout time.Duration, log zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		timeout:  timeout,
		log:      log,
	}
}

// SetProvider swaps the backend, used when settings change at runtime.
func (s *Service) SetProvider(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
}

// ProviderName returns the active provider, or "" when none is configured.
func (s *Service) ProviderName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

func (s *Service) complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.RLock()
	p := s.provider
	s.mu.RUnlock()
	if p == nil || !p.Available() {
		return "", domain.ErrAIUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	reply, err := p.Complete(ctx, req)
	s.log.Debug().Str("provider", p.Name()).Dur("latency", time.Since(start)).Err(err).Msg("completion")
	return reply, err
}

const summarySystem = `You triage email threads. Reply with a JSON object:
{"bullets": ["..."], "category": "decision" | "fyi" | "gatekeeper"}
Give one to three short bullets. "decision" means the reader must decide or act,
"gatekeeper" means the sender is unknown or the mail is promotional, otherwise "fyi".`

// SummarizeThread implements domain.Summarizer.
func (s *Service) SummarizeThread(ctx context.Context, excerpt, subject string) (domain.SummaryResult, error) {
	if strings.TrimSpace(excerpt) == "" {
		return domain.SummaryResult{}, fmt.Errorf("empty excerpt: %w", domain.ErrSummaryFailed)
	}

	reply, err := s.complete(ctx, CompletionRequest{
		System:      summarySystem,
		Prompt:      fmt.Sprintf("Subject: %s\n\nConversation:\n%s", subject, excerpt),
		JSON:        true,
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		return domain.SummaryResult{}, fmt.Errorf("summarize thread: %w", err)
	}
	return ParseSummary(reply)
}

const composeSystem = `You write emails for the user. Reply with a JSON object
{"to": "recipient address or empty", "subject": "...", "body": "..."}.`

// ComposeFromPrompt drafts a new email from a free-form instruction.
func (s *Service) ComposeFromPrompt(ctx context.Context, prompt string) (Draft, error) {
	reply, err := s.complete(ctx, CompletionRequest{System: composeSystem, Prompt: prompt, JSON: true, Temperature: 0.7})
	if err != nil {
		return Draft{}, fmt.Errorf("compose: %w", err)
	}
	return ParseDraft(reply), nil
}

const draftSystem = `Turn the dictated text into a polished email. Reply with a JSON object
{"subject": "...", "body": "..."}.`

// GenerateDraft turns a transcript into a subject and body.
func (s *Service) GenerateDraft(ctx context.Context, transcript string) (Draft, error) {
	reply, err := s.complete(ctx, CompletionRequest{System: draftSystem, Prompt: transcript, JSON: true, Temperature: 0.7})
	if err != nil {
		return Draft{}, fmt.Errorf("generate draft: %w", err)
	}
	d := ParseDraft(reply)
	d.To = ""
	return d, nil
}

const commandSystem = `You are a voice assistant inside an email client. Classify the instruction
and reply with a JSON object {"action": one of reply|archive|forward|snooze|schedule|search|compose|chat,
"response": "what to say back", "draft": "email text when replying or composing",
"searchQuery": "query when searching"}.`

// InterpretCommand classifies a spoken instruction, optionally in the context of an open thread.
func (s *Service) InterpretCommand(ctx context.Context, transcript, contextSubject string) (Command, error) {
	prompt := transcript
	if contextSubject != "" {
		prompt = fmt.Sprintf("Open thread: %s\n\nInstruction: %s", contextSubject, transcript)
	}
	reply, err := s.complete(ctx, CompletionRequest{System: commandSystem, Prompt: prompt, JSON: true, Temperature: 0.3})
	if err != nil {
		return Command{}, fmt.Errorf("interpret command: %w", err)
	}
	return ParseCommand(reply), nil
}

// IsUnavailable reports whether err means no provider is configured.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrAIUnavailable)
}
