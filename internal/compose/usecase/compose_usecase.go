package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/ai"

	"github.com/rs/zerolog"
)

var ErrInvalidRequest = errors.New("invalid request")

// Assistant is the AI surface used by compose and voice flows.
type Assistant interface {
	SummarizeThread(ctx context.Context, excerpt, subject string) (domain.SummaryResult, error)
	ComposeFromPrompt(ctx context.Context, prompt string) (ai.Draft, error)
	GenerateDraft(ctx context.Context, transcript string) (ai.Draft, error)
	InterpretCommand(ctx context.Context, transcript, contextSubject string) (ai.Command, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type ComposeUsecase interface {
	Summarize(ctx context.Context, emailBody, subject string) (domain.SummaryResult, error)
	Compose(ctx context.Context, prompt string) (ai.Draft, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	DraftFromTranscript(ctx context.Context, text string) (ai.Draft, error)
	InterpretCommand(ctx context.Context, text, contextSubject string) (ai.Command, error)
	Send(ctx context.Context, credential, to, subject, body string) error
}

type composeUsecase struct {
	assistant   Assistant
	transcriber Transcriber
	sender      domain.MailSender
	log         zerolog.Logger
}

// NewComposeUsecase wires the compose flows. A nil sender makes Send report ErrUnsupported.
func NewComposeUsecase(assistant Assistant, transcriber Transcriber, sender domain.MailSender, log zerolog.Logger) ComposeUsecase {
	return &composeUsecase{
		assistant:   assistant,
		transcriber: transcriber,
		sender:      sender,
		log:         log,
	}
}

func (u *composeUsecase) Summarize(ctx context.Context, emailBody, subject string) (domain.SummaryResult, error) {
	if strings.TrimSpace(emailBody) == "" {
		return domain.SummaryResult{}, fmt.Errorf("emailBody is required: %w", ErrInvalidRequest)
	}
	return u.assistant.SummarizeThread(ctx, emailBody, subject)
}

func (u *composeUsecase) Compose(ctx context.Context, prompt string) (ai.Draft, error) {
	if strings.TrimSpace(prompt) == "" {
		return ai.Draft{}, fmt.Errorf("prompt is required: %w", ErrInvalidRequest)
	}
	return u.assistant.ComposeFromPrompt(ctx, prompt)
}

func (u *composeUsecase) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if u.transcriber == nil {
		return "", domain.ErrAIUnavailable
	}
	return u.transcriber.Transcribe(ctx, audio, filename)
}

func (u *composeUsecase) DraftFromTranscript(ctx context.Context, text string) (ai.Draft, error) {
	if strings.TrimSpace(text) == "" {
		return ai.Draft{}, fmt.Errorf("text is required: %w", ErrInvalidRequest)
	}
	return u.assistant.GenerateDraft(ctx, text)
}

func (u *composeUsecase) InterpretCommand(ctx context.Context, text, contextSubject string) (ai.Command, error) {
	if strings.TrimSpace(text) == "" {
		return ai.Command{}, fmt.Errorf("text is required: %w", ErrInvalidRequest)
	}
	return u.assistant.InterpretCommand(ctx, text, contextSubject)
}

// Send validates the recipients and delivers the message with newlines rendered as <br>.
func (u *composeUsecase) Send(ctx context.Context, credential, to, subject, body string) error {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(subject) == "" || strings.TrimSpace(body) == "" {
		return fmt.Errorf("to, subject and body are required: %w", ErrInvalidRequest)
	}
	if u.sender == nil {
		return domain.ErrUnsupported
	}

	list, err := mail.ParseAddressList(to)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, ErrInvalidRequest)
	}
	recipients := make([]string, 0, len(list))
	for _, a := range list {
		recipients = append(recipients, a.Address)
	}

	body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "<br>")
	if err := u.sender.Send(ctx, credential, domain.OutgoingMessage{To: recipients, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	u.log.Info().Int("recipients", len(recipients)).Msg("mail sent")
	return nil
}
