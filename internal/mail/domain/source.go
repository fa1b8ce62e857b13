package domain

import "context"

// MessageSource fetches raw messages from a mail provider. ListThreadMessages may return
// messages from other threads; callers filter.
type MessageSource interface {
	ListThreadMessages(ctx context.Context, credential, threadID string) ([]Message, error)
	ListInbox(ctx context.Context, credential string, limit int) ([]Message, error)
}

// MailSender delivers outgoing mail.
type MailSender interface {
	Send(ctx context.Context, credential string, msg OutgoingMessage) error
}

// Summarizer produces a SummaryResult for a conversation excerpt.
type Summarizer interface {
	SummarizeThread(ctx context.Context, excerpt, subject string) (SummaryResult, error)
}

// Notifier pushes events to a connected user.
type Notifier interface {
	SendToUser(userID, event string, payload interface{})
}
