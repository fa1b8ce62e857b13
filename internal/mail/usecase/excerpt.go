package usecase

import (
	"fmt"
	"strings"

	"sage-backend/internal/mail/domain"
)

const noSubject = "No Subject"

// BuildExcerpt renders at most maxMessages of the newest messages as "From name (date): snippet" lines.
func BuildExcerpt(thread *domain.Thread, maxMessages int) (excerpt, subject string) {
	if thread == nil || len(thread.Messages) == 0 {
		return "", noSubject
	}
	if maxMessages <= 0 || maxMessages > len(thread.Messages) {
		maxMessages = len(thread.Messages)
	}

	lines := make([]string, 0, maxMessages)
	for _, m := range thread.Messages[:maxMessages] {
		snippet := strings.Join(strings.Fields(m.Snippet), " ")
		lines = append(lines, fmt.Sprintf("From %s (%s): %s",
			m.From.DisplayName(), m.CreatedTime.UTC().Format("2006-01-02"), snippet))
	}

	subject = strings.TrimSpace(thread.Messages[0].Subject)
	if subject == "" {
		subject = noSubject
	}
	return strings.Join(lines, "\n"), subject
}
