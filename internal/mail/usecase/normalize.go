package usecase

import (
	"sort"
	"strings"

	"sage-backend/internal/mail/domain"
)

// NormalizeThread keeps the messages whose thread id equals threadID exactly, orders them
// newest first (stable on ties) and expands only the newest. An empty result is ErrThreadNotFound.
func NormalizeThread(raw []domain.Message, threadID string) (*domain.Thread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, domain.ErrInvalidThreadID
	}

	msgs := make([]*domain.DisplayMessage, 0, len(raw))
	for i := range raw {
		if raw[i].ThreadID != threadID {
			continue
		}
		msgs = append(msgs, &domain.DisplayMessage{Message: raw[i]})
	}
	if len(msgs) == 0 {
		return nil, domain.ErrThreadNotFound
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedTime.After(msgs[j].CreatedTime)
	})
	msgs[0].Expanded = true

	return &domain.Thread{
		ID:       threadID,
		Subject:  msgs[0].Subject,
		Messages: msgs,
	}, nil
}
