package dto

import (
	"time"

	"sage-backend/internal/mail/domain"
)

type InboxItem struct {
	ID          string         `json:"id"`
	ThreadID    string         `json:"threadId"`
	Subject     string         `json:"subject"`
	From        domain.Address `json:"from"`
	CreatedTime time.Time      `json:"createdTime"`
	Snippet     string         `json:"snippet"`
}

type InboxResponse struct {
	Messages []InboxItem `json:"messages"`
	Count    int         `json:"count"`
	Query    string      `json:"query,omitempty"`
}

type ThreadResponse struct {
	Thread *domain.Thread `json:"thread"`
}

type SelectThreadRequest struct {
	ThreadID string `json:"threadId" binding:"required"`
}

func NewInboxResponse(msgs []domain.Message, query string) InboxResponse {
	items := make([]InboxItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, InboxItem{
			ID:          m.ID,
			ThreadID:    m.ThreadID,
			Subject:     m.Subject,
			From:        m.From,
			CreatedTime: m.CreatedTime,
			Snippet:     m.Snippet,
		})
	}
	return InboxResponse{Messages: items, Count: len(items), Query: query}
}
