package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/fuzzy"
	"sage-backend/pkg/metrics"
	"sage-backend/pkg/sanitize"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ThreadUsecase loads display-ready threads and inbox listings from a message source.
type ThreadUsecase interface {
	GetThread(ctx context.Context, credential, threadID string) (*domain.Thread, error)
	Inbox(ctx context.Context, credential string, limit int, query string) ([]domain.Message, error)
}

type threadUsecase struct {
	source      domain.MessageSource
	metrics     *metrics.Metrics
	concurrency int
	inboxLimit  int
	log         zerolog.Logger
}

// NewThreadUsecase creates a ThreadUsecase. concurrency bounds how many bodies are
// rendered at once.
func NewThreadUsecase(source domain.MessageSource, m *metrics.Metrics, concurrency, inboxLimit int, log zerolog.Logger) ThreadUsecase {
	if concurrency <= 0 {
		concurrency = 4
	}
	if inboxLimit <= 0 {
		inboxLimit = 20
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &threadUsecase{
		source:      source,
		metrics:     m,
		concurrency: concurrency,
		inboxLimit:  inboxLimit,
		log:         log,
	}
}

// GetThread fetches, filters, orders and renders one thread. It returns ErrInvalidThreadID
// for a blank id and ErrThreadNotFound when no message belongs to the thread.
func (u *threadUsecase) GetThread(ctx context.Context, credential, threadID string) (*domain.Thread, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, domain.ErrInvalidThreadID
	}

	start := time.Now()
	raw, err := u.source.ListThreadMessages(ctx, credential, threadID)
	u.metrics.FetchLatency.WithLabelValues("thread").Observe(time.Since(start).Seconds())
	if err != nil {
		u.metrics.ThreadLoads.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("fetch thread %s: %w", threadID, err)
	}

	thread, err := NormalizeThread(raw, threadID)
	if err != nil {
		if errors.Is(err, domain.ErrThreadNotFound) {
			u.metrics.ThreadLoads.WithLabelValues("not_found").Inc()
			u.log.Info().Str("thread_id", threadID).Int("scanned", len(raw)).Msg("no messages matched thread")
		}
		return nil, err
	}

	u.render(ctx, thread)
	u.metrics.ThreadLoads.WithLabelValues("ok").Inc()
	return thread, nil
}

// render fills HTMLBody for every message. A body that fails to sanitize keeps its partial output.
func (u *threadUsecase) render(ctx context.Context, thread *domain.Thread) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, m := range thread.Messages {
		m := m
		g.Go(func() error {
			out, err := sanitize.Clean(ExtractHTMLBody(&m.Message))
			if err != nil {
				u.log.Warn().Err(err).Str("message_id", m.ID).Msg("body rendered partially")
			}
			m.HTMLBody = out
			u.metrics.SanitizedBodies.Inc()
			return nil
		})
	}
	_ = g.Wait()
}

// Inbox lists recent messages newest first. A non-empty query keeps fuzzy matches only,
// ordered by relevance.
func (u *threadUsecase) Inbox(ctx context.Context, credential string, limit int, query string) ([]domain.Message, error) {
	if limit <= 0 {
		limit = u.inboxLimit
	}

	start := time.Now()
	msgs, err := u.source.ListInbox(ctx, credential, limit)
	u.metrics.FetchLatency.WithLabelValues("inbox").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch inbox: %w", err)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedTime.After(msgs[j].CreatedTime)
	})

	query = strings.TrimSpace(query)
	if query == "" {
		return msgs, nil
	}

	type scored struct {
		msg   domain.Message
		score float64
	}
	matches := make([]scored, 0, len(msgs))
	for _, m := range msgs {
		f := fuzzy.Fields{Subject: m.Subject, FromName: m.From.Name, From: m.From.Address, Snippet: m.Snippet}
		if !fuzzy.MatchMessage(query, f) {
			continue
		}
		matches = append(matches, scored{msg: m, score: fuzzy.Score(query, f)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	out := make([]domain.Message, len(matches))
	for i, s := range matches {
		out[i] = s.msg
	}
	return out, nil
}
