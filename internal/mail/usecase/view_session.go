package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sage-backend/internal/mail/domain"
	"sage-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

const (
	EventViewUpdate    = "view_update"
	EventSummaryUpdate = "summary_update"
)

// ViewUsecase holds one thread view per user. Every state change is pushed to the user.
type ViewUsecase interface {
	Select(ctx context.Context, userID, credential, threadID string) (domain.ViewSnapshot, error)
	Retry(ctx context.Context, userID, credential string) (domain.ViewSnapshot, error)
	ToggleExpanded(userID, messageID string) (domain.ViewSnapshot, error)
	Snapshot(userID string) domain.ViewSnapshot
	Close(userID string)
	EvictIdle(maxIdle time.Duration) int
}

type viewSession struct {
	mu           sync.Mutex
	generation   uint64
	threadID     string
	credential   string
	state        domain.ViewState
	notice       string
	thread       *domain.Thread
	summaryState domain.SummaryState
	summary      *domain.SummaryResult
	summaryNote  string
	lastActive   time.Time
}

func (s *viewSession) snapshot() domain.ViewSnapshot {
	snap := domain.ViewSnapshot{
		Generation:   s.generation,
		ThreadID:     s.threadID,
		State:        s.state,
		Notice:       s.notice,
		CanRetry:     s.state == domain.ViewNotFound || s.state == domain.ViewFailed,
		SummaryState: s.summaryState,
		SummaryNote:  s.summaryNote,
	}
	if s.thread != nil {
		snap.Thread = copyThread(s.thread)
	}
	if s.summary != nil {
		result := *s.summary
		result.Bullets = append([]string(nil), s.summary.Bullets...)
		snap.Summary = &result
	}
	return snap
}

type viewUsecase struct {
	threads     ThreadUsecase
	summaries   *SummaryCoordinator
	notifier    domain.Notifier
	metrics     *metrics.Metrics
	maxMessages int
	log         zerolog.Logger
	now         func() time.Time

	// generations are unique across sessions so a result never matches a recreated session
	nextGen  atomic.Uint64
	mu       sync.Mutex
	sessions map[string]*viewSession
}

// NewViewUsecase creates the view sessions and registers them as the coordinator's sink.
// notifier may be nil.
func NewViewUsecase(
	threads ThreadUsecase,
	summaries *SummaryCoordinator,
	notifier domain.Notifier,
	m *metrics.Metrics,
	maxMessages int,
	log zerolog.Logger,
) ViewUsecase {
	if maxMessages <= 0 {
		maxMessages = 10
	}
	if m == nil {
		m = metrics.NewNop()
	}
	v := &viewUsecase{
		threads:     threads,
		summaries:   summaries,
		notifier:    notifier,
		metrics:     m,
		maxMessages: maxMessages,
		log:         log,
		now:         time.Now,
		sessions:    make(map[string]*viewSession),
	}
	if summaries != nil {
		summaries.SetSink(v)
	}
	return v
}

func (v *viewUsecase) session(userID string, create bool) *viewSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[userID]
	if !ok && create {
		s = &viewSession{state: domain.ViewIdle, summaryState: domain.SummaryIdle}
		v.sessions[userID] = s
	}
	return s
}

// Select starts a new load cycle. The fetched thread is applied only if no newer
// selection started meanwhile; otherwise ErrSuperseded is returned and the session is
// left to the newer cycle. NotFound and fetch failures are view states, not errors.
func (v *viewUsecase) Select(ctx context.Context, userID, credential, threadID string) (domain.ViewSnapshot, error) {
	if strings.TrimSpace(threadID) == "" {
		return domain.ViewSnapshot{}, domain.ErrInvalidThreadID
	}
	log := v.log.With().Str("user_id", userID).Str("thread_id", threadID).Logger()

	s := v.session(userID, true)
	gen := v.nextGen.Add(1)

	s.mu.Lock()
	s.lastActive = v.now()
	s.generation = gen
	s.threadID = threadID
	s.credential = credential
	s.state = domain.ViewLoading
	s.notice = ""
	s.thread = nil
	s.summaryState = domain.SummaryIdle
	s.summary = nil
	s.summaryNote = ""
	snap := s.snapshot()
	s.mu.Unlock()
	v.publish(userID, EventViewUpdate, snap)

	thread, err := v.threads.GetThread(ctx, credential, threadID)

	s.mu.Lock()
	if s.generation != gen || s.threadID != threadID {
		s.mu.Unlock()
		v.metrics.ThreadLoads.WithLabelValues("superseded").Inc()
		log.Debug().Uint64("generation", gen).Msg("dropping superseded thread load")
		return domain.ViewSnapshot{}, domain.ErrSuperseded
	}

	var job *SummaryJob
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		s.state = domain.ViewNotFound
		s.notice = domain.NoticeNotFound
		log.Info().Msg("thread not found")
	case err != nil:
		s.state = domain.ViewFailed
		s.notice = domain.NoticeLoadFailed
		log.Error().Err(err).Msg("thread load failed")
	default:
		s.state = domain.ViewReady
		s.thread = thread
		s.summaryState = domain.SummaryRequesting
		s.summaryNote = domain.NoticeGenerating
		excerpt, subject := BuildExcerpt(thread, v.maxMessages)
		job = &SummaryJob{
			UserID:          userID,
			Generation:      gen,
			ThreadID:        threadID,
			LatestMessageID: thread.Latest().ID,
			Excerpt:         excerpt,
			Subject:         subject,
		}
	}
	snap = s.snapshot()
	s.mu.Unlock()
	v.publish(userID, EventViewUpdate, snap)

	if job != nil {
		if v.summaries != nil {
			v.summaries.Request(*job)
		} else {
			v.ApplySummary(*job, nil, domain.ErrAIUnavailable)
		}
	}
	return snap, nil
}

// Retry reloads the selected thread from scratch.
func (v *viewUsecase) Retry(ctx context.Context, userID, credential string) (domain.ViewSnapshot, error) {
	s := v.session(userID, false)
	if s == nil {
		return domain.ViewSnapshot{}, domain.ErrNoSession
	}
	s.mu.Lock()
	threadID := s.threadID
	if credential == "" {
		credential = s.credential
	}
	s.mu.Unlock()
	if threadID == "" {
		return domain.ViewSnapshot{}, domain.ErrNoSession
	}
	return v.Select(ctx, userID, credential, threadID)
}

// ToggleExpanded flips one message of the loaded thread.
func (v *viewUsecase) ToggleExpanded(userID, messageID string) (domain.ViewSnapshot, error) {
	s := v.session(userID, false)
	if s == nil {
		return domain.ViewSnapshot{}, domain.ErrNoSession
	}

	s.mu.Lock()
	s.lastActive = v.now()
	if s.thread == nil {
		s.mu.Unlock()
		return domain.ViewSnapshot{}, domain.ErrNoSession
	}
	found := false
	for _, m := range s.thread.Messages {
		if m.ID == messageID {
			m.Expanded = !m.Expanded
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return domain.ViewSnapshot{}, domain.ErrMessageNotFound
	}
	snap := s.snapshot()
	s.mu.Unlock()

	v.publish(userID, EventViewUpdate, snap)
	return snap, nil
}

// Snapshot returns the current view, idle when nothing is selected.
func (v *viewUsecase) Snapshot(userID string) domain.ViewSnapshot {
	s := v.session(userID, false)
	if s == nil {
		return domain.ViewSnapshot{State: domain.ViewIdle, SummaryState: domain.SummaryIdle}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = v.now()
	return s.snapshot()
}

// Close discards the session. In-flight results for it are dropped.
func (v *viewUsecase) Close(userID string) {
	v.mu.Lock()
	delete(v.sessions, userID)
	v.mu.Unlock()
}

// EvictIdle closes every session not used for longer than maxIdle and returns how many
// were closed. Summary results still in flight for them are dropped.
func (v *viewUsecase) EvictIdle(maxIdle time.Duration) int {
	cutoff := v.now().Add(-maxIdle)

	v.mu.Lock()
	defer v.mu.Unlock()
	evicted := 0
	for userID, s := range v.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(v.sessions, userID)
			evicted++
		}
	}
	return evicted
}

// ApplySummary merges a finished cycle if it still belongs to the current selection.
func (v *viewUsecase) ApplySummary(job SummaryJob, result *domain.SummaryResult, err error) bool {
	s := v.session(job.UserID, false)
	if s == nil {
		v.log.Debug().Str("user_id", job.UserID).Str("thread_id", job.ThreadID).Msg("dropping summary for closed view")
		return false
	}

	s.mu.Lock()
	if s.generation != job.Generation || s.threadID != job.ThreadID {
		current := s.generation
		s.mu.Unlock()
		v.log.Info().
			Str("user_id", job.UserID).
			Str("thread_id", job.ThreadID).
			Uint64("generation", job.Generation).
			Uint64("current_generation", current).
			Msg("dropping stale summary")
		return false
	}

	if err != nil || result == nil {
		s.summaryState = domain.SummaryFailed
		s.summary = nil
		s.summaryNote = domain.NoticeNoSummary
	} else {
		s.summaryState = domain.SummarySucceeded
		r := *result
		s.summary = &r
		s.summaryNote = ""
	}
	snap := s.snapshot()
	s.mu.Unlock()

	v.publish(job.UserID, EventSummaryUpdate, map[string]interface{}{
		"threadId":     job.ThreadID,
		"generation":   job.Generation,
		"summaryState": snap.SummaryState,
		"summary":      snap.Summary,
		"summaryNote":  snap.SummaryNote,
	})
	v.publish(job.UserID, EventViewUpdate, snap)
	return true
}

func (v *viewUsecase) publish(userID, event string, payload interface{}) {
	if v.notifier == nil {
		return
	}
	v.notifier.SendToUser(userID, event, payload)
}

func copyThread(t *domain.Thread) *domain.Thread {
	out := &domain.Thread{ID: t.ID, Subject: t.Subject, Messages: make([]*domain.DisplayMessage, len(t.Messages))}
	for i, m := range t.Messages {
		cp := *m
		out.Messages[i] = &cp
	}
	return out
}
