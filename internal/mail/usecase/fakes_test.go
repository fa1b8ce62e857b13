package usecase

import (
	"context"
	"errors"
	"sync"

	"sage-backend/internal/mail/domain"
)

type fakeSource struct {
	mu       sync.Mutex
	messages []domain.Message
	inbox    []domain.Message
	err      error
	// gates holds a channel per thread id; a fetch for that thread waits on it.
	gates map[string]chan struct{}
	calls int
}

func (f *fakeSource) ListThreadMessages(ctx context.Context, _ string, threadID string) ([]domain.Message, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[threadID]
	msgs, err := append([]domain.Message(nil), f.messages...), f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return msgs, err
}

func (f *fakeSource) ListInbox(_ context.Context, _ string, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := append([]domain.Message(nil), f.inbox...)
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// fakeSummarizer blocks each call until release is called with its subject.
type fakeSummarizer struct {
	mu      sync.Mutex
	gates   map[string]chan summaryReply
	calls   []string
	blocked bool
}

type summaryReply struct {
	result domain.SummaryResult
	err    error
}

func newFakeSummarizer(blocked bool) *fakeSummarizer {
	return &fakeSummarizer{gates: map[string]chan summaryReply{}, blocked: blocked}
}

func (f *fakeSummarizer) gate(subject string) chan summaryReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[subject]
	if !ok {
		ch = make(chan summaryReply, 1)
		f.gates[subject] = ch
	}
	return ch
}

func (f *fakeSummarizer) SummarizeThread(_ context.Context, _ string, subject string) (domain.SummaryResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, subject)
	blocked := f.blocked
	f.mu.Unlock()

	if !blocked {
		return domain.SummaryResult{Bullets: []string{"summary of " + subject}, Category: domain.CategoryFYI}, nil
	}
	reply := <-f.gate(subject)
	return reply.result, reply.err
}

func (f *fakeSummarizer) release(subject string, result domain.SummaryResult, err error) {
	f.gate(subject) <- summaryReply{result: result, err: err}
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type sentEvent struct {
	userID  string
	event   string
	payload interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeNotifier) SendToUser(userID, event string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{userID: userID, event: event, payload: payload})
}

func (f *fakeNotifier) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type fakeCache struct {
	mu    sync.Mutex
	rows  map[string]*domain.ThreadSummary
	saves int
}

func newFakeCache() *fakeCache {
	return &fakeCache{rows: map[string]*domain.ThreadSummary{}}
}

func (f *fakeCache) GetSummary(userID, threadID string) (*domain.ThreadSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[userID+"/"+threadID]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (f *fakeCache) SaveSummary(userID, threadID, latestMessageID string, result domain.SummaryResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.rows[userID+"/"+threadID] = &domain.ThreadSummary{
		UserID:          userID,
		ThreadID:        threadID,
		LatestMessageID: latestMessageID,
		Bullets:         result.Bullets,
		Category:        string(result.Category),
	}
	return nil
}

func (f *fakeCache) DeleteSummary(userID, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, userID+"/"+threadID)
	return nil
}

var errUpstream = errors.New("aurinko API error (500): boom")
