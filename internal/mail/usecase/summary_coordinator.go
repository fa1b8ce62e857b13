package usecase

import (
	"context"
	"fmt"
	"sync"

	"sage-backend/internal/mail/domain"
	"sage-backend/internal/mail/repository"
	"sage-backend/pkg/metrics"

	"github.com/rs/zerolog"
)

// SummaryJob is one summary cycle for a loaded thread.
type SummaryJob struct {
	UserID          string
	Generation      uint64
	ThreadID        string
	LatestMessageID string
	Excerpt         string
	Subject         string
}

// SummarySink receives finished summary cycles. ApplySummary returns false when the
// cycle was superseded and its result dropped.
type SummarySink interface {
	ApplySummary(job SummaryJob, result *domain.SummaryResult, err error) bool
}

// SummaryCoordinator runs summary cycles on a pool of workers, off the thread load path.
type SummaryCoordinator struct {
	summarizer  domain.Summarizer
	cache       repository.ThreadSummaryRepository
	sink        SummarySink
	metrics     *metrics.Metrics
	log         zerolog.Logger
	jobQueue    chan SummaryJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// NewSummaryCoordinator creates a coordinator. cache may be nil.
func NewSummaryCoordinator(
	summarizer domain.Summarizer,
	cache repository.ThreadSummaryRepository,
	m *metrics.Metrics,
	workerCount int,
	log zerolog.Logger,
) *SummaryCoordinator {
	if workerCount <= 0 {
		workerCount = 3
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &SummaryCoordinator{
		summarizer:  summarizer,
		cache:       cache,
		metrics:     m,
		log:         log,
		jobQueue:    make(chan SummaryJob, 100),
		workerCount: workerCount,
	}
}

// SetSink sets where finished cycles are delivered.
func (c *SummaryCoordinator) SetSink(sink SummarySink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// Start starts the workers.
func (c *SummaryCoordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.stopped {
		return
	}
	for i := 0; i < c.workerCount; i++ {
		c.workerWg.Add(1)
		go c.worker(i)
	}
	c.started = true
	c.log.Info().Int("workers", c.workerCount).Msg("summary workers started")
}

// Stop drains the queue and waits for the workers.
func (c *SummaryCoordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	close(c.jobQueue)
	c.mu.Unlock()

	c.workerWg.Wait()
	c.log.Info().Msg("summary workers stopped")
}

// Request queues a cycle without blocking. A full queue or a stopped coordinator fails
// the cycle immediately.
func (c *SummaryCoordinator) Request(job SummaryJob) {
	c.mu.Lock()
	queued := false
	if !c.stopped {
		select {
		case c.jobQueue <- job:
			queued = true
		default:
		}
	}
	c.mu.Unlock()

	if !queued {
		c.log.Warn().Str("thread_id", job.ThreadID).Msg("summary queue unavailable")
		c.deliver(job, nil, fmt.Errorf("summary queue full: %w", domain.ErrSummaryFailed), "failed")
	}
}

func (c *SummaryCoordinator) worker(id int) {
	defer c.workerWg.Done()
	for job := range c.jobQueue {
		c.process(job)
	}
	c.log.Debug().Int("worker", id).Msg("summary worker exiting")
}

func (c *SummaryCoordinator) process(job SummaryJob) {
	log := c.log.With().Str("user_id", job.UserID).Str("thread_id", job.ThreadID).Uint64("generation", job.Generation).Logger()

	if c.cache != nil && job.LatestMessageID != "" {
		cached, err := c.cache.GetSummary(job.UserID, job.ThreadID)
		if err != nil {
			log.Warn().Err(err).Msg("summary cache lookup failed")
		} else if cached != nil && cached.LatestMessageID == job.LatestMessageID {
			result := cached.Result()
			c.deliver(job, &result, nil, "cached")
			return
		}
	}

	if c.summarizer == nil {
		c.deliver(job, nil, domain.ErrAIUnavailable, "failed")
		return
	}

	// The cycle outlives the request that started it.
	result, err := c.summarizer.SummarizeThread(context.Background(), job.Excerpt, job.Subject)
	if err != nil {
		log.Warn().Err(err).Msg("summary failed")
		c.deliver(job, nil, err, "failed")
		return
	}

	if c.cache != nil && job.LatestMessageID != "" {
		if err := c.cache.SaveSummary(job.UserID, job.ThreadID, job.LatestMessageID, result); err != nil {
			log.Warn().Err(err).Msg("summary cache save failed")
		}
	}
	c.deliver(job, &result, nil, "ok")
}

func (c *SummaryCoordinator) deliver(job SummaryJob, result *domain.SummaryResult, err error, outcome string) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()

	if sink != nil && !sink.ApplySummary(job, result, err) {
		outcome = "stale"
	}
	c.metrics.Summaries.WithLabelValues(outcome).Inc()
}
