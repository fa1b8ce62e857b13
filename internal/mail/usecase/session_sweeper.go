package usecase

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// IdleEvictor closes sessions that have not been used for maxIdle.
type IdleEvictor interface {
	EvictIdle(maxIdle time.Duration) int
}

// SessionSweeper periodically evicts idle view sessions.
type SessionSweeper struct {
	views    IdleEvictor
	interval time.Duration
	maxIdle  time.Duration
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSessionSweeper creates a sweeper. A zero interval defaults to one minute.
func NewSessionSweeper(views IdleEvictor, interval, maxIdle time.Duration, log zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SessionSweeper{
		views:    views,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. A non-positive maxIdle disables it.
func (s *SessionSweeper) Start() {
	if s.maxIdle <= 0 {
		s.log.Info().Msg("idle view eviction disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.views.EvictIdle(s.maxIdle); n > 0 {
					s.log.Info().Int("evicted", n).Dur("max_idle", s.maxIdle).Msg("evicted idle view sessions")
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop ends the sweep loop. It is safe to call more than once.
func (s *SessionSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}
