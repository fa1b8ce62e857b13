package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Event is one server-sent event addressed to a user.
type Event struct {
	UserID string
	Name   string
	Data   string
}

type client struct {
	userID string
	ch     chan Event
}

// Manager fans events out to every open stream of a user.
type Manager struct {
	mu         sync.RWMutex
	clients    map[string]map[*client]struct{}
	register   chan *client
	unregister chan *client
	events     chan Event
	done       chan struct{}
	heartbeat  time.Duration
	log        zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		clients:    make(map[string]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		heartbeat:  25 * time.Second,
		log:        log,
	}
}

// Run processes registrations and deliveries until Stop is called.
func (m *Manager) Run() {
	for {
		select {
		case c := <-m.register:
			m.mu.Lock()
			if m.clients[c.userID] == nil {
				m.clients[c.userID] = make(map[*client]struct{})
			}
			m.clients[c.userID][c] = struct{}{}
			m.mu.Unlock()
			m.log.Debug().Str("user_id", c.userID).Msg("client connected")

		case c := <-m.unregister:
			m.mu.Lock()
			if set, ok := m.clients[c.userID]; ok {
				if _, ok := set[c]; ok {
					delete(set, c)
					close(c.ch)
				}
				if len(set) == 0 {
					delete(m.clients, c.userID)
				}
			}
			m.mu.Unlock()
			m.log.Debug().Str("user_id", c.userID).Msg("client disconnected")

		case evt := <-m.events:
			m.mu.RLock()
			for c := range m.clients[evt.UserID] {
				select {
				case c.ch <- evt:
				default:
					m.log.Warn().Str("user_id", evt.UserID).Str("event", evt.Name).Msg("client buffer full, event dropped")
				}
			}
			m.mu.RUnlock()

		case <-m.done:
			return
		}
	}
}

// Stop ends Run.
func (m *Manager) Stop() {
	close(m.done)
}

// SendToUser queues an event. The payload is JSON encoded. It never blocks the caller.
func (m *Manager) SendToUser(userID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error().Err(err).Str("event", event).Msg("failed to encode event payload")
		return
	}
	select {
	case m.events <- Event{UserID: userID, Name: event, Data: string(data)}:
	default:
		m.log.Warn().Str("user_id", userID).Str("event", event).Msg("event queue full, event dropped")
	}
}

// ConnectedClients returns the number of open streams for a user.
func (m *Manager) ConnectedClients(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// ServeHTTP streams events for userID until the request ends.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	cl := &client{userID: userID, ch: make(chan Event, 32)}
	select {
	case m.register <- cl:
	case <-m.done:
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer func() {
		select {
		case m.unregister <- cl:
		case <-m.done:
		}
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	c.SSEvent("connected", gin.H{"user_id": userID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-cl.ch:
			if !ok {
				return false
			}
			c.SSEvent(evt.Name, evt.Data)
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
