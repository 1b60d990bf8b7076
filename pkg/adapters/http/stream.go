package http

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
)

// Message is one SSE frame: the event kind and its JSON payload.
type Message struct {
	Kind string
	Data []byte
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Message]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates a manager with no subscribers.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan Message]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel and returns it with its cancel function.
func (sm *StreamManager) Subscribe() (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, 32)
	sm.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			delete(sm.subscribers, ch)
			close(ch)
		})
	}
}

// Len returns the number of connected clients.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Notify implements ports.Notifier: every event is encoded once and fanned out.
func (sm *StreamManager) Notify(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		sm.logger.Error("SSE: failed to encode event", "kind", event.Kind().String(), "err", err)
		return
	}
	sm.Broadcast(Message{Kind: event.Kind().String(), Data: data})
}

// Broadcast delivers msg to every subscriber without blocking.
func (sm *StreamManager) Broadcast(msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop the message if the channel is full (slow client)
			sm.logger.Warn("SSE: client buffer full, dropping message", "kind", msg.Kind)
		}
	}
}
