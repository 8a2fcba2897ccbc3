package notifications

import (
	"sync"
	"time"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// EventType represents the type of notification event
type EventType string

const (
	EventConnected       EventType = "connected"
	EventProposalCreated EventType = "proposal-created"
	EventProposalRemoved EventType = "proposal-removed"
)

// Event represents a notification event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	EntityID  string    `json:"entityId,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Service manages SSE subscriptions and event broadcasting
type Service struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	done        chan struct{}
	closed      bool
}

// NewService creates a new notification service
func NewService() *Service {
	return &Service{
		subscribers: make(map[chan Event]struct{}),
		done:        make(chan struct{}),
	}
}

// Subscribe creates a new subscription channel
// Returns the event channel and an unsubscribe function
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 10)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Only close if the channel is still in subscribers map
		if _, exists := s.subscribers[ch]; exists {
			delete(s.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Done is closed when the service shuts down
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Notify broadcasts an event to all subscribers
func (s *Service) Notify(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// NotifyProposalCreated sends a proposal-created event carrying the proposal
func (s *Service) NotifyProposalCreated(entityID string, p models.TaskProposal) {
	s.Notify(Event{
		Type:      EventProposalCreated,
		Timestamp: time.Now().UnixMilli(),
		EntityID:  entityID,
		Data:      p,
	})
}

// NotifyProposalRemoved sends a proposal-removed event
func (s *Service) NotifyProposalRemoved(entityID, proposalID string) {
	s.Notify(Event{
		Type:      EventProposalRemoved,
		Timestamp: time.Now().UnixMilli(),
		EntityID:  entityID,
		Data: map[string]interface{}{
			"proposalId": proposalID,
		},
	})
}

// Shutdown closes the notification service
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)

	// Close all subscriber channels
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Event]struct{})
}

// SubscriberCount returns the number of active subscribers
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
