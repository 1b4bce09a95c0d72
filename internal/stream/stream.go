package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the case file service.
const (
	IncidentReported    = "incident.reported"
	EntityCreated       = "entity.created"
	EntityUpdated       = "entity.updated"
	AssessmentUpdated   = "assessment.updated"
	StatusUpdated       = "status.updated"
	MembershipChanged   = "membership.changed"
	RelationshipChanged = "relationship.changed"
	HearingOpened       = "hearing.opened"
	HearingResponse     = "hearing.response"
	HearingClosed       = "hearing.closed"
	StatementRequested  = "statement.requested"
	StatementSubmitted  = "statement.submitted"
	StatementCommented  = "statement.commented"
)

// Event is a change notification for live case views.
type Event struct {
	Type       string    `json:"type"`
	TargetKind string    `json:"target_kind,omitempty"`
	TargetID   string    `json:"target_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Data       any       `json:"data,omitempty"`
}

// Publisher accepts events.
type Publisher interface {
	Publish(evt Event)
}

// Stream fan-outs events to all active subscribers (SSE clients).
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	next    int
	dropped atomic.Int64
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscribers miss events rather than block publishers.
			s.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
