package attempt

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAdmissionDenied  EventType = "admission_denied"
	EventAttemptStarted   EventType = "attempt_started"
	EventAttemptFinalized EventType = "attempt_finalized"
	EventAttemptAborted   EventType = "attempt_aborted"
	EventFinalizeFailed   EventType = "finalize_failed"
)

// Trigger names what moved a session into Finalizing.
type Trigger string

const (
	TriggerSubmit Trigger = "submit"
	TriggerExpiry Trigger = "expiry"
)

// Event is a state change reported to the presentation layer.
type Event struct {
	Type             EventType    `json:"type"`
	SessionID        uuid.UUID    `json:"session_id"`
	StudentID        string       `json:"student_id"`
	ScheduledTestID  uint         `json:"scheduled_test_id"`
	AttemptID        uint         `json:"attempt_id,omitempty"`
	Reason           DenialReason `json:"reason,omitempty"`
	Trigger          Trigger      `json:"trigger,omitempty"`
	Score            *float64     `json:"score,omitempty"`
	RemainingSeconds *int64       `json:"remaining_seconds,omitempty"`
	Resumed          bool         `json:"resumed,omitempty"`
	Error            string       `json:"error,omitempty"`
	At               time.Time    `json:"at"`
}

// Terminal reports whether no further events follow for the session.
func (e Event) Terminal() bool {
	return e.Type == EventAttemptFinalized || e.Type == EventAttemptAborted
}

type Notifier interface {
	Notify(Event)
}

type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

const subscriberBuffer = 8

// Broadcaster logs every event and fans it out to subscribers of its session.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[uuid.UUID]map[int]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[uuid.UUID]map[int]chan Event{}}
}

func (b *Broadcaster) Notify(ev Event) {
	l := log.Info()
	if ev.Type == EventFinalizeFailed {
		l = log.Warn()
	}
	l.Str("event", string(ev.Type)).
		Str("session_id", ev.SessionID.String()).
		Str("student_id", ev.StudentID).
		Uint("scheduled_test_id", ev.ScheduledTestID).
		Uint("attempt_id", ev.AttemptID).
		Str("trigger", string(ev.Trigger)).
		Str("reason", string(ev.Reason)).
		Msg("attempt event")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("session_id", ev.SessionID.String()).Msg("event subscriber is full, dropping event")
		}
	}
}

// Subscribe returns a channel of events for one session and a cancel
// function that must be called when the subscriber is done.
func (b *Broadcaster) Subscribe(sessionID uuid.UUID) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = map[int]chan Event{}
	}
	b.subs[sessionID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[sessionID], id)
			if len(b.subs[sessionID]) == 0 {
				delete(b.subs, sessionID)
			}
		})
	}
}
