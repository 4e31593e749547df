package events

import (
	"sync"
	"time"

	"batch-transcriber/internal/domain"
)

// Type classifies notifications emitted during batch execution.
type Type string

const (
	TypeBatchStarted   Type = "batch_started"
	TypePhase          Type = "phase"
	TypeRecordCreated  Type = "record_created"
	TypeFileCompleted  Type = "file_completed"
	TypeBatchCompleted Type = "batch_completed"
	TypeBatchFailed    Type = "batch_failed"
)

// Event is a sequenced payload consumed by subscribers. The core makes
// no assumption about subscriber count or behavior; publishing never
// blocks on a reader.
type Event struct {
	Seq       int64        `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
	Type      Type         `json:"type"`
	Phase     domain.Phase `json:"phase,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
	RecordID  int64        `json:"recordId,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Bus stores recent events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns sequence and timestamp.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
