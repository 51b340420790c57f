package emit

import (
	"context"
	"sync"
)

// BufferedEmitter accumulates events in memory instead of shipping
// them anywhere, with an optional Filter to drop events the caller
// doesn't care about before they're retained. It exists for tests and
// for short-lived diagnostic captures ("show me what this case just
// did") where a real backend would be overkill.
//
// Filter, if set, is consulted before an event is appended; returning
// false drops the event without it ever entering history.
type BufferedEmitter struct {
	mu      sync.Mutex
	history []Event
	Filter  func(Event) bool
}

func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{}
}

func (b *BufferedEmitter) Emit(event Event) {
	if b.Filter != nil && !b.Filter(event) {
		return
	}
	b.mu.Lock()
	b.history = append(b.history, event)
	b.mu.Unlock()
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, event := range events {
		b.Emit(event)
	}
	return nil
}

// Flush is a no-op; BufferedEmitter never sheds events on its own.
func (b *BufferedEmitter) Flush(context.Context) error {
	return nil
}

// History returns a snapshot of every retained event, in emit order.
func (b *BufferedEmitter) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// ForCase returns the subset of History whose CaseID matches.
func (b *BufferedEmitter) ForCase(caseID string) []Event {
	all := b.History()
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.CaseID == caseID {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears retained history.
func (b *BufferedEmitter) Reset() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
}
