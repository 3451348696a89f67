package dynvar

import (
	"encoding/json"
	"sync"
	"time"
)

// Action identifies one slot transition recorded for an overlay binding.
type Action string

const (
	// ActionInstall marks a new value being written into a slot.
	ActionInstall Action = "install"
	// ActionRestore marks a captured prior value being written back.
	ActionRestore Action = "restore"
)

// Event captures provenance for one slot transition: which overlay invocation
// touched which variable, in which direction, and the override depth the
// variable was left at.
type Event struct {
	OverlayID  string    `json:"overlay_id"`
	Var        string    `json:"var"`
	Action     Action    `json:"action"`
	Depth      int       `json:"depth"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Trace accumulates the ordered transitions of one or more overlay
// invocations. Install events for a multi-variable overlay appear in
// declaration order and restore events in exactly reverse order. A Trace is
// safe to share across goroutines.
type Trace struct {
	mu     sync.Mutex
	events []Event
}

// NewTrace returns an empty trace ready to pass to WithTrace.
func NewTrace() *Trace {
	return &Trace{}
}

func (t *Trace) append(event Event) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns a copy of the recorded transitions in order.
func (t *Trace) Events() []Event {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Len returns the number of recorded transitions.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}

type traceDocument struct {
	Events []Event `json:"events"`
}

// ToJSON serialises the trace for logging or transport helpers.
func (t *Trace) ToJSON() ([]byte, error) {
	return json.Marshal(traceDocument{Events: t.Events()})
}

// TraceFromJSON deserialises a payload previously generated via ToJSON.
func TraceFromJSON(payload []byte) (*Trace, error) {
	var doc traceDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}
	return &Trace{events: doc.Events}, nil
}
