package checkout

import (
	"sync"
	"time"
)

// State names the sequencer's position in the checkout flow.
type State string

const (
	StateIdle             State = "Idle"
	StateLoggingIn        State = "LoggingIn"
	StateAddingProducts   State = "AddingProducts"
	StateAwaitingSchedule State = "AwaitingSchedule"
	StateFillingPayment   State = "FillingPayment"
	StateSubmitting       State = "Submitting"
	StateSucceeded        State = "Succeeded"
	StateFailed           State = "Failed"
)

// Status is one entry in a run's append-only status stream.
type Status struct {
	Time     time.Time     `json:"time"`
	State    State         `json:"state"`
	Message  string        `json:"message"`
	Terminal bool          `json:"terminal"`
	Reason   FailureReason `json:"reason,omitempty"`
}

// StatusLog collects Status entries from the single sequencer worker so the
// input collector can observe them. Entries are only ever appended; the log
// lives for the run and is discarded at process exit.
type StatusLog struct {
	mu      sync.Mutex
	entries []Status
}

func NewStatusLog() *StatusLog {
	return &StatusLog{}
}

// Append adds one entry. Only the run's single worker writes.
func (l *StatusLog) Append(s Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

// Snapshot returns a copy of all entries appended so far.
func (l *StatusLog) Snapshot() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Status, len(l.entries))
	copy(out, l.entries)
	return out
}

// Terminal returns the terminal entry, if the run has reached one.
func (l *StatusLog) Terminal() (Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Terminal {
			return l.entries[i], true
		}
	}
	return Status{}, false
}
