package testutil

import "sync"

// CallLog is an ordered, shared record of fake collaborator calls.
// A nil *CallLog discards everything.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

// NewCallLog creates an empty log.
func NewCallLog() *CallLog {
	return &CallLog{}
}

// Add appends a call.
func (l *CallLog) Add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Reset clears the log.
func (l *CallLog) Reset() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}
