// Package cancel implements the proxy's cancellation fabric: a one-shot
// idempotent signal that every downstream await races against, and the
// RAII-style tracker that fires it when a request exits without
// completing.
package cancel

import "sync"

// Signal is a one-shot, idempotent event observable by any number of
// waiters. It is safe for concurrent use from multiple goroutines.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns a ready-to-use Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Trigger fires the signal. Safe to call multiple times or
// concurrently; only the first call has any effect.
func (s *Signal) Trigger() {
	s.once.Do(func() { close(s.ch) })
}

// IsTriggered reports whether Trigger has been called.
func (s *Signal) IsTriggered() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed once Trigger has been called.
// Suitable for use directly in a select statement, mirroring
// context.Context.Done().
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal fires.
func (s *Signal) Wait() {
	<-s.ch
}

// Tracker is the RAII-style connection guard described in §4.2: every
// handler owns exactly one, constructed bound to a Signal. If the
// tracker is released (via Release, deferred by the router) without a
// prior call to MarkCompleted, it fires the signal — this is how a
// client disconnect or an unhandled panic is turned into cancellation.
type Tracker struct {
	signal    *Signal
	mu        sync.Mutex
	completed bool
	released  bool
}

// NewTracker constructs a Tracker bound to signal.
func NewTracker(signal *Signal) *Tracker {
	return &Tracker{signal: signal}
}

// MarkCompleted records that the request reached a normal success
// path. Must be called on every success path before Release.
func (t *Tracker) MarkCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = true
}

// Completed reports whether MarkCompleted has been called.
func (t *Tracker) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Release is the tracker's destructor equivalent: call it (typically
// via defer) on every exit path. If the request was not marked
// completed, it fires the cancel signal. Idempotent.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	if !t.completed {
		t.signal.Trigger()
	}
}
