package pipeline

import "sync/atomic"

// CancelPoll reports an externally requested cancellation.
type CancelPoll func() bool

// CancellationToken is an advisory cancel flag. The pipeline checks it before
// every stage and at the top of every segment iteration; a call already in
// flight finishes first.
type CancellationToken struct {
	cancelled atomic.Bool
	poll      CancelPoll
}

func NewCancellationToken(poll CancelPoll) *CancellationToken {
	return &CancellationToken{poll: poll}
}

func (t *CancellationToken) Cancel() {
	if t != nil {
		t.cancelled.Store(true)
	}
}

// Cancelled reports whether cancellation was requested. A positive poll
// result is remembered.
func (t *CancellationToken) Cancelled() bool {
	if t == nil {
		return false
	}
	if t.cancelled.Load() {
		return true
	}
	if t.poll != nil && t.poll() {
		t.cancelled.Store(true)
		return true
	}
	return false
}
