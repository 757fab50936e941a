package importer

// limiter.go bounds how many commits may write to the sink at once.
//
// The limiter is a semaphore: when every slot is taken, new commits wait up
// to maxWait before failing with ErrTooManyImports. WaitForDrain blocks until
// in-flight commits finish so shutdown does not cut a write short.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when all commit slots are occupied and the
// wait timeout expires. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many imports in progress, please try again later")

// DefaultMaxConcurrentCommits is the default limit for parallel commits.
const DefaultMaxConcurrentCommits = 4

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// CommitLimiter controls concurrent commits using a semaphore.
type CommitLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewCommitLimiter creates a limiter that allows at most maxConcurrent
// simultaneous commits. Requests that cannot acquire a slot within maxWait
// receive ErrTooManyImports.
func NewCommitLimiter(maxConcurrent int, maxWait time.Duration) *CommitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCommits
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &CommitLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a commit slot.
// Returns nil on success, ErrTooManyImports if the wait times out, or the
// context error if ctx ends first. The caller MUST call Release on success.
func (l *CommitLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Original context cancelled vs our own timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// TryAcquire takes a slot without blocking.
func (l *CommitLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *CommitLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of commits holding a slot.
func (l *CommitLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *CommitLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *CommitLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until no commit holds a slot or ctx is cancelled.
func (l *CommitLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter for health output.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state.
func (l *CommitLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
