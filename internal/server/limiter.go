package server

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyBuilds is returned when every build slot stays occupied for the whole
// acquire timeout. Clients should retry after a short delay.
var ErrTooManyBuilds = errors.New("too many concurrent builds, please try again later")

// BuildLimiter restricts how many documents are built at once.
type BuildLimiter struct {
	sem     *semaphore.Weighted
	max     int64
	maxWait time.Duration
	active  atomic.Int64
}

// NewBuildLimiter allows at most maxConcurrent builds. Acquire waits up to maxWait
// for a slot; zero means fail immediately when none is free.
func NewBuildLimiter(maxConcurrent int, maxWait time.Duration) *BuildLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &BuildLimiter{
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		max:     int64(maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a build slot. The caller must call Release when the build is done.
func (l *BuildLimiter) Acquire(ctx context.Context) error {
	if l.maxWait <= 0 {
		if !l.sem.TryAcquire(1) {
			return ErrTooManyBuilds
		}
		l.active.Add(1)
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		// the caller went away, as opposed to the wait timing out
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyBuilds
	}
	l.active.Add(1)
	return nil
}

// Release returns a slot taken by Acquire.
func (l *BuildLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Active returns the number of builds in progress.
func (l *BuildLimiter) Active() int {
	return int(l.active.Load())
}

// Available returns the number of free slots.
func (l *BuildLimiter) Available() int {
	return int(l.max - l.active.Load())
}
