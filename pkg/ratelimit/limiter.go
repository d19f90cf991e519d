// Package ratelimit paces calls to the upstream listing source. The delay policy is an
// explicit, injectable abstraction so pipeline stages can be tested without real timers.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates successive calls to a rate-limited upstream.
type Limiter interface {
	Wait(ctx context.Context) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc, backed by a real timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FixedDelay waits a constant interval between successive Wait calls. The first call
// passes immediately so a batch of N requests sleeps N-1 times.
type FixedDelay struct {
	delay time.Duration
	sleep SleepFunc

	mu      sync.Mutex
	started bool
}

// NewFixedDelay creates a fixed-delay limiter backed by a real timer.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return NewFixedDelayWithSleep(delay, Sleep)
}

// NewFixedDelayWithSleep creates a fixed-delay limiter with a custom sleep function.
func NewFixedDelayWithSleep(delay time.Duration, sleep SleepFunc) *FixedDelay {
	return &FixedDelay{delay: delay, sleep: sleep}
}

func (f *FixedDelay) Wait(ctx context.Context) error {
	f.mu.Lock()
	first := !f.started
	f.started = true
	f.mu.Unlock()

	if first {
		return ctx.Err()
	}
	return f.sleep(ctx, f.delay)
}

// Reset makes the next Wait call pass immediately again.
func (f *FixedDelay) Reset() {
	f.mu.Lock()
	f.started = false
	f.mu.Unlock()
}

// Nop is a Limiter that never waits.
type Nop struct{}

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }
