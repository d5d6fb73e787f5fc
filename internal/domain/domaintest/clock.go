// Package domaintest holds shared fixtures for tests that verify tokens
// against a pinned instant.
package domaintest

import (
	"sync/atomic"
	"time"

	"github.com/aelexs/authgate/internal/domain"
)

// FakeClock reports a stored instant and only moves when told to.
// It is safe to read from verifier goroutines while a test moves it.
type FakeClock struct {
	nanos atomic.Int64
}

// NewFakeClock pins a clock at start.
func NewFakeClock(start time.Time) *FakeClock {
	c := &FakeClock{}
	c.Set(start)
	return c
}

// Now is always UTC; monotonic readings are not kept.
func (c *FakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// Advance shifts the clock by d, which may be negative.
func (c *FakeClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

// Set jumps to t.
func (c *FakeClock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

var _ domain.Clock = (*FakeClock)(nil)
