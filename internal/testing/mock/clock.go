package mock

import (
	"sync"
	"time"
)

// Clock lets the mock backend and the client under test share one notion
// of time, so token expiry can be tested without sleeping.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a Clock that only moves when told to.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMockClock creates a mock clock at t, or at the current time if t is zero.
//
// Credential stores expire entries on the wall clock, so tests that mix a
// MockClock with a store should start it at the current time and only move
// it forward by less than the entry lifetimes involved.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Now()
	}
	return &MockClock{current: t}
}

// Now returns the current time according to this mock clock.
func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}
