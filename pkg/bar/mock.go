package bar

import (
	"sync"
	"sync/atomic"
)

// MockProducer implements Producer for testing. The rendered snapshot is
// configurable at runtime and every received click is recorded.
type MockProducer struct {
	mu   sync.RWMutex
	snap *Snapshot

	renderCount atomic.Int64

	clickMu sync.Mutex
	clicks  []Event

	// RenderFunc, if set, overrides the default Render behavior.
	RenderFunc func() *Snapshot
}

// NewMockProducer creates a mock producer that renders snap. A nil snap
// makes the producer omit itself from frames.
func NewMockProducer(snap *Snapshot) *MockProducer {
	return &MockProducer{snap: snap}
}

// SetSnapshot updates the rendered snapshot (thread-safe).
func (m *MockProducer) SetSnapshot(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
}

// Render returns the configured snapshot, or delegates to RenderFunc.
func (m *MockProducer) Render() *Snapshot {
	m.renderCount.Add(1)
	if m.RenderFunc != nil {
		return m.RenderFunc()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return nil
	}
	out := *m.snap
	return &out
}

// Click records the event.
func (m *MockProducer) Click(ev Event) {
	m.clickMu.Lock()
	defer m.clickMu.Unlock()
	m.clicks = append(m.clicks, ev)
}

// Clicks returns a copy of all recorded click events.
func (m *MockProducer) Clicks() []Event {
	m.clickMu.Lock()
	defer m.clickMu.Unlock()
	out := make([]Event, len(m.clicks))
	copy(out, m.clicks)
	return out
}

// RenderCount returns how many times Render has been called.
func (m *MockProducer) RenderCount() int64 {
	return m.renderCount.Load()
}
