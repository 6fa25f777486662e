package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process log with the same API as Store. Tests use it to
// inject storage faults.
type Memory struct {
	mu      sync.Mutex
	entries []time.Time
	offset  int

	// AppendError, if set, will be returned by AppendEvent (nothing recorded).
	AppendError error
	// ReadError, if set, will be returned by AllTimestamps and Offset.
	ReadError error
}

// NewMemory creates a Memory store seeded with history and offset.
func NewMemory(history []time.Time, offset int) *Memory {
	return &Memory{entries: append([]time.Time(nil), history...), offset: offset}
}

// AppendEvent records t.
func (m *Memory) AppendEvent(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendError != nil {
		return m.AppendError
	}
	m.entries = append(m.entries, t)
	return nil
}

// AllTimestamps returns a copy of the log.
func (m *Memory) AllTimestamps(_ context.Context) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	return append([]time.Time(nil), m.entries...), nil
}

// Count returns the number of entries.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Offset returns the offset.
func (m *Memory) Offset(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadError != nil {
		return 0, m.ReadError
	}
	return m.offset, nil
}

// SetOffset stores n.
func (m *Memory) SetOffset(_ context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = n
	return nil
}

// SetAppendError changes AppendError under the lock.
func (m *Memory) SetAppendError(err error) {
	m.mu.Lock()
	m.AppendError = err
	m.mu.Unlock()
}

// SetReadError changes ReadError under the lock.
func (m *Memory) SetReadError(err error) {
	m.mu.Lock()
	m.ReadError = err
	m.mu.Unlock()
}
