package storage

import (
	"context"
	"sync"
)

// MemorySlot keeps the blob in process memory.
type MemorySlot struct {
	mu     sync.Mutex
	data   []byte
	set    bool
	writes int
	// ReadErr and WriteErr, when set, are returned instead of touching data.
	ReadErr  error
	WriteErr error
}

func NewMemorySlot() *MemorySlot { return &MemorySlot{} }

func (m *MemorySlot) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if !m.set {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemorySlot) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data = append([]byte(nil), data...)
	m.set = true
	m.writes++
	return nil
}

// Writes reports the number of successful writes.
func (m *MemorySlot) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
