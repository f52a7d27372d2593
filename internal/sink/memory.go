package sink

import (
	"context"
	"sync"

	"call-analytics-go/internal/types"
)

// Memory keeps records in process. Used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	intra  []types.IntraCallRecord
	inter  []types.InterCallRecord
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) WriteIntra(_ context.Context, rows []types.IntraCallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intra = append(m.intra, rows...)
	return nil
}

func (m *Memory) WriteInter(_ context.Context, rec types.InterCallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inter = append(m.inter, rec)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Intra() []types.IntraCallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.IntraCallRecord(nil), m.intra...)
}

func (m *Memory) Inter() []types.InterCallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.InterCallRecord(nil), m.inter...)
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
