package db

import (
	"context"
	"sync"

	"github.com/TFMV/hismetrics/types"
)

// MockDB records stored reports in memory; the Func fields override behavior
type MockDB struct {
	InitializeFunc    func(ctx context.Context) error
	StoreAnalysisFunc func(ctx context.Context, report types.AnalysisReport) error

	mu          sync.Mutex
	initialized int
	stored      []types.AnalysisReport
}

func NewMockDB() *MockDB {
	return &MockDB{}
}

func (m *MockDB) Initialize(ctx context.Context) error {
	m.mu.Lock()
	m.initialized++
	m.mu.Unlock()
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx)
	}
	return nil
}

func (m *MockDB) StoreAnalysis(ctx context.Context, report types.AnalysisReport) error {
	if m.StoreAnalysisFunc != nil {
		if err := m.StoreAnalysisFunc(ctx, report); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, report)
	return nil
}

// Stored returns the reports stored so far
func (m *MockDB) Stored() []types.AnalysisReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AnalysisReport(nil), m.stored...)
}

func (m *MockDB) InitializeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}
