package analysis

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/stockmarks/internal/domain"
	domanalysis "github.com/kailas-cloud/stockmarks/internal/domain/analysis"
)

// Memory is a process-local repository for one-shot CLI runs.
type Memory struct {
	mu      sync.Mutex
	records []domanalysis.Analysis // newest first
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

// Save stores an analysis at the head of the list, replacing an older copy.
func (m *Memory) Save(_ context.Context, a domanalysis.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = slices.DeleteFunc(m.records, func(r domanalysis.Analysis) bool { return r.ID() == a.ID() })
	m.records = slices.Insert(m.records, 0, a)
	return nil
}

// Get returns an analysis by ID.
func (m *Memory) Get(_ context.Context, id string) (domanalysis.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID() == id {
			return r, nil
		}
	}
	return domanalysis.Analysis{}, fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
}

// List returns all analyses, newest first.
func (m *Memory) List(_ context.Context) ([]domanalysis.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records), nil
}

// Delete removes an analysis.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = slices.DeleteFunc(m.records, func(r domanalysis.Analysis) bool { return r.ID() == id })
	if len(m.records) == n {
		return fmt.Errorf("analysis %q: %w", id, domain.ErrNotFound)
	}
	return nil
}
