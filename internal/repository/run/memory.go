package run

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/vecshift/internal/domain/migration"
)

// Memory keeps runs and alias locks in process. Used with the sqlite audit
// driver, where no shared store exists.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]*migration.Run
	locks map[string]string
}

// NewMemory creates an empty in-process run repository.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*migration.Run), locks: make(map[string]string)}
}

// Save stores a copy of run.
func (m *Memory) Save(_ context.Context, run *migration.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run.Clone()
	return nil
}

// Get returns a copy of the stored run.
func (m *Memory) Get(_ context.Context, id string) (*migration.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, migration.ErrRunNotFound
	}
	return r.Clone(), nil
}

// List returns stored run IDs, sorted.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Lock claims alias for runID.
func (m *Memory) Lock(_ context.Context, alias, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if holder, ok := m.locks[alias]; ok && holder != runID {
		return fmt.Errorf("%w: alias %s held by run %s", migration.ErrRunActive, alias, holder)
	}
	m.locks[alias] = runID
	return nil
}

// Unlock releases alias if runID holds it.
func (m *Memory) Unlock(_ context.Context, alias, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[alias] == runID {
		delete(m.locks, alias)
	}
	return nil
}
