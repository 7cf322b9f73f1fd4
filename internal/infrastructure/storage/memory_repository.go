package storage

import (
	"context"
	"sort"
	"sync"

	"PropDashboards/internal/domain"
	"PropDashboards/internal/ports"
)

// MemoryRepository keeps generation history for the life of the process.
// It backs the pipeline when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[memoryKey]domain.GeneratedDashboard
}

type memoryKey struct {
	category, week, firm string
}

var _ ports.DashboardRepository = (*MemoryRepository)(nil)

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: map[memoryKey]domain.GeneratedDashboard{}}
}

// Fingerprints implements ports.DashboardRepository.
func (m *MemoryRepository) Fingerprints(_ context.Context, category, week string, firms []string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for _, firm := range firms {
		if d, ok := m.items[memoryKey{category, week, firm}]; ok {
			out[firm] = d.Fingerprint
		}
	}
	return out, nil
}

// Save implements ports.DashboardRepository.
func (m *MemoryRepository) Save(_ context.Context, d domain.GeneratedDashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[memoryKey{d.Category, d.Week, d.Firm}] = d
	return nil
}

// List implements ports.DashboardRepository.
func (m *MemoryRepository) List(_ context.Context, category, week string) ([]domain.GeneratedDashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.GeneratedDashboard
	for key, d := range m.items {
		if key.category == category && key.week == week {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Firm < out[j].Firm })
	return out, nil
}
