package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
)

// MemoryRepository is an in-process Repository used by tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]models.Profile
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]models.Profile), now: time.Now}
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryRepository) Put(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	m.store[p.ID] = *p
	return nil
}

func (m *MemoryRepository) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	cur, ok := m.store[p.ID]
	if !ok {
		cur = models.Profile{ID: p.ID, CreatedAt: now}
	}
	cur.Name = p.Name
	cur.Email = p.Email
	cur.District = p.District
	cur.UpdatedAt = &now
	m.store[p.ID] = cur
	out := cur
	return &out, nil
}

// Len reports how many profiles are stored.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
