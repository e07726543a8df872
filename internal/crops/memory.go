package crops

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryEntry struct {
	crop models.Crop
	seq  uint64
}

// MemoryRepository is a simple in-memory repository used by tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	seq     uint64
	byOwner map[string][]memoryEntry
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byOwner: make(map[string][]memoryEntry), now: time.Now}
}

func (m *MemoryRepository) Insert(ctx context.Context, c *models.Crop) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}
	c.ID = primitive.NewObjectID().Hex()
	m.seq++
	m.byOwner[c.OwnerID] = append(m.byOwner[c.OwnerID], memoryEntry{crop: *c, seq: m.seq})
	return c.ID, nil
}

func (m *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Crop, error) {
	m.mu.RLock()
	entries := append([]memoryEntry(nil), m.byOwner[ownerID]...)
	m.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.crop.CreatedAt.Equal(b.crop.CreatedAt) {
			return a.crop.CreatedAt.After(b.crop.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]models.Crop, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.crop)
	}
	return out, nil
}

// Count returns the number of crops stored across all owners.
func (m *MemoryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, list := range m.byOwner {
		n += len(list)
	}
	return n
}
