package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
)

// Store is the best-effort local side-store for profiles, keyed by user id.
// Entries are never invalidated or expired.
type Store interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	Put(ctx context.Context, uid string, p *models.Profile) error
}

// Key is the entry key for a user id.
func Key(uid string) string { return "farmer_" + uid }

// entry is one cached profile stored as its JSON encoding.
type entry struct {
	Key       string `gorm:"primaryKey"`
	Data      string `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "local_profiles" }

// SQLiteStore keeps entries in a local SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the cache database at path. Use
// "file::memory:" for an ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var e entry
	if err := s.db.WithContext(ctx).First(&e, "key = ?", Key(uid)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(e.Data), &p); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, uid string, p *models.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&entry{Key: Key(uid), Data: string(b)}).Error
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, uid string) (*models.Profile, error) {
	m.mu.RLock()
	b, ok := m.data[Key(uid)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var p models.Profile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *MemoryStore) Put(ctx context.Context, uid string, p *models.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[Key(uid)] = b
	m.mu.Unlock()
	return nil
}
