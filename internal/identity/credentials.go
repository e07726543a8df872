package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CredentialsCollection stores email/password-hash pairs.
const CredentialsCollection = "credentials"

// Credential is a registered sign-in identity.
type Credential struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// CredentialRepository persists credentials. Create returns
// apperr.ErrEmailTaken when the email is already registered.
type CredentialRepository interface {
	Create(ctx context.Context, c *Credential) error
	FindByEmail(ctx context.Context, email string) (*Credential, error)
}

// NormalizeEmail lowercases and trims so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MongoCredentialRepository implements CredentialRepository using MongoDB
type MongoCredentialRepository struct {
	src database.CollectionSource
}

func NewMongoCredentialRepository(src database.CollectionSource) *MongoCredentialRepository {
	return &MongoCredentialRepository{src: src}
}

// EnsureIndexes creates the unique email index.
func (r *MongoCredentialRepository) EnsureIndexes(ctx context.Context) error {
	col, err := r.src.Collection(ctx, CredentialsCollection)
	if err != nil {
		return err
	}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, err = col.Indexes().CreateOne(ctx, idx)
	return err
}

func (r *MongoCredentialRepository) Create(ctx context.Context, c *Credential) error {
	col, err := r.src.Collection(ctx, CredentialsCollection)
	if err != nil {
		return err
	}
	if _, err := col.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *MongoCredentialRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	col, err := r.src.Collection(ctx, CredentialsCollection)
	if err != nil {
		return nil, err
	}
	var c Credential
	if err := col.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// MemoryCredentialRepository keeps credentials in process.
type MemoryCredentialRepository struct {
	mu      sync.RWMutex
	byEmail map[string]Credential
}

func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{byEmail: make(map[string]Credential)}
}

func (m *MemoryCredentialRepository) Create(ctx context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := NormalizeEmail(c.Email)
	if _, ok := m.byEmail[key]; ok {
		return apperr.ErrEmailTaken
	}
	m.byEmail[key] = *c
	return nil
}

func (m *MemoryCredentialRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
