package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection is where profile documents live, keyed by caller id.
const Collection = "farmers"

// Repository defines persistence operations for profiles
type Repository interface {
	// Get returns nil, nil when no profile exists for id.
	Get(ctx context.Context, id string) (*models.Profile, error)
	// Put creates or overwrites the whole document.
	Put(ctx context.Context, p *models.Profile) error
	// Upsert overwrites name, email and district, stamps updatedAt on every
	// call and createdAt only on the first.
	Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	src database.CollectionSource
	now func() time.Time
}

// NewMongoRepository creates a repository that resolves its collection per call
func NewMongoRepository(src database.CollectionSource) *MongoRepository {
	return &MongoRepository{src: src, now: time.Now}
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return nil, err
	}
	var p models.Profile
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) Put(ctx context.Context, p *models.Profile) error {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	opts := options.Replace().SetUpsert(true)
	_, err = col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	return err
}

func (r *MongoRepository) Upsert(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	update := bson.M{
		"$set": bson.M{
			"name":      p.Name,
			"email":     p.Email,
			"district":  p.District,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.Profile
	if err := col.FindOneAndUpdate(ctx, bson.M{"_id": p.ID}, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}
