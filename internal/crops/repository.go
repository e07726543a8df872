package crops

import (
	"context"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection holds crop documents for every owner.
const Collection = "crops"

// Repository persists append-only crop records.
type Repository interface {
	// Insert stores c and returns the store-assigned id. A zero CreatedAt
	// is stamped with the current time.
	Insert(ctx context.Context, c *models.Crop) (string, error)
	// ListByOwner returns the owner's crops, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Crop, error)
}

type cropDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID   string             `bson:"ownerId"`
	Name      string             `bson:"name"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d cropDocument) toModel() models.Crop {
	return models.Crop{ID: d.ID.Hex(), OwnerID: d.OwnerID, Name: d.Name, CreatedAt: d.CreatedAt}
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	src database.CollectionSource
	now func() time.Time
}

func NewMongoRepository(src database.CollectionSource) *MongoRepository {
	return &MongoRepository{src: src, now: time.Now}
}

// EnsureIndexes creates the owner/createdAt index used by ListByOwner.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return err
	}
	idx := mongo.IndexModel{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}}
	_, err = col.Indexes().CreateOne(ctx, idx)
	return err
}

func (r *MongoRepository) Insert(ctx context.Context, c *models.Crop) (string, error) {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return "", err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now().UTC()
	}
	doc := cropDocument{ID: primitive.NewObjectID(), OwnerID: c.OwnerID, Name: c.Name, CreatedAt: c.CreatedAt}
	if _, err := col.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	c.ID = doc.ID.Hex()
	return c.ID, nil
}

func (r *MongoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Crop, error) {
	col, err := r.src.Collection(ctx, Collection)
	if err != nil {
		return nil, err
	}
	// _id breaks ties between crops created in the same millisecond
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := col.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.Crop{}
	for cur.Next(ctx) {
		var d cropDocument
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
