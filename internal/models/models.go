package models

import "time"

// Profile is the per-farmer record keyed by the caller identity.
type Profile struct {
	ID        string     `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	District  string     `bson:"district" json:"district"`
	Email     string     `bson:"email" json:"email"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt *time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Crop is an append-only entry owned by exactly one profile.
type Crop struct {
	ID        string    `bson:"-" json:"id"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
