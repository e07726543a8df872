package crops

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
)

// Input is the body accepted when adding a crop.
type Input struct {
	Name string `json:"name"`
}

func (in Input) Validate() error {
	return validation.Validate(in.Name, validation.Required.Error("name required"))
}

// Service wraps repository operations with validation and error classification
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Add appends a crop for owner and returns its id.
func (s *Service) Add(ctx context.Context, ownerID string, in Input) (string, error) {
	if ownerID == "" {
		return "", apperr.Auth("crops.add", apperr.ErrMissingIdentity)
	}
	if err := in.Validate(); err != nil {
		return "", apperr.Validation("crops.add", err)
	}
	id, err := s.repo.Insert(ctx, &models.Crop{OwnerID: ownerID, Name: in.Name})
	if err != nil {
		return "", apperr.Store("crops.add", err)
	}
	return id, nil
}

// List returns owner's crops newest first; never nil on success.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Crop, error) {
	if ownerID == "" {
		return nil, apperr.Auth("crops.list", apperr.ErrMissingIdentity)
	}
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Store("crops.list", err)
	}
	if list == nil {
		list = []models.Crop{}
	}
	return list, nil
}
