package profiles

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
)

// Input is the writable part of a profile.
type Input struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	District string `json:"district"`
}

// Validate only checks presence; email format is not inspected.
func (in Input) Validate() error {
	return validation.Validate(in.Email, validation.Required.Error("email required"))
}

// Service encapsulates profile business logic for the API
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Save upserts the caller's profile. Omitted fields are written as empty.
func (s *Service) Save(ctx context.Context, id string, in Input) (*models.Profile, error) {
	if id == "" {
		return nil, apperr.Auth("profile.save", apperr.ErrMissingIdentity)
	}
	if err := in.Validate(); err != nil {
		return nil, apperr.Validation("profile.save", err)
	}
	p, err := s.repo.Upsert(ctx, &models.Profile{ID: id, Name: in.Name, Email: in.Email, District: in.District})
	if err != nil {
		return nil, apperr.Store("profile.save", err)
	}
	return p, nil
}

// Get returns the caller's profile or nil when none exists.
func (s *Service) Get(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, apperr.Auth("profile.get", apperr.ErrMissingIdentity)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperr.Store("profile.get", err)
	}
	return p, nil
}
