package farmclient

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/identity"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
)

// Authenticator is the identity provider surface the client needs;
// *identity.Provider implements it.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
	SignIn(ctx context.Context, email, password string) (*identity.User, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context, u identity.User) (*identity.User, error)
	OnAuthStateChanged(fn func(*identity.User)) func()
}

// Registration is what a new farmer submits.
type Registration struct {
	Name     string
	District string
	Email    string
	Password string
}

// Client talks directly to the identity provider and the document store.
type Client struct {
	auth     Authenticator
	profiles ProfilePolicy
	crops    crops.Repository
	now      func() time.Time
}

func New(auth Authenticator, profiles ProfilePolicy, cropRepo crops.Repository) *Client {
	return &Client{auth: auth, profiles: profiles, crops: cropRepo, now: time.Now}
}

// RegisterFarmer creates the credential, then persists the profile through
// the configured policy.
func (c *Client) RegisterFarmer(ctx context.Context, r Registration) (*identity.User, error) {
	u, err := c.auth.SignUp(ctx, r.Email, r.Password)
	if err != nil {
		logger.Errorf("registration error: %v", err)
		return nil, err
	}
	p := &models.Profile{
		ID:        u.ID,
		Name:      r.Name,
		District:  r.District,
		Email:     r.Email,
		CreatedAt: c.now().UTC(),
	}
	if err := c.profiles.Save(ctx, u.ID, p); err != nil {
		return nil, err
	}
	return u, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*identity.User, error) {
	return c.auth.SignIn(ctx, email, password)
}

// WatchAuth registers fn for every auth-state transition, starting with the
// current state. Call the returned func to stop.
func (c *Client) WatchAuth(fn func(*identity.User)) func() {
	return c.auth.OnAuthStateChanged(fn)
}

// RestoreSession resumes a session saved by an earlier run.
func (c *Client) RestoreSession(ctx context.Context, u identity.User) (*identity.User, error) {
	return c.auth.Restore(ctx, u)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.auth.SignOut(ctx)
}

// AddUserCrop stores a crop under userID and returns the store-assigned id.
func (c *Client) AddUserCrop(ctx context.Context, userID, name string) (string, error) {
	if err := validation.Validate(name, validation.Required.Error("name required")); err != nil {
		return "", apperr.Validation("crops.add", err)
	}
	crop := &models.Crop{OwnerID: userID, Name: name, CreatedAt: c.now().UTC()}
	id, err := c.crops.Insert(ctx, crop)
	if err != nil {
		return "", apperr.Store("crops.add", err)
	}
	return id, nil
}

// ListUserCrops returns userID's crops, newest first.
func (c *Client) ListUserCrops(ctx context.Context, userID string) ([]models.Crop, error) {
	list, err := c.crops.ListByOwner(ctx, userID)
	if err != nil {
		return nil, apperr.Store("crops.list", err)
	}
	return list, nil
}

// GetUserProfile returns the profile or nil when none is available.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return c.profiles.Load(ctx, userID)
}
