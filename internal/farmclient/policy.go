package farmclient

import (
	"context"
	"fmt"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/metrics"
)

// ProfileStore is the get/put-by-key contract shared by the remote store and
// the local side-store. Get returns nil, nil when nothing is stored.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	Put(ctx context.Context, uid string, p *models.Profile) error
}

// ProfilePolicy decides how profile reads and writes treat store failures.
type ProfilePolicy interface {
	Save(ctx context.Context, uid string, p *models.Profile) error
	Load(ctx context.Context, uid string) (*models.Profile, error)
}

// RemoteProfiles adapts a profiles.Repository to ProfileStore.
type RemoteProfiles struct {
	Repo profiles.Repository
}

func (r RemoteProfiles) Get(ctx context.Context, uid string) (*models.Profile, error) {
	return r.Repo.Get(ctx, uid)
}

// Put is an unconditional create-or-overwrite of the whole document.
func (r RemoteProfiles) Put(ctx context.Context, uid string, p *models.Profile) error {
	doc := *p
	doc.ID = uid
	return r.Repo.Put(ctx, &doc)
}

// Strict talks to the primary store only; every failure is returned.
type Strict struct {
	Primary ProfileStore
}

func (s Strict) Save(ctx context.Context, uid string, p *models.Profile) error {
	return apperr.Store("profile.save", s.Primary.Put(ctx, uid, p))
}

// Load returns nil, nil when the profile does not exist, and a store error
// when it could not be read.
func (s Strict) Load(ctx context.Context, uid string) (*models.Profile, error) {
	p, err := s.Primary.Get(ctx, uid)
	if err != nil {
		return nil, apperr.Store("profile.load", err)
	}
	return p, nil
}

// Resilient always writes the secondary store and treats the primary as best
// effort. Reads fall back to the secondary when the primary fails or has no
// document, so "not found" and "unreachable" look the same to callers.
type Resilient struct {
	Primary   ProfileStore
	Secondary ProfileStore
}

func (r Resilient) Save(ctx context.Context, uid string, p *models.Profile) error {
	if err := r.Secondary.Put(ctx, uid, p); err != nil {
		logger.Warnf("local profile copy for %s failed: %v", uid, err)
	}
	if err := r.Primary.Put(ctx, uid, p); err != nil {
		metrics.ProfileFallbacks.WithLabelValues("save").Inc()
		logger.Warnf("remote profile save for %s failed, kept local copy: %v", uid, err)
	}
	return nil
}

func (r Resilient) Load(ctx context.Context, uid string) (*models.Profile, error) {
	p, err := r.Primary.Get(ctx, uid)
	if err == nil && p != nil {
		return p, nil
	}
	if err != nil {
		logger.Warnf("remote profile read for %s failed, trying local copy: %v", uid, err)
	}
	local, lerr := r.Secondary.Get(ctx, uid)
	if lerr != nil {
		logger.Warnf("local profile read for %s failed: %v", uid, lerr)
		return nil, nil
	}
	if local != nil {
		metrics.ProfileFallbacks.WithLabelValues("load").Inc()
	}
	return local, nil
}

// NewPolicy builds the policy named by config.PolicyResilient or
// config.PolicyStrict. The secondary store is only used by the resilient one.
func NewPolicy(name string, primary, secondary ProfileStore) (ProfilePolicy, error) {
	switch name {
	case config.PolicyStrict:
		return Strict{Primary: primary}, nil
	case config.PolicyResilient:
		if secondary == nil {
			return nil, fmt.Errorf("resilient profile policy needs a local store")
		}
		return Resilient{Primary: primary, Secondary: secondary}, nil
	}
	return nil, fmt.Errorf("unknown profile policy %q", name)
}
