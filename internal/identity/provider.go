package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/tokens"
	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
)

// MinPasswordLength is the shortest password SignUp accepts.
const MinPasswordLength = 6

const defaultSessionTTL = time.Hour

// User is a signed-in identity together with its session token.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Revoker records signed-out tokens; *sessions.RevocationList implements it.
type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

// Option customizes a Provider.
type Option func(*Provider)

func WithRevoker(r Revoker) Option { return func(p *Provider) { p.revoker = r } }

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option { return func(p *Provider) { p.hashCost = cost } }

func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// Provider issues and verifies email/password credentials and tracks the
// single current session of this process.
type Provider struct {
	creds    CredentialRepository
	cfg      *config.Config
	revoker  Revoker
	hashCost int
	now      func() time.Time

	mu          sync.Mutex
	current     *User
	watchers    map[uint64]*watcher
	nextWatcher uint64
}

func NewProvider(creds CredentialRepository, cfg *config.Config, opts ...Option) *Provider {
	p := &Provider{
		creds:    creds,
		cfg:      cfg,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		watchers: make(map[uint64]*watcher),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SignUp registers a new credential and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	if err := validation.Validate(email, validation.Required.Error("email required"), is.Email.Error("invalid email")); err != nil {
		return nil, apperr.Auth("signup", err)
	}
	if len(password) < MinPasswordLength {
		return nil, apperr.Auth("signup", apperr.ErrWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return nil, apperr.Auth("signup", err)
	}
	cred := &Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.creds.Create(ctx, cred); err != nil {
		return nil, apperr.Auth("signup", err)
	}
	logger.Infof("identity: registered %s", cred.ID)
	return p.startSession(cred)
}

// SignIn verifies the password and replaces any current session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*User, error) {
	cred, err := p.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Auth("signin", err)
	}
	if cred == nil {
		return nil, apperr.Auth("signin", apperr.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, apperr.Auth("signin", apperr.ErrInvalidCredentials)
		}
		return nil, apperr.Auth("signin", err)
	}
	return p.startSession(cred)
}

// SignOut ends the current session. Without one it returns ErrNoSession.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return apperr.Auth("signout", apperr.ErrNoSession)
	}
	if p.revoker != nil {
		ttl := p.current.ExpiresAt.Sub(p.now())
		if err := p.revoker.Revoke(ctx, p.current.Token, ttl); err != nil {
			return apperr.Auth("signout", err)
		}
	}
	logger.Debugf("identity: signed out %s", p.current.ID)
	p.current = nil
	p.notifyLocked()
	return nil
}

// Restore reinstates a session saved by an earlier process. With a JWT
// secret the token must verify and name u.ID; opaque tokens are taken as
// saved. Watchers see it as a sign-in.
func (p *Provider) Restore(ctx context.Context, u User) (*User, error) {
	if u.ID == "" || u.Token == "" {
		return nil, apperr.Auth("restore", apperr.ErrNoSession)
	}
	if !u.ExpiresAt.IsZero() && !p.now().Before(u.ExpiresAt) {
		return nil, apperr.Auth("restore", errors.New("session expired"))
	}
	if p.cfg != nil && p.cfg.JWT.Secret != "" {
		sub, err := tokens.ParseSubject(p.cfg, u.Token)
		if err != nil {
			return nil, apperr.Auth("restore", err)
		}
		if sub != u.ID {
			return nil, apperr.Auth("restore", errors.New("token does not belong to this user"))
		}
	}
	restored := u
	p.mu.Lock()
	p.current = &restored
	p.notifyLocked()
	p.mu.Unlock()
	logger.Debugf("identity: restored session for %s", u.ID)

	out := restored
	return &out, nil
}

// Current returns a copy of the signed-in user, or nil.
func (p *Provider) Current() *User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// OnAuthStateChanged calls fn with the current state and then on every
// sign-in and sign-out, asynchronously and in order. The returned func
// stops further calls.
func (p *Provider) OnAuthStateChanged(fn func(*User)) func() {
	w := newWatcher(fn)
	p.mu.Lock()
	id := p.nextWatcher
	p.nextWatcher++
	p.watchers[id] = w
	w.push(p.snapshotLocked())
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
		w.stop()
	}
}

func (p *Provider) startSession(cred *Credential) (*User, error) {
	ttl := p.sessionTTL()
	token, err := p.mintToken(cred, ttl)
	if err != nil {
		return nil, apperr.Auth("session", err)
	}
	u := &User{ID: cred.ID, Email: cred.Email, Token: token, ExpiresAt: p.now().Add(ttl)}

	p.mu.Lock()
	p.current = u
	p.notifyLocked()
	p.mu.Unlock()

	out := *u
	return &out, nil
}

func (p *Provider) sessionTTL() time.Duration {
	if p.cfg != nil && p.cfg.JWT.AccessTokenTTL > 0 {
		return p.cfg.JWT.AccessTokenTTL
	}
	return defaultSessionTTL
}

// mintToken signs a JWT when a secret is configured and falls back to an
// opaque random token otherwise.
func (p *Provider) mintToken(cred *Credential, ttl time.Duration) (string, error) {
	if p.cfg != nil && p.cfg.JWT.Secret != "" {
		return tokens.GenerateAccessToken(p.cfg, cred.ID, cred.Email, ttl)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (p *Provider) snapshotLocked() *User {
	if p.current == nil {
		return nil
	}
	u := *p.current
	return &u
}

func (p *Provider) notifyLocked() {
	for _, w := range p.watchers {
		w.push(p.snapshotLocked())
	}
}
