package identity

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/apperr"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMemoryCredentialRepository(t *testing.T) {
	repo := NewMemoryCredentialRepository()
	ctx := context.Background()

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, repo.Create(ctx, &Credential{ID: "1", Email: "a@x.com", PasswordHash: "h"}))
	require.ErrorIs(t, repo.Create(ctx, &Credential{ID: "2", Email: " A@x.com"}), apperr.ErrEmailTaken)

	got, err = repo.FindByEmail(ctx, "A@X.COM")
	require.NoError(t, err)
	require.Equal(t, "1", got.ID)
}

// Runs against a live server only when MONGODB_TEST_URI is set.
func TestMongoCredentialRepository(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()
	lazy := database.NewLazy(uri, "farmtrack_test", 5*time.Second)
	defer lazy.Close(ctx)

	repo := NewMongoCredentialRepository(lazy)
	require.NoError(t, repo.EnsureIndexes(ctx))

	email := uuid.NewString() + "@example.com"
	require.NoError(t, repo.Create(ctx, &Credential{ID: uuid.NewString(), Email: email, PasswordHash: "h", CreatedAt: time.Now()}))
	require.ErrorIs(t, repo.Create(ctx, &Credential{ID: uuid.NewString(), Email: email}), apperr.ErrEmailTaken)

	got, err := repo.FindByEmail(ctx, email)
	require.NoError(t, err)
	require.Equal(t, email, got.Email)
}
