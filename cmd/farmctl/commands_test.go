package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/crops"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/farmclient"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/identity"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/localcache"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/models"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/profiles"
	"github.com/farmtrack/farmtrack/backend/go-services/internal/sessions"
)

// memoryOpener shares one set of in-memory stores across invocations, the
// way separate CLI runs share a database.
func memoryOpener(opts ...identity.Option) opener {
	creds := identity.NewMemoryCredentialRepository()
	remote := farmclient.RemoteProfiles{Repo: profiles.NewMemoryRepository()}
	local := localcache.NewMemoryStore()
	cropRepo := crops.NewMemoryRepository()
	return func(ctx context.Context, cfg *config.Config) (*backend, error) {
		policy, err := farmclient.NewPolicy(cfg.Client.ProfilePolicy, remote, local)
		if err != nil {
			return nil, err
		}
		auth := identity.NewProvider(creds, cfg, append([]identity.Option{identity.WithHashCost(bcrypt.MinCost)}, opts...)...)
		return &backend{client: farmclient.New(auth, policy, cropRepo)}, nil
	}
}

type harness struct {
	t       *testing.T
	open    opener
	session string
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	cfg := &config.Config{Client: config.ClientConfig{ProfilePolicy: config.PolicyResilient}}
	cfg.JWT.Secret = "farmctl-test-secret"
	root := newRootCmd(cfg, h.open)
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--session-file", h.session}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRegisterProfileCropsLogout(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	revocations := sessions.NewRevocationList(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	h := &harness{t: t, open: memoryOpener(identity.WithRevoker(revocations)), session: filepath.Join(t.TempDir(), "session.json")}

	out, err := h.run("kharif2024\n", "register", "--name", "Asha", "--district", "Pune", "--email", "asha@example.com")
	require.NoError(t, err)
	require.Contains(t, out, "Registered asha@example.com")

	out, err = h.run("", "profile")
	require.NoError(t, err)
	var p models.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	require.Equal(t, "Asha", p.Name)
	require.Equal(t, "Pune", p.District)

	idA, err := h.run("", "crops", "add", "Soybean")
	require.NoError(t, err)
	idB, err := h.run("", "crops", "add", "Tur")
	require.NoError(t, err)

	out, err = h.run("", "crops", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], strings.TrimSpace(idB)))
	require.True(t, strings.HasPrefix(lines[1], strings.TrimSpace(idA)))

	raw, err := os.ReadFile(h.session)
	require.NoError(t, err)
	var saved session
	require.NoError(t, json.Unmarshal(raw, &saved))

	out, err = h.run("", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out")
	revoked, err := revocations.IsRevoked(context.Background(), saved.Token)
	require.NoError(t, err)
	require.True(t, revoked, "logout signs the restored session out")

	_, err = h.run("", "profile")
	require.ErrorContains(t, err, "not logged in")
}

func TestLoginPromptsForEmail(t *testing.T) {
	h := &harness{t: t, open: memoryOpener(), session: filepath.Join(t.TempDir(), "session.json")}
	_, err := h.run("secret99\n", "register", "--name", "Ravi", "--email", "ravi@example.com")
	require.NoError(t, err)

	_, err = h.run("ravi@example.com\nwrong\n", "login")
	require.Error(t, err)

	out, err := h.run("ravi@example.com\nsecret99\n", "login")
	require.NoError(t, err)
	require.Contains(t, out, "Logged in as ravi@example.com")
}

func TestUIDFlagAndEmptyProfile(t *testing.T) {
	h := &harness{t: t, open: memoryOpener(), session: filepath.Join(t.TempDir(), "none.json")}
	out, err := h.run("", "--uid", "ghost", "profile")
	require.NoError(t, err)
	require.Equal(t, "{}\n", out)

	_, err = h.run("", "--uid", "ghost", "crops", "add", "")
	require.ErrorContains(t, err, "name required")
}

func TestRejectsUnknownPolicy(t *testing.T) {
	h := &harness{t: t, open: memoryOpener(), session: filepath.Join(t.TempDir(), "s.json")}
	_, err := h.run("", "--policy", "hybrid", "--uid", "u1", "profile")
	require.ErrorContains(t, err, "--policy")
}

func TestLogoutWithExpiredSession(t *testing.T) {
	h := &harness{t: t, open: memoryOpener(), session: filepath.Join(t.TempDir(), "session.json")}
	stale, err := json.Marshal(session{UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(h.session, stale, 0o600))

	out, err := h.run("", "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Logged out")
	_, err = os.Stat(h.session)
	require.True(t, os.IsNotExist(err))
}
