package sessions

import (
	"context"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/farmtrack/farmtrack/backend/go-services/internal/config"
)

func TestRevokeAndCheck(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	list := NewRevocationList(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	ctx := context.Background()
	token := "session-token-1"

	ok, err := list.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, list.Revoke(ctx, token, 2*time.Second))
	ok, err = list.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, m.Exists("revoked:token:"+token))

	// advance past TTL
	m.FastForward(3 * time.Second)
	ok, err = list.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevoke_NonPositiveTTLIsIgnored(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	list := NewRevocationList(redis.NewClient(&redis.Options{Addr: m.Addr()}), "t:")
	require.NoError(t, list.Revoke(context.Background(), "old", 0))
	require.False(t, m.Exists("t:old"))
}

func TestRevocationList_NoClientNoop(t *testing.T) {
	ctx := context.Background()
	list := NewRevocationList(nil, "")
	require.NoError(t, list.Revoke(ctx, "tok", time.Second))
	ok, err := list.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)

	var none *RevocationList
	ok, err = none.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConnect(t *testing.T) {
	client, err := Connect(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	require.Nil(t, client, "no host configured")

	m, err := mr.Run()
	require.NoError(t, err)
	host, port, _ := strings.Cut(m.Addr(), ":")
	client, err = Connect(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	require.NotNil(t, client)
	_ = client.Close()

	m.Close()
	_, err = Connect(context.Background(), config.RedisConfig{Host: host, Port: port})
	require.Error(t, err)
}
