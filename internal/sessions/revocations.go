package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records signed-out session tokens in Redis until they expire.
// A nil client turns every call into a no-op.
type RevocationList struct {
	client *redis.Client
	prefix string
}

func NewRevocationList(client *redis.Client, prefix string) *RevocationList {
	if prefix == "" {
		prefix = "revoked:token:"
	}
	return &RevocationList{client: client, prefix: prefix}
}

// Revoke stores token with the given TTL.
func (r *RevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+token, "1", ttl).Err()
}

// IsRevoked returns true when the token was revoked and has not expired yet.
func (r *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	exists, err := r.client.Exists(ctx, r.prefix+token).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
