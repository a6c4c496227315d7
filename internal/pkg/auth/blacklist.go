package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// Blacklist tracks revoked token IDs in the token database. Entries expire
// together with the token they revoke, so the set never grows unbounded.
type Blacklist struct {
	rdb *redis.Client
}

func NewBlacklist(rdb *redis.Client) *Blacklist {
	return &Blacklist{rdb: rdb}
}

// Revoke marks a token ID as revoked until expiresAt.
func (b *Blacklist) Revoke(ctx context.Context, jti string, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, constants.RevokedTokenPrefix+jti, "true", ttl).Err()
}

// IsRevoked reports whether a token ID has been revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, constants.RevokedTokenPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
