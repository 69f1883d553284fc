package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/skillbarter/backend/core/auth"
)

const blacklistPrefix = "bl:"

// Blacklist stores revoked tokens until they expire on their own.
type Blacklist struct {
	rdb     redis.Cmdable
	nowFunc func() time.Time
}

var _ auth.Blacklist = (*Blacklist)(nil) // interface compliance check

func NewBlacklist(rdb redis.Cmdable) *Blacklist {
	return &Blacklist{rdb: rdb, nowFunc: time.Now}
}

func (b *Blacklist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return blacklistPrefix + hex.EncodeToString(sum[:])
}

// Add revokes token. Already expired tokens are ignored.
func (b *Blacklist) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.nowFunc())
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(b.rdb.Set(ctx, b.key(token), 1, ttl).Err(), "blacklisting token")
}

func (b *Blacklist) Contains(ctx context.Context, token string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.key(token)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking token blacklist")
	}
	return n > 0, nil
}
