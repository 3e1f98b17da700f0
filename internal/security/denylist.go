package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Denylist records revoked token IDs until the token would have expired anyway
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist keeps revoked token IDs in process memory
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist creates an empty in-memory denylist
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.revoked {
		if !exp.After(now) {
			delete(d.revoked, id)
		}
	}
	if expiresAt.After(now) {
		d.revoked[tokenID] = expiresAt
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[tokenID]
	return ok && exp.After(d.now()), nil
}

// RedisDenylist stores revoked token IDs as expiring Redis keys
type RedisDenylist struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisDenylist creates a Redis-backed denylist
func NewRedisDenylist(client *redis.Client, logger *zap.Logger) *RedisDenylist {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisDenylist{client: client, logger: logger.Named("denylist")}
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		d.logger.Error("failed to revoke token", zap.String("jti", tokenID), zap.Error(err))
		return fmt.Errorf("failed to revoke token in redis: %w", err)
	}
	d.logger.Debug("token revoked", zap.String("jti", tokenID), zap.Duration("ttl", ttl))
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token in redis: %w", err)
	}
	return n > 0, nil
}
