package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/domain"
)

const tokenKeyPrefix = "classroll:registry_token:"

// TokenStore implements domain.TokenStore on Redis so every API replica shares
// one registry session per credential set. Keys expire through Redis TTLs.
type TokenStore struct {
	client        *redis.Client
	logger        *slog.Logger
	refreshBuffer time.Duration
	now           func() time.Time
	metrics       *metrics.Metrics
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client *redis.Client, refreshBuffer time.Duration, logger *slog.Logger, m *metrics.Metrics) *TokenStore {
	return &TokenStore{
		client:        client,
		logger:        logger.With("component", "redis_token_store"),
		refreshBuffer: refreshBuffer,
		now:           time.Now,
		metrics:       m,
	}
}

func (s *TokenStore) Get(ctx context.Context, key domain.CredentialsKey) (domain.AuthToken, bool, error) {
	payload, err := s.client.Get(ctx, tokenKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.metrics.TokenCacheMiss()
			return domain.AuthToken{}, false, nil
		}
		return domain.AuthToken{}, false, fmt.Errorf("failed to GET registry token from redis: %w", err)
	}

	var token domain.AuthToken
	if err := json.Unmarshal(payload, &token); err != nil {
		// A corrupt entry is treated as a miss; the next Put overwrites it.
		s.logger.Warn("discarding undecodable registry token", "credentials_key", key, "error", err)
		s.metrics.TokenCacheMiss()
		return domain.AuthToken{}, false, nil
	}
	s.metrics.TokenCacheHit()
	return token, true, nil
}

func (s *TokenStore) Put(ctx context.Context, key domain.CredentialsKey, token domain.AuthToken) error {
	ttl := token.CacheTTL(s.now(), s.refreshBuffer)
	if ttl <= 0 {
		s.logger.Warn("refusing to cache token without remaining lifetime", "credentials_key", key, "expires_at", token.ExpiresAt)
		return s.Invalidate(ctx, key)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal registry token: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET registry token in redis: %w", err)
	}
	return nil
}

func (s *TokenStore) Invalidate(ctx context.Context, key domain.CredentialsKey) error {
	if err := s.client.Del(ctx, tokenKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to DEL registry token in redis: %w", err)
	}
	return nil
}

func tokenKey(key domain.CredentialsKey) string {
	return tokenKeyPrefix + string(key)
}
