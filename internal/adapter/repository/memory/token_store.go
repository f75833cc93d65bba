package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/classroll/internal/adapter/metrics"
	"github.com/V4T54L/classroll/internal/domain"
)

type cacheEntry struct {
	token   domain.AuthToken
	evictAt time.Time
}

// TokenStore implements domain.TokenStore with a process-local map.
// Entries are evicted refreshBuffer before the token really expires.
type TokenStore struct {
	mu            sync.RWMutex
	entries       map[domain.CredentialsKey]cacheEntry
	refreshBuffer time.Duration
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore(refreshBuffer time.Duration, logger *slog.Logger, m *metrics.Metrics) *TokenStore {
	return &TokenStore{
		entries:       make(map[domain.CredentialsKey]cacheEntry),
		refreshBuffer: refreshBuffer,
		now:           time.Now,
		logger:        logger.With("component", "memory_token_store"),
		metrics:       m,
	}
}

// Get returns the cached token for key unless its cache TTL has elapsed.
func (s *TokenStore) Get(ctx context.Context, key domain.CredentialsKey) (domain.AuthToken, bool, error) {
	s.mu.RLock()
	entry, found := s.entries[key]
	s.mu.RUnlock()

	if !found {
		s.metrics.TokenCacheMiss()
		return domain.AuthToken{}, false, nil
	}
	if !s.now().Before(entry.evictAt) {
		s.mu.Lock()
		// Another goroutine may have stored a fresh token while we waited.
		if current, ok := s.entries[key]; ok && !s.now().Before(current.evictAt) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		s.metrics.TokenCacheMiss()
		return domain.AuthToken{}, false, nil
	}
	s.metrics.TokenCacheHit()
	return entry.token, true, nil
}

// Put stores token under key. A token with no cache lifetime left is dropped instead.
func (s *TokenStore) Put(ctx context.Context, key domain.CredentialsKey, token domain.AuthToken) error {
	now := s.now()
	ttl := token.CacheTTL(now, s.refreshBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl <= 0 {
		s.logger.Warn("refusing to cache token without remaining lifetime", "credentials_key", key, "expires_at", token.ExpiresAt)
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = cacheEntry{token: token, evictAt: now.Add(ttl)}
	return nil
}

// Invalidate drops the token cached under key, if any.
func (s *TokenStore) Invalidate(ctx context.Context, key domain.CredentialsKey) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
