package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domrepo "CryptoDash/internal/domain/repository"
	"CryptoDash/pkg/cache"
)

// CacheSnapshotStore keeps feed snapshots in a cache.Service (memory, Redis or both).
type CacheSnapshotStore struct {
	cache cache.Service
}

// NewCacheSnapshotStore wraps a cache backend.
func NewCacheSnapshotStore(c cache.Service) domrepo.SnapshotStore {
	return &CacheSnapshotStore{cache: c}
}

func (s *CacheSnapshotStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *CacheSnapshotStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return data, true, nil
}

func (s *CacheSnapshotStore) Close() error {
	return s.cache.Close()
}
