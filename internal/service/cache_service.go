package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/academy-schedule-api/pkg/errors"
)

const boardKeyPrefix = "lessons:board"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
// Cache failures are logged and never fail the caller's read or write.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	// generation advances on every board invalidation.
	generation atomic.Uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// BoardGeneration returns the current board generation. Read it before loading a board from the
// database and pass it to SetBoard.
func (s *CacheService) BoardGeneration() uint64 {
	if s == nil {
		return 0
	}
	return s.generation.Load()
}

// SetBoard caches a board loaded at the given generation. A board loaded before an invalidation is
// not stored, and is removed again when the invalidation lands while it is being written.
func (s *CacheService) SetBoard(ctx context.Context, key string, value interface{}, generation uint64) {
	if !s.Enabled() || s.generation.Load() != generation {
		return
	}
	s.Set(ctx, key, value)
	if s.generation.Load() != generation {
		if err := s.repo.DeleteByPattern(ctx, key); err != nil {
			s.logger.Warn("cache discard failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateBoards drops every cached teacher board.
func (s *CacheService) InvalidateBoards(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.generation.Add(1)
	pattern := boardKeyPrefix + ":*"
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func boardKey(teacher string, from, to time.Time, types string) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", boardKeyPrefix, teacher, from.Format("2006-01-02"), to.Format("2006-01-02"), types)
}
