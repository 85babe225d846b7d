package brain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/momentum/internal/s0_data"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/logger"
	"github.com/wonny/momentum/pkg/redis"
)

// Cache is the result cache (pkg/redis.Cache)
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Recorder receives service level counters (pkg/metrics.Registry)
type Recorder interface {
	Observer
	RecordRun(source string)
	RecordCache(outcome string)
}

// Run sources reported to the Recorder
const (
	SourceComputed = "computed"
	SourceCache    = "cache"
)

// Service loads the dataset and serves comparison tables, computing them
// only when the cache has no entry for the (strategy, panel, benchmark) triple
type Service struct {
	strategy   *strategyconfig.Config
	configHash string
	loader     s0_data.Loader
	workers    int
	cache      Cache
	ttl        time.Duration
	recorder   Recorder
	logger     *logger.Logger

	mu sync.Mutex // 동시 요청 시 중복 계산 방지
}

// NewService creates a new comparison service. configHash identifies the
// strategy config in cache keys and audit records.
func NewService(strategy *strategyconfig.Config, configHash string, loader s0_data.Loader, workers int, log *logger.Logger) *Service {
	return &Service{
		strategy:   strategy,
		configHash: configHash,
		loader:     loader,
		workers:    workers,
		logger:     log,
	}
}

// WithCache enables the result cache
func (s *Service) WithCache(cache Cache, ttl time.Duration) *Service {
	s.cache = cache
	s.ttl = ttl
	return s
}

// WithRecorder attaches run metrics
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// Dataset loads the configured panel and benchmark
func (s *Service) Dataset(ctx context.Context) (*s0_data.Dataset, error) {
	ds, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// Compare returns the comparison table of the current dataset. refresh
// skips the cache lookup; the fresh result is still written back.
func (s *Service) Compare(ctx context.Context, refresh bool) (*ComparisonTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	// 벤치마크도 키에 포함: 같은 패널이라도 벤치마크가 바뀌면 재계산
	key := redis.ComparisonKey(s.configHash, ds.Panel.Fingerprint(), ds.Benchmark.Fingerprint())

	if !refresh && s.cache != nil {
		var cached ComparisonTable
		hit, err := s.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			// 캐시 장애는 계산으로 대체
			s.logger.WithError(err).Warn("Comparison cache lookup failed")
			s.record(func(r Recorder) { r.RecordCache("error") })
		case hit:
			s.record(func(r Recorder) { r.RecordCache("hit"); r.RecordRun(SourceCache) })
			s.logger.WithFields(map[string]interface{}{
				"key": key,
			}).Info("Comparison served from cache")
			return &cached, nil
		default:
			s.record(func(r Recorder) { r.RecordCache("miss") })
		}
	}

	comparator, err := NewComparator(ConfigFrom(s.strategy, s.workers), s.logger)
	if err != nil {
		return nil, err
	}
	if s.recorder != nil {
		comparator.WithObserver(s.recorder)
	}

	table, err := comparator.Run(ctx, ds.Panel, ds.Benchmark)
	if err != nil {
		return nil, err
	}
	table.ConfigHash = s.configHash
	s.record(func(r Recorder) { r.RecordRun(SourceComputed) })

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, table, s.ttl); err != nil {
			s.logger.WithError(err).Warn("Failed to cache comparison")
		}
	}
	return table, nil
}

func (s *Service) record(f func(Recorder)) {
	if s.recorder != nil {
		f(s.recorder)
	}
}
