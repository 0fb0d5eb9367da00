// Package service bridges storage to the HTTP layer: it runs the one-shot
// ingestion pipeline at startup and serves readings (chunked, lazily) and
// precomputed statistics afterwards.
package service

import (
	"context"
	"sync"

	"plantsense-server/internal/modules/plants/repository"
	"plantsense-server/internal/modules/plants/types"
)

// Options carries the ingestion and streaming knobs from config.
type Options struct {
	// RawDataDir holds per-session export files.
	RawDataDir string
	// CanonicalDir receives consolidated per-plant series files.
	CanonicalDir string
	// Plants are the plant identifiers to consolidate and ingest.
	Plants []string
	// ChunkSize is the default readings-per-chunk for streaming.
	ChunkSize int
}

type Service struct {
	repo repository.PlantRepository
	opts Options

	// statsCache memoizes QueryStats per plant key ("" = all plants). The
	// store never changes after ingestion within a process lifetime, so
	// entries are only invalidated when ingestion completes. Only keys
	// with rows are stored, bounding the map by plant cardinality even
	// when clients request arbitrary names.
	mu         sync.Mutex
	statsCache map[string][]types.PlantStatistic
}

func NewService(repo repository.PlantRepository, opts Options) *Service {
	return &Service{
		repo:       repo,
		opts:       opts,
		statsCache: make(map[string][]types.PlantStatistic),
	}
}

// Stats returns the precomputed summary rows, all plants or one plant
// (case-insensitive). An unknown plant yields an empty result, not an
// error. Results are memoized per plant key.
func (s *Service) Stats(ctx context.Context, plantName string) ([]types.PlantStatistic, error) {
	key := types.TitleName(plantName)

	s.mu.Lock()
	cached, ok := s.statsCache[key]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	stats, err := s.repo.QueryStats(ctx, key)
	if err != nil {
		return nil, err
	}

	// Empty results are not cached: the key space would otherwise grow
	// with every unknown name a client puts in the URL.
	if len(stats) > 0 {
		s.mu.Lock()
		s.statsCache[key] = stats
		s.mu.Unlock()
	}
	return stats, nil
}

// invalidateStatsCache drops all memoized stats. Called when ingestion
// completes so readers never see rows from a previous store state.
func (s *Service) invalidateStatsCache() {
	s.mu.Lock()
	s.statsCache = make(map[string][]types.PlantStatistic)
	s.mu.Unlock()
}
