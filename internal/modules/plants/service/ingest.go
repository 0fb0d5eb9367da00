package service

import (
	"context"
	"fmt"
	"log/slog"

	"plantsense-server/internal/modules/plants/consolidate"
	"plantsense-server/internal/modules/plants/stats"
	"plantsense-server/internal/modules/plants/types"
)

// IngestIfAbsent runs the full Consolidator -> storage -> statistics
// pipeline unless the store is already populated. It must complete before
// any read traffic is accepted; every error it returns is fatal at startup
// (a failed bulk insert was rolled back and ingestion restarts from scratch
// on the next attempt).
func (s *Service) IngestIfAbsent(ctx context.Context) error {
	count, err := s.repo.CountReadings(ctx)
	if err != nil {
		return fmt.Errorf("count readings: %w", err)
	}
	if count > 0 {
		slog.Info("ingestion skipped, store already populated", "readings", count)
		return nil
	}

	var readings []types.SensorReading
	for _, plant := range s.opts.Plants {
		rows, err := s.consolidatePlant(plant)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			slog.Warn("no data for plant", "plant", plant)
			continue
		}
		readings = append(readings, consolidate.Readings(plant, rows)...)
	}
	if len(readings) == 0 {
		slog.Warn("ingestion found no readings at all")
		return nil
	}

	if err := s.repo.BulkInsertReadings(ctx, readings); err != nil {
		return err
	}

	statRows := stats.Describe(readings)
	if err := s.repo.BulkInsertStats(ctx, statRows); err != nil {
		return err
	}

	s.invalidateStatsCache()
	slog.Info("ingestion complete",
		"plants", len(s.opts.Plants),
		"readings", len(readings),
		"stat_rows", len(statRows),
	)
	return nil
}

// consolidatePlant merges raw session exports into the canonical series
// file for one plant. When the raw directory has no files for the plant, a
// previously written canonical file is reused as-is.
func (s *Service) consolidatePlant(plant string) ([]consolidate.Row, error) {
	rows, err := consolidate.Consolidate(s.opts.RawDataDir, plant)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows, err = consolidate.LoadCanonical(s.opts.CanonicalDir, plant)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			slog.Info("reusing canonical series", "plant", plant, "rows", len(rows))
		}
		return rows, nil
	}

	path, err := consolidate.WriteCanonical(s.opts.CanonicalDir, plant, rows)
	if err != nil {
		return nil, err
	}
	slog.Info("canonical series written", "plant", plant, "path", path, "rows", len(rows))
	return rows, nil
}
