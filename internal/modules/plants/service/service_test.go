package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"plantsense-server/internal/db"
	"plantsense-server/internal/modules/plants/repository"
	"plantsense-server/internal/modules/plants/types"
)

const exportHeader = "signal_value,temperature,humidity,time\n"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Errorf("close db: %v", closeErr)
		}
	})
	if err := db.EnsureSchema(conn); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return conn
}

func setupService(t *testing.T, plants []string) (*Service, repository.PlantRepository, Options) {
	t.Helper()
	repo := repository.NewRepository(setupTestDB(t))
	opts := Options{
		RawDataDir:   t.TempDir(),
		CanonicalDir: t.TempDir(),
		Plants:       plants,
		ChunkSize:    100,
	}
	return NewService(repo, opts), repo, opts
}

func writeExport(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(exportHeader+body), 0o644); err != nil {
		t.Fatalf("write export %s: %v", name, err)
	}
}

func TestIngestIfAbsent_fullPipeline(t *testing.T) {
	svc, repo, opts := setupService(t, []string{"totosa"})
	writeExport(t, opts.RawDataDir, "totosa_2024-01-05.csv",
		"0.5,25.1,60,22:00:00\n"+
			"0.7,24.8,62,23:30:00\n"+
			"0.6,24.2,64,02:00:00\n")

	ctx := context.Background()
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("IngestIfAbsent: %v", err)
	}

	n, err := repo.CountReadings(ctx)
	if err != nil {
		t.Fatalf("CountReadings: %v", err)
	}
	if n != 3 {
		t.Errorf("readings = %d; want 3", n)
	}

	stats, err := repo.QueryStats(ctx, "totosa")
	if err != nil {
		t.Fatalf("QueryStats: %v", err)
	}
	if len(stats) != len(types.StatKinds) {
		t.Errorf("stat rows = %d; want %d", len(stats), len(types.StatKinds))
	}

	if _, err := os.Stat(filepath.Join(opts.CanonicalDir, "Totosa.csv")); err != nil {
		t.Errorf("canonical file not written: %v", err)
	}
}

func TestIngestIfAbsent_skipsPopulatedStore(t *testing.T) {
	svc, repo, opts := setupService(t, []string{"totosa"})
	writeExport(t, opts.RawDataDir, "totosa_2024-01-05.csv", "0.5,25.1,60,10:00:00\n")

	ctx := context.Background()
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("first IngestIfAbsent: %v", err)
	}
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("second IngestIfAbsent: %v", err)
	}

	n, err := repo.CountReadings(ctx)
	if err != nil {
		t.Fatalf("CountReadings: %v", err)
	}
	if n != 1 {
		t.Errorf("readings = %d after second run; want 1 (no duplicates)", n)
	}
}

func TestIngestIfAbsent_reusesCanonical(t *testing.T) {
	svc, repo, opts := setupService(t, []string{"totosa"})

	// No raw exports; a canonical file from an earlier run exists.
	canonical := "signal_value,temperature,humidity,date,time\n" +
		"0.5,25.1,60,2024-01-05,22:00:00\n" +
		"0.6,24.2,64,2024-01-06,02:00:00\n"
	if err := os.WriteFile(filepath.Join(opts.CanonicalDir, "Totosa.csv"), []byte(canonical), 0o644); err != nil {
		t.Fatalf("write canonical: %v", err)
	}

	ctx := context.Background()
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("IngestIfAbsent: %v", err)
	}

	n, err := repo.CountReadings(ctx)
	if err != nil {
		t.Fatalf("CountReadings: %v", err)
	}
	if n != 2 {
		t.Errorf("readings = %d; want 2 from canonical file", n)
	}
}

func TestIngestIfAbsent_malformedExportIsFatal(t *testing.T) {
	svc, _, opts := setupService(t, []string{"totosa"})
	writeExport(t, opts.RawDataDir, "totosa_2024-01-05.csv", "bogus,25.1,60,10:00:00\n")

	if err := svc.IngestIfAbsent(context.Background()); err == nil {
		t.Fatal("IngestIfAbsent = nil; want error for malformed export")
	}
}

func TestStreamReadings_chunking(t *testing.T) {
	svc, _, opts := setupService(t, []string{"totosa"})
	writeExport(t, opts.RawDataDir, "totosa_2024-01-05.csv",
		"0.1,25.0,60,10:00:00\n"+
			"0.2,25.0,60,10:01:00\n"+
			"0.3,25.0,60,10:02:00\n"+
			"0.4,25.0,60,10:03:00\n"+
			"0.5,25.0,60,10:04:00\n")

	ctx := context.Background()
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("IngestIfAbsent: %v", err)
	}

	collect := func(chunkSize int) (chunks int, body []byte) {
		stream, err := svc.StreamReadings(ctx, "", chunkSize)
		if err != nil {
			t.Fatalf("StreamReadings: %v", err)
		}
		defer func() {
			if err := stream.Close(); err != nil {
				t.Errorf("close stream: %v", err)
			}
		}()
		for {
			chunk, err := stream.Next()
			if err != nil {
				t.Fatalf("stream next: %v", err)
			}
			if chunk == nil {
				return chunks, body
			}
			chunks++
			body = append(body, chunk...)
		}
	}

	chunks, chunked := collect(2)
	if chunks != 3 {
		t.Errorf("chunks = %d; want 3 (sizes 2,2,1)", chunks)
	}

	_, whole := collect(0) // configured default of 100 gives one chunk
	if !bytes.Equal(chunked, whole) {
		t.Error("concatenated chunks differ from unchunked stream")
	}

	// Every line is an independently decodable reading.
	lines := bytes.Split(bytes.TrimSpace(chunked), []byte("\n"))
	if len(lines) != 5 {
		t.Fatalf("lines = %d; want 5", len(lines))
	}
	var reading types.SensorReading
	if err := json.Unmarshal(lines[0], &reading); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if reading.PlantName != "Totosa" {
		t.Errorf("plant = %q; want Totosa", reading.PlantName)
	}
}

func TestStreamReadings_unknownPlantIsEmpty(t *testing.T) {
	svc, _, opts := setupService(t, []string{"totosa"})
	writeExport(t, opts.RawDataDir, "totosa_2024-01-05.csv", "0.1,25.0,60,10:00:00\n")

	ctx := context.Background()
	if err := svc.IngestIfAbsent(ctx); err != nil {
		t.Fatalf("IngestIfAbsent: %v", err)
	}

	stream, err := svc.StreamReadings(ctx, "nonexistent", 2)
	if err != nil {
		t.Fatalf("StreamReadings: %v", err)
	}
	defer func() { _ = stream.Close() }()

	chunk, err := stream.Next()
	if err != nil {
		t.Fatalf("stream next: %v", err)
	}
	if chunk != nil {
		t.Errorf("chunk = %q; want nil for unknown plant", chunk)
	}
}

// countingRepo counts QueryStats calls to observe memoization.
type countingRepo struct {
	repository.PlantRepository
	statsCalls int
}

func (c *countingRepo) QueryStats(ctx context.Context, plantName string) ([]types.PlantStatistic, error) {
	c.statsCalls++
	return c.PlantRepository.QueryStats(ctx, plantName)
}

func TestStats_memoized(t *testing.T) {
	repo := &countingRepo{PlantRepository: repository.NewRepository(setupTestDB(t))}
	svc := NewService(repo, Options{ChunkSize: 100})
	ctx := context.Background()

	if err := repo.BulkInsertStats(ctx, []types.PlantStatistic{
		{PlantName: "Totosa", Stat: types.StatMean, SignalValue: 1, Temperature: 2, Humidity: 3},
	}); err != nil {
		t.Fatalf("BulkInsertStats: %v", err)
	}

	for i := 0; i < 3; i++ {
		stats, err := svc.Stats(ctx, "totosa")
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if len(stats) != 1 {
			t.Fatalf("stats = %d rows; want 1", len(stats))
		}
	}
	if repo.statsCalls != 1 {
		t.Errorf("QueryStats calls = %d; want 1 (memoized)", repo.statsCalls)
	}

	// Case variants share the title-cased cache key.
	if _, err := svc.Stats(ctx, "TOTOSA"); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if repo.statsCalls != 1 {
		t.Errorf("QueryStats calls = %d after case-variant lookup; want 1", repo.statsCalls)
	}

	svc.invalidateStatsCache()
	if _, err := svc.Stats(ctx, "totosa"); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if repo.statsCalls != 2 {
		t.Errorf("QueryStats calls = %d after invalidation; want 2", repo.statsCalls)
	}
}

func TestStats_unknownPlantNotCached(t *testing.T) {
	repo := &countingRepo{PlantRepository: repository.NewRepository(setupTestDB(t))}
	svc := NewService(repo, Options{ChunkSize: 100})
	ctx := context.Background()

	for _, name := range []string{"cactus", "fern", "cactus"} {
		stats, err := svc.Stats(ctx, name)
		if err != nil {
			t.Fatalf("Stats(%q): %v", name, err)
		}
		if len(stats) != 0 {
			t.Fatalf("Stats(%q) = %d rows; want 0", name, len(stats))
		}
	}

	// Empty results always hit storage; the cache must not grow with
	// whatever names clients put in the URL.
	if repo.statsCalls != 3 {
		t.Errorf("QueryStats calls = %d; want 3", repo.statsCalls)
	}
	svc.mu.Lock()
	size := len(svc.statsCache)
	svc.mu.Unlock()
	if size != 0 {
		t.Errorf("cache size = %d; want 0", size)
	}
}
