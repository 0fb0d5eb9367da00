package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"plantsense-server/internal/modules/plants/types"
)

//go:embed sql/insert-reading.sql
var insertReadingSQL string

//go:embed sql/insert-stat.sql
var insertStatSQL string

//go:embed sql/select-readings.sql
var selectReadingsSQL string

//go:embed sql/select-readings-by-plant.sql
var selectReadingsByPlantSQL string

//go:embed sql/count-readings.sql
var countReadingsSQL string

//go:embed sql/select-stats.sql
var selectStatsSQL string

//go:embed sql/select-stats-by-plant.sql
var selectStatsByPlantSQL string

// ErrIngestionTx marks a bulk insert that failed partway. The transaction
// is rolled back entirely; ingestion is retried from scratch on the next
// startup attempt, never within the same run.
var ErrIngestionTx = errors.New("ingestion transaction failed")

// Stored timestamp format. Second precision matches the source data.
const timeFormat = time.RFC3339

type PlantRepository interface {
	BulkInsertReadings(ctx context.Context, readings []types.SensorReading) error
	BulkInsertStats(ctx context.Context, stats []types.PlantStatistic) error
	CountReadings(ctx context.Context) (int64, error)
	// QueryReadings returns a forward-only page cursor over readings in
	// insertion (== chronological) order, optionally filtered to one plant
	// case-insensitively. pageSize <= 0 yields everything as a single page.
	// Callers must Close the cursor on every path.
	QueryReadings(ctx context.Context, plantName string, pageSize int) (*ReadingPages, error)
	QueryStats(ctx context.Context, plantName string) ([]types.PlantStatistic, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) PlantRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) BulkInsertReadings(ctx context.Context, readings []types.SensorReading) error {
	return r.bulkInsert(ctx, insertReadingSQL, len(readings), func(stmt *sql.Stmt, i int) error {
		reading := readings[i]
		_, err := stmt.ExecContext(ctx,
			reading.PlantName,
			reading.SignalValue,
			reading.Temperature,
			reading.Humidity,
			reading.Timestamp.UTC().Format(timeFormat),
		)
		return err
	})
}

func (r *repositoryImpl) BulkInsertStats(ctx context.Context, stats []types.PlantStatistic) error {
	return r.bulkInsert(ctx, insertStatSQL, len(stats), func(stmt *sql.Stmt, i int) error {
		stat := stats[i]
		_, err := stmt.ExecContext(ctx,
			stat.PlantName,
			string(stat.Stat),
			stat.SignalValue,
			stat.Temperature,
			stat.Humidity,
		)
		return err
	})
}

// bulkInsert runs every insert in one transaction; any failure rolls the
// whole batch back.
func (r *repositoryImpl) bulkInsert(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrIngestionTx, err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		rollback(tx)
		return fmt.Errorf("%w: prepare: %v", ErrIngestionTx, err)
	}
	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			_ = stmt.Close()
			rollback(tx)
			return fmt.Errorf("%w: insert %d of %d: %v", ErrIngestionTx, i+1, n, err)
		}
	}
	if err := stmt.Close(); err != nil {
		rollback(tx)
		return fmt.Errorf("%w: close statement: %v", ErrIngestionTx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrIngestionTx, err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil {
		slog.Error("rollback ingestion transaction", "error", err)
	}
}

func (r *repositoryImpl) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, countReadingsSQL).Scan(&n)
	return n, err
}

func (r *repositoryImpl) QueryReadings(ctx context.Context, plantName string, pageSize int) (*ReadingPages, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if plantName != "" {
		rows, err = r.db.QueryContext(ctx, selectReadingsByPlantSQL, plantName)
	} else {
		rows, err = r.db.QueryContext(ctx, selectReadingsSQL)
	}
	if err != nil {
		return nil, err
	}
	return &ReadingPages{rows: rows, pageSize: pageSize}, nil
}

func (r *repositoryImpl) QueryStats(ctx context.Context, plantName string) ([]types.PlantStatistic, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if plantName != "" {
		rows, err = r.db.QueryContext(ctx, selectStatsByPlantSQL, plantName)
	} else {
		rows, err = r.db.QueryContext(ctx, selectStatsSQL)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stats rows", "error", err)
		}
	}()

	var out []types.PlantStatistic
	for rows.Next() {
		var stat types.PlantStatistic
		var kind string
		if err := rows.Scan(&stat.ID, &stat.PlantName, &kind, &stat.SignalValue, &stat.Temperature, &stat.Humidity); err != nil {
			return nil, err
		}
		stat.Stat = types.StatKind(kind)
		out = append(out, stat)
	}
	return out, rows.Err()
}

// ReadingPages is a forward-only cursor that yields fixed-size pages of
// readings. It follows the sql.Rows idiom: Next advances, Page returns the
// current page, Err reports the terminal error, Close releases the cursor.
type ReadingPages struct {
	rows     *sql.Rows
	pageSize int
	page     []types.SensorReading
	err      error
	done     bool
}

func (p *ReadingPages) Next() bool {
	if p.done || p.err != nil {
		return false
	}
	p.page = p.page[:0]
	for p.pageSize <= 0 || len(p.page) < p.pageSize {
		if !p.rows.Next() {
			p.done = true
			p.err = p.rows.Err()
			break
		}
		reading, err := scanReading(p.rows)
		if err != nil {
			p.done = true
			p.err = err
			return false
		}
		p.page = append(p.page, reading)
	}
	return len(p.page) > 0
}

// Page returns the readings scanned by the last call to Next. The slice is
// only valid until the next call.
func (p *ReadingPages) Page() []types.SensorReading {
	return p.page
}

func (p *ReadingPages) Err() error {
	return p.err
}

func (p *ReadingPages) Close() error {
	return p.rows.Close()
}

func scanReading(rows *sql.Rows) (types.SensorReading, error) {
	var reading types.SensorReading
	var ts string
	if err := rows.Scan(&reading.ID, &reading.PlantName, &reading.SignalValue, &reading.Temperature, &reading.Humidity, &ts); err != nil {
		return types.SensorReading{}, err
	}
	t, err := time.Parse(timeFormat, ts)
	if err != nil {
		return types.SensorReading{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	reading.Timestamp = t
	return reading, nil
}
