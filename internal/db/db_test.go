package db

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	sqlite3 "github.com/mattn/go-sqlite3"

	"plantsense-server/internal/config"
)

var registerPlainDriver sync.Once

func debugConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	return config.Config{
		LogLevel:           slog.LevelDebug,
		SQLiteDriver:       driver,
		SQLitePath:         filepath.Join(t.TempDir(), "plant_data.db"),
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}
}

func captureDefaultLogger(t *testing.T) *captureHandler {
	t.Helper()
	handler := &captureHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return handler
}

func querySelectOne(t *testing.T, conn *sql.DB) {
	t.Helper()
	var one int
	if err := conn.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("query: %v", err)
	}
}

func TestOpen_debugUsesLogConnector(t *testing.T) {
	handler := captureDefaultLogger(t)

	conn, err := Open(debugConfig(t, "sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	querySelectOne(t, conn)
	if len(handler.recordsFor(t, "sql")) == 0 {
		t.Error("no sql log records at debug level with the sqlite3 driver")
	}
}

func TestOpen_debugHonorsConfiguredDriver(t *testing.T) {
	registerPlainDriver.Do(func() {
		sql.Register("sqlite3_plain", &sqlite3.SQLiteDriver{})
	})
	handler := captureDefaultLogger(t)

	conn, err := Open(debugConfig(t, "sqlite3_plain"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = Close(conn) }()

	// A non-default driver takes the plain sql.Open path; the logging
	// connector only wraps sqlite3.
	querySelectOne(t, conn)
	if recs := handler.recordsFor(t, "sql"); len(recs) != 0 {
		t.Errorf("got %d sql log records for a non-default driver; want 0", len(recs))
	}
}
