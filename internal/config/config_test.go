package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

var envVars = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "STATIC_DIR",
	"DB_DRIVER", "DB_DSN", "SQLITE_PATH",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
	"RAW_DATA_DIR", "CANONICAL_DIR", "PLANTS", "STREAM_CHUNK_SIZE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv: %v", err)
		}
		if cfg.AppEnv != "dev" {
			t.Errorf("AppEnv = %q; want dev", cfg.AppEnv)
		}
		if cfg.LogLevel != slog.LevelInfo {
			t.Errorf("LogLevel = %v; want info", cfg.LogLevel)
		}
		if cfg.HTTPAddr != ":8080" {
			t.Errorf("HTTPAddr = %q; want :8080", cfg.HTTPAddr)
		}
		if cfg.SQLiteDriver != "sqlite3" || cfg.SQLitePath != "db/plant_data.db" {
			t.Errorf("sqlite defaults = %q %q", cfg.SQLiteDriver, cfg.SQLitePath)
		}
		if cfg.RawDataDir != "data/raw" || cfg.CanonicalDir != "data/canonical" {
			t.Errorf("data dirs = %q %q", cfg.RawDataDir, cfg.CanonicalDir)
		}
		if want := []string{"excaulebur", "totosa"}; !reflect.DeepEqual(cfg.Plants, want) {
			t.Errorf("Plants = %v; want %v", cfg.Plants, want)
		}
		if cfg.StreamChunkSize != 20000 {
			t.Errorf("StreamChunkSize = %d; want 20000", cfg.StreamChunkSize)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("APP_ENV", "prod")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("HTTP_ADDR", ":9000")
		t.Setenv("SQLITE_PATH", "/tmp/p.db")
		t.Setenv("DB_MAX_OPEN_CONNS", "4")
		t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
		t.Setenv("PLANTS", " Totosa , CACTUS ")
		t.Setenv("STREAM_CHUNK_SIZE", "500")

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("LoadFromEnv: %v", err)
		}
		if cfg.AppEnv != "prod" || cfg.LogLevel != slog.LevelDebug || cfg.HTTPAddr != ":9000" {
			t.Errorf("unexpected core config: %+v", cfg)
		}
		if cfg.SQLitePath != "/tmp/p.db" || cfg.SQLiteMaxOpenConns != 4 {
			t.Errorf("unexpected sqlite config: %+v", cfg)
		}
		if cfg.SQLiteConnMaxLifetime != 5*time.Minute {
			t.Errorf("SQLiteConnMaxLifetime = %v; want 5m", cfg.SQLiteConnMaxLifetime)
		}
		if want := []string{"totosa", "cactus"}; !reflect.DeepEqual(cfg.Plants, want) {
			t.Errorf("Plants = %v; want %v (trimmed, lowercased)", cfg.Plants, want)
		}
		if cfg.StreamChunkSize != 500 {
			t.Errorf("StreamChunkSize = %d; want 500", cfg.StreamChunkSize)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := []struct {
			key, val string
		}{
			{"APP_ENV", "staging"},
			{"LOG_LEVEL", "verbose"},
			{"DB_MAX_OPEN_CONNS", "many"},
			{"DB_CONN_MAX_LIFETIME", "soon"},
			{"PLANTS", " , ,"},
			{"STREAM_CHUNK_SIZE", "0"},
			{"STREAM_CHUNK_SIZE", "-5"},
			{"STREAM_CHUNK_SIZE", "lots"},
		}
		for _, tc := range cases {
			t.Run(tc.key+"="+tc.val, func(t *testing.T) {
				clearEnv(t)
				t.Setenv(tc.key, tc.val)
				if _, err := LoadFromEnv(); err == nil {
					t.Errorf("LoadFromEnv = nil; want error for %s=%q", tc.key, tc.val)
				}
			})
		}
	})
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tc := range cases {
		got, err := parseLogLevel(tc.in)
		if err != nil {
			t.Errorf("parseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
	if _, err := parseLogLevel("loud"); err == nil {
		t.Error("parseLogLevel(loud) = nil; want error")
	}
}
