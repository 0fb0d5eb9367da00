// Package consolidate merges per-session sensor export files into one
// canonical, chronologically ordered series per plant.
//
// Export files are named <plant>_<YYYY-MM-DD>.csv: the prefix identifies the
// plant, the suffix is the date the collection session started. Each file
// carries signal value, temperature, humidity and a time-of-day column; the
// calendar date is derived from the filename.
package consolidate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"plantsense-server/internal/modules/plants/types"
)

// ErrMalformedInput marks an export file that cannot be parsed into the
// expected columns. It aborts consolidation for the whole plant; there is
// no partial merge.
var ErrMalformedInput = errors.New("malformed export file")

// rawHeader is the expected header of a per-session export file.
var rawHeader = []string{"signal_value", "temperature", "humidity", "time"}

// canonicalHeader is written as the first row of every canonical series
// file. Column order is fixed: signal value, temperature, humidity, date,
// time.
var canonicalHeader = []string{"signal_value", "temperature", "humidity", "date", "time"}

// Readings with a time-of-day before rolloverHour belong to the day after
// the session date: the source logs roll over at local midnight but the
// file is dated by the session start.
const rolloverHour = 6

// Row is one consolidated reading before it is loaded into storage.
type Row struct {
	SignalValue float64
	Temperature float64
	Humidity    float64
	Timestamp   time.Time
}

// Consolidate reads every export file in rawDir that belongs to plant and
// returns their rows concatenated and sorted by (date, time) ascending,
// ties keeping original file order. Files for other plants are skipped;
// a file that cannot be parsed fails the whole call with ErrMalformedInput.
func Consolidate(rawDir, plant string) ([]Row, error) {
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read raw dir %s: %w", rawDir, err)
	}

	want := strings.ToLower(strings.TrimSpace(plant))
	var rows []Row
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filePlant, sessionDate, ok := parseExportName(entry.Name())
		if !ok || filePlant != want {
			continue
		}
		fileRows, err := readExportFile(filepath.Join(rawDir, entry.Name()), sessionDate)
		if err != nil {
			return nil, err
		}
		rows = append(rows, fileRows...)
	}

	// Stable keeps original file order for identical timestamps.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return rows, nil
}

// parseExportName splits "<plant>_<YYYY-MM-DD>.csv" into its parts.
func parseExportName(name string) (plant string, sessionDate time.Time, ok bool) {
	if !strings.HasSuffix(name, ".csv") {
		return "", time.Time{}, false
	}
	base := strings.TrimSuffix(name, ".csv")
	i := strings.LastIndex(base, "_")
	if i <= 0 {
		return "", time.Time{}, false
	}
	date, err := time.ParseInLocation("2006-01-02", base[i+1:], time.UTC)
	if err != nil {
		return "", time.Time{}, false
	}
	return strings.ToLower(base[:i]), date, true
}

func readExportFile(path string, sessionDate time.Time) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %v", ErrMalformedInput, path, err)
	}
	if len(header) != len(rawHeader) {
		return nil, fmt.Errorf("%w: %s: expected %d columns, got %d", ErrMalformedInput, path, len(rawHeader), len(header))
	}

	var rows []Row
	line := 1
	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		row, err := parseExportRecord(record, sessionDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseFiniteFloat parses a numeric field, rejecting NaN and infinities:
// persisted values must stay finite so sorting and JSON encoding hold
// downstream.
func parseFiniteFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %v", field, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q: not a finite number", field, s)
	}
	return v, nil
}

func parseExportRecord(record []string, sessionDate time.Time) (Row, error) {
	if len(record) != len(rawHeader) {
		return Row{}, fmt.Errorf("expected %d fields, got %d", len(rawHeader), len(record))
	}
	signal, err := parseFiniteFloat("signal_value", record[0])
	if err != nil {
		return Row{}, err
	}
	temperature, err := parseFiniteFloat("temperature", record[1])
	if err != nil {
		return Row{}, err
	}
	humidity, err := parseFiniteFloat("humidity", record[2])
	if err != nil {
		return Row{}, err
	}
	tod, err := time.Parse("15:04:05", strings.TrimSpace(record[3]))
	if err != nil {
		return Row{}, fmt.Errorf("time %q: %v", record[3], err)
	}

	date := sessionDate
	if tod.Hour() < rolloverHour {
		// Past-midnight readings belong to the next calendar day.
		date = date.AddDate(0, 0, 1)
	}
	ts := time.Date(date.Year(), date.Month(), date.Day(),
		tod.Hour(), tod.Minute(), tod.Second(), 0, time.UTC)

	return Row{
		SignalValue: signal,
		Temperature: temperature,
		Humidity:    humidity,
		Timestamp:   ts,
	}, nil
}

// CanonicalPath returns where the canonical series for plant lives.
func CanonicalPath(canonicalDir, plant string) string {
	return filepath.Join(canonicalDir, types.TitleName(plant)+".csv")
}

// WriteCanonical persists the consolidated series for plant, overwriting
// any prior file. Re-running with the same rows reproduces an identical
// file.
func WriteCanonical(canonicalDir, plant string, rows []Row) (string, error) {
	if err := os.MkdirAll(canonicalDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", canonicalDir, err)
	}
	path := CanonicalPath(canonicalDir, plant)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create canonical %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(canonicalHeader); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write canonical header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatFloat(row.SignalValue, 'f', -1, 64),
			strconv.FormatFloat(row.Temperature, 'f', -1, 64),
			strconv.FormatFloat(row.Humidity, 'f', -1, 64),
			row.Timestamp.Format("2006-01-02"),
			row.Timestamp.Format("15:04:05"),
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write canonical row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("flush canonical %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close canonical %s: %w", path, err)
	}
	return path, nil
}

// LoadCanonical reads a previously written canonical series back. A missing
// file yields no rows and no error.
func LoadCanonical(canonicalDir, plant string) ([]Row, error) {
	path := CanonicalPath(canonicalDir, plant)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open canonical %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read header: %v", ErrMalformedInput, path, err)
	}
	if !slices.Equal(header, canonicalHeader) {
		return nil, fmt.Errorf("%w: %s: unexpected header %v", ErrMalformedInput, path, header)
	}

	var rows []Row
	line := 1
	for {
		line++
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		if len(record) != len(canonicalHeader) {
			return nil, fmt.Errorf("%w: %s line %d: expected %d fields, got %d", ErrMalformedInput, path, line, len(canonicalHeader), len(record))
		}
		signal, err := parseFiniteFloat("signal_value", record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		temperature, err := parseFiniteFloat("temperature", record[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		humidity, err := parseFiniteFloat("humidity", record[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedInput, path, line, err)
		}
		ts, err := time.ParseInLocation("2006-01-02 15:04:05", record[3]+" "+record[4], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: timestamp: %v", ErrMalformedInput, path, line, err)
		}
		rows = append(rows, Row{
			SignalValue: signal,
			Temperature: temperature,
			Humidity:    humidity,
			Timestamp:   ts,
		})
	}
	return rows, nil
}

// Readings converts consolidated rows into storage records for plant.
func Readings(plant string, rows []Row) []types.SensorReading {
	name := types.TitleName(plant)
	out := make([]types.SensorReading, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.SensorReading{
			PlantName:   name,
			SignalValue: row.SignalValue,
			Temperature: row.Temperature,
			Humidity:    row.Humidity,
			Timestamp:   row.Timestamp,
		})
	}
	return out
}
