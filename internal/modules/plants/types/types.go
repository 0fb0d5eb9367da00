package types

import (
	"strings"
	"time"
	"unicode"
)

// SensorReading is one timestamped measurement for one plant, as ingested
// from the consolidated per-plant series. Readings are append-only and
// never mutated after ingestion.
type SensorReading struct {
	ID          int64     `json:"id"`
	PlantName   string    `json:"plant_name"`
	SignalValue float64   `json:"signal_value"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// StatKind labels one row of the per-plant descriptive summary.
type StatKind string

const (
	StatMean StatKind = "mean"
	StatStd  StatKind = "std"
	StatMin  StatKind = "min"
	StatP25  StatKind = "25%"
	StatP50  StatKind = "50%"
	StatP75  StatKind = "75%"
	StatMax  StatKind = "max"
)

// StatKinds is the complete, ordered set of summary rows produced for every
// plant that has at least one reading.
var StatKinds = []StatKind{StatMean, StatStd, StatMin, StatP25, StatP50, StatP75, StatMax}

// PlantStatistic is one summary row: a single stat kind carrying the value
// for all three numeric fields of a plant's readings. Wide format on
// purpose; the stats table is keyed by (plant_name, stat).
type PlantStatistic struct {
	ID          int64    `json:"id"`
	PlantName   string   `json:"plant_name"`
	Stat        StatKind `json:"stat"`
	SignalValue float64  `json:"signal_value"`
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
}

// TitleName returns the canonical stored form of a plant name: first rune
// upper-cased, rest lowered. Lookups compare case-insensitively against it.
func TitleName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
