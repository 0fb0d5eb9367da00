// Package stats computes per-plant descriptive statistics over sensor
// readings. It is a pure transform: readings in, summary rows out, no
// state. It runs once at ingestion time; the read path only ever serves
// the persisted rows.
package stats

import (
	"math"
	"sort"

	"plantsense-server/internal/modules/plants/types"
)

// Rounding precision for display stability: signal and temperature to
// 3 decimals, humidity to 2.
const (
	signalDecimals      = 3
	temperatureDecimals = 3
	humidityDecimals    = 2
)

// fieldSummary is the describe() output for one numeric field of one plant.
type fieldSummary struct {
	mean, std, min, p25, p50, p75, max float64
}

// Describe groups readings by plant and produces one summary row per
// (plant, stat kind), each row carrying all three field values. A plant
// with zero readings produces no rows.
func Describe(readings []types.SensorReading) []types.PlantStatistic {
	grouped := make(map[string][]types.SensorReading)
	for _, r := range readings {
		grouped[r.PlantName] = append(grouped[r.PlantName], r)
	}

	plants := make([]string, 0, len(grouped))
	for name := range grouped {
		plants = append(plants, name)
	}
	sort.Strings(plants)

	var out []types.PlantStatistic
	for _, name := range plants {
		group := grouped[name]
		signal := summarize(values(group, func(r types.SensorReading) float64 { return r.SignalValue }))
		temperature := summarize(values(group, func(r types.SensorReading) float64 { return r.Temperature }))
		humidity := summarize(values(group, func(r types.SensorReading) float64 { return r.Humidity }))

		for _, kind := range types.StatKinds {
			out = append(out, types.PlantStatistic{
				PlantName:   name,
				Stat:        kind,
				SignalValue: round(signal.pick(kind), signalDecimals),
				Temperature: round(temperature.pick(kind), temperatureDecimals),
				Humidity:    round(humidity.pick(kind), humidityDecimals),
			})
		}
	}
	return out
}

func values(readings []types.SensorReading, field func(types.SensorReading) float64) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = field(r)
	}
	return out
}

func (s fieldSummary) pick(kind types.StatKind) float64 {
	switch kind {
	case types.StatMean:
		return s.mean
	case types.StatStd:
		return s.std
	case types.StatMin:
		return s.min
	case types.StatP25:
		return s.p25
	case types.StatP50:
		return s.p50
	case types.StatP75:
		return s.p75
	case types.StatMax:
		return s.max
	}
	return 0
}

func summarize(vals []float64) fieldSummary {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	return fieldSummary{
		mean: mean(vals),
		std:  stddev(vals),
		min:  sorted[0],
		p25:  percentile(sorted, 25),
		p50:  percentile(sorted, 50),
		p75:  percentile(sorted, 75),
		max:  sorted[len(sorted)-1],
	}
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the sample standard deviation (n-1 denominator). A single
// reading has no spread; report 0 so persisted values stay finite.
func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

// percentile computes the p-th percentile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func round(v float64, decimals int) float64 {
	factor := math.Pow10(decimals)
	return math.Round(v*factor) / factor
}
