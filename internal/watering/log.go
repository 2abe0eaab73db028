package watering

import (
	"math"
	"time"
)

// Reading is one set of sensor values. Any value may be missing.
type Reading struct {
	SoilMoisture *float64
	Luminosity   *float64
	Humidity     *float64
	Temperature  *float64
}

// Value returns the reading for f. NaN and infinite values count as missing.
func (r Reading) Value(f Field) (float64, bool) {
	var p *float64
	switch f {
	case SoilMoisture:
		p = r.SoilMoisture
	case Luminosity:
		p = r.Luminosity
	case Humidity:
		p = r.Humidity
	case Temperature:
		p = r.Temperature
	}
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}

// IsEmpty reports whether no field carries a usable value.
func (r Reading) IsEmpty() bool {
	for _, f := range Fields {
		if _, ok := r.Value(f); ok {
			return false
		}
	}
	return true
}

// Log is one immutable entry of a plant's sensor log.
type Log struct {
	ID         string
	PlantID    string
	CreatedAt  time.Time
	Reading    Reading
	WasWatered bool
}

// LatestValue returns the most recent usable value of f in logs, with its timestamp.
// The slice order does not matter, ties keep the first entry.
func LatestValue(logs []Log, f Field) (float64, time.Time, bool) {
	var (
		value float64
		at    time.Time
		found bool
	)
	for _, l := range logs {
		v, ok := l.Reading.Value(f)
		if !ok {
			continue
		}
		if !found || l.CreatedAt.After(at) {
			value, at, found = v, l.CreatedAt, true
		}
	}
	return value, at, found
}

// LastWatered returns the most recent entry with WasWatered set.
func LastWatered(logs []Log) (Log, bool) {
	var (
		last  Log
		found bool
	)
	for _, l := range logs {
		if !l.WasWatered {
			continue
		}
		if !found || l.CreatedAt.After(last.CreatedAt) {
			last, found = l, true
		}
	}
	return last, found
}
