// Package watering decides whether a plant needs water from its policy and recent sensor log.
//
// The engine is pure: it performs no I/O, holds no state and is safe for concurrent use.
package watering

import (
	"math"
	"time"
)

// Day is the unit of a policy watering frequency.
const Day = 24 * time.Hour

// Decision is the outcome of evaluating a plant.
type Decision int

const (
	// Skip means no rule fired, or automatic watering is off.
	Skip Decision = iota
	// WaterNow means at least one rule fired.
	WaterNow
	// NoPolicy means automatic watering is on but nothing is configured.
	NoPolicy
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case WaterNow:
		return "water_now"
	case NoPolicy:
		return "no_policy"
	default:
		return "unknown"
	}
}

// RuleKind names the rule behind a Trigger.
type RuleKind string

const (
	RuleThreshold RuleKind = "threshold"
	RuleFrequency RuleKind = "frequency"
)

// Trigger records one rule that fired.
type Trigger struct {
	Kind RuleKind

	// Threshold rule.
	Field     Field
	Reading   float64
	Threshold float64
	ReadAt    time.Time

	// Frequency rule. LastWatered is zero when the window holds no watering.
	FrequencyDays int
	LastWatered   time.Time
}

// Rule is a short label for metrics and logs, such as "threshold:soil_moisture".
func (t Trigger) Rule() string {
	if t.Kind == RuleThreshold {
		return string(t.Kind) + ":" + t.Field.String()
	}
	return string(t.Kind)
}

// Assessment is a decision together with the rules that produced it.
type Assessment struct {
	Decision Decision
	Triggers []Trigger
}

// Evaluate decides whether to water a plant now.
func Evaluate(policy Policy, recentLogs []Log, now time.Time) Decision {
	return Assess(policy, recentLogs, now).Decision
}

// Assess evaluates every rule of policy against recentLogs and reports which ones fired.
// It is total: missing or malformed readings are ignored rather than reported.
func Assess(policy Policy, recentLogs []Log, now time.Time) Assessment {
	if !policy.AutomaticWatering() {
		return Assessment{Decision: Skip}
	}
	if !policy.Actionable() {
		return Assessment{Decision: NoPolicy}
	}

	var triggers []Trigger

	for _, f := range Fields {
		threshold, ok := policy.Threshold(f).Get()
		if !ok {
			continue
		}
		reading, at, ok := LatestValue(recentLogs, f)
		if !ok {
			continue
		}
		if exceeds(f, reading, threshold) {
			triggers = append(triggers, Trigger{
				Kind:      RuleThreshold,
				Field:     f,
				Reading:   reading,
				Threshold: threshold,
				ReadAt:    at,
			})
		}
	}

	if days, ok := policy.WateringFrequency().Get(); ok {
		last, watered := LastWatered(recentLogs)
		switch {
		case !watered:
			triggers = append(triggers, Trigger{Kind: RuleFrequency, FrequencyDays: days})
		case !last.CreatedAt.After(now) && now.Sub(last.CreatedAt) >= frequencyInterval(days):
			triggers = append(triggers, Trigger{
				Kind:          RuleFrequency,
				FrequencyDays: days,
				LastWatered:   last.CreatedAt,
			})
		}
	}

	if len(triggers) == 0 {
		return Assessment{Decision: Skip}
	}
	return Assessment{Decision: WaterNow, Triggers: triggers}
}

func exceeds(f Field, reading, threshold float64) bool {
	if f.TriggersBelow() {
		return reading < threshold
	}
	return reading > threshold
}

// frequencyInterval converts days to a duration, saturating instead of overflowing.
func frequencyInterval(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	if int64(days) > math.MaxInt64/int64(Day) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(days) * Day
}
