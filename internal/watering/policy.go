package watering

import (
	"errors"
	"math"
)

// Field identifies one of the four sensor readings a policy can put a threshold on.
type Field int

const (
	SoilMoisture Field = iota
	Humidity
	Temperature
	Luminosity
)

// Fields lists every sensor field in a stable order.
var Fields = []Field{SoilMoisture, Humidity, Temperature, Luminosity}

func (f Field) String() string {
	switch f {
	case SoilMoisture:
		return "soil_moisture"
	case Humidity:
		return "humidity"
	case Temperature:
		return "temperature"
	case Luminosity:
		return "luminosity"
	default:
		return "unknown"
	}
}

// TriggersBelow reports whether a reading under the threshold asks for water.
// Soil moisture and humidity water when too dry, temperature and luminosity when too high.
func (f Field) TriggersBelow() bool {
	return f == SoilMoisture || f == Humidity
}

func (f Field) valid() bool {
	return f >= SoilMoisture && f <= Luminosity
}

// PolicyInput carries a write to a plant policy. Nil fields are left untouched.
// A threshold of exactly 0 clears it, matching how the dashboard stores "no value".
type PolicyInput struct {
	AutomaticWatering *bool
	WateringFrequency *int
	WaterQuantity     *int

	// ClearWateringFrequency and ClearWaterQuantity unset the matching field.
	// They take precedence over a provided value.
	ClearWateringFrequency bool
	ClearWaterQuantity     bool

	SoilMoistureThreshold *float64
	HumidityThreshold     *float64
	TemperatureThreshold  *float64
	LuminosityThreshold   *float64
}

func (in PolicyInput) threshold(f Field) *float64 {
	switch f {
	case SoilMoisture:
		return in.SoilMoistureThreshold
	case Humidity:
		return in.HumidityThreshold
	case Temperature:
		return in.TemperatureThreshold
	case Luminosity:
		return in.LuminosityThreshold
	default:
		return nil
	}
}

// Policy is the validated watering configuration of one plant.
// The zero value is a policy with automatic watering off and nothing set.
type Policy struct {
	automaticWatering bool
	wateringFrequency Optional[int]
	waterQuantity     Optional[int]
	thresholds        [4]Optional[float64]
}

// NewPolicy validates in and builds a policy from it.
func NewPolicy(in PolicyInput) (Policy, error) {
	return Policy{}.Update(in)
}

// Update applies the provided fields of in on top of p.
// On error the returned policy is p unchanged, so the prior policy stays in effect.
func (p Policy) Update(in PolicyInput) (Policy, error) {
	if err := in.Validate(); err != nil {
		return p, err
	}

	next := p
	if in.AutomaticWatering != nil {
		next.automaticWatering = *in.AutomaticWatering
	}

	switch {
	case in.ClearWateringFrequency:
		next.wateringFrequency = None[int]()
	case in.WateringFrequency != nil:
		next.wateringFrequency = Some(*in.WateringFrequency)
	}

	switch {
	case in.ClearWaterQuantity:
		next.waterQuantity = None[int]()
	case in.WaterQuantity != nil:
		next.waterQuantity = Some(*in.WaterQuantity)
	}

	for _, f := range Fields {
		v := in.threshold(f)
		if v == nil {
			continue
		}
		if *v == 0 {
			next.thresholds[f] = None[float64]()
			continue
		}
		next.thresholds[f] = Some(*v)
	}

	return next, nil
}

// Validate checks every provided field and reports all violations at once.
func (in PolicyInput) Validate() error {
	var errs []error

	if in.WateringFrequency != nil && !in.ClearWateringFrequency && *in.WateringFrequency <= 0 {
		errs = append(errs, &ValidationError{
			Field:  "watering_frequency",
			Value:  *in.WateringFrequency,
			Reason: "must be a positive number of days",
		})
	}

	if in.WaterQuantity != nil && !in.ClearWaterQuantity && *in.WaterQuantity <= 0 {
		errs = append(errs, &ValidationError{
			Field:  "water_quantity",
			Value:  *in.WaterQuantity,
			Reason: "must be a positive number of millilitres",
		})
	}

	for _, f := range Fields {
		v := in.threshold(f)
		if v == nil {
			continue
		}
		switch {
		case math.IsNaN(*v) || math.IsInf(*v, 0):
			errs = append(errs, &ValidationError{
				Field:  f.String() + "_threshold",
				Value:  *v,
				Reason: "must be a finite number",
			})
		case *v < 0:
			errs = append(errs, &ValidationError{
				Field:  f.String() + "_threshold",
				Value:  *v,
				Reason: "must not be negative",
			})
		}
	}

	return errors.Join(errs...)
}

// AutomaticWatering reports whether the scheduler may water this plant on its own.
func (p Policy) AutomaticWatering() bool {
	return p.automaticWatering
}

// WateringFrequency is the interval between waterings, in days.
func (p Policy) WateringFrequency() Optional[int] {
	return p.wateringFrequency
}

// WaterQuantity is the amount poured per watering, in millilitres.
func (p Policy) WaterQuantity() Optional[int] {
	return p.waterQuantity
}

// Threshold returns the configured threshold for f.
func (p Policy) Threshold(f Field) Optional[float64] {
	if !f.valid() {
		return None[float64]()
	}
	return p.thresholds[f]
}

// IsThresholdSet reports whether a non-zero threshold is configured for f.
func (p Policy) IsThresholdSet(f Field) bool {
	return p.Threshold(f).IsSet()
}

// IsFrequencyBased reports whether a watering frequency is configured.
func (p Policy) IsFrequencyBased() bool {
	return p.wateringFrequency.IsSet()
}

// HasThresholds reports whether at least one threshold is configured.
func (p Policy) HasThresholds() bool {
	for _, f := range Fields {
		if p.IsThresholdSet(f) {
			return true
		}
	}
	return false
}

// Actionable reports whether the policy carries any rule the engine can act on.
func (p Policy) Actionable() bool {
	return p.HasThresholds() || p.IsFrequencyBased()
}
