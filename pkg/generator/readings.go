package generator

import (
	"math"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

// ReadingGenerator produces correlated readings for one plant: soil dries
// over time and recovers when watered, light and temperature follow the day,
// and air humidity moves against temperature.
type ReadingGenerator struct {
	mu               sync.Mutex
	plantID          string
	species          Species
	moisture         float64
	baselineTemp     float64
	baselineHumidity float64
	noise            float64
	dropout          float64
	last             time.Time
}

// NewReadingGenerator creates a generator for plant, starting at t.
func NewReadingGenerator(plant *Plant, t time.Time) *ReadingGenerator {
	return &ReadingGenerator{
		plantID:          plant.ID,
		species:          plant.Species,
		moisture:         gofakeit.Float64Range(35, 70),
		baselineTemp:     gofakeit.Float64Range(18, 24),
		baselineHumidity: gofakeit.Float64Range(40, 60),
		noise:            gofakeit.Float64Range(0.5, 2),
		dropout:          0.02,
		last:             t,
	}
}

// SetDropout sets the chance that one field is missing from a reading.
func (g *ReadingGenerator) SetDropout(p float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropout = p
}

// Moisture returns the current simulated soil moisture.
func (g *ReadingGenerator) Moisture() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moisture
}

// Water raises soil moisture as if ml of water had been poured.
// Without a quantity a default of 200ml is used.
func (g *ReadingGenerator) Water(ml *int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	amount := 200.0
	if ml != nil && *ml > 0 {
		amount = float64(*ml)
	}
	g.moisture = math.Min(95, g.moisture+amount/8)
}

func (g *ReadingGenerator) temperature(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	// Peaks mid-afternoon.
	daily := 4 * math.Sin((hour-9)*math.Pi/12)
	return g.baselineTemp + daily + (gofakeit.Float64()-0.5)*g.noise
}

func (g *ReadingGenerator) humidity(temperature float64) float64 {
	h := g.baselineHumidity - (temperature-g.baselineTemp)*1.8 + (gofakeit.Float64()-0.5)*g.noise
	return math.Max(15, math.Min(95, h))
}

func (g *ReadingGenerator) luminosity(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	daylight := math.Sin((hour - 6) * math.Pi / 14)
	if daylight < 0 {
		daylight = 0
	}
	// Passing clouds.
	cloud := 1.0
	if gofakeit.Float64() < 0.2 {
		cloud = gofakeit.Float64Range(0.4, 0.8)
	}
	return math.Max(0, g.species.Shade*daylight*cloud+(gofakeit.Float64()-0.5)*2)
}

// Generate advances the simulation to t and returns the reading at that time.
func (g *ReadingGenerator) Generate(t time.Time) *plantwire.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	if elapsed := t.Sub(g.last).Hours(); elapsed > 0 {
		// Soil dries faster when it is warm.
		g.moisture = math.Max(2, g.moisture-elapsed*g.species.DryingRate)
		g.last = t
	}

	temperature := g.temperature(t)
	r := &plantwire.SensorReading{
		PlantID:      g.plantID,
		ObservedAt:   t.UTC(),
		SoilMoisture: round(g.moisture+(gofakeit.Float64()-0.5), 1),
		Luminosity:   round(g.luminosity(t), 1),
		Humidity:     round(g.humidity(temperature), 1),
		Temperature:  round(temperature, 2),
		SensorID:     "sim-" + g.plantID,
	}

	if gofakeit.Float64() < g.dropout {
		switch gofakeit.Number(0, 3) {
		case 0:
			r.SoilMoisture = nil
		case 1:
			r.Luminosity = nil
		case 2:
			r.Humidity = nil
		default:
			r.Temperature = nil
		}
	}
	return r
}

func round(v float64, decimals int) *float64 {
	p := math.Pow(10, float64(decimals))
	out := math.Round(v*p) / p
	return &out
}
