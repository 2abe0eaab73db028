// Package simulator publishes synthetic plant registrations and sensor readings,
// and reacts to watering commands the way a real pump would.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/SimonCaignart/plant-e/pkg/generator"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

const (
	messageReading      = "reading"
	messageRegistration = "registration"
)

var errNoPlants = errors.New("producer has no plants")

// Producer owns a handful of simulated plants and publishes their readings.
type Producer struct {
	ReadingClient mq.Publisher
	PlantClient   mq.Publisher
	Plants        []*generator.Plant

	mu         sync.Mutex
	generators map[string]*generator.ReadingGenerator
	logger     *slog.Logger
	metrics    *metrics.SimulatorMetrics
	now        func() time.Time
}

// NewProducer creates a producer with between one and five random plants.
func NewProducer(readingClient, plantClient mq.Publisher, l *slog.Logger) *Producer {
	return NewProducerWithPlants(readingClient, plantClient, l, gofakeit.Number(1, 5))
}

// NewProducerWithPlants creates a producer with n random plants.
func NewProducerWithPlants(readingClient, plantClient mq.Publisher, l *slog.Logger, n int) *Producer {
	p := &Producer{
		ReadingClient: readingClient,
		PlantClient:   plantClient,
		Plants:        make([]*generator.Plant, 0, n),
		generators:    make(map[string]*generator.ReadingGenerator, n),
		logger:        l,
		now:           time.Now,
	}

	start := p.now()
	for range n {
		plant := generator.NewPlant()
		if plant == nil {
			continue
		}
		p.Plants = append(p.Plants, plant)
		p.generators[plant.ID] = generator.NewReadingGenerator(plant, start)
	}
	return p
}

// SetMetrics sets the metrics collector for this producer.
func (p *Producer) SetMetrics(m *metrics.SimulatorMetrics) {
	p.metrics = m
	if m != nil {
		m.SimulatedPlants.Add(float64(len(p.Plants)))
	}
}

// Register publishes a registration for every plant. It keeps going after a
// failure and returns the joined errors.
func (p *Producer) Register(ctx context.Context) error {
	var errs []error
	for _, plant := range p.Plants {
		msg := &plantwire.PlantRegistration{
			PlantID:      plant.ID,
			Name:         plant.Name,
			CommonName:   plant.Species.CommonName,
			LatinName:    plant.Species.LatinName,
			Description:  plant.Species.Description,
			Image:        plant.Species.Image,
			RegisteredAt: plant.RegisteredAt,
		}
		if err := p.publish(ctx, p.PlantClient, messageRegistration, msg.Marshal); err != nil {
			errs = append(errs, fmt.Errorf("register plant %s: %w", plant.ID, err))
			continue
		}
		if p.metrics != nil {
			p.metrics.RegistrationsPublished.Inc()
		}
		p.logger.Debug("plant registered", "plant_id", plant.ID, "species", plant.Species.LatinName)
	}
	return errors.Join(errs...)
}

// RandomReading publishes a reading for one randomly picked plant.
func (p *Producer) RandomReading(ctx context.Context) error {
	if len(p.Plants) == 0 {
		return errNoPlants
	}
	plant := p.Plants[gofakeit.Number(0, len(p.Plants)-1)]
	return p.PublishReading(ctx, plant.ID)
}

// PublishReading publishes the current reading of plantID.
func (p *Producer) PublishReading(ctx context.Context, plantID string) error {
	gen := p.generator(plantID)
	if gen == nil {
		return fmt.Errorf("unknown plant %s", plantID)
	}

	reading := gen.Generate(p.now())
	if err := p.publish(ctx, p.ReadingClient, messageReading, reading.Marshal); err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ReadingsPublished.WithLabelValues(plantID).Inc()
	}
	return nil
}

// Water applies a watering command to the simulated soil. It reports whether
// the plant belongs to this producer.
func (p *Producer) Water(cmd *plantwire.WateringCommand) bool {
	gen := p.generator(cmd.PlantID)
	if gen == nil {
		return false
	}
	gen.Water(cmd.QuantityML)
	p.logger.Info("simulated watering",
		"plant_id", cmd.PlantID,
		"command_id", cmd.CommandID,
		"reason", cmd.Reason,
		"moisture", gen.Moisture(),
	)
	return true
}

func (p *Producer) generator(plantID string) *generator.ReadingGenerator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generators[plantID]
}

func (p *Producer) publish(ctx context.Context, client mq.Publisher, message string, marshal func() ([]byte, error)) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.PublishDuration.WithLabelValues(message))
		defer timer.ObserveDuration()
	}

	body, err := marshal()
	if err != nil {
		p.failed(message, "marshal_error")
		return fmt.Errorf("marshal %s: %w", message, err)
	}

	if err := client.Push(ctx, body); err != nil {
		p.failed(message, "push_error")
		return fmt.Errorf("push %s: %w", message, err)
	}
	return nil
}

func (p *Producer) failed(message, reason string) {
	if p.metrics != nil {
		p.metrics.PublishFailures.WithLabelValues(message, reason).Inc()
	}
}
