// Package scheduler runs the automatic watering loop: on every tick it
// evaluates each plant with automatic watering enabled and waters the ones
// that need it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SimonCaignart/plant-e/internal/actuator"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// PlantLister returns the plants the loop is responsible for.
type PlantLister interface {
	ListAutomatic(ctx context.Context) ([]store.Plant, error)
}

// Config holds the configuration for the Scheduler.
type Config struct {
	Logger   *slog.Logger
	Plants   PlantLister
	Logs     store.SensorLogStore
	Actuator actuator.WateringActuator
	Metrics  *metrics.WateringMetrics

	// Interval between cycles. Defaults to one minute.
	Interval time.Duration
	// Timeout bounds evaluating and watering a single plant. Defaults to 30s.
	Timeout time.Duration
	// Window is how many log entries are read per plant. Defaults to store.DefaultLogWindow.
	Window int
	// Workers bounds how many plants are evaluated at once. Defaults to 4.
	Workers int

	Now func() time.Time
}

// Scheduler is the periodic watering loop.
type Scheduler struct {
	logger   *slog.Logger
	plants   PlantLister
	logs     store.SensorLogStore
	actuator actuator.WateringActuator
	metrics  *metrics.WateringMetrics
	interval time.Duration
	timeout  time.Duration
	window   int
	workers  int
	now      func() time.Time
}

// New creates a new Scheduler instance.
func New(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.New("scheduler config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Plants == nil || cfg.Logs == nil {
		return nil, errors.New("plant and log stores cannot be nil")
	}

	if cfg.Actuator == nil {
		return nil, errors.New("actuator cannot be nil")
	}

	s := &Scheduler{
		logger:   cfg.Logger.With("component", "scheduler"),
		plants:   cfg.Plants,
		logs:     cfg.Logs,
		actuator: cfg.Actuator,
		metrics:  cfg.Metrics,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		window:   cfg.Window,
		workers:  cfg.Workers,
		now:      cfg.Now,
	}
	if s.interval <= 0 {
		s.interval = time.Minute
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	if s.window <= 0 {
		s.window = store.DefaultLogWindow
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Report summarizes one cycle.
type Report struct {
	Evaluated int
	Watered   int
	Skipped   int
	NoPolicy  int
	// Invalid counts plants whose stored policy or log could not be read.
	Invalid int
	// Failed counts plants that needed water but could not be watered.
	Failed int
}

type outcome int

const (
	// outcomeNotRun marks plants left alone because the cycle was canceled.
	outcomeNotRun outcome = iota
	outcomeSkipped
	outcomeWatered
	outcomeNoPolicy
	outcomeInvalid
	outcomeFailed
)

// Run evaluates all plants immediately, then once per interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting watering scheduler",
		"interval", s.interval,
		"workers", s.workers,
		"window", s.window,
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("watering cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("watering scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce evaluates every automatic plant once. Failures for a single plant
// are logged and counted, they are retried on the next cycle.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()

	plants, err := s.plants.ListAutomatic(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list plants: %w", err)
	}

	outcomes := make([]outcome, len(plants))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range plants {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = s.evaluate(ctx, &plants[i])
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for _, o := range outcomes {
		if o == outcomeNotRun {
			continue
		}
		report.Evaluated++
		switch o {
		case outcomeWatered:
			report.Watered++
		case outcomeSkipped:
			report.Skipped++
		case outcomeNoPolicy:
			report.NoPolicy++
		case outcomeInvalid:
			report.Invalid++
		case outcomeFailed:
			report.Failed++
		}
	}

	s.metrics.ObserveCycle(start, len(plants))
	s.logger.Debug("watering cycle completed",
		"evaluated", report.Evaluated,
		"watered", report.Watered,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return report, ctx.Err()
}

func (s *Scheduler) evaluate(ctx context.Context, plant *store.Plant) outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := s.logger.With("plant_id", plant.ID)

	policy, err := plant.Policy()
	if err != nil {
		logger.Warn("skipping plant with invalid policy", "error", err)
		return outcomeInvalid
	}

	logs, err := s.logs.Latest(ctx, plant.ID, s.window)
	if err != nil {
		logger.Warn("failed to read plant log", "error", err)
		return outcomeInvalid
	}

	assessment := watering.Assess(policy, logs, s.now())
	rules := make([]string, len(assessment.Triggers))
	for i, t := range assessment.Triggers {
		rules[i] = t.Rule()
	}
	s.metrics.ObserveDecision(assessment.Decision.String(), rules...)

	switch assessment.Decision {
	case watering.NoPolicy:
		logger.Debug("automatic watering enabled without policy")
		return outcomeNoPolicy
	case watering.Skip:
		return outcomeSkipped
	}

	logger.Info("plant needs water", "rules", rules)

	logID, err := s.actuator.Water(ctx, plant.ID)
	if err != nil {
		logger.Error("watering failed, will retry next cycle", "error", err)
		return outcomeFailed
	}

	logger.Info("plant watered", "log_id", logID)
	return outcomeWatered
}
