package actuator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SimonCaignart/plant-e/internal/pumps"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

// PumpLink is a direct connection to pump controllers. SendCommand returns
// once the pump reported the command executed; errors wrapping
// pumps.ErrNotDelivered mean the pump never received it.
type PumpLink interface {
	IsConnected(plantID string) bool
	SendCommand(ctx context.Context, cmd *plantwire.WateringCommand) error
}

// Stores is the persistence a Dispatcher needs.
type Stores interface {
	store.PlantStore
	store.CommandStore
	store.SensorLogStore
}

// DispatcherConfig holds the configuration for the Dispatcher.
type DispatcherConfig struct {
	Logger *slog.Logger
	Store  Stores
	// Pumps delivers commands to connected pumps. Optional.
	Pumps PumpLink
	// Queue carries commands to pumps that are not connected. Optional.
	Queue   mq.Publisher
	Metrics *metrics.WateringMetrics
	Now     func() time.Time
}

// Dispatcher sends watering commands to pumps. A connected pump gets the
// command over its websocket and must confirm it, otherwise it is queued on
// the command queue. Every command is recorded. A wasWatered log is appended
// once the pump confirmed, or once the command is queued.
type Dispatcher struct {
	logger  *slog.Logger
	store   Stores
	pumps   PumpLink
	queue   mq.Publisher
	metrics *metrics.WateringMetrics
	now     func() time.Time
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil {
		return nil, errors.New("dispatcher config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Pumps == nil && cfg.Queue == nil {
		return nil, errors.New("either a pump link or a command queue is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		logger:  cfg.Logger.With("component", "actuator"),
		store:   cfg.Store,
		pumps:   cfg.Pumps,
		queue:   cfg.Queue,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// For returns a WateringActuator that tags its commands with reason.
func (d *Dispatcher) For(reason Reason) WateringActuator {
	return reasonActuator{d: d, reason: reason}
}

type reasonActuator struct {
	d      *Dispatcher
	reason Reason
}

func (a reasonActuator) Water(ctx context.Context, plantID string) (string, error) {
	return a.d.Dispatch(ctx, plantID, a.reason)
}

// Dispatch waters plantID and returns the id of the wasWatered log entry.
func (d *Dispatcher) Dispatch(ctx context.Context, plantID string, reason Reason) (logID string, err error) {
	defer func() { d.metrics.ObserveActuation(string(reason), err) }()

	plant, err := d.store.Get(ctx, plantID)
	if err != nil {
		return "", &ActuationError{PlantID: plantID, Op: "lookup", Err: err}
	}

	cmd := &store.WateringCommand{
		PlantID:    plantID,
		Reason:     string(reason),
		QuantityML: plant.WaterQuantity,
	}
	if err := d.store.CreateCommand(ctx, cmd); err != nil {
		return "", &ActuationError{PlantID: plantID, Op: "command", Err: err}
	}

	issuedAt := d.now().UTC()
	wire := &plantwire.WateringCommand{
		CommandID: cmd.ID,
		PlantID:   plantID,
		IssuedAt:  issuedAt,
		Reason:    string(reason),
	}
	if plant.WaterQuantity != nil {
		q := int64(*plant.WaterQuantity)
		wire.QuantityML = &q
	}

	channel, err := d.send(ctx, wire)
	if err != nil {
		// A pump that did not answer may still water; its late answer is
		// recorded by the websocket handler.
		d.markCommand(ctx, cmd.ID, store.CommandFailed, err.Error(), "")
		return "", &ActuationError{PlantID: plantID, CommandID: cmd.ID, Op: "send", Err: err}
	}

	logID, err = d.store.Append(ctx, plantID, store.Entry{
		WasWatered: true,
		ObservedAt: issuedAt,
	})
	if err != nil {
		d.markCommand(ctx, cmd.ID, settled(channel), "sent over "+channel+", log append failed", "")
		return "", &ActuationError{PlantID: plantID, CommandID: cmd.ID, Op: "record", Err: err}
	}

	d.markCommand(ctx, cmd.ID, settled(channel), "sent over "+channel, logID)
	d.logger.Info("watering command sent",
		"plant_id", plantID,
		"command_id", cmd.ID,
		"reason", reason,
		"channel", channel,
		"log_id", logID,
	)
	return logID, nil
}

const (
	channelWebsocket = "websocket"
	channelQueue     = "queue"
)

// settled is the command status once the channel accepted it. Only a pump
// on the websocket confirms execution.
func settled(channel string) store.CommandStatus {
	if channel == channelWebsocket {
		return store.CommandExecuted
	}
	return store.CommandSent
}

// send delivers cmd and returns the channel used. The queue is only tried
// when the websocket never delivered the command.
func (d *Dispatcher) send(ctx context.Context, cmd *plantwire.WateringCommand) (string, error) {
	if d.pumps != nil && d.pumps.IsConnected(cmd.PlantID) {
		err := d.pumps.SendCommand(ctx, cmd)
		if err == nil {
			return channelWebsocket, nil
		}
		if d.queue == nil || !errors.Is(err, pumps.ErrNotDelivered) {
			return "", err
		}
		d.logger.Warn("websocket send failed, falling back to queue",
			"plant_id", cmd.PlantID,
			"error", err)
	}

	if d.queue == nil {
		return "", ErrNoRoute
	}

	payload, err := cmd.Marshal()
	if err != nil {
		return "", err
	}
	if err := d.queue.Push(ctx, payload); err != nil {
		return "", err
	}
	return channelQueue, nil
}

func (d *Dispatcher) markCommand(ctx context.Context, commandID string, status store.CommandStatus, detail, logID string) {
	// The command outcome must be recorded even if the caller's deadline hit.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := d.store.UpdateCommand(ctx, commandID, status, detail, logID); err != nil {
		d.logger.Error("failed to update watering command",
			"command_id", commandID,
			"status", status,
			"error", err)
	}
}
