package backend

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SimonCaignart/plant-e/internal/actuator"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

const (
	defaultPageSize = 100
	// summaryWindow is how far back a plant summary looks for a reading.
	summaryWindow = 20
)

// PumpStatus reports whether a plant's pump holds a live connection.
type PumpStatus interface {
	IsConnected(plantID string) bool
}

// PlantServiceConfig holds the configuration for PlantServiceImpl.
type PlantServiceConfig struct {
	Logger *slog.Logger
	Store  store.Store
	// Manual waters plants on operator request.
	Manual actuator.WateringActuator
	// Automatic waters plants when an evaluation is applied.
	Automatic actuator.WateringActuator
	// Pumps is optional.
	Pumps   PumpStatus
	Metrics *metrics.BackendMetrics
	// Window is how many log entries an evaluation reads. Defaults to store.DefaultLogWindow.
	Window int
	Now    func() time.Time
}

// PlantServiceImpl implements the gRPC PlantService interface.
type PlantServiceImpl struct {
	plantapi.UnimplementedPlantServiceServer
	logger    *slog.Logger
	store     store.Store
	manual    actuator.WateringActuator
	automatic actuator.WateringActuator
	pumps     PumpStatus
	metrics   *metrics.BackendMetrics
	window    int
	now       func() time.Time
}

// NewPlantService creates a new PlantServiceImpl instance.
func NewPlantService(cfg *PlantServiceConfig) (*PlantServiceImpl, error) {
	if cfg == nil {
		return nil, errors.New("plant service config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Manual == nil || cfg.Automatic == nil {
		return nil, errors.New("actuators cannot be nil")
	}

	s := &PlantServiceImpl{
		logger:    cfg.Logger.With("component", "grpc"),
		store:     cfg.Store,
		manual:    cfg.Manual,
		automatic: cfg.Automatic,
		pumps:     cfg.Pumps,
		metrics:   cfg.Metrics,
		window:    cfg.Window,
		now:       cfg.Now,
	}
	if s.window <= 0 {
		s.window = store.DefaultLogWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// toStatus maps domain errors to gRPC status errors.
func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrPlantNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, watering.ErrInvalidPolicy):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, actuator.ErrActuation):
		return status.Errorf(codes.Unavailable, "%s: %v", msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", msg, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

func requirePlantID(id string) error {
	if id == "" {
		return status.Error(codes.InvalidArgument, "plant_id cannot be empty")
	}
	return nil
}

// ListPlants returns all plants, or only those with automatic watering enabled.
func (s *PlantServiceImpl) ListPlants(ctx context.Context, req *plantapi.ListPlantsRequest) (resp *plantapi.ListPlantsResponse, err error) {
	done := s.metrics.TrackGRPC("ListPlants")
	defer func() { done(err) }()

	var plants []store.Plant
	if req != nil && req.AutomaticOnly {
		plants, err = s.store.ListAutomatic(ctx)
	} else {
		plants, err = s.store.List(ctx)
	}
	if err != nil {
		s.logger.Error("failed to list plants", "error", err)
		return nil, toStatus(err, "failed to list plants")
	}

	out := make([]*plantapi.Plant, 0, len(plants))
	for i := range plants {
		p, err := s.summarize(ctx, &plants[i])
		if err != nil {
			s.logger.Error("failed to summarize plant", "plant_id", plants[i].ID, "error", err)
			return nil, toStatus(err, "failed to list plants")
		}
		out = append(out, p)
	}

	s.logger.Debug("listed plants", "count", len(out))
	return &plantapi.ListPlantsResponse{Plants: out}, nil
}

// GetPlant returns one plant with its latest reading and last watering.
func (s *PlantServiceImpl) GetPlant(ctx context.Context, req *plantapi.GetPlantRequest) (resp *plantapi.GetPlantResponse, err error) {
	done := s.metrics.TrackGRPC("GetPlant")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	plant, err := s.store.Get(ctx, req.GetPlantID())
	if err != nil {
		if !errors.Is(err, store.ErrPlantNotFound) {
			s.logger.Error("failed to fetch plant", "plant_id", req.GetPlantID(), "error", err)
		}
		return nil, toStatus(err, "failed to fetch plant")
	}

	p, err := s.summarize(ctx, plant)
	if err != nil {
		return nil, toStatus(err, "failed to fetch plant")
	}
	return &plantapi.GetPlantResponse{Plant: p}, nil
}

// GetPlantLogs returns a page of a plant's log, most recent first.
func (s *PlantServiceImpl) GetPlantLogs(ctx context.Context, req *plantapi.GetPlantLogsRequest) (resp *plantapi.GetPlantLogsResponse, err error) {
	done := s.metrics.TrackGRPC("GetPlantLogs")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > store.DefaultLogWindow {
		pageSize = store.DefaultLogWindow
	}

	offset := 0
	if req.PageToken != "" {
		offset, err = strconv.Atoi(req.PageToken)
		if err != nil || offset < 0 {
			return nil, status.Error(codes.InvalidArgument, "invalid page_token")
		}
	}

	if _, err := s.store.Get(ctx, req.PlantID); err != nil {
		return nil, toStatus(err, "failed to fetch plant logs")
	}

	// One extra row tells whether there is a next page.
	logs, err := s.store.Page(ctx, req.PlantID, offset, pageSize+1)
	if err != nil {
		s.logger.Error("failed to fetch plant logs", "plant_id", req.PlantID, "error", err)
		return nil, toStatus(err, "failed to fetch plant logs")
	}

	hasNextPage := len(logs) > pageSize
	if hasNextPage {
		logs = logs[:pageSize]
	}

	out := make([]*plantapi.PlantLog, len(logs))
	for i := range logs {
		out[i] = logToAPI(&logs[i])
	}

	nextPageToken := ""
	if hasNextPage {
		nextPageToken = strconv.Itoa(offset + pageSize)
	}

	s.logger.Debug("fetched plant logs",
		"plant_id", req.PlantID,
		"count", len(out),
		"has_next_page", hasNextPage,
	)
	return &plantapi.GetPlantLogsResponse{Logs: out, NextPageToken: nextPageToken}, nil
}

// UpdatePolicy validates and applies a change to a plant's watering policy.
// An invalid change leaves the stored policy as it was.
func (s *PlantServiceImpl) UpdatePolicy(ctx context.Context, req *plantapi.UpdatePolicyRequest) (resp *plantapi.UpdatePolicyResponse, err error) {
	done := s.metrics.TrackGRPC("UpdatePolicy")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	plant, err := s.store.UpdatePolicy(ctx, req.PlantID, watering.PolicyInput{
		WateringFrequency:      req.WateringFrequency,
		WaterQuantity:          req.WaterQuantity,
		ClearWateringFrequency: req.ClearWateringFrequency,
		ClearWaterQuantity:     req.ClearWaterQuantity,
		SoilMoistureThreshold:  req.SoilMoistureThreshold,
		HumidityThreshold:      req.HumidityThreshold,
		TemperatureThreshold:   req.TemperatureThreshold,
		LuminosityThreshold:    req.LuminosityThreshold,
	})
	if err != nil {
		s.logger.Warn("policy update rejected", "plant_id", req.PlantID, "error", err)
		return nil, toStatus(err, "failed to update policy")
	}

	s.logger.Info("policy updated", "plant_id", req.PlantID)

	p, err := s.summarize(ctx, plant)
	if err != nil {
		return nil, toStatus(err, "failed to update policy")
	}
	return &plantapi.UpdatePolicyResponse{Plant: p}, nil
}

// SetAutomaticWatering turns the watering loop on or off for a plant.
func (s *PlantServiceImpl) SetAutomaticWatering(ctx context.Context, req *plantapi.SetAutomaticWateringRequest) (resp *plantapi.SetAutomaticWateringResponse, err error) {
	done := s.metrics.TrackGRPC("SetAutomaticWatering")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	plant, err := s.store.SetAutomaticWatering(ctx, req.PlantID, req.Enabled)
	if err != nil {
		return nil, toStatus(err, "failed to set automatic watering")
	}

	s.logger.Info("automatic watering toggled", "plant_id", req.PlantID, "enabled", req.Enabled)

	p, err := s.summarize(ctx, plant)
	if err != nil {
		return nil, toStatus(err, "failed to set automatic watering")
	}
	return &plantapi.SetAutomaticWateringResponse{Plant: p}, nil
}

// WaterPlant waters a plant now, whatever its policy says.
func (s *PlantServiceImpl) WaterPlant(ctx context.Context, req *plantapi.WaterPlantRequest) (resp *plantapi.WaterPlantResponse, err error) {
	done := s.metrics.TrackGRPC("WaterPlant")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	logID, err := s.manual.Water(ctx, req.PlantID)
	if err != nil {
		s.logger.Error("manual watering failed", "plant_id", req.PlantID, "error", err)
		return nil, toStatus(err, "failed to water plant")
	}

	return &plantapi.WaterPlantResponse{LogID: logID}, nil
}

// DeletePlant removes a plant and its log.
func (s *PlantServiceImpl) DeletePlant(ctx context.Context, req *plantapi.DeletePlantRequest) (resp *plantapi.DeletePlantResponse, err error) {
	done := s.metrics.TrackGRPC("DeletePlant")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, req.PlantID); err != nil {
		return nil, toStatus(err, "failed to delete plant")
	}

	s.logger.Info("plant deleted", "plant_id", req.PlantID)
	return &plantapi.DeletePlantResponse{}, nil
}

// EvaluatePlant runs the watering decision for one plant on demand. With
// Apply set, a WaterNow decision waters the plant as the loop would.
func (s *PlantServiceImpl) EvaluatePlant(ctx context.Context, req *plantapi.EvaluatePlantRequest) (resp *plantapi.EvaluatePlantResponse, err error) {
	done := s.metrics.TrackGRPC("EvaluatePlant")
	defer func() { done(err) }()

	if err := requirePlantID(req.GetPlantID()); err != nil {
		return nil, err
	}

	plant, err := s.store.Get(ctx, req.PlantID)
	if err != nil {
		return nil, toStatus(err, "failed to evaluate plant")
	}

	policy, err := plant.Policy()
	if err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "stored policy is invalid: %v", err)
	}

	logs, err := s.store.Latest(ctx, req.PlantID, s.window)
	if err != nil {
		return nil, toStatus(err, "failed to evaluate plant")
	}

	assessment := watering.Assess(policy, logs, s.now())
	resp = &plantapi.EvaluatePlantResponse{Decision: assessment.Decision.String()}
	for _, t := range assessment.Triggers {
		resp.Rules = append(resp.Rules, t.Rule())
	}

	if req.Apply && assessment.Decision == watering.WaterNow {
		logID, err := s.automatic.Water(ctx, req.PlantID)
		if err != nil {
			return nil, toStatus(err, "failed to water plant")
		}
		resp.Watered = true
		resp.LogID = logID
	}

	s.logger.Info("plant evaluated",
		"plant_id", req.PlantID,
		"decision", resp.Decision,
		"rules", resp.Rules,
		"watered", resp.Watered,
	)
	return resp, nil
}

// summarize converts a stored plant and adds its latest reading, last
// watering and pump connection state.
func (s *PlantServiceImpl) summarize(ctx context.Context, plant *store.Plant) (*plantapi.Plant, error) {
	p := plantToAPI(plant)

	recent, err := s.store.Latest(ctx, plant.ID, summaryWindow)
	if err != nil {
		return nil, err
	}
	for i := range recent {
		if !recent[i].Reading.IsEmpty() {
			p.Latest = readingToAPI(recent[i].Reading)
			at := recent[i].CreatedAt
			p.LatestAt = &at
			break
		}
	}

	last, found, err := s.store.LastWatered(ctx, plant.ID)
	if err != nil {
		return nil, err
	}
	if found {
		at := last.CreatedAt
		p.LastWatered = &at
	}

	if s.pumps != nil {
		p.PumpConnected = s.pumps.IsConnected(plant.ID)
	}
	return p, nil
}

func plantToAPI(plant *store.Plant) *plantapi.Plant {
	return &plantapi.Plant{
		ID:                plant.ID,
		Name:              plant.Name,
		CommonName:        plant.CommonName,
		LatinName:         plant.LatinName,
		Description:       plant.Description,
		Image:             plant.Image,
		AutomaticWatering: plant.AutomaticWatering,
		Policy: plantapi.Policy{
			WateringFrequency:     plant.WateringFrequency,
			WaterQuantity:         plant.WaterQuantity,
			SoilMoistureThreshold: nonZero(plant.SoilMoistureThreshold),
			HumidityThreshold:     nonZero(plant.HumidityThreshold),
			TemperatureThreshold:  nonZero(plant.TemperatureThreshold),
			LuminosityThreshold:   nonZero(plant.LuminosityThreshold),
		},
		CreatedAt: plant.CreatedAt,
		UpdatedAt: plant.UpdatedAt,
	}
}

func nonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func readingToAPI(r watering.Reading) *plantapi.Reading {
	return &plantapi.Reading{
		SoilMoisture: r.SoilMoisture,
		Luminosity:   r.Luminosity,
		Humidity:     r.Humidity,
		Temperature:  r.Temperature,
	}
}

func logToAPI(l *watering.Log) *plantapi.PlantLog {
	return &plantapi.PlantLog{
		ID:         l.ID,
		PlantID:    l.PlantID,
		CreatedAt:  l.CreatedAt,
		Reading:    *readingToAPI(l.Reading),
		WasWatered: l.WasWatered,
	}
}
