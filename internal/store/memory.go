package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SimonCaignart/plant-e/internal/watering"
)

// Memory is an in-process Store. It backs local runs without PostgreSQL
// and the unit tests of the components built on Store.
type Memory struct {
	mu       sync.RWMutex
	plants   map[string]*Plant
	logs     map[string][]watering.Log // oldest first
	observed map[string]time.Time      // observation time of the newest log
	commands map[string]*WateringCommand
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plants:   make(map[string]*Plant),
		logs:     make(map[string][]watering.Log),
		observed: make(map[string]time.Time),
		commands: make(map[string]*WateringCommand),
		now:      time.Now,
	}
}

func clonePlant(p *Plant) *Plant {
	c := *p
	c.Logs = nil
	if p.WateringFrequency != nil {
		v := *p.WateringFrequency
		c.WateringFrequency = &v
	}
	if p.WaterQuantity != nil {
		v := *p.WaterQuantity
		c.WaterQuantity = &v
	}
	return &c
}

// Latest implements SensorLogStore.
func (m *Memory) Latest(ctx context.Context, plantID string, n int) ([]watering.Log, error) {
	if n <= 0 {
		return nil, nil
	}
	return m.Page(ctx, plantID, 0, n)
}

// Append implements SensorLogStore.
func (m *Memory) Append(_ context.Context, plantID string, entry Entry) (string, error) {
	if err := validateEntry(plantID, entry); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plants[plantID]; !ok {
		return "", ErrPlantNotFound
	}

	var last time.Time
	if logs := m.logs[plantID]; len(logs) > 0 {
		last = logs[len(logs)-1].CreatedAt
	}

	observed, created, err := stamp(entry, m.observed[plantID], last, m.now())
	if err != nil {
		return "", err
	}

	l := watering.Log{
		ID:         uuid.NewString(),
		PlantID:    plantID,
		CreatedAt:  created,
		Reading:    entry.Reading,
		WasWatered: entry.WasWatered,
	}
	m.observed[plantID] = observed
	m.logs[plantID] = append(m.logs[plantID], l)
	return l.ID, nil
}

// Page implements LogHistory.
func (m *Memory) Page(_ context.Context, plantID string, offset, limit int) ([]watering.Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := m.logs[plantID]
	offset = max(offset, 0)
	if limit <= 0 || offset >= len(logs) {
		return []watering.Log{}, nil
	}

	out := make([]watering.Log, 0, min(limit, len(logs)-offset))
	for i := len(logs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, logs[i])
	}
	return out, nil
}

// LastWatered implements LogHistory.
func (m *Memory) LastWatered(_ context.Context, plantID string) (watering.Log, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last, ok := watering.LastWatered(m.logs[plantID])
	return last, ok, nil
}

// Get implements PlantStore.
func (m *Memory) Get(_ context.Context, plantID string) (*Plant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plants[plantID]
	if !ok {
		return nil, ErrPlantNotFound
	}
	return clonePlant(p), nil
}

// List implements PlantStore.
func (m *Memory) List(_ context.Context) ([]Plant, error) {
	return m.list(func(*Plant) bool { return true }), nil
}

// ListAutomatic implements PlantStore.
func (m *Memory) ListAutomatic(_ context.Context) ([]Plant, error) {
	return m.list(func(p *Plant) bool { return p.AutomaticWatering }), nil
}

func (m *Memory) list(keep func(*Plant) bool) []Plant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Plant, 0, len(m.plants))
	for _, p := range m.plants {
		if keep(p) {
			out = append(out, *clonePlant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Upsert implements PlantStore.
func (m *Memory) Upsert(_ context.Context, plant *Plant) error {
	if plant == nil || plant.ID == "" {
		return errPlantID
	}
	if _, err := plant.Policy(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	existing, ok := m.plants[plant.ID]
	if !ok {
		stored := clonePlant(plant)
		stored.CreatedAt, stored.UpdatedAt = now, now
		m.plants[plant.ID] = stored
		*plant = *clonePlant(stored)
		return nil
	}

	existing.Name = plant.Name
	existing.CommonName = plant.CommonName
	existing.LatinName = plant.LatinName
	existing.Description = plant.Description
	existing.Image = plant.Image
	existing.UpdatedAt = now
	*plant = *clonePlant(existing)
	return nil
}

// UpdatePolicy implements PlantStore.
func (m *Memory) UpdatePolicy(_ context.Context, plantID string, in watering.PolicyInput) (*Plant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plants[plantID]
	if !ok {
		return nil, ErrPlantNotFound
	}

	current, err := p.Policy()
	if err != nil {
		return nil, err
	}
	next, err := current.Update(in)
	if err != nil {
		return nil, err
	}

	p.SetPolicy(next)
	p.UpdatedAt = m.now().UTC()
	return clonePlant(p), nil
}

// SetAutomaticWatering implements PlantStore.
func (m *Memory) SetAutomaticWatering(ctx context.Context, plantID string, enabled bool) (*Plant, error) {
	return m.UpdatePolicy(ctx, plantID, watering.PolicyInput{AutomaticWatering: &enabled})
}

// Delete implements PlantStore.
func (m *Memory) Delete(_ context.Context, plantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.plants[plantID]; !ok {
		return ErrPlantNotFound
	}
	delete(m.plants, plantID)
	delete(m.logs, plantID)
	delete(m.observed, plantID)
	for id, c := range m.commands {
		if c.PlantID == plantID {
			delete(m.commands, id)
		}
	}
	return nil
}

// CreateCommand implements CommandStore.
func (m *Memory) CreateCommand(_ context.Context, cmd *WateringCommand) error {
	if err := cmd.BeforeCreate(nil); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	cmd.CreatedAt, cmd.UpdatedAt = now, now
	c := *cmd
	m.commands[cmd.ID] = &c
	return nil
}

// UpdateCommand implements CommandStore.
func (m *Memory) UpdateCommand(_ context.Context, commandID string, status CommandStatus, detail, logID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.commands[commandID]
	if !ok {
		return ErrCommandNotFound
	}
	c.Status = status
	c.Detail = detail
	if logID != "" {
		c.LogID = logID
	}
	c.UpdatedAt = m.now().UTC()
	return nil
}

// GetCommand implements CommandStore.
func (m *Memory) GetCommand(_ context.Context, commandID string) (*WateringCommand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.commands[commandID]
	if !ok {
		return nil, ErrCommandNotFound
	}
	out := *c
	return &out, nil
}

// Commands returns every recorded command for plantID, oldest first.
func (m *Memory) Commands(plantID string) []WateringCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []WateringCommand
	for _, c := range m.commands {
		if c.PlantID == plantID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
