package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/metrics"
)

// Postgres implements Store on top of gorm and PostgreSQL.
type Postgres struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.BackendMetrics
	now     func() time.Time
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open database. Metrics are optional.
func NewPostgres(db *gorm.DB, logger *slog.Logger, m *metrics.BackendMetrics) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Postgres{
		db:      db,
		logger:  logger.With("component", "store"),
		metrics: m,
		now:     time.Now,
	}, nil
}

// track starts timing a database operation. The returned func records the
// outcome held in *errp.
func (s *Postgres) track(operation, table string) func(errp *error) {
	start := time.Now()
	return func(errp *error) {
		s.metrics.ObserveDB(operation, table, start, *errp)
	}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// lockPlant loads a plant row with SELECT ... FOR UPDATE, serializing writers
// of the same plant until the transaction ends.
func lockPlant(tx *gorm.DB, plantID string) (*Plant, error) {
	var p Plant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", plantID).
		Take(&p).Error
	if err != nil {
		return nil, notFound(err, ErrPlantNotFound)
	}
	return &p, nil
}

// Latest implements SensorLogStore.
func (s *Postgres) Latest(ctx context.Context, plantID string, n int) (logs []watering.Log, err error) {
	defer s.track("select", "plant_logs")(&err)

	if n <= 0 {
		return nil, nil
	}
	return s.Page(ctx, plantID, 0, n)
}

// Append implements SensorLogStore. Appends for one plant are serialized by a
// row lock on the plant so created_at stays strictly increasing and stale
// readings are detected against the newest row.
func (s *Postgres) Append(ctx context.Context, plantID string, entry Entry) (id string, err error) {
	defer s.track("insert", "plant_logs")(&err)

	if err := validateEntry(plantID, entry); err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPlant(tx, plantID); err != nil {
			return err
		}

		var last PlantLog
		if err := tx.Select("created_at", "observed_at").
			Where("plant_id = ?", plantID).
			Order("created_at DESC").
			Limit(1).
			Find(&last).Error; err != nil {
			return fmt.Errorf("failed to read latest log: %w", err)
		}

		observed, created, err := stamp(entry, last.observedAt(), last.CreatedAt, s.now())
		if err != nil {
			return err
		}

		row := PlantLog{
			PlantID:      plantID,
			CreatedAt:    created,
			ObservedAt:   &observed,
			SoilMoisture: entry.Reading.SoilMoisture,
			Luminosity:   entry.Reading.Luminosity,
			Humidity:     entry.Reading.Humidity,
			Temperature:  entry.Reading.Temperature,
			WasWatered:   entry.WasWatered,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to create plant log: %w", err)
		}

		id = row.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Page implements LogHistory.
func (s *Postgres) Page(ctx context.Context, plantID string, offset, limit int) ([]watering.Log, error) {
	var rows []PlantLog
	err := s.db.WithContext(ctx).
		Where("plant_id = ?", plantID).
		Order("created_at DESC").
		Offset(max(offset, 0)).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query plant logs: %w", err)
	}

	logs := make([]watering.Log, len(rows))
	for i := range rows {
		logs[i] = rows[i].ToWatering()
	}
	return logs, nil
}

// LastWatered implements LogHistory.
func (s *Postgres) LastWatered(ctx context.Context, plantID string) (log watering.Log, found bool, err error) {
	defer s.track("select", "plant_logs")(&err)

	var rows []PlantLog
	err = s.db.WithContext(ctx).
		Where("plant_id = ? AND was_watered = ?", plantID, true).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return watering.Log{}, false, fmt.Errorf("failed to query last watering: %w", err)
	}
	if len(rows) == 0 {
		return watering.Log{}, false, nil
	}
	return rows[0].ToWatering(), true, nil
}

// Get implements PlantStore.
func (s *Postgres) Get(ctx context.Context, plantID string) (plant *Plant, err error) {
	defer s.track("select", "plants")(&err)

	var p Plant
	if err := s.db.WithContext(ctx).Where("id = ?", plantID).Take(&p).Error; err != nil {
		return nil, notFound(err, ErrPlantNotFound)
	}
	return &p, nil
}

// List implements PlantStore.
func (s *Postgres) List(ctx context.Context) (plants []Plant, err error) {
	defer s.track("select", "plants")(&err)

	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("failed to list plants: %w", err)
	}
	return plants, nil
}

// ListAutomatic implements PlantStore.
func (s *Postgres) ListAutomatic(ctx context.Context) (plants []Plant, err error) {
	defer s.track("select", "plants")(&err)

	if err := s.db.WithContext(ctx).
		Where("automatic_watering = ?", true).
		Order("id ASC").
		Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("failed to list automatic plants: %w", err)
	}
	return plants, nil
}

// Upsert implements PlantStore.
func (s *Postgres) Upsert(ctx context.Context, plant *Plant) (err error) {
	defer s.track("upsert", "plants")(&err)

	if plant == nil || plant.ID == "" {
		return errPlantID
	}
	if _, err := plant.Policy(); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).
		Where(Plant{ID: plant.ID}).
		Assign(map[string]any{
			"name":        plant.Name,
			"common_name": plant.CommonName,
			"latin_name":  plant.LatinName,
			"description": plant.Description,
			"image":       plant.Image,
		}).
		FirstOrCreate(plant).Error
	if err != nil {
		return fmt.Errorf("failed to upsert plant: %w", err)
	}
	return nil
}

// UpdatePolicy implements PlantStore.
func (s *Postgres) UpdatePolicy(ctx context.Context, plantID string, in watering.PolicyInput) (updated *Plant, err error) {
	defer s.track("update", "plants")(&err)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockPlant(tx, plantID)
		if err != nil {
			return err
		}

		current, err := p.Policy()
		if err != nil {
			return fmt.Errorf("stored policy of plant %s: %w", plantID, err)
		}
		next, err := current.Update(in)
		if err != nil {
			return err
		}
		p.SetPolicy(next)

		if err := tx.Model(p).
			Select(
				"automatic_watering",
				"watering_frequency",
				"water_quantity",
				"soil_moisture_threshold",
				"humidity_threshold",
				"temperature_threshold",
				"luminosity_threshold",
			).
			Updates(p).Error; err != nil {
			return fmt.Errorf("failed to update plant policy: %w", err)
		}

		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plant policy updated",
		"plant_id", plantID,
		"automatic_watering", updated.AutomaticWatering,
	)
	return updated, nil
}

// SetAutomaticWatering implements PlantStore.
func (s *Postgres) SetAutomaticWatering(ctx context.Context, plantID string, enabled bool) (*Plant, error) {
	return s.UpdatePolicy(ctx, plantID, watering.PolicyInput{AutomaticWatering: &enabled})
}

// Delete implements PlantStore.
func (s *Postgres) Delete(ctx context.Context, plantID string) (err error) {
	defer s.track("delete", "plants")(&err)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plant_id = ?", plantID).Delete(&WateringCommand{}).Error; err != nil {
			return fmt.Errorf("failed to delete watering commands: %w", err)
		}
		if err := tx.Where("plant_id = ?", plantID).Delete(&PlantLog{}).Error; err != nil {
			return fmt.Errorf("failed to delete plant logs: %w", err)
		}

		result := tx.Where("id = ?", plantID).Delete(&Plant{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete plant: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrPlantNotFound
		}
		return nil
	})
}

// CreateCommand implements CommandStore.
func (s *Postgres) CreateCommand(ctx context.Context, cmd *WateringCommand) (err error) {
	defer s.track("insert", "watering_commands")(&err)

	if err := s.db.WithContext(ctx).Create(cmd).Error; err != nil {
		return fmt.Errorf("failed to create watering command: %w", err)
	}
	return nil
}

// UpdateCommand implements CommandStore. An empty logID leaves the stored one.
func (s *Postgres) UpdateCommand(ctx context.Context, commandID string, status CommandStatus, detail, logID string) (err error) {
	defer s.track("update", "watering_commands")(&err)

	changes := map[string]any{
		"status": status,
		"detail": detail,
	}
	if logID != "" {
		changes["log_id"] = logID
	}

	result := s.db.WithContext(ctx).
		Model(&WateringCommand{}).
		Where("id = ?", commandID).
		Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("failed to update watering command: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// GetCommand implements CommandStore.
func (s *Postgres) GetCommand(ctx context.Context, commandID string) (cmd *WateringCommand, err error) {
	defer s.track("select", "watering_commands")(&err)

	var c WateringCommand
	if err := s.db.WithContext(ctx).Where("id = ?", commandID).Take(&c).Error; err != nil {
		return nil, notFound(err, ErrCommandNotFound)
	}
	return &c, nil
}
