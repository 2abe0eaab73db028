package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SimonCaignart/plant-e/internal/watering"
)

// Plant is a user-owned plant together with its watering configuration.
// Thresholds are stored as plain numbers where 0 means "not set".
type Plant struct {
	ID                    string `gorm:"primaryKey;size:64"`
	Name                  string `gorm:"not null"`
	CommonName            string
	LatinName             string
	Description           string
	Image                 string
	AutomaticWatering     bool `gorm:"not null;default:false;index:idx_plants_automatic"`
	WateringFrequency     *int
	WaterQuantity         *int
	SoilMoistureThreshold float64    `gorm:"not null;default:0"`
	HumidityThreshold     float64    `gorm:"not null;default:0"`
	TemperatureThreshold  float64    `gorm:"not null;default:0"`
	LuminosityThreshold   float64    `gorm:"not null;default:0"`
	CreatedAt             time.Time  `gorm:"autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime"`
	Logs                  []PlantLog `gorm:"foreignKey:PlantID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Plant model.
func (Plant) TableName() string {
	return "plants"
}

// Policy converts the stored columns into a validated watering policy.
func (p *Plant) Policy() (watering.Policy, error) {
	return watering.NewPolicy(watering.PolicyInput{
		AutomaticWatering:     &p.AutomaticWatering,
		WateringFrequency:     p.WateringFrequency,
		WaterQuantity:         p.WaterQuantity,
		SoilMoistureThreshold: &p.SoilMoistureThreshold,
		HumidityThreshold:     &p.HumidityThreshold,
		TemperatureThreshold:  &p.TemperatureThreshold,
		LuminosityThreshold:   &p.LuminosityThreshold,
	})
}

// SetPolicy writes policy back into the stored columns.
func (p *Plant) SetPolicy(policy watering.Policy) {
	p.AutomaticWatering = policy.AutomaticWatering()
	p.WateringFrequency = policy.WateringFrequency().Ptr()
	p.WaterQuantity = policy.WaterQuantity().Ptr()
	p.SoilMoistureThreshold = policy.Threshold(watering.SoilMoisture).OrZero()
	p.HumidityThreshold = policy.Threshold(watering.Humidity).OrZero()
	p.TemperatureThreshold = policy.Threshold(watering.Temperature).OrZero()
	p.LuminosityThreshold = policy.Threshold(watering.Luminosity).OrZero()
}

// PlantLog is one append-only entry of a plant's sensor log. Each reading is
// nullable so partial or malformed rows can be represented.
type PlantLog struct {
	ID           string    `gorm:"primaryKey;size:36"`
	PlantID      string    `gorm:"size:64;not null;index:idx_plant_logs_plant_created,priority:1"`
	CreatedAt    time.Time `gorm:"not null;index:idx_plant_logs_plant_created,priority:2,sort:desc"`
	// ObservedAt is when the device took the reading. It never decreases
	// along the log. Rows written before the column existed hold NULL.
	ObservedAt   *time.Time
	SoilMoisture *float64
	Luminosity   *float64
	Humidity     *float64
	Temperature  *float64
	WasWatered   bool `gorm:"not null;default:false"`
}

func (l *PlantLog) observedAt() time.Time {
	if l.ObservedAt != nil {
		return *l.ObservedAt
	}
	return l.CreatedAt
}

// TableName specifies the table name for PlantLog model.
func (PlantLog) TableName() string {
	return "plant_logs"
}

// BeforeCreate assigns a UUID to logs created without one.
func (l *PlantLog) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// ToWatering converts the row into the engine's log type.
func (l *PlantLog) ToWatering() watering.Log {
	return watering.Log{
		ID:        l.ID,
		PlantID:   l.PlantID,
		CreatedAt: l.CreatedAt,
		Reading: watering.Reading{
			SoilMoisture: l.SoilMoisture,
			Luminosity:   l.Luminosity,
			Humidity:     l.Humidity,
			Temperature:  l.Temperature,
		},
		WasWatered: l.WasWatered,
	}
}

// CommandStatus tracks a watering command from creation to pump acknowledgement.
type CommandStatus string

const (
	CommandPending  CommandStatus = "pending"
	CommandSent     CommandStatus = "sent"
	CommandExecuted CommandStatus = "executed"
	CommandFailed   CommandStatus = "failed"
)

// WateringCommand is the audit record of one pump actuation.
type WateringCommand struct {
	ID         string        `gorm:"primaryKey;size:36"`
	PlantID    string        `gorm:"size:64;not null;index"`
	Reason     string        `gorm:"size:16;not null"`
	QuantityML *int
	Status     CommandStatus `gorm:"size:16;not null;index"`
	Detail     string
	LogID      string    `gorm:"size:36"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for WateringCommand model.
func (WateringCommand) TableName() string {
	return "watering_commands"
}

// BeforeCreate assigns a UUID and the pending status to new commands.
func (c *WateringCommand) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CommandPending
	}
	return nil
}
