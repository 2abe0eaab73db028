package plantapi

import "time"

// Policy is a plant's watering policy. Nil fields are unset.
type Policy struct {
	WateringFrequency     *int     `json:"watering_frequency,omitempty"`
	WaterQuantity         *int     `json:"water_quantity,omitempty"`
	SoilMoistureThreshold *float64 `json:"soil_moisture_threshold,omitempty"`
	HumidityThreshold     *float64 `json:"humidity_threshold,omitempty"`
	TemperatureThreshold  *float64 `json:"temperature_threshold,omitempty"`
	LuminosityThreshold   *float64 `json:"luminosity_threshold,omitempty"`
}

// Reading is one set of sensor values. Nil fields were not measured.
type Reading struct {
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
	Luminosity   *float64 `json:"luminosity,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
}

// Plant is a plant with its policy and a summary of its recent activity.
type Plant struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	CommonName        string     `json:"common_name,omitempty"`
	LatinName         string     `json:"latin_name,omitempty"`
	Description       string     `json:"description,omitempty"`
	Image             string     `json:"image,omitempty"`
	AutomaticWatering bool       `json:"automatic_watering"`
	Policy            Policy     `json:"policy"`
	Latest            *Reading   `json:"latest,omitempty"`
	LatestAt          *time.Time `json:"latest_at,omitempty"`
	LastWatered       *time.Time `json:"last_watered,omitempty"`
	PumpConnected     bool       `json:"pump_connected"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PlantLog is one entry of a plant's log.
type PlantLog struct {
	ID         string    `json:"id"`
	PlantID    string    `json:"plant_id"`
	CreatedAt  time.Time `json:"created_at"`
	Reading    Reading   `json:"reading"`
	WasWatered bool      `json:"was_watered"`
}

type ListPlantsRequest struct {
	AutomaticOnly bool `json:"automatic_only,omitempty"`
}

type ListPlantsResponse struct {
	Plants []*Plant `json:"plants"`
}

type GetPlantRequest struct {
	PlantID string `json:"plant_id"`
}

// GetPlantID returns the plant id, or "" for a nil request.
func (r *GetPlantRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type GetPlantResponse struct {
	Plant *Plant `json:"plant"`
}

// GetPlantLogsRequest pages through a plant's log, most recent first.
// PageToken is the NextPageToken of the previous response.
type GetPlantLogsRequest struct {
	PlantID   string `json:"plant_id"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

func (r *GetPlantLogsRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type GetPlantLogsResponse struct {
	Logs          []*PlantLog `json:"logs"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// UpdatePolicyRequest changes only the fields that are set. A threshold of 0
// clears it; the Clear flags clear frequency and quantity.
type UpdatePolicyRequest struct {
	PlantID                string   `json:"plant_id"`
	WateringFrequency      *int     `json:"watering_frequency,omitempty"`
	WaterQuantity          *int     `json:"water_quantity,omitempty"`
	SoilMoistureThreshold  *float64 `json:"soil_moisture_threshold,omitempty"`
	HumidityThreshold      *float64 `json:"humidity_threshold,omitempty"`
	TemperatureThreshold   *float64 `json:"temperature_threshold,omitempty"`
	LuminosityThreshold    *float64 `json:"luminosity_threshold,omitempty"`
	ClearWateringFrequency bool     `json:"clear_watering_frequency,omitempty"`
	ClearWaterQuantity     bool     `json:"clear_water_quantity,omitempty"`
}

func (r *UpdatePolicyRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type UpdatePolicyResponse struct {
	Plant *Plant `json:"plant"`
}

type SetAutomaticWateringRequest struct {
	PlantID string `json:"plant_id"`
	Enabled bool   `json:"enabled"`
}

func (r *SetAutomaticWateringRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type SetAutomaticWateringResponse struct {
	Plant *Plant `json:"plant"`
}

type WaterPlantRequest struct {
	PlantID string `json:"plant_id"`
}

func (r *WaterPlantRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type WaterPlantResponse struct {
	LogID string `json:"log_id"`
}

type DeletePlantRequest struct {
	PlantID string `json:"plant_id"`
}

func (r *DeletePlantRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

type DeletePlantResponse struct{}

// EvaluatePlantRequest asks for the current watering decision of a plant.
// With Apply set, a WaterNow decision is acted upon.
type EvaluatePlantRequest struct {
	PlantID string `json:"plant_id"`
	Apply   bool   `json:"apply,omitempty"`
}

func (r *EvaluatePlantRequest) GetPlantID() string {
	if r == nil {
		return ""
	}
	return r.PlantID
}

// EvaluatePlantResponse reports what the automatic watering loop would do now.
type EvaluatePlantResponse struct {
	Decision string   `json:"decision"`
	Rules    []string `json:"rules,omitempty"`
	// Watered is set when the plant was watered as a result of the evaluation.
	Watered bool   `json:"watered,omitempty"`
	LogID   string `json:"log_id,omitempty"`
}

