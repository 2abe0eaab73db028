// Package generator produces synthetic plants and sensor readings for the simulator.
package generator

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Species describes how a kind of plant behaves in the simulation.
type Species struct {
	CommonName  string
	LatinName   string
	Description string
	Image       string
	// DryingRate is the soil moisture lost per hour, in percentage points.
	DryingRate float64
	// Shade caps the luminosity the plant's spot receives, in percent.
	Shade float64
}

// Catalog lists the species the simulator picks from.
var Catalog = []Species{
	{
		CommonName:  "Weeping fig",
		LatinName:   "Ficus benjamina",
		Description: "Likes bright indirect light and evenly moist soil.",
		Image:       "ficus.png",
		DryingRate:  0.35,
		Shade:       70,
	},
	{
		CommonName:  "Swiss cheese plant",
		LatinName:   "Monstera deliciosa",
		Description: "Let the top of the soil dry out between waterings.",
		Image:       "monstera.png",
		DryingRate:  0.25,
		Shade:       60,
	},
	{
		CommonName:  "Golden barrel cactus",
		LatinName:   "Echinocactus grusonii",
		Description: "Full sun, water sparingly.",
		Image:       "cactus.png",
		DryingRate:  0.6,
		Shade:       100,
	},
	{
		CommonName:  "Peace lily",
		LatinName:   "Spathiphyllum wallisii",
		Description: "Droops when thirsty, recovers quickly after watering.",
		Image:       "peace-lily.png",
		DryingRate:  0.5,
		Shade:       45,
	},
	{
		CommonName:  "Basil",
		LatinName:   "Ocimum basilicum",
		Description: "Keep the soil moist and give it plenty of sun.",
		Image:       "basil.png",
		DryingRate:  0.8,
		Shade:       90,
	},
}

// Plant is a simulated plant.
type Plant struct {
	ID           string  `fake:"{uuid}"`
	Name         string  `fake:"{firstname}"`
	Species      Species `fake:"skip"`
	RegisteredAt time.Time
}

// NewPlant creates a plant with a random name and species.
func NewPlant() *Plant {
	var p Plant
	if err := gofakeit.Struct(&p); err != nil {
		return nil
	}
	p.Species = Catalog[gofakeit.Number(0, len(Catalog)-1)]
	p.RegisteredAt = time.Now().UTC()
	return &p
}
