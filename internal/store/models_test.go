package store_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
)

var _ = Describe("Models", func() {
	Describe("TableName", func() {
		It("should use explicit table names", func() {
			Expect(store.Plant{}.TableName()).To(Equal("plants"))
			Expect(store.PlantLog{}.TableName()).To(Equal("plant_logs"))
			Expect(store.WateringCommand{}.TableName()).To(Equal("watering_commands"))
		})
	})

	Describe("Plant policy", func() {
		It("should read zero thresholds as unset", func() {
			p := &store.Plant{
				AutomaticWatering:   true,
				HumidityThreshold:   45,
				LuminosityThreshold: 0,
				WaterQuantity:       ptr(200),
			}
			policy, err := p.Policy()
			Expect(err).NotTo(HaveOccurred())
			Expect(policy.IsThresholdSet(watering.Humidity)).To(BeTrue())
			Expect(policy.IsThresholdSet(watering.Luminosity)).To(BeFalse())
			Expect(policy.IsFrequencyBased()).To(BeFalse())
		})

		It("should reject stored rows that violate the policy rules", func() {
			p := &store.Plant{WateringFrequency: ptr(0)}
			_, err := p.Policy()
			Expect(err).To(MatchError(watering.ErrInvalidPolicy))
		})

		It("should write a policy back into its columns", func() {
			policy, err := watering.NewPolicy(watering.PolicyInput{
				AutomaticWatering:    ptr(true),
				WateringFrequency:    ptr(5),
				TemperatureThreshold: ptr(29.0),
			})
			Expect(err).NotTo(HaveOccurred())

			p := &store.Plant{SoilMoistureThreshold: 12}
			p.SetPolicy(policy)
			Expect(p.AutomaticWatering).To(BeTrue())
			Expect(*p.WateringFrequency).To(Equal(5))
			Expect(p.WaterQuantity).To(BeNil())
			Expect(p.TemperatureThreshold).To(Equal(29.0))
			Expect(p.SoilMoistureThreshold).To(BeZero())
		})
	})

	Describe("PlantLog", func() {
		It("should assign an id before creation", func() {
			l := &store.PlantLog{PlantID: "ficus"}
			Expect(l.BeforeCreate(nil)).To(Succeed())
			Expect(l.ID).To(HaveLen(36))
		})

		It("should keep missing readings missing", func() {
			l := store.PlantLog{PlantID: "ficus", Humidity: ptr(40.0), WasWatered: true}
			w := l.ToWatering()
			Expect(w.Reading.SoilMoisture).To(BeNil())
			Expect(*w.Reading.Humidity).To(Equal(40.0))
			Expect(w.WasWatered).To(BeTrue())
		})
	})
})
