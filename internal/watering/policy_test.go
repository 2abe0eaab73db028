package watering_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/watering"
)

func ptr[T any](v T) *T { return &v }

var _ = Describe("Policy", func() {
	Describe("NewPolicy", func() {
		It("should build an empty policy from an empty input", func() {
			p, err := watering.NewPolicy(watering.PolicyInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AutomaticWatering()).To(BeFalse())
			Expect(p.Actionable()).To(BeFalse())
		})

		It("should store provided values", func() {
			p, err := watering.NewPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				WateringFrequency:     ptr(3),
				WaterQuantity:         ptr(250),
				SoilMoistureThreshold: ptr(30.0),
				TemperatureThreshold:  ptr(28.5),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.AutomaticWatering()).To(BeTrue())
			Expect(p.IsFrequencyBased()).To(BeTrue())
			Expect(p.WaterQuantity().OrZero()).To(Equal(250))
			Expect(p.IsThresholdSet(watering.SoilMoisture)).To(BeTrue())
			Expect(p.IsThresholdSet(watering.Temperature)).To(BeTrue())
			Expect(p.IsThresholdSet(watering.Humidity)).To(BeFalse())
			Expect(p.IsThresholdSet(watering.Luminosity)).To(BeFalse())
		})

		It("should treat a zero threshold as unset", func() {
			p, err := watering.NewPolicy(watering.PolicyInput{
				AutomaticWatering:   ptr(true),
				LuminosityThreshold: ptr(0.0),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(p.IsThresholdSet(watering.Luminosity)).To(BeFalse())
			Expect(p.Actionable()).To(BeFalse())
		})

		DescribeTable("rejecting invalid input",
			func(in watering.PolicyInput, field string) {
				_, err := watering.NewPolicy(in)
				Expect(err).To(HaveOccurred())
				Expect(errors.Is(err, watering.ErrInvalidPolicy)).To(BeTrue())

				var verr *watering.ValidationError
				Expect(errors.As(err, &verr)).To(BeTrue())
				Expect(verr.Field).To(Equal(field))
			},
			Entry("zero frequency", watering.PolicyInput{WateringFrequency: ptr(0)}, "watering_frequency"),
			Entry("negative frequency", watering.PolicyInput{WateringFrequency: ptr(-2)}, "watering_frequency"),
			Entry("zero quantity", watering.PolicyInput{WaterQuantity: ptr(0)}, "water_quantity"),
			Entry("negative soil moisture threshold", watering.PolicyInput{SoilMoistureThreshold: ptr(-1.0)}, "soil_moisture_threshold"),
			Entry("negative humidity threshold", watering.PolicyInput{HumidityThreshold: ptr(-0.5)}, "humidity_threshold"),
			Entry("NaN temperature threshold", watering.PolicyInput{TemperatureThreshold: ptr(math.NaN())}, "temperature_threshold"),
			Entry("infinite luminosity threshold", watering.PolicyInput{LuminosityThreshold: ptr(math.Inf(1))}, "luminosity_threshold"),
		)

		It("should report every invalid field", func() {
			_, err := watering.NewPolicy(watering.PolicyInput{
				WateringFrequency: ptr(0),
				WaterQuantity:     ptr(-1),
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("watering_frequency"))
			Expect(err.Error()).To(ContainSubstring("water_quantity"))
		})
	})

	Describe("Update", func() {
		var base watering.Policy

		BeforeEach(func() {
			var err error
			base, err = watering.NewPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				WateringFrequency:     ptr(7),
				SoilMoistureThreshold: ptr(25.0),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should only change provided fields", func() {
			next, err := base.Update(watering.PolicyInput{HumidityThreshold: ptr(40.0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(next.WateringFrequency().OrZero()).To(Equal(7))
			Expect(next.Threshold(watering.SoilMoisture).OrZero()).To(Equal(25.0))
			Expect(next.Threshold(watering.Humidity).OrZero()).To(Equal(40.0))
		})

		It("should keep the prior policy when the update is invalid", func() {
			next, err := base.Update(watering.PolicyInput{
				WateringFrequency:     ptr(0),
				SoilMoistureThreshold: ptr(10.0),
			})
			Expect(err).To(MatchError(watering.ErrInvalidPolicy))
			Expect(next).To(Equal(base))
		})

		It("should clear a threshold set to zero", func() {
			next, err := base.Update(watering.PolicyInput{SoilMoistureThreshold: ptr(0.0)})
			Expect(err).NotTo(HaveOccurred())
			Expect(next.IsThresholdSet(watering.SoilMoisture)).To(BeFalse())
		})

		It("should clear the frequency on request", func() {
			next, err := base.Update(watering.PolicyInput{ClearWateringFrequency: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(next.IsFrequencyBased()).To(BeFalse())
		})

		It("should not mutate the receiver", func() {
			_, err := base.Update(watering.PolicyInput{AutomaticWatering: ptr(false)})
			Expect(err).NotTo(HaveOccurred())
			Expect(base.AutomaticWatering()).To(BeTrue())
		})
	})

	Describe("Field", func() {
		It("should water below the threshold for dryness fields only", func() {
			Expect(watering.SoilMoisture.TriggersBelow()).To(BeTrue())
			Expect(watering.Humidity.TriggersBelow()).To(BeTrue())
			Expect(watering.Temperature.TriggersBelow()).To(BeFalse())
			Expect(watering.Luminosity.TriggersBelow()).To(BeFalse())
		})
	})
})
