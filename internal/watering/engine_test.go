package watering_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/watering"
)

var now = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

func mustPolicy(in watering.PolicyInput) watering.Policy {
	GinkgoHelper()
	p, err := watering.NewPolicy(in)
	Expect(err).NotTo(HaveOccurred())
	return p
}

func reading(ago time.Duration, r watering.Reading) watering.Log {
	return watering.Log{CreatedAt: now.Add(-ago), Reading: r}
}

func watered(ago time.Duration) watering.Log {
	return watering.Log{CreatedAt: now.Add(-ago), WasWatered: true}
}

var _ = Describe("Engine", func() {
	Describe("Evaluate", func() {
		It("should skip when automatic watering is off, whatever the logs say", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(false),
				WateringFrequency:     ptr(1),
				SoilMoistureThreshold: ptr(30.0),
			})
			logs := []watering.Log{reading(time.Minute, watering.Reading{SoilMoisture: ptr(1.0)})}

			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
			Expect(watering.Evaluate(p, nil, now)).To(Equal(watering.Skip))
		})

		It("should report no policy when nothing is configured", func() {
			p := mustPolicy(watering.PolicyInput{AutomaticWatering: ptr(true)})
			logs := []watering.Log{reading(time.Minute, watering.Reading{SoilMoisture: ptr(1.0)})}

			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.NoPolicy))
			Expect(watering.Evaluate(p, nil, now)).To(Equal(watering.NoPolicy))
		})

		DescribeTable("threshold rules",
			func(in watering.PolicyInput, r watering.Reading, expected watering.Decision) {
				in.AutomaticWatering = ptr(true)
				p := mustPolicy(in)
				logs := []watering.Log{reading(time.Minute, r)}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(expected))
			},
			Entry("dry soil waters",
				watering.PolicyInput{SoilMoistureThreshold: ptr(30.0)},
				watering.Reading{SoilMoisture: ptr(20.0)}, watering.WaterNow),
			Entry("moist soil skips",
				watering.PolicyInput{SoilMoistureThreshold: ptr(30.0)},
				watering.Reading{SoilMoisture: ptr(50.0)}, watering.Skip),
			Entry("soil exactly at threshold skips",
				watering.PolicyInput{SoilMoistureThreshold: ptr(30.0)},
				watering.Reading{SoilMoisture: ptr(30.0)}, watering.Skip),
			Entry("dry air waters",
				watering.PolicyInput{HumidityThreshold: ptr(40.0)},
				watering.Reading{Humidity: ptr(35.0)}, watering.WaterNow),
			Entry("bright light waters",
				watering.PolicyInput{LuminosityThreshold: ptr(80.0)},
				watering.Reading{Luminosity: ptr(90.0)}, watering.WaterNow),
			Entry("dim light skips",
				watering.PolicyInput{LuminosityThreshold: ptr(80.0)},
				watering.Reading{Luminosity: ptr(70.0)}, watering.Skip),
			Entry("heat waters",
				watering.PolicyInput{TemperatureThreshold: ptr(28.0)},
				watering.Reading{Temperature: ptr(31.0)}, watering.WaterNow),
			Entry("cool air skips",
				watering.PolicyInput{TemperatureThreshold: ptr(28.0)},
				watering.Reading{Temperature: ptr(22.0)}, watering.Skip),
			Entry("reading for another field does not trigger",
				watering.PolicyInput{SoilMoistureThreshold: ptr(30.0)},
				watering.Reading{Luminosity: ptr(1.0)}, watering.Skip),
		)

		It("should not trigger a threshold without logs", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			Expect(watering.Evaluate(p, nil, now)).To(Equal(watering.Skip))
		})

		It("should compare against the most recent log only", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			logs := []watering.Log{
				reading(time.Minute, watering.Reading{SoilMoisture: ptr(60.0)}),
				reading(time.Hour, watering.Reading{SoilMoisture: ptr(10.0)}),
			}
			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
		})

		It("should not depend on the order of the window", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			logs := []watering.Log{
				reading(time.Hour, watering.Reading{SoilMoisture: ptr(60.0)}),
				reading(time.Minute, watering.Reading{SoilMoisture: ptr(10.0)}),
			}
			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.WaterNow))
		})

		It("should skip a malformed latest row in favour of the previous one", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			logs := []watering.Log{
				reading(time.Minute, watering.Reading{SoilMoisture: ptr(math.NaN())}),
				reading(2*time.Minute, watering.Reading{Luminosity: ptr(50.0)}),
				reading(time.Hour, watering.Reading{SoilMoisture: ptr(12.0)}),
			}
			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.WaterNow))
		})

		It("should never trigger on malformed readings alone", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
				TemperatureThreshold:  ptr(25.0),
			})
			logs := []watering.Log{
				reading(time.Minute, watering.Reading{
					SoilMoisture: ptr(math.NaN()),
					Temperature:  ptr(math.Inf(1)),
				}),
				reading(time.Hour, watering.Reading{}),
			}
			Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
		})

		Context("with a watering frequency", func() {
			var p watering.Policy

			BeforeEach(func() {
				p = mustPolicy(watering.PolicyInput{
					AutomaticWatering: ptr(true),
					WateringFrequency: ptr(3),
				})
			})

			It("should water when the window holds no watering", func() {
				logs := []watering.Log{reading(time.Hour, watering.Reading{SoilMoisture: ptr(50.0)})}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.WaterNow))
				Expect(watering.Evaluate(p, nil, now)).To(Equal(watering.WaterNow))
			})

			It("should skip when watered one day ago", func() {
				logs := []watering.Log{watered(watering.Day)}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
			})

			It("should water when exactly the frequency has elapsed", func() {
				logs := []watering.Log{watered(3 * watering.Day)}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.WaterNow))
			})

			It("should use the most recent watering", func() {
				logs := []watering.Log{
					watered(10 * watering.Day),
					watered(2 * watering.Day),
				}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
			})

			It("should not trigger on a watering stamped in the future", func() {
				logs := []watering.Log{watered(-time.Hour)}
				Expect(watering.Evaluate(p, logs, now)).To(Equal(watering.Skip))
			})

			It("should not overflow on very large frequencies", func() {
				big := mustPolicy(watering.PolicyInput{
					AutomaticWatering: ptr(true),
					WateringFrequency: ptr(math.MaxInt32 * 100),
				})
				Expect(watering.Evaluate(big, []watering.Log{watered(watering.Day)}, now)).To(Equal(watering.Skip))
			})
		})

		It("should be idempotent for identical inputs", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				WateringFrequency:     ptr(2),
				SoilMoistureThreshold: ptr(30.0),
			})
			logs := []watering.Log{
				reading(time.Minute, watering.Reading{SoilMoisture: ptr(40.0)}),
				watered(watering.Day),
			}
			first := watering.Evaluate(p, logs, now)
			second := watering.Evaluate(p, logs, now)
			Expect(second).To(Equal(first))
			Expect(logs).To(HaveLen(2))
			Expect(*logs[0].Reading.SoilMoisture).To(Equal(40.0))
		})
	})

	Describe("Assess", func() {
		It("should list every rule that fired", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				WateringFrequency:     ptr(1),
				SoilMoistureThreshold: ptr(30.0),
				LuminosityThreshold:   ptr(80.0),
			})
			logs := []watering.Log{
				reading(time.Minute, watering.Reading{SoilMoisture: ptr(12.0), Luminosity: ptr(40.0)}),
				watered(2 * watering.Day),
			}

			a := watering.Assess(p, logs, now)
			Expect(a.Decision).To(Equal(watering.WaterNow))
			Expect(a.Triggers).To(HaveLen(2))
			Expect(a.Triggers[0].Rule()).To(Equal("threshold:soil_moisture"))
			Expect(a.Triggers[0].Reading).To(Equal(12.0))
			Expect(a.Triggers[1].Rule()).To(Equal("frequency"))
			Expect(a.Triggers[1].LastWatered).To(Equal(now.Add(-2 * watering.Day)))
		})

		It("should carry no triggers when skipping", func() {
			p := mustPolicy(watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			a := watering.Assess(p, nil, now)
			Expect(a.Decision).To(Equal(watering.Skip))
			Expect(a.Triggers).To(BeEmpty())
		})
	})

	Describe("LastWatered", func() {
		It("should return false for a window without watering", func() {
			_, ok := watering.LastWatered([]watering.Log{reading(time.Minute, watering.Reading{})})
			Expect(ok).To(BeFalse())
		})
	})
})
