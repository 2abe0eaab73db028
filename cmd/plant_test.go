package main

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

var _ = Describe("plant command", func() {
	newPolicyFlags := func() *pflag.FlagSet {
		f := pflag.NewFlagSet("policy", pflag.ContinueOnError)
		f.Int("frequency", 0, "")
		f.Int("quantity", 0, "")
		f.Float64("soil-moisture", 0, "")
		f.Float64("humidity", 0, "")
		f.Float64("temperature", 0, "")
		f.Float64("luminosity", 0, "")
		f.Bool("clear-frequency", false, "")
		f.Bool("clear-quantity", false, "")
		return f
	}

	Describe("policyRequest", func() {
		It("should only set the flags that were given", func() {
			f := newPolicyFlags()
			Expect(f.Parse([]string{"--soil-moisture=25", "--frequency=3"})).To(Succeed())

			req, err := policyRequest("basil", f)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.PlantID).To(Equal("basil"))
			Expect(req.SoilMoistureThreshold).To(HaveValue(Equal(25.0)))
			Expect(req.WateringFrequency).To(HaveValue(Equal(3)))
			Expect(req.HumidityThreshold).To(BeNil())
			Expect(req.WaterQuantity).To(BeNil())
		})

		It("should pass an explicit zero threshold through", func() {
			f := newPolicyFlags()
			Expect(f.Parse([]string{"--humidity=0"})).To(Succeed())

			req, err := policyRequest("basil", f)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.HumidityThreshold).To(HaveValue(BeZero()))
		})

		It("should accept clear flags alone", func() {
			f := newPolicyFlags()
			Expect(f.Parse([]string{"--clear-frequency"})).To(Succeed())

			req, err := policyRequest("basil", f)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.ClearWateringFrequency).To(BeTrue())
		})

		It("should reject an empty change", func() {
			_, err := policyRequest("basil", newPolicyFlags())
			Expect(err).To(MatchError("no policy change given"))
		})
	})

	DescribeTable("parseSwitch",
		func(in string, want bool, ok bool) {
			got, err := parseSwitch(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("on", "on", true, true),
		Entry("off", "off", false, true),
		Entry("true", "true", true, true),
		Entry("garbage", "maybe", false, false),
	)

	Describe("printPlants", func() {
		It("should render one row per plant", func() {
			soil := 31.5
			watered := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

			var buf bytes.Buffer
			Expect(printPlants(&buf, []*plantapi.Plant{
				{ID: "basil", Name: "Basil", AutomaticWatering: true, Latest: &plantapi.Reading{SoilMoisture: &soil}, LastWatered: &watered},
				{ID: "fern", Name: "Fern"},
			})).To(Succeed())

			out := buf.String()
			Expect(out).To(ContainSubstring("basil"))
			Expect(out).To(ContainSubstring("31.5"))
			Expect(out).To(ContainSubstring("never"))
		})
	})
})
