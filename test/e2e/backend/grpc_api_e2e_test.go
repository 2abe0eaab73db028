package backend

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

var _ = Describe("gRPC API E2E", func() {
	var (
		ctx context.Context
		id  string
	)

	BeforeEach(func() {
		ctx = context.Background()
		id = uniqueID("api")
		Expect(testStore.Upsert(ctx, &store.Plant{ID: id, Name: "Monstera"})).To(Succeed())
	})

	It("should map store errors to gRPC codes", func() {
		_, err := grpcClient.GetPlant(ctx, &plantapi.GetPlantRequest{})
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))

		_, err = grpcClient.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: uniqueID("missing")})
		Expect(status.Code(err)).To(Equal(codes.NotFound))

		_, err = grpcClient.UpdatePolicy(ctx, &plantapi.UpdatePolicyRequest{PlantID: id, HumidityThreshold: ptr(-5.0)})
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))

		_, err = grpcClient.GetPlantLogs(ctx, &plantapi.GetPlantLogsRequest{PlantID: id, PageToken: "nope"})
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
	})

	It("should page through a plant's log", func() {
		base := time.Now().UTC().Add(-time.Hour)
		for i := range 7 {
			_, err := testStore.Append(ctx, id, store.Entry{
				Reading:    watering.Reading{Temperature: ptr(float64(20 + i))},
				ObservedAt: base.Add(time.Duration(i) * time.Minute),
			})
			Expect(err).NotTo(HaveOccurred())
		}

		var (
			token string
			temps []float64
			pages int
		)
		for {
			resp, err := grpcClient.GetPlantLogs(ctx, &plantapi.GetPlantLogsRequest{PlantID: id, PageSize: 3, PageToken: token})
			Expect(err).NotTo(HaveOccurred())
			pages++
			for _, l := range resp.Logs {
				temps = append(temps, *l.Reading.Temperature)
			}
			if resp.NextPageToken == "" {
				break
			}
			token = resp.NextPageToken
		}

		Expect(pages).To(Equal(3))
		Expect(temps).To(Equal([]float64{26, 25, 24, 23, 22, 21, 20}))
	})

	It("should water manually and report it in the summary", func() {
		resp, err := grpcClient.WaterPlant(ctx, &plantapi.WaterPlantRequest{PlantID: id})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.LogID).NotTo(BeEmpty())

		plant, err := grpcClient.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: id})
		Expect(err).NotTo(HaveOccurred())
		Expect(plant.Plant.LastWatered).NotTo(BeNil())
		Expect(plant.Plant.PumpConnected).To(BeFalse())
	})

	It("should evaluate a plant without watering it", func() {
		_, err := grpcClient.UpdatePolicy(ctx, &plantapi.UpdatePolicyRequest{PlantID: id, WateringFrequency: ptr(2)})
		Expect(err).NotTo(HaveOccurred())

		// Disabled automatic watering always skips.
		resp, err := grpcClient.EvaluatePlant(ctx, &plantapi.EvaluatePlantRequest{PlantID: id})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Decision).To(Equal("skip"))

		// The scheduler may water it first, which turns the decision into skip.
		_, err = testStore.SetAutomaticWatering(ctx, id, true)
		Expect(err).NotTo(HaveOccurred())
		resp, err = grpcClient.EvaluatePlant(ctx, &plantapi.EvaluatePlantRequest{PlantID: id})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Decision).To(BeElementOf("water_now", "skip"))
		_, err = testStore.SetAutomaticWatering(ctx, id, false)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should delete a plant", func() {
		_, err := grpcClient.DeletePlant(ctx, &plantapi.DeletePlantRequest{PlantID: id})
		Expect(err).NotTo(HaveOccurred())

		_, err = grpcClient.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: id})
		Expect(status.Code(err)).To(Equal(codes.NotFound))

		_, err = grpcClient.DeletePlant(ctx, &plantapi.DeletePlantRequest{PlantID: id})
		Expect(status.Code(err)).To(Equal(codes.NotFound))
	})
})
