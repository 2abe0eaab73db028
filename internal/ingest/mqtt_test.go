package ingest_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/ingest"
	"github.com/SimonCaignart/plant-e/internal/store"
)

var _ = Describe("ParseTopic", func() {
	DescribeTable("extracts the plant id",
		func(topic, expected string) {
			id, err := ingest.ParseTopic(topic)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal(expected))
		},
		Entry("uuid", "plants/4c1f7e2a-0000-4000-8000-000000000001/readings", "4c1f7e2a-0000-4000-8000-000000000001"),
		Entry("short id", "plants/fern/readings", "fern"),
	)

	DescribeTable("rejects other topics",
		func(topic string) {
			_, err := ingest.ParseTopic(topic)
			Expect(err).To(MatchError(ingest.ErrInvalidTopic))
		},
		Entry("empty", ""),
		Entry("missing plant", "plants//readings"),
		Entry("wrong prefix", "sensors/fern/readings"),
		Entry("wrong suffix", "plants/fern/commands"),
		Entry("too deep", "plants/fern/readings/extra"),
	)
})

var _ = Describe("DecodePayload", func() {
	It("keeps absent fields unset", func() {
		entry, err := ingest.DecodePayload([]byte(`{"soil_moisture": 31.5, "temperature": 22}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Reading.SoilMoisture).To(HaveValue(Equal(31.5)))
		Expect(entry.Reading.Temperature).To(HaveValue(Equal(22.0)))
		Expect(entry.Reading.Humidity).To(BeNil())
		Expect(entry.Reading.Luminosity).To(BeNil())
		Expect(entry.WasWatered).To(BeFalse())
	})

	It("reads the observation time", func() {
		entry, err := ingest.DecodePayload([]byte(`{"humidity": 40, "observed_at": "2024-05-01T10:00:00Z"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.ObservedAt).To(Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	})

	DescribeTable("rejects unusable payloads",
		func(payload string) {
			_, err := ingest.DecodePayload([]byte(payload))
			Expect(err).To(MatchError(ingest.ErrInvalidPayload))
		},
		Entry("not json", `moisture=30`),
		Entry("no values", `{}`),
		Entry("wrong type", `{"soil_moisture": "wet"}`),
	)
})

var _ = Describe("Subscriber", func() {
	var (
		logs   *store.Memory
		sub    *ingest.Subscriber
		ctx    context.Context
		logger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		logs = store.NewMemory()
		Expect(logs.Upsert(ctx, &store.Plant{ID: "fern", Name: "Fern"})).To(Succeed())

		var err error
		sub, err = ingest.New(&ingest.Config{
			Logger: logger,
			Logs:   logs,
			Broker: "tcp://localhost:1883",
			Buffer: 2,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("New", func() {
		It("requires a logger, a store and a broker", func() {
			_, err := ingest.New(nil)
			Expect(err).To(HaveOccurred())

			_, err = ingest.New(&ingest.Config{Logs: logs, Broker: "tcp://x:1883"})
			Expect(err).To(HaveOccurred())

			_, err = ingest.New(&ingest.Config{Logger: logger, Broker: "tcp://x:1883"})
			Expect(err).To(HaveOccurred())

			_, err = ingest.New(&ingest.Config{Logger: logger, Logs: logs})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Handle", func() {
		It("appends the reading to the plant log", func() {
			received := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
			id, err := sub.Handle(ctx, "plants/fern/readings", []byte(`{"soil_moisture": 18}`), received)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).NotTo(BeEmpty())

			latest, err := logs.Latest(ctx, "fern", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(HaveLen(1))
			Expect(latest[0].ID).To(Equal(id))
			Expect(latest[0].CreatedAt).To(Equal(received))
			Expect(latest[0].Reading.SoilMoisture).To(HaveValue(Equal(18.0)))
		})

		It("reports unknown plants", func() {
			_, err := sub.Handle(ctx, "plants/ghost/readings", []byte(`{"soil_moisture": 18}`), time.Now())
			Expect(err).To(MatchError(store.ErrPlantNotFound))
		})

		It("rejects a reading older than the newest one", func() {
			_, err := sub.Handle(ctx, "plants/fern/readings",
				[]byte(`{"soil_moisture": 60, "observed_at": "2024-05-01T10:00:00Z"}`), time.Now())
			Expect(err).NotTo(HaveOccurred())

			_, err = sub.Handle(ctx, "plants/fern/readings",
				[]byte(`{"soil_moisture": 20, "observed_at": "2024-05-01T09:59:00Z"}`), time.Now())
			Expect(err).To(MatchError(store.ErrStaleEntry))

			latest, err := logs.Latest(ctx, "fern", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest).To(HaveLen(1))
			Expect(latest[0].Reading.SoilMoisture).To(HaveValue(Equal(60.0)))
		})

		It("reports bad topics before touching the store", func() {
			_, err := sub.Handle(ctx, "plants/fern", []byte(`{"soil_moisture": 18}`), time.Now())
			Expect(err).To(MatchError(ingest.ErrInvalidTopic))
		})
	})

	Describe("Enqueue and Run", func() {
		It("stores queued readings and drops what does not fit", func() {
			Expect(sub.Enqueue("plants/fern/readings", []byte(`{"humidity": 50}`))).To(BeTrue())
			Expect(sub.Enqueue("plants/fern/readings", []byte(`{"humidity": 51}`))).To(BeTrue())
			Expect(sub.Enqueue("plants/fern/readings", []byte(`{"humidity": 52}`))).To(BeFalse())

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				sub.Run(runCtx)
				close(done)
			}()

			Eventually(func() int {
				latest, _ := logs.Latest(ctx, "fern", 10)
				return len(latest)
			}).Should(Equal(2))

			cancel()
			Eventually(done).Should(BeClosed())
		})

		It("refuses messages once stopped", func() {
			sub.Stop()
			Expect(sub.Enqueue("plants/fern/readings", []byte(`{"humidity": 50}`))).To(BeFalse())
		})
	})
})
