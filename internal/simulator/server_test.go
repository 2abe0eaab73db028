package simulator_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SimonCaignart/plant-e/internal/simulator"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/mq/mock"
	"github.com/SimonCaignart/plant-e/pkg/plantwire"
)

type fakeBroker struct {
	mu      sync.Mutex
	clients map[string][]*mock.MockClient
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{clients: make(map[string][]*mock.MockClient)}
}

func (b *fakeBroker) dial(queue string, _ *slog.Logger) mq.ClientInterface {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := mock.NewMockClient()
	b.clients[queue] = append(b.clients[queue], c)
	return c
}

func (b *fakeBroker) queue(name string) []*mock.MockClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clients[name]
}

func (b *fakeBroker) pushed(name string) int {
	n := 0
	for _, c := range b.queue(name) {
		n += len(c.PushedMessages())
	}
	return n
}

var _ = Describe("Server", func() {
	var (
		logger *slog.Logger
		broker *fakeBroker
		config *simulator.ServerConfig
	)

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		broker = newFakeBroker()
		config = &simulator.ServerConfig{
			Logger:            logger,
			ReadingQueue:      "readings",
			PlantQueue:        "plants",
			CommandQueue:      "commands",
			Interval:          10 * time.Millisecond,
			ProducerCount:     2,
			PlantsPerProducer: 2,
			Dial:              broker.dial,
		}
	})

	Describe("NewServer", func() {
		It("creates a reading and a plant client per producer, plus the command client", func() {
			server, err := simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Producers()).To(HaveLen(2))
			Expect(broker.queue("readings")).To(HaveLen(2))
			Expect(broker.queue("plants")).To(HaveLen(2))
			Expect(broker.queue("commands")).To(HaveLen(1))
		})

		It("skips the command client when no command queue is set", func() {
			config.CommandQueue = ""
			_, err := simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
			Expect(broker.queue("commands")).To(BeEmpty())
		})

		DescribeTable("rejects invalid configuration",
			func(mutate func(*simulator.ServerConfig)) {
				mutate(config)
				server, err := simulator.NewServer(config)
				Expect(err).To(HaveOccurred())
				Expect(server).To(BeNil())
			},
			Entry("zero producers", func(c *simulator.ServerConfig) { c.ProducerCount = 0 }),
			Entry("negative producers", func(c *simulator.ServerConfig) { c.ProducerCount = -1 }),
			Entry("zero interval", func(c *simulator.ServerConfig) { c.Interval = 0 }),
			Entry("no logger", func(c *simulator.ServerConfig) { c.Logger = nil }),
			Entry("no reading queue", func(c *simulator.ServerConfig) { c.ReadingQueue = "" }),
			Entry("no plant queue", func(c *simulator.ServerConfig) { c.PlantQueue = "" }),
		)

		It("rejects a nil config", func() {
			_, err := simulator.NewServer(nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Run", func() {
		It("registers plants, publishes readings and closes clients on shutdown", func() {
			server, err := simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- server.Run(ctx) }()

			Eventually(func() int { return broker.pushed("plants") }).Should(Equal(4))
			Eventually(func() int { return broker.pushed("readings") }).Should(BeNumerically(">=", 4))

			cancel()
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			for _, c := range broker.queue("readings") {
				Expect(c.CloseCalls).To(Equal(1))
			}
		})

		It("applies watering commands from the command queue", func() {
			config.ProducerCount = 1
			config.Interval = time.Hour
			server, err := simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())

			plantID := server.Producers()[0].Plants[0].ID
			body, err := (&plantwire.WateringCommand{CommandID: "cmd-1", PlantID: plantID}).Marshal()
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = server.Run(ctx) }()

			ack := mock.NewAcknowledger()
			broker.queue("commands")[0].Deliver(body, ack)

			Eventually(ack.Outcomes).Should(Equal([]mock.Outcome{mock.Acked}))
		})
	})

	Describe("HandleCommand", func() {
		var server *simulator.Server

		BeforeEach(func() {
			var err error
			server, err = simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())
		})

		It("acks malformed commands", func() {
			Expect(server.HandleCommand(context.Background(), []byte{0xff})).To(Equal(mq.Ack))
		})

		It("acks commands for unknown plants", func() {
			body, err := (&plantwire.WateringCommand{PlantID: "ghost"}).Marshal()
			Expect(err).NotTo(HaveOccurred())
			Expect(server.HandleCommand(context.Background(), body)).To(Equal(mq.Ack))
		})
	})

	Describe("Shutdown", func() {
		It("closes every client once", func() {
			server, err := simulator.NewServer(config)
			Expect(err).NotTo(HaveOccurred())

			Expect(server.Shutdown()).To(Succeed())
			Expect(server.Shutdown()).To(Succeed())

			for _, name := range []string{"readings", "plants", "commands"} {
				for _, c := range broker.queue(name) {
					Expect(c.CloseCalls).To(Equal(1))
				}
			}
		})
	})
})
