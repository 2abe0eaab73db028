package backend_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/SimonCaignart/plant-e/internal/backend"
	"github.com/SimonCaignart/plant-e/internal/store"
	"github.com/SimonCaignart/plant-e/internal/watering"
	"github.com/SimonCaignart/plant-e/pkg/mq"
	"github.com/SimonCaignart/plant-e/pkg/mq/mock"
	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

// fakeQueues hands out one mock client per queue name.
type fakeQueues struct {
	mu      sync.Mutex
	clients map[string]*mock.MockClient
}

func newFakeQueues() *fakeQueues {
	return &fakeQueues{clients: make(map[string]*mock.MockClient)}
}

func (f *fakeQueues) Dial(queue string, _ *slog.Logger) mq.ClientInterface {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := mock.NewMockClient()
	f.clients[queue] = c
	return c
}

func (f *fakeQueues) Get(queue string) *mock.MockClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[queue]
}

func freePort() int {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

var _ = Describe("Backend Server", func() {
	var logger *slog.Logger

	validConfig := func() *backend.ServerConfig {
		return &backend.ServerConfig{
			Logger:       logger,
			DBHost:       "localhost",
			DBPort:       5432,
			DBUser:       "test",
			DBPassword:   "password",
			DBName:       "testdb",
			DBSSLMode:    "disable",
			RabbitMQURL:  "amqp://localhost:5672",
			ReadingQueue: "sensor-readings",
			PlantQueue:   "plant-registrations",
			CommandQueue: "watering-commands",
			GRPCPort:     9090,
		}
	}

	BeforeEach(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	Describe("NewServer", func() {
		It("should create a server with a valid configuration", func() {
			server, err := backend.NewServer(validConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(server).NotTo(BeNil())
		})

		It("should return error when config is nil", func() {
			server, err := backend.NewServer(nil)
			Expect(err).To(MatchError(ContainSubstring("config cannot be nil")))
			Expect(server).To(BeNil())
		})

		It("should not require database settings for the memory driver", func() {
			cfg := validConfig()
			cfg.StoreDriver = backend.StoreDriverMemory
			cfg.DBHost = ""
			cfg.DBUser = ""
			cfg.DBName = ""
			cfg.DBPort = 0

			_, err := backend.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should not require a RabbitMQ URL when a dialer is given", func() {
			cfg := validConfig()
			cfg.RabbitMQURL = ""
			cfg.Dial = newFakeQueues().Dial

			_, err := backend.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		DescribeTable("invalid configuration",
			func(mutate func(*backend.ServerConfig), message string) {
				cfg := validConfig()
				mutate(cfg)

				server, err := backend.NewServer(cfg)
				Expect(err).To(MatchError(ContainSubstring(message)))
				Expect(server).To(BeNil())
			},
			Entry("nil logger", func(c *backend.ServerConfig) { c.Logger = nil }, "logger"),
			Entry("empty rabbitmq url", func(c *backend.ServerConfig) { c.RabbitMQURL = "" }, "rabbitmq URL"),
			Entry("empty reading queue", func(c *backend.ServerConfig) { c.ReadingQueue = "" }, "queue names"),
			Entry("empty plant queue", func(c *backend.ServerConfig) { c.PlantQueue = "" }, "queue names"),
			Entry("empty command queue", func(c *backend.ServerConfig) { c.CommandQueue = "" }, "queue names"),
			Entry("empty database host", func(c *backend.ServerConfig) { c.DBHost = "" }, "database host"),
			Entry("zero database port", func(c *backend.ServerConfig) { c.DBPort = 0 }, "database port"),
			Entry("empty database user", func(c *backend.ServerConfig) { c.DBUser = "" }, "database user"),
			Entry("empty database name", func(c *backend.ServerConfig) { c.DBName = "" }, "database name"),
			Entry("unknown store driver", func(c *backend.ServerConfig) { c.StoreDriver = "sqlite" }, "unknown store driver"),
			Entry("zero gRPC port", func(c *backend.ServerConfig) { c.GRPCPort = 0 }, "gRPC port"),
			Entry("negative ops port", func(c *backend.ServerConfig) { c.OpsPort = -1 }, "ops port"),
		)
	})

	Describe("Run", func() {
		var (
			queues *fakeQueues
			mem    *store.Memory
			cfg    *backend.ServerConfig
		)

		BeforeEach(func() {
			queues = newFakeQueues()
			mem = store.NewMemory()

			cfg = validConfig()
			cfg.Store = mem
			cfg.Dial = queues.Dial
			cfg.GRPCPort = freePort()
			cfg.SchedulerInterval = 50 * time.Millisecond
		})

		It("should serve the API, water thirsty plants and stop on cancel", func() {
			ctx := context.Background()
			Expect(mem.Upsert(ctx, &store.Plant{ID: "basil", Name: "Basil"})).To(Succeed())
			_, err := mem.UpdatePolicy(ctx, "basil", watering.PolicyInput{
				AutomaticWatering:     ptr(true),
				SoilMoistureThreshold: ptr(30.0),
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = mem.Append(ctx, "basil", store.Entry{Reading: watering.Reading{SoilMoisture: ptr(10.0)}})
			Expect(err).NotTo(HaveOccurred())

			server, err := backend.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- server.Run(runCtx) }()

			Eventually(func() int {
				c := queues.Get(cfg.CommandQueue)
				if c == nil {
					return 0
				}
				return len(c.PushedMessages())
			}).WithTimeout(5 * time.Second).Should(BeNumerically(">=", 1))

			conn, err := grpc.NewClient(
				net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.GRPCPort)),
				grpc.WithTransportCredentials(insecure.NewCredentials()),
			)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			client := plantapi.NewPlantServiceClient(conn)
			Eventually(func() error {
				_, err := client.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: "basil"})
				return err
			}).WithTimeout(5 * time.Second).Should(Succeed())

			resp, err := client.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: "basil"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Plant.LastWatered).NotTo(BeNil())

			cancel()
			Eventually(errCh).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
		})

		It("should fail when the gRPC port is taken", func() {
			lis, err := net.Listen("tcp", ":0")
			Expect(err).NotTo(HaveOccurred())
			defer lis.Close()
			cfg.GRPCPort = lis.Addr().(*net.TCPAddr).Port

			server, err := backend.NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			err = server.Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("failed to listen")))
		})
	})
})
