package plantapi_test

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/SimonCaignart/plant-e/pkg/plantapi"
)

type fakeService struct {
	plantapi.UnimplementedPlantServiceServer
	lastPolicy *plantapi.UpdatePolicyRequest
}

func (f *fakeService) GetPlant(_ context.Context, req *plantapi.GetPlantRequest) (*plantapi.GetPlantResponse, error) {
	if req.GetPlantID() != "fern" {
		return nil, status.Errorf(codes.NotFound, "plant not found: %s", req.GetPlantID())
	}
	moisture := 42.5
	return &plantapi.GetPlantResponse{Plant: &plantapi.Plant{
		ID:                "fern",
		Name:              "Fern",
		AutomaticWatering: true,
		Latest:            &plantapi.Reading{SoilMoisture: &moisture},
		CreatedAt:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func (f *fakeService) UpdatePolicy(_ context.Context, req *plantapi.UpdatePolicyRequest) (*plantapi.UpdatePolicyResponse, error) {
	f.lastPolicy = req
	return &plantapi.UpdatePolicyResponse{Plant: &plantapi.Plant{ID: req.PlantID}}, nil
}

var _ = Describe("PlantService", func() {
	var (
		lis     *bufconn.Listener
		server  *grpc.Server
		conn    *grpc.ClientConn
		client  plantapi.PlantServiceClient
		service *fakeService
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		lis = bufconn.Listen(1 << 20)
		server = grpc.NewServer()
		service = &fakeService{}
		plantapi.RegisterPlantServiceServer(server, service)
		go func() { _ = server.Serve(lis) }()

		var err error
		conn, err = grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		Expect(err).NotTo(HaveOccurred())
		client = plantapi.NewPlantServiceClient(conn)

		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
		_ = conn.Close()
		server.Stop()
	})

	It("round-trips messages through the plantwire codec", func() {
		resp, err := client.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: "fern"})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Plant.Name).To(Equal("Fern"))
		Expect(resp.Plant.AutomaticWatering).To(BeTrue())
		Expect(resp.Plant.Latest.SoilMoisture).To(HaveValue(Equal(42.5)))
		Expect(resp.Plant.Latest.Humidity).To(BeNil())
		Expect(resp.Plant.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))).To(BeTrue())
	})

	It("keeps unset optional fields apart from zero values", func() {
		zero := 0.0
		freq := 3
		_, err := client.UpdatePolicy(ctx, &plantapi.UpdatePolicyRequest{
			PlantID:               "fern",
			WateringFrequency:     &freq,
			SoilMoistureThreshold: &zero,
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(service.lastPolicy.WateringFrequency).To(HaveValue(Equal(3)))
		Expect(service.lastPolicy.SoilMoistureThreshold).To(HaveValue(Equal(0.0)))
		Expect(service.lastPolicy.HumidityThreshold).To(BeNil())
		Expect(service.lastPolicy.WaterQuantity).To(BeNil())
	})

	It("propagates status codes", func() {
		_, err := client.GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: "cactus"})
		Expect(status.Code(err)).To(Equal(codes.NotFound))
	})

	It("answers Unimplemented for methods the server does not override", func() {
		_, err := client.WaterPlant(ctx, &plantapi.WaterPlantRequest{PlantID: "fern"})
		Expect(status.Code(err)).To(Equal(codes.Unimplemented))
	})

	It("passes requests through server interceptors", func() {
		var seen string
		intercepted := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			seen = info.FullMethod
			return handler(ctx, req)
		}))
		plantapi.RegisterPlantServiceServer(intercepted, service)

		ilis := bufconn.Listen(1 << 20)
		go func() { _ = intercepted.Serve(ilis) }()
		defer intercepted.Stop()

		iconn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return ilis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		Expect(err).NotTo(HaveOccurred())
		defer iconn.Close()

		_, err = plantapi.NewPlantServiceClient(iconn).GetPlant(ctx, &plantapi.GetPlantRequest{PlantID: "fern"})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal(plantapi.PlantService_GetPlant_FullMethodName))
	})

	It("exposes every method in the service descriptor", func() {
		names := make([]string, 0, len(plantapi.PlantService_ServiceDesc.Methods))
		for _, m := range plantapi.PlantService_ServiceDesc.Methods {
			names = append(names, m.MethodName)
		}
		Expect(names).To(ConsistOf(
			"ListPlants", "GetPlant", "GetPlantLogs", "UpdatePolicy",
			"SetAutomaticWatering", "WaterPlant", "DeletePlant", "EvaluatePlant",
		))
	})
})
