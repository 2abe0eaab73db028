package plantapi

import (
	"context"

	"google.golang.org/grpc"
)

// PlantServiceClient is the client API for PlantService.
type PlantServiceClient interface {
	ListPlants(ctx context.Context, in *ListPlantsRequest, opts ...grpc.CallOption) (*ListPlantsResponse, error)
	GetPlant(ctx context.Context, in *GetPlantRequest, opts ...grpc.CallOption) (*GetPlantResponse, error)
	GetPlantLogs(ctx context.Context, in *GetPlantLogsRequest, opts ...grpc.CallOption) (*GetPlantLogsResponse, error)
	UpdatePolicy(ctx context.Context, in *UpdatePolicyRequest, opts ...grpc.CallOption) (*UpdatePolicyResponse, error)
	SetAutomaticWatering(ctx context.Context, in *SetAutomaticWateringRequest, opts ...grpc.CallOption) (*SetAutomaticWateringResponse, error)
	WaterPlant(ctx context.Context, in *WaterPlantRequest, opts ...grpc.CallOption) (*WaterPlantResponse, error)
	DeletePlant(ctx context.Context, in *DeletePlantRequest, opts ...grpc.CallOption) (*DeletePlantResponse, error)
	EvaluatePlant(ctx context.Context, in *EvaluatePlantRequest, opts ...grpc.CallOption) (*EvaluatePlantResponse, error)
}

type plantServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPlantServiceClient creates a client on cc. Every call uses the plantwire codec.
func NewPlantServiceClient(cc grpc.ClientConnInterface) PlantServiceClient {
	return &plantServiceClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *plantServiceClient) ListPlants(ctx context.Context, in *ListPlantsRequest, opts ...grpc.CallOption) (*ListPlantsResponse, error) {
	return invoke[ListPlantsResponse](ctx, c.cc, PlantService_ListPlants_FullMethodName, in, opts)
}

func (c *plantServiceClient) GetPlant(ctx context.Context, in *GetPlantRequest, opts ...grpc.CallOption) (*GetPlantResponse, error) {
	return invoke[GetPlantResponse](ctx, c.cc, PlantService_GetPlant_FullMethodName, in, opts)
}

func (c *plantServiceClient) GetPlantLogs(ctx context.Context, in *GetPlantLogsRequest, opts ...grpc.CallOption) (*GetPlantLogsResponse, error) {
	return invoke[GetPlantLogsResponse](ctx, c.cc, PlantService_GetPlantLogs_FullMethodName, in, opts)
}

func (c *plantServiceClient) UpdatePolicy(ctx context.Context, in *UpdatePolicyRequest, opts ...grpc.CallOption) (*UpdatePolicyResponse, error) {
	return invoke[UpdatePolicyResponse](ctx, c.cc, PlantService_UpdatePolicy_FullMethodName, in, opts)
}

func (c *plantServiceClient) SetAutomaticWatering(ctx context.Context, in *SetAutomaticWateringRequest, opts ...grpc.CallOption) (*SetAutomaticWateringResponse, error) {
	return invoke[SetAutomaticWateringResponse](ctx, c.cc, PlantService_SetAutomaticWatering_FullMethodName, in, opts)
}

func (c *plantServiceClient) WaterPlant(ctx context.Context, in *WaterPlantRequest, opts ...grpc.CallOption) (*WaterPlantResponse, error) {
	return invoke[WaterPlantResponse](ctx, c.cc, PlantService_WaterPlant_FullMethodName, in, opts)
}

func (c *plantServiceClient) DeletePlant(ctx context.Context, in *DeletePlantRequest, opts ...grpc.CallOption) (*DeletePlantResponse, error) {
	return invoke[DeletePlantResponse](ctx, c.cc, PlantService_DeletePlant_FullMethodName, in, opts)
}

func (c *plantServiceClient) EvaluatePlant(ctx context.Context, in *EvaluatePlantRequest, opts ...grpc.CallOption) (*EvaluatePlantResponse, error) {
	return invoke[EvaluatePlantResponse](ctx, c.cc, PlantService_EvaluatePlant_FullMethodName, in, opts)
}
