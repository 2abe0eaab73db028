package plantapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified name of PlantService.
const ServiceName = "plantcare.v1.PlantService"

const (
	PlantService_ListPlants_FullMethodName           = "/" + ServiceName + "/ListPlants"
	PlantService_GetPlant_FullMethodName             = "/" + ServiceName + "/GetPlant"
	PlantService_GetPlantLogs_FullMethodName         = "/" + ServiceName + "/GetPlantLogs"
	PlantService_UpdatePolicy_FullMethodName         = "/" + ServiceName + "/UpdatePolicy"
	PlantService_SetAutomaticWatering_FullMethodName = "/" + ServiceName + "/SetAutomaticWatering"
	PlantService_WaterPlant_FullMethodName           = "/" + ServiceName + "/WaterPlant"
	PlantService_DeletePlant_FullMethodName          = "/" + ServiceName + "/DeletePlant"
	PlantService_EvaluatePlant_FullMethodName        = "/" + ServiceName + "/EvaluatePlant"
)

// PlantServiceServer is the server API for PlantService.
type PlantServiceServer interface {
	ListPlants(context.Context, *ListPlantsRequest) (*ListPlantsResponse, error)
	GetPlant(context.Context, *GetPlantRequest) (*GetPlantResponse, error)
	GetPlantLogs(context.Context, *GetPlantLogsRequest) (*GetPlantLogsResponse, error)
	UpdatePolicy(context.Context, *UpdatePolicyRequest) (*UpdatePolicyResponse, error)
	SetAutomaticWatering(context.Context, *SetAutomaticWateringRequest) (*SetAutomaticWateringResponse, error)
	// WaterPlant waters a plant now, bypassing its policy.
	WaterPlant(context.Context, *WaterPlantRequest) (*WaterPlantResponse, error)
	// DeletePlant removes a plant and its whole log.
	DeletePlant(context.Context, *DeletePlantRequest) (*DeletePlantResponse, error)
	EvaluatePlant(context.Context, *EvaluatePlantRequest) (*EvaluatePlantResponse, error)
	mustEmbedUnimplementedPlantServiceServer()
}

// UnimplementedPlantServiceServer must be embedded to have forward compatible implementations.
type UnimplementedPlantServiceServer struct{}

func (UnimplementedPlantServiceServer) ListPlants(context.Context, *ListPlantsRequest) (*ListPlantsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPlants not implemented")
}
func (UnimplementedPlantServiceServer) GetPlant(context.Context, *GetPlantRequest) (*GetPlantResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPlant not implemented")
}
func (UnimplementedPlantServiceServer) GetPlantLogs(context.Context, *GetPlantLogsRequest) (*GetPlantLogsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetPlantLogs not implemented")
}
func (UnimplementedPlantServiceServer) UpdatePolicy(context.Context, *UpdatePolicyRequest) (*UpdatePolicyResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdatePolicy not implemented")
}
func (UnimplementedPlantServiceServer) SetAutomaticWatering(context.Context, *SetAutomaticWateringRequest) (*SetAutomaticWateringResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SetAutomaticWatering not implemented")
}
func (UnimplementedPlantServiceServer) WaterPlant(context.Context, *WaterPlantRequest) (*WaterPlantResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method WaterPlant not implemented")
}
func (UnimplementedPlantServiceServer) DeletePlant(context.Context, *DeletePlantRequest) (*DeletePlantResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeletePlant not implemented")
}
func (UnimplementedPlantServiceServer) EvaluatePlant(context.Context, *EvaluatePlantRequest) (*EvaluatePlantResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EvaluatePlant not implemented")
}
func (UnimplementedPlantServiceServer) mustEmbedUnimplementedPlantServiceServer() {}

// RegisterPlantServiceServer registers srv on s.
func RegisterPlantServiceServer(s grpc.ServiceRegistrar, srv PlantServiceServer) {
	s.RegisterService(&PlantService_ServiceDesc, srv)
}

// unary builds the method handler of one unary RPC.
func unary[Req, Resp any](fullMethod string, call func(PlantServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PlantServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PlantServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// PlantService_ServiceDesc is the grpc.ServiceDesc for PlantService.
var PlantService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlantServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListPlants",
			Handler:    unary(PlantService_ListPlants_FullMethodName, PlantServiceServer.ListPlants),
		},
		{
			MethodName: "GetPlant",
			Handler:    unary(PlantService_GetPlant_FullMethodName, PlantServiceServer.GetPlant),
		},
		{
			MethodName: "GetPlantLogs",
			Handler:    unary(PlantService_GetPlantLogs_FullMethodName, PlantServiceServer.GetPlantLogs),
		},
		{
			MethodName: "UpdatePolicy",
			Handler:    unary(PlantService_UpdatePolicy_FullMethodName, PlantServiceServer.UpdatePolicy),
		},
		{
			MethodName: "SetAutomaticWatering",
			Handler:    unary(PlantService_SetAutomaticWatering_FullMethodName, PlantServiceServer.SetAutomaticWatering),
		},
		{
			MethodName: "WaterPlant",
			Handler:    unary(PlantService_WaterPlant_FullMethodName, PlantServiceServer.WaterPlant),
		},
		{
			MethodName: "DeletePlant",
			Handler:    unary(PlantService_DeletePlant_FullMethodName, PlantServiceServer.DeletePlant),
		},
		{
			MethodName: "EvaluatePlant",
			Handler:    unary(PlantService_EvaluatePlant_FullMethodName, PlantServiceServer.EvaluatePlant),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plantcare/v1/plant_service",
}
