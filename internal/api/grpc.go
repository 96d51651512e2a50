package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/learnsense/internal/models"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "learnsense.v1.Personalization"

// PersonalizationServer is the gRPC surface. Messages are google.protobuf.Struct
// values carrying the same JSON shapes as the HTTP API.
type PersonalizationServer interface {
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Collect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Summary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterPersonalizationServer attaches srv to s.
func RegisterPersonalizationServer(s grpc.ServiceRegistrar, srv PersonalizationServer) {
	s.RegisterService(&personalizationServiceDesc, srv)
}

type structHandler func(PersonalizationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call structHandler) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PersonalizationServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PersonalizationServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var personalizationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PersonalizationServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Predict", PersonalizationServer.Predict),
		unaryMethod("Collect", PersonalizationServer.Collect),
		unaryMethod("Recent", PersonalizationServer.Recent),
		unaryMethod("Summary", PersonalizationServer.Summary),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "learnsense/v1/personalization.proto",
}

// PersonalizationClient calls a remote Personalization service.
type PersonalizationClient struct {
	cc grpc.ClientConnInterface
}

// NewPersonalizationClient wraps an established connection.
func NewPersonalizationClient(cc grpc.ClientConnInterface) *PersonalizationClient {
	return &PersonalizationClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *PersonalizationClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCService adapts the domain services onto PersonalizationServer.
type GRPCService struct {
	log         *slog.Logger
	predictions PredictionAPI
	realtime    RealtimeAPI
}

// NewGRPCService constructs the gRPC adapter.
func NewGRPCService(logger *slog.Logger, predictions PredictionAPI, realtime RealtimeAPI) *GRPCService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GRPCService{log: logger, predictions: predictions, realtime: realtime}
}

type recentRequest struct {
	UserID        string            `json:"user_id"`
	Type          models.SignalType `json:"type"`
	WindowMinutes float64           `json:"window_minutes"`
}

type summaryRequest struct {
	UserID      string  `json:"user_id"`
	WindowHours float64 `json:"window_hours"`
}

// Predict scores a learner; see the HTTP prediction endpoint for the shape.
func (s *GRPCService) Predict(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.PredictionRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	result, err := s.predictions.Predict(ctx, req)
	if err != nil {
		return nil, s.fail("Predict", err, "prediction failed")
	}
	return encodeStruct(result)
}

// Collect buffers one real-time point.
func (s *GRPCService) Collect(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req models.CollectRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	point, err := s.realtime.Collect(ctx, req)
	if err != nil {
		return nil, s.fail("Collect", err, "failed to collect data point")
	}
	return encodeStruct(point)
}

// Recent lists stored points for a learner.
func (s *GRPCService) Recent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req recentRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	points, err := s.realtime.Recent(ctx, models.RecentQuery{LearnerID: req.UserID, Type: req.Type, WindowMinutes: req.WindowMinutes})
	if err != nil {
		return nil, s.fail("Recent", err, "failed to load data points")
	}
	return encodeStruct(map[string]any{"user_id": req.UserID, "points": points})
}

// Summary aggregates stored points for a learner.
func (s *GRPCService) Summary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req summaryRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	summary, err := s.realtime.Summary(ctx, req.UserID, req.WindowHours)
	if err != nil {
		return nil, s.fail("Summary", err, "failed to summarise data points")
	}
	return encodeStruct(summary)
}

func (s *GRPCService) fail(method string, err error, fallback string) error {
	statusErr := grpcError(err, fallback)
	if status.Code(statusErr) == codes.Internal {
		s.log.Error("grpc call failed", slog.String("method", method), slog.Any("error", err))
	}
	return statusErr
}

func decodeStruct(in *structpb.Struct, out any) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "request is nil")
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return nil
}

func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
