// Package grpcserver implements the recruiting.PipelineService gRPC server.
//
// It delegates all business logic to pipeline.Service and the booking
// coordinator and handles only the gRPC transport concerns: metadata
// extraction, error mapping, and conversion between domain values and
// google.protobuf.Struct messages. Requests and responses carry the same
// JSON shapes as the HTTP API.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/booking"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "recruiting.PipelineService"

// PipelineServer is the handler type of ServiceDesc.
type PipelineServer interface {
	isPipelineServer()
}

// Server implements PipelineServer.
type Server struct {
	svc     *pipeline.Service
	booking *booking.Coordinator
	log     *zap.Logger
}

// NewServer constructs a gRPC Server backed by the given service and coordinator.
func NewServer(svc *pipeline.Service, coord *booking.Coordinator, log *zap.Logger) *Server {
	return &Server{svc: svc, booking: coord, log: log}
}

func (*Server) isPipelineServer() {}

// Register mounts s on gs.
func Register(gs *grpc.Server, s *Server) {
	gs.RegisterService(&ServiceDesc, s)
}

type rpc func(s *Server, ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error)

// ServiceDesc describes recruiting.PipelineService. Every method takes and
// returns a google.protobuf.Struct.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetPhase", (*Server).getPhase),
		unary("GetApplication", (*Server).getApplication),
		unary("ListApplications", (*Server).listApplications),
		unary("UpdateStatus", (*Server).updateStatus),
		unary("RejectFromSystems", (*Server).rejectFromSystems),
		unary("SelectSystem", (*Server).selectSystem),
		unary("GetAvailableSlots", (*Server).getAvailableSlots),
		unary("BookSlot", (*Server).bookSlot),
		unary("CancelBooking", (*Server).cancelBooking),
		unary("RecordOutcome", (*Server).recordOutcome),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "recruiting/pipeline.proto",
}

func unary(name string, call rpc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return srv.(*Server).invoke(ctx, name, req.(*structpb.Struct), call)
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func (s *Server) invoke(ctx context.Context, method string, req *structpb.Struct, call rpc) (any, error) {
	actor, err := actorFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	out, err := call(s, ctx, actor, req)
	if err != nil {
		gerr := toGRPCError(err)
		if c := status.Code(gerr); c == codes.Internal || c == codes.Unavailable {
			s.log.Error("rpc failed", zap.String("method", method), zap.Stringer("code", c), zap.Error(err))
		}
		return nil, gerr
	}
	return toStruct(out)
}

// ─── RPC implementations ─────────────────────────────────────────────────────

func (s *Server) getPhase(ctx context.Context, _ pipeline.Actor, _ *structpb.Struct) (any, error) {
	p, err := s.svc.Phase(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"phase": string(p)}, nil
}

func (s *Server) getApplication(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	return s.svc.GetApplication(ctx, actor, str(req, "applicationId"))
}

func (s *Server) listApplications(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	views, err := s.svc.ListApplications(ctx, actor, str(req, "team"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"applications": views}, nil
}

func (s *Server) updateStatus(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	appID := str(req, "applicationId")
	res, err := s.svc.UpdateStatus(ctx, actor, appID, pipeline.StatusUpdate{
		Status:  str(req, "status"),
		Systems: strs(req, "systems"),
	})
	if err != nil {
		return nil, err
	}
	v, err := s.svc.GetApplication(ctx, actor, appID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"application": v, "fullyRejected": res.FullyRejected}, nil
}

func (s *Server) rejectFromSystems(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	appID := str(req, "applicationId")
	res, err := s.svc.RejectFromSystems(ctx, actor, appID, strs(req, "systems"))
	if err != nil {
		return nil, err
	}
	v, err := s.svc.GetApplication(ctx, actor, appID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"application": v, "fullyRejected": res.FullyRejected}, nil
}

func (s *Server) selectSystem(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	appID := str(req, "applicationId")
	if _, err := s.booking.SelectSystem(ctx, actor, appID, str(req, "system")); err != nil {
		return nil, err
	}
	return s.svc.GetApplication(ctx, actor, appID)
}

func (s *Server) getAvailableSlots(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	return s.booking.AvailableSlots(ctx, actor, str(req, "applicationId"), str(req, "system"))
}

func (s *Server) bookSlot(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	start, err := timestamp(req, "slotStart", "start")
	if err != nil {
		return nil, err
	}
	end, err := timestamp(req, "slotEnd", "end")
	if err != nil {
		return nil, err
	}
	appID := str(req, "applicationId")
	if _, err := s.booking.BookSlot(ctx, actor, appID, str(req, "system"), slots.Interval{Start: start, End: end}); err != nil {
		return nil, err
	}
	return s.svc.GetApplication(ctx, actor, appID)
}

func (s *Server) cancelBooking(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	appID := str(req, "applicationId")
	if _, err := s.booking.CancelBooking(ctx, actor, appID, str(req, "system"), str(req, "reason")); err != nil {
		return nil, err
	}
	return s.svc.GetApplication(ctx, actor, appID)
}

func (s *Server) recordOutcome(ctx context.Context, actor pipeline.Actor, req *structpb.Struct) (any, error) {
	appID := str(req, "applicationId")
	reason := str(req, "cancelReason")
	if reason == "" {
		reason = str(req, "reason")
	}
	if _, err := s.booking.RecordOutcome(ctx, actor, appID, str(req, "system"), str(req, "status"), reason); err != nil {
		return nil, err
	}
	return s.svc.GetApplication(ctx, actor, appID)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// actorFromCtx extracts the identity forwarded by the Gateway via gRPC
// metadata.
func actorFromCtx(ctx context.Context) (pipeline.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return pipeline.Actor{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	get := func(key string) string {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
		return ""
	}
	userID := get("x-user-id")
	if userID == "" {
		return pipeline.Actor{}, status.Error(codes.Unauthenticated, "missing x-user-id metadata")
	}
	role := pipeline.RoleApplicant
	if raw := get("x-user-role"); raw != "" {
		var err error
		if role, err = pipeline.ParseRole(raw); err != nil {
			return pipeline.Actor{}, status.Error(codes.Unauthenticated, err.Error())
		}
	}
	return pipeline.Actor{UserID: userID, Role: role, Team: get("x-user-team"), System: get("x-user-system")}, nil
}

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var ve *pipeline.ValidationError
	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Msg)
	case errors.Is(err, pipeline.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, pipeline.ErrPermissionDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, pipeline.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, pipeline.ErrMisconfigured):
		return status.Error(codes.FailedPrecondition, err.Error())
	case booking.IsCalendarError(err):
		return status.Error(codes.Unavailable, "calendar unavailable")
	}
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts a JSON-tagged domain value to a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func str(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

func strs(req *structpb.Struct, key string) []string {
	var out []string
	for _, v := range req.GetFields()[key].GetListValue().GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// timestamp reads the first present key of keys as an RFC 3339 time.
func timestamp(req *structpb.Struct, keys ...string) (time.Time, error) {
	raw := ""
	for _, k := range keys {
		if raw = str(req, k); raw != "" {
			break
		}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an RFC 3339 timestamp", keys[0]))
	}
	return t, nil
}
