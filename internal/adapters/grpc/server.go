package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vittapay/portal-gateway/internal/ports"
)

// SessionInternalService lets sibling services validate a portal session
// token without calling the reseller backend.
type SessionInternalService interface {
	ValidateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type SessionInternalServer struct {
	signer ports.TokenSigner
}

func NewSessionInternalServer(signer ports.TokenSigner) *SessionInternalServer {
	return &SessionInternalServer{signer: signer}
}

// Register wires the hand-rolled service descriptor. The contract is small
// enough that generated stubs would add more friction than safety.
func Register(server grpc.ServiceRegistrar, svc SessionInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "vittapay.portal.v1.SessionInternalService",
		HandlerType: (*SessionInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateSession",
				Handler:    validateSessionHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "portal/v1/session_internal.proto",
	}, svc)
}

func (s *SessionInternalServer) ValidateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tokenVal := req.GetFields()["token"]
	if tokenVal == nil || tokenVal.GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	claims, err := s.signer.ParseAndValidate(tokenVal.GetStringValue())
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":      true,
		"user_id":    claims.UserID,
		"role":       string(claims.Role),
		"mobile":     claims.Mobile,
		"portal":     claims.Portal,
		"expires_at": claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func validateSessionHandler(svc SessionInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.ValidateSession(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/vittapay.portal.v1.SessionInternalService/ValidateSession",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.ValidateSession(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
