package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vittapay/portal-gateway/internal/adapters/security"
	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/ports"
)

func newServer(t *testing.T) (*SessionInternalServer, ports.TokenSigner) {
	t.Helper()
	signer, err := security.NewEphemeralJWTSigner("grpc-test-key")
	if err != nil {
		t.Fatalf("signer init failed: %v", err)
	}
	return NewSessionInternalServer(signer), signer
}

func TestValidateSession(t *testing.T) {
	t.Parallel()

	srv, signer := newServer(t)
	now := time.Now().UTC()
	token, err := signer.Sign(ports.PortalClaims{
		UserID:    "u-1",
		Role:      domain.RoleDistributor,
		Mobile:    "9876543210",
		Portal:    "distributor",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	req, _ := structpb.NewStruct(map[string]any{"token": token})
	resp, err := srv.ValidateSession(context.Background(), req)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	fields := resp.GetFields()
	if !fields["valid"].GetBoolValue() {
		t.Fatalf("expected valid=true")
	}
	if fields["user_id"].GetStringValue() != "u-1" || fields["role"].GetStringValue() != "DISTRIBUTOR" {
		t.Fatalf("unexpected claims in response: %v", fields)
	}
}

func TestValidateSessionMissingToken(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t)
	req, _ := structpb.NewStruct(map[string]any{})
	_, err := srv.ValidateSession(context.Background(), req)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestValidateSessionBadToken(t *testing.T) {
	t.Parallel()

	srv, _ := newServer(t)
	req, _ := structpb.NewStruct(map[string]any{"token": "not-a-jwt"})
	_, err := srv.ValidateSession(context.Background(), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestValidateSessionExpiredToken(t *testing.T) {
	t.Parallel()

	srv, signer := newServer(t)
	past := time.Now().UTC().Add(-2 * time.Hour)
	token, err := signer.Sign(ports.PortalClaims{UserID: "u-1", IssuedAt: past, ExpiresAt: past.Add(time.Hour)})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	req, _ := structpb.NewStruct(map[string]any{"token": token})
	_, err = srv.ValidateSession(context.Background(), req)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated for expired token, got %v", err)
	}
}
