package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/ports"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestPendingLoginRoundTrip(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := NewRedisPendingLoginStore(client)
	ctx := context.Background()

	pending := ports.PendingLogin{
		AttemptID: "att-1",
		Identity:  "9876543210",
		CandidateUser: domain.CandidateUser{
			UserID:       "u-1",
			Role:         domain.RoleRetailer,
			BusinessName: "Asha Traders",
			Approval:     domain.ApprovalApproved,
		},
		Method:      domain.MethodOTP,
		RequestedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Put(ctx, pending.Identity, pending, time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, err := store.Get(ctx, pending.Identity)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.AttemptID != "att-1" || got.CandidateUser.BusinessName != "Asha Traders" {
		t.Fatalf("unexpected pending login %+v", got)
	}

	if err := store.Delete(ctx, pending.Identity); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, err := store.Get(ctx, pending.Identity); err != nil || got != nil {
		t.Fatalf("expected miss after delete, got %+v err %v", got, err)
	}
}

func TestPendingLoginMissReturnsNilNil(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := NewRedisPendingLoginStore(client)

	got, err := store.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil on miss, got %+v", got)
	}
}

func TestPendingLoginExpires(t *testing.T) {
	t.Parallel()

	client, mr := newTestClient(t)
	store := NewRedisPendingLoginStore(client)
	ctx := context.Background()

	if err := store.Put(ctx, "9876543210", ports.PendingLogin{AttemptID: "att-2"}, time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "9876543210")
	if err != nil || got != nil {
		t.Fatalf("expected expiry miss, got %+v err %v", got, err)
	}
}

func TestCaptchaConsumeIsOneShot(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	store := NewRedisCaptchaStore(client)
	ctx := context.Background()

	if err := store.Put(ctx, "c-1", "hash-value", time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	hash, err := store.Consume(ctx, "c-1")
	if err != nil || hash != "hash-value" {
		t.Fatalf("first consume: %q %v", hash, err)
	}
	if _, err := store.Consume(ctx, "c-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second consume should miss, got %v", err)
	}
}

func TestCaptchaExpires(t *testing.T) {
	t.Parallel()

	client, mr := newTestClient(t)
	store := NewRedisCaptchaStore(client)
	ctx := context.Background()

	if err := store.Put(ctx, "c-2", "hash-value", time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := store.Consume(ctx, "c-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expiry miss, got %v", err)
	}
}

func TestStateStorageRoundTrip(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	storage := NewRedisStateStorage(client)
	ctx := context.Background()

	sess := domain.Session{UserID: "u-1", Role: domain.RoleDistributor, Approval: domain.ApprovalApproved, Plan: "gold"}
	state := domain.AppState{
		CurrentUser:  &sess,
		Wallet:       domain.Wallet{Balance: 42.5},
		LoginHistory: []domain.LoginRecord{{Identity: "9876543210", Succeeded: true}},
		Locale:       domain.LocaleHindi,
	}
	if err := storage.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, found, err := storage.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if got.CurrentUser == nil || got.CurrentUser.Plan != "gold" || got.Locale != domain.LocaleHindi {
		t.Fatalf("unexpected state %+v", got)
	}
}

func TestStateStorageMissingIsNotFound(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	storage := NewRedisStateStorage(client)

	_, found, err := storage.Load(context.Background())
	if err != nil {
		t.Fatalf("missing state must not error: %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
}

func TestStateStorageMalformedIsNotFound(t *testing.T) {
	t.Parallel()

	client, mr := newTestClient(t)
	storage := NewRedisStateStorage(client)

	mr.Set(stateKey, "{not json")

	state, found, err := storage.Load(context.Background())
	if err != nil {
		t.Fatalf("malformed state must not error: %v", err)
	}
	if found || state.CurrentUser != nil {
		t.Fatalf("malformed state must read as empty, got found=%v %+v", found, state)
	}
}
