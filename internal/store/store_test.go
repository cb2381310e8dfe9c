package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

type fakeStorage struct {
	mu      sync.Mutex
	state   domain.AppState
	found   bool
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeStorage) Load(context.Context) (domain.AppState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.EmptyState(), false, f.loadErr
	}
	return f.state, f.found, nil
}

func (f *fakeStorage) Save(_ context.Context, state domain.AppState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.state = state
	f.found = true
	f.saves++
	return nil
}

func approvedSession(userID string) domain.Session {
	return domain.Session{
		UserID:        userID,
		Role:          domain.RoleRetailer,
		Mobile:        "9876543210",
		WalletBalance: 120.5,
		Token:         "backend-token",
		Approval:      domain.ApprovalApproved,
		LoggedInAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewSurvivesLoadFailure(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{loadErr: errors.New("disk gone")}, nil)
	snap := s.Snapshot()
	if snap.CurrentUser != nil {
		t.Fatalf("expected empty session after failed load")
	}
	if snap.Locale != domain.LocaleEnglish {
		t.Fatalf("expected english default locale, got %q", snap.Locale)
	}
}

func TestNewRestoresPersistedState(t *testing.T) {
	t.Parallel()

	sess := approvedSession("u-1")
	storage := &fakeStorage{
		state: domain.AppState{CurrentUser: &sess, Locale: domain.LocaleHindi},
		found: true,
	}
	s := New(context.Background(), storage, nil)
	if got := s.GetCurrentUser(); got == nil || got.UserID != "u-1" {
		t.Fatalf("expected restored session, got %+v", got)
	}
	if s.Locale() != domain.LocaleHindi {
		t.Fatalf("expected restored locale")
	}
}

func TestSavePersistsBeforeNotify(t *testing.T) {
	t.Parallel()

	storage := &fakeStorage{}
	s := New(context.Background(), storage, nil)

	persistedAtNotify := -1
	unsub := s.Subscribe(func(domain.AppState) {
		storage.mu.Lock()
		persistedAtNotify = storage.saves
		storage.mu.Unlock()
	})
	defer unsub()

	s.SetLocale(context.Background(), domain.LocaleHindi)
	if persistedAtNotify != 1 {
		t.Fatalf("subscriber ran before persist, saves=%d", persistedAtNotify)
	}
}

func TestSaveNotifiesEverySubscriberSynchronously(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)

	var calls [3]int
	for i := range calls {
		i := i
		s.Subscribe(func(state domain.AppState) {
			calls[i]++
			if state.CurrentUser == nil {
				t.Errorf("subscriber %d saw no session", i)
			}
		})
	}

	s.CommitSession(context.Background(), approvedSession("u-2"), domain.LoginRecord{Identity: "9876543210", Succeeded: true})

	for i, n := range calls {
		if n != 1 {
			t.Fatalf("subscriber %d called %d times, want 1", i, n)
		}
	}
}

func TestConcurrentWritersNeverLoseAnUpdate(t *testing.T) {
	t.Parallel()

	for i := 0; i < 200; i++ {
		s := New(context.Background(), &fakeStorage{}, nil)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetLocale(context.Background(), domain.LocaleHindi)
		}()
		go func() {
			defer wg.Done()
			s.RecordAttempt(context.Background(), domain.LoginRecord{Identity: "9876543210"})
		}()
		wg.Wait()

		snap := s.Snapshot()
		if snap.Locale != domain.LocaleHindi {
			t.Fatalf("iteration %d lost the locale write: locale=%q", i, snap.Locale)
		}
		if len(snap.LoginHistory) != 1 {
			t.Fatalf("iteration %d lost the history write: history=%d", i, len(snap.LoginHistory))
		}
	}
}

func TestSubscribersObserveTheFinalSave(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)

	var lastSeen []domain.AppState
	for i := 0; i < 2; i++ {
		i := i
		lastSeen = append(lastSeen, domain.AppState{})
		s.Subscribe(func(state domain.AppState) { lastSeen[i] = state })
	}

	for n := 0; n < 5; n++ {
		s.RecordAttempt(context.Background(), domain.LoginRecord{Identity: "9876543210"})
	}

	for i, state := range lastSeen {
		if len(state.LoginHistory) != 5 {
			t.Fatalf("subscriber %d last saw %d history entries, want 5", i, len(state.LoginHistory))
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	calls := 0
	unsub := s.Subscribe(func(domain.AppState) { calls++ })

	s.SetLocale(context.Background(), domain.LocaleHindi)
	unsub()
	s.SetLocale(context.Background(), domain.LocaleEnglish)

	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
}

func TestSaveStorageFailureKeepsInMemoryState(t *testing.T) {
	t.Parallel()

	storage := &fakeStorage{saveErr: errors.New("disk full")}
	s := New(context.Background(), storage, nil)

	s.CommitSession(context.Background(), approvedSession("u-3"), domain.LoginRecord{Identity: "9876543210", Succeeded: true})

	if got := s.GetCurrentUser(); got == nil || got.UserID != "u-3" {
		t.Fatalf("in-memory state should advance despite persist failure, got %+v", got)
	}
}

func TestCommitSessionUpdatesWalletAndHistory(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	sess := approvedSession("u-4")
	s.CommitSession(context.Background(), sess, domain.LoginRecord{Identity: "9876543210", Method: "PASSWORD", Succeeded: true})

	snap := s.Snapshot()
	if snap.Wallet.Balance != sess.WalletBalance {
		t.Fatalf("wallet balance %v, want %v", snap.Wallet.Balance, sess.WalletBalance)
	}
	if len(snap.LoginHistory) != 1 || !snap.LoginHistory[0].Succeeded {
		t.Fatalf("expected one successful history entry, got %+v", snap.LoginHistory)
	}
}

func TestClearSessionPreservesLocaleAndHistory(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	s.SetLocale(context.Background(), domain.LocaleHindi)
	s.CommitSession(context.Background(), approvedSession("u-5"), domain.LoginRecord{Identity: "9876543210", Succeeded: true})

	s.ClearSession(context.Background())
	s.ClearSession(context.Background())

	snap := s.Snapshot()
	if snap.CurrentUser != nil {
		t.Fatalf("session should be gone")
	}
	if snap.Wallet.Balance != 0 {
		t.Fatalf("wallet should be reset")
	}
	if snap.Locale != domain.LocaleHindi {
		t.Fatalf("locale must survive logout, got %q", snap.Locale)
	}
	if len(snap.LoginHistory) != 1 {
		t.Fatalf("history must survive logout, got %d entries", len(snap.LoginHistory))
	}
}

func TestLoginHistoryIsBounded(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	for i := 0; i < historyLimit+10; i++ {
		s.RecordAttempt(context.Background(), domain.LoginRecord{Identity: "9876543210"})
	}
	if got := len(s.Snapshot().LoginHistory); got != historyLimit {
		t.Fatalf("history length %d, want %d", got, historyLimit)
	}
}

func TestSnapshotDoesNotAliasInternalState(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	s.CommitSession(context.Background(), approvedSession("u-6"), domain.LoginRecord{Identity: "9876543210", Succeeded: true})

	snap := s.Snapshot()
	snap.CurrentUser.UserID = "mutated"
	snap.LoginHistory[0].Identity = "mutated"

	fresh := s.Snapshot()
	if fresh.CurrentUser.UserID != "u-6" {
		t.Fatalf("snapshot mutation leaked into store")
	}
	if fresh.LoginHistory[0].Identity != "9876543210" {
		t.Fatalf("history mutation leaked into store")
	}
}

func TestUpdateWalletRefreshesSessionBalance(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), &fakeStorage{}, nil)
	s.CommitSession(context.Background(), approvedSession("u-7"), domain.LoginRecord{Identity: "9876543210", Succeeded: true})

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.UpdateWallet(context.Background(), 999.25, at)

	snap := s.Snapshot()
	if snap.Wallet.Balance != 999.25 || !snap.Wallet.UpdatedAt.Equal(at) {
		t.Fatalf("wallet not refreshed: %+v", snap.Wallet)
	}
	if snap.CurrentUser.WalletBalance != 999.25 {
		t.Fatalf("session balance not refreshed: %v", snap.CurrentUser.WalletBalance)
	}
}
