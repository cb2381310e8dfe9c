// Package store owns the single persisted application record: the current
// session, wallet snapshot, login history, and locale preference. Every
// mutation is a whole-object replace through Save, which persists and then
// synchronously notifies all subscribers before returning. Header, sidebar,
// and route-guard readers therefore never observe a torn or stale write.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/ports"
)

const historyLimit = 50

// Store is the single source of truth for AppState.
type Store struct {
	mu       sync.Mutex
	storage  ports.StateStorage
	logger   *slog.Logger
	state    domain.AppState
	nextSub  int
	subs     map[int]func(domain.AppState)
	notifyMu sync.Mutex
}

// New loads the durable record and returns a ready store. Missing or
// malformed storage degrades to the empty no-session state; New never fails.
func New(ctx context.Context, storage ports.StateStorage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		storage: storage,
		logger:  logger,
		state:   domain.EmptyState(),
		subs:    make(map[int]func(domain.AppState)),
	}
	state, found, err := storage.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "state load failed, starting empty",
			"module", "store",
			"operation", "load",
			"outcome", "warning",
			"error", err,
		)
		return s
	}
	if found {
		s.state = state
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() domain.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// GetCurrentUser returns the active session, or nil when logged out.
func (s *Store) GetCurrentUser() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentUser == nil {
		return nil
	}
	cp := *s.state.CurrentUser
	return &cp
}

// Locale returns the persisted language preference.
func (s *Store) Locale() domain.Locale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Locale
}

// Subscribe registers a change listener and returns its unsubscribe func.
// Every Save notifies every registered listener, synchronously and in a
// stable order per listener.
func (s *Store) Subscribe(handler func(domain.AppState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = handler
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Save replaces the full state, persists it, and notifies subscribers before
// returning. A storage write failure is logged and swallowed: the in-memory
// state still advances so the session remains usable for this process even
// if it will not survive a restart.
func (s *Store) Save(ctx context.Context, state domain.AppState) {
	// notifyMu serializes the full clone+persist+notify sequence so no two
	// writers can interleave and drop each other's update.
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.save(ctx, state)
}

// mutate runs a read-modify-write against the current state with notifyMu
// held across the whole sequence, so the clone each writer mutates is always
// the latest committed state.
func (s *Store) mutate(ctx context.Context, apply func(*domain.AppState)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	next := s.state.Clone()
	s.mu.Unlock()

	apply(&next)
	s.save(ctx, next)
}

// save requires notifyMu to be held.
func (s *Store) save(ctx context.Context, state domain.AppState) {
	s.mu.Lock()
	s.state = state.Clone()
	snapshot := s.state.Clone()
	handlers := make([]func(domain.AppState), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	if err := s.storage.Save(ctx, snapshot); err != nil {
		s.logger.WarnContext(ctx, "state persist failed, in-memory state kept",
			"module", "store",
			"operation", "save",
			"outcome", "warning",
			"error", err,
		)
	}

	for _, h := range handlers {
		h(snapshot)
	}
}

// CommitSession installs an authenticated principal, refreshes the wallet
// snapshot, and appends a login record. This is the only way a session
// enters the store.
func (s *Store) CommitSession(ctx context.Context, session domain.Session, record domain.LoginRecord) {
	s.mutate(ctx, func(next *domain.AppState) {
		next.CurrentUser = &session
		next.Wallet = domain.Wallet{Balance: session.WalletBalance, UpdatedAt: session.LoggedInAt}
		next.LoginHistory = appendHistory(next.LoginHistory, record)
	})
}

// RecordAttempt appends a login record without touching the session, used
// for failed exchanges that should still appear in local history.
func (s *Store) RecordAttempt(ctx context.Context, record domain.LoginRecord) {
	s.mutate(ctx, func(next *domain.AppState) {
		next.LoginHistory = appendHistory(next.LoginHistory, record)
	})
}

// ClearSession removes the session and wallet while preserving the locale
// preference and history. Calling it twice is the same as calling it once.
func (s *Store) ClearSession(ctx context.Context) {
	s.mutate(ctx, func(next *domain.AppState) {
		next.CurrentUser = nil
		next.Wallet = domain.Wallet{}
	})
}

// SetLocale persists the language preference independently of the session.
func (s *Store) SetLocale(ctx context.Context, locale domain.Locale) {
	s.mutate(ctx, func(next *domain.AppState) {
		next.Locale = locale
	})
}

// UpdateWallet refreshes the cached wallet balance for the current session.
func (s *Store) UpdateWallet(ctx context.Context, balance float64, at time.Time) {
	s.mutate(ctx, func(next *domain.AppState) {
		next.Wallet = domain.Wallet{Balance: balance, UpdatedAt: at}
		if next.CurrentUser != nil {
			next.CurrentUser.WalletBalance = balance
		}
	})
}

func appendHistory(history []domain.LoginRecord, record domain.LoginRecord) []domain.LoginRecord {
	history = append(history, record)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history
}
