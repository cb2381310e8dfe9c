package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveReadsLonField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"lat": 19.076, "lon": 72.8777})
	}))
	defer srv.Close()

	loc, err := New(srv.URL, time.Second).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if loc.Lat != 19.076 || loc.Lng != 72.8777 {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestResolveReadsLngField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"lat": 28.6139, "lng": 77.209})
	}))
	defer srv.Close()

	loc, err := New(srv.URL, time.Second).Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if loc.Lng != 77.209 {
		t.Fatalf("lng field not read: %+v", loc)
	}
}

func TestResolveRejectsEmptyCoordinates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail"})
	}))
	defer srv.Close()

	if _, err := New(srv.URL, time.Second).Resolve(context.Background()); err == nil {
		t.Fatalf("expected error for coordinate-free response")
	}
}

func TestResolveFailsOnServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, time.Second).Resolve(context.Background()); err == nil {
		t.Fatalf("expected error on 503")
	}
}
