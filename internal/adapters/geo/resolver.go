// Package geo resolves a coarse device location from an external IP
// geolocation service for login requests that did not send coordinates.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// Resolver queries a JSON geolocation endpoint. Callers bound each lookup
// with their own context deadline; a failed or malformed lookup is an error,
// never a zero location.
type Resolver struct {
	lookupURL  string
	httpClient *http.Client
}

// New builds a resolver for the given lookup URL.
func New(lookupURL string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Resolver{
		lookupURL:  strings.TrimSpace(lookupURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Resolve fetches the current egress location. The endpoint's response may
// name the longitude field lon or lng; both are read.
func (r *Resolver) Resolve(ctx context.Context) (*domain.Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build geo request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("geo lookup status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("%w: read geo response: %v", domain.ErrConnection, err)
	}

	var payload struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode geo response: %w", err)
	}
	lng := payload.Lon
	if lng == 0 {
		lng = payload.Lng
	}
	if payload.Lat == 0 && lng == 0 {
		return nil, fmt.Errorf("geo response carried no coordinates")
	}
	return &domain.Location{Lat: payload.Lat, Lng: lng}, nil
}
