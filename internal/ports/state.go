package ports

import (
	"context"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// StateStorage persists the whole application record. Load reports found=false
// for missing or unparseable content instead of failing; Save replaces the
// record in a single write. The store layered on top treats a Save error as a
// non-fatal warning so the in-memory session stays usable for the process.
type StateStorage interface {
	Load(ctx context.Context) (state domain.AppState, found bool, err error)
	Save(ctx context.Context, state domain.AppState) error
}
