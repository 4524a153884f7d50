package lifecycle

import (
	"context"
	"time"

	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
)

// Store persists lifecycle records. Implementations must make CompareAndSwap
// atomic: the state machine's Conflict detection is only as strong as the
// store's compare-and-set.
type Store interface {
	// Create inserts the record for a new document.
	// Returns sentinel.ErrConflict if a record already exists for the id.
	Create(ctx context.Context, rec *models.LifecycleRecord) error

	// Get returns the record for a document id.
	// Returns sentinel.ErrNotFound if no record exists.
	Get(ctx context.Context, id domain.GenerationCode) (*models.LifecycleRecord, error)

	// CompareAndSwap atomically moves the record from expected to next,
	// applying meta, and returns the updated record.
	// Returns sentinel.ErrConflict if the stored state is not expected,
	// sentinel.ErrNotFound if no record exists.
	CompareAndSwap(ctx context.Context, id domain.GenerationCode, expected, next models.State, enteredAt time.Time, meta models.TransitionMeta) (*models.LifecycleRecord, error)
}
