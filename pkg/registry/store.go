package registry

import (
	"context"

	"mercator-hq/callisto/pkg/model"
)

// Store persists the proxy list. Implementations must be safe for use by a
// single writer and concurrent readers.
type Store interface {
	// Load returns the persisted proxy list in order.
	Load(ctx context.Context) ([]model.Record, error)

	// Save replaces the persisted proxy list.
	Save(ctx context.Context, records []model.Record) error
}
