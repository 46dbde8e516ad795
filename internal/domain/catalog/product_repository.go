package catalog

import "context"

// ProductRepository is the product store used by the sync
type ProductRepository interface {
	// FindPendingAfter returns up to limit products with a pending action and
	// an ID greater than afterID, ordered by ID ascending, option rows loaded.
	FindPendingAfter(ctx context.Context, afterID int64, limit int) ([]Product, error)

	// ClearPendingActions sets the pending action of the given products to none.
	// An empty list is a no-op.
	ClearPendingActions(ctx context.Context, ids []int64) error

	// CountPending returns the number of products with a pending action
	CountPending(ctx context.Context) (int64, error)
}
