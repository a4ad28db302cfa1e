package patient

import "context"

// Repository is the read-only record source behind the dashboard.
type Repository interface {
	ListIDs(ctx context.Context) ([]string, error)
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Record, error)
}
