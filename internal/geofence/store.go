package geofence

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("geofence not found")
	ErrExists   = errors.New("geofence already exists")
)

// Store persists zones. Writes are last-writer-wins; the store does not
// look at geometry.
type Store interface {
	Create(ctx context.Context, zone Zone) (Zone, error)
	Get(ctx context.Context, id string) (Zone, error)
	List(ctx context.Context) ([]Zone, error)
	Update(ctx context.Context, zone Zone) (Zone, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
