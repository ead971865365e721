package fsm

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrLocationNotFound is returned when a service location does not exist.
var ErrLocationNotFound = errors.New("fsm location not found")

// Location is a site where field service is performed.
type Location struct {
	ID        string
	Name      string
	Direction string
}

// LocationRepository provides lookup of service locations.
type LocationRepository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Location, error)
}
