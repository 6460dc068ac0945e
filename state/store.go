package state

import (
	"context"
	"errors"

	"github.com/MrEthical07/goClone/permission"
)

var (
	// ErrNotFound is returned when no record exists for an address.
	ErrNotFound = errors.New("instance not found")
	// ErrExists is returned when creating a record whose address is taken.
	ErrExists = errors.New("instance already exists")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("state backend unavailable")
	// ErrConflict is returned when a watched record changed mid-commit.
	ErrConflict = errors.New("state commit conflict")
	// ErrCorrupt is returned when a persisted record cannot be decoded.
	ErrCorrupt = errors.New("state record corrupt")

	errNilMask = errors.New("nil mask")
)

// Store persists instance records. Every method is atomic: it either fully
// applies or returns an error having changed nothing.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Load(ctx context.Context, address string) (*Record, error)
	Commit(ctx context.Context, address string, changes Changes) error
	SetMask(ctx context.Context, address string, mask permission.Mask) error
	Addresses(ctx context.Context) ([]string, error)
}
