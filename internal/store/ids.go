package store

import (
	"github.com/google/uuid"
)

// IDGenerator produces construct ids.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// UUIDv7 embeds a millisecond timestamp, so ids sort roughly by creation
// time, which keeps database indexes and object-store listings local.
type UUIDv7Generator struct{}

// NewID returns a fresh UUIDv7 string. Panics only if the system's random
// source fails, which the uuid package treats as unrecoverable.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
