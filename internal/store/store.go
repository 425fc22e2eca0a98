//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// Package store defines the persistence contract of the hub (connection
// profiles, room metadata, and the per-room append-only chat and stroke
// logs) together with its Redis and Badger backends.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a profile or room does not exist.
var ErrNotFound = errors.New("store: not found")

// Profile is the persisted record of one live connection.
type Profile struct {
	ID          string
	Username    string
	ConnectedAt time.Time
}

// Room is the persisted metadata of a room. Membership is not stored.
type Room struct {
	Name      string
	Password  string
	CreatedAt time.Time
}

// Point is a normalized canvas coordinate in [0,1]x[0,1].
type Point struct {
	X float64
	Y float64
}

// ChatEntry is one record of a room's chat log.
type ChatEntry struct {
	Username  string
	Text      string
	Timestamp time.Time
}

// StrokeEntry is one record of a room's stroke log.
type StrokeEntry struct {
	Start Point
	End   Point
	Color string
	Width float64
}

// Store is the access contract the core relies on. Implementations must make
// CreateRoom an atomic check-then-create and must return history in append
// order.
type Store interface {
	SaveProfile(ctx context.Context, profile Profile) error
	LoadProfile(ctx context.Context, id string) (Profile, error)
	// SetUsername updates an existing profile and returns ErrNotFound when
	// the profile is gone.
	SetUsername(ctx context.Context, id, username string) error
	DeleteProfile(ctx context.Context, id string) error

	// CreateRoom persists room and reports whether it was created. An
	// existing room is left untouched and reported as false.
	CreateRoom(ctx context.Context, room Room) (bool, error)
	LoadRoom(ctx context.Context, name string) (Room, error)

	AppendChat(ctx context.Context, room string, entry ChatEntry) error
	ChatHistory(ctx context.Context, room string) ([]ChatEntry, error)
	AppendStroke(ctx context.Context, room string, entry StrokeEntry) error
	StrokeHistory(ctx context.Context, room string) ([]StrokeEntry, error)

	Close() error
}
