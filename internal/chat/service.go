// Package chat is the room-scoped collaboration core: live sessions and
// their room membership, room creation and password-checked joins with
// history replay, fan-out of chat, stroke and presence events, and the
// per-connection protocol state machine that ties them together.
package chat

import (
	"time"

	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Options tunes a Service.
type Options struct {
	DefaultRoom       string
	StoreTimeout      time.Duration
	GatherConcurrency int
}

// Service wires the registry, room manager and broadcaster over one store.
type Service struct {
	Registry    *Registry
	Rooms       *Rooms
	Broadcaster *Broadcaster

	validate     *validator.Validate
	log          *zap.Logger
	storeTimeout time.Duration
}

// NewService builds the core over st.
func NewService(st store.Store, log *zap.Logger, opts Options) *Service {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 3 * time.Second
	}
	if opts.GatherConcurrency <= 0 {
		opts.GatherConcurrency = 16
	}

	registry := NewRegistry(st, log.Named("registry"))
	broadcaster := NewBroadcaster(registry, log.Named("broadcast"), opts.GatherConcurrency)
	rooms := NewRooms(st, registry, broadcaster, opts.DefaultRoom, log.Named("rooms"))

	return &Service{
		Registry:     registry,
		Rooms:        rooms,
		Broadcaster:  broadcaster,
		validate:     validator.New(),
		log:          log,
		storeTimeout: opts.StoreTimeout,
	}
}

// Broadcast sends an operator message to every live room.
func (s *Service) Broadcast(text string) []string {
	return s.Broadcaster.BroadcastToAllRooms(text)
}
