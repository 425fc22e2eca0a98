package chat

import (
	"context"
	"errors"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Broadcaster fans events out to the live members of rooms and aggregates
// per-member lookups.
type Broadcaster struct {
	registry    *Registry
	log         *zap.Logger
	gatherLimit int
	now         func() time.Time
}

// NewBroadcaster creates a broadcaster over registry. gatherLimit bounds the
// number of concurrent profile lookups of GatherMembers; zero or less means
// unbounded.
func NewBroadcaster(registry *Registry, log *zap.Logger, gatherLimit int) *Broadcaster {
	return &Broadcaster{registry: registry, log: log, gatherLimit: gatherLimit, now: time.Now}
}

// BroadcastToRoom delivers evt to every session that is a member of room at
// the time of the call and returns how many accepted it.
func (b *Broadcaster) BroadcastToRoom(room string, evt Event) int {
	delivered := 0
	b.registry.eachMember(room, func(id string, sender Sender) {
		if err := sender.Send(evt); err != nil {
			b.log.Warn("dropping event for slow connection",
				zap.String("socket", id), zap.String("room", room),
				zap.String("event", evt.Name), zap.Error(err))
			return
		}
		delivered++
	})
	return delivered
}

// BroadcastToAllRooms sends text as a ServerBot chat message to every room
// that currently has live members. Nothing is persisted. It returns the
// rooms reached.
func (b *Broadcaster) BroadcastToAllRooms(text string) []string {
	rooms := b.registry.liveRooms()
	date := b.now().UTC()
	for _, room := range rooms {
		b.BroadcastToRoom(room, Event{Name: EventNewMessage, Data: ChatMessage{
			Room:     room,
			Username: ServerBot,
			Msg:      text,
			Date:     date,
		}})
	}
	b.log.Info("newBroadcastMessage", zap.String("msg", text), zap.Int("rooms", len(rooms)))
	return rooms
}

// GatherMembers looks up the profile of every member of room concurrently
// and returns them once all lookups finished. Membership is snapshotted at
// call start; members that disappear during the gather are skipped.
func (b *Broadcaster) GatherMembers(ctx context.Context, room string) ([]Member, error) {
	ids := b.registry.memberIDs(room)
	found := make([]*Member, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if b.gatherLimit > 0 {
		g.SetLimit(b.gatherLimit)
	}
	for i, id := range ids {
		g.Go(func() error {
			profile, err := b.registry.GetProfile(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = &Member{Room: room, Username: profile.Username, ID: profile.ID}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.FilterMap(found, func(m *Member, _ int) (Member, bool) {
		if m == nil {
			return Member{}, false
		}
		return *m, true
	}), nil
}
