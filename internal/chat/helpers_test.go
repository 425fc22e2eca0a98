package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errBufferFull = errors.New("send buffer full")

// recorder is a Sender that keeps every event it accepts. When capacity is
// set it behaves like a bounded connection queue that is never drained:
// each Send or SendBatch takes one slot.
type recorder struct {
	mu       sync.Mutex
	events   []Event
	full     bool
	capacity int
	units    int
}

func (r *recorder) Send(evt Event) error {
	return r.SendBatch([]Event{evt})
}

func (r *recorder) SendBatch(evts []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full || (r.capacity > 0 && r.units >= r.capacity) {
		return errBufferFull
	}
	r.units++
	r.events = append(r.events, evts...)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) names() []string {
	var names []string
	for _, evt := range r.all() {
		names = append(names, evt.Name)
	}
	return names
}

func (r *recorder) named(name string) []Event {
	var out []Event
	for _, evt := range r.all() {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.units = 0
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewRedisStore(store.NewRedisClient(mr.Addr(), "", 0), "test:")
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return NewService(st, zap.NewNop(), Options{}), st
}

type client struct {
	*Dispatcher
	out *recorder
}

// connect opens a session and clears the events produced by the handshake.
func connect(t *testing.T, svc *Service, id string) client {
	t.Helper()
	out := &recorder{}
	d := svc.NewDispatcher(id, out)
	require.NoError(t, d.Connect(context.Background()))
	out.reset()
	return client{Dispatcher: d, out: out}
}

func (c client) send(t *testing.T, name string, data string) {
	t.Helper()
	c.Handle(context.Background(), []byte(`{"event":"`+name+`","data":`+data+`}`))
}

// assertConsistent checks that both directions of the membership relation
// agree.
func assertConsistent(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.sessions {
		for room := range s.rooms {
			_, ok := r.members[room][id]
			require.Truef(t, ok, "session %s lists %s but the room does not list it", id, room)
		}
	}
	for room, members := range r.members {
		require.NotEmptyf(t, members, "empty member set kept for %s", room)
		for id := range members {
			s, ok := r.sessions[id]
			require.Truef(t, ok, "room %s lists destroyed session %s", room, id)
			_, ok = s.rooms[room]
			require.Truef(t, ok, "room %s lists %s but the session does not list it", room, id)
		}
	}
}
