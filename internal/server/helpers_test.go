package server

import (
	"sync"
	"testing"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *chat.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	st := store.NewRedisStore(store.NewRedisClient(mr.Addr(), "", 0), "test:")
	t.Cleanup(func() { _ = st.Close() })
	return chat.NewService(st, zap.NewNop(), chat.Options{})
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) *Server {
	t.Helper()
	if cfg == nil {
		cfg = NewConfig()
	}
	return New(*cfg, newTestService(t), zap.NewNop(), opts...)
}

// eventLog is a chat.Sender collecting events in memory.
type eventLog struct {
	mu     sync.Mutex
	events []chat.Event
}

func (l *eventLog) Send(evt chat.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
	return nil
}

func (l *eventLog) SendBatch(evts []chat.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evts...)
	return nil
}

func (l *eventLog) named(name string) []chat.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []chat.Event
	for _, evt := range l.events {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}
