package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(NewRedisClient(mr.Addr(), "", 0), "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newBadgerTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := OpenBadger("")
	require.NoError(t, err)
	s := NewBadgerStore(db, "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// forEachBackend runs the same contract checks against every backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("redis", func(t *testing.T) { fn(t, newRedisTestStore(t)) })
	t.Run("badger", func(t *testing.T) { fn(t, newBadgerTestStore(t)) })
}

func TestStore_ProfileLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		connectedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		_, err := s.LoadProfile(ctx, "conn-1")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SaveProfile(ctx, Profile{ID: "conn-1", Username: "anonymous", ConnectedAt: connectedAt}))
		require.NoError(t, s.SetUsername(ctx, "conn-1", "alice"))

		profile, err := s.LoadProfile(ctx, "conn-1")
		require.NoError(t, err)
		assert.Equal(t, Profile{ID: "conn-1", Username: "alice", ConnectedAt: connectedAt}, profile)

		require.NoError(t, s.DeleteProfile(ctx, "conn-1"))
		_, err = s.LoadProfile(ctx, "conn-1")
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, s.SetUsername(ctx, "conn-1", "ghost"), ErrNotFound)
		_, err = s.LoadProfile(ctx, "conn-1")
		require.ErrorIs(t, err, ErrNotFound, "renaming a deleted profile must not resurrect it")
	})
}

func TestStore_CreateRoomDoesNotOverwrite(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := Room{Name: "lobby", Password: "x", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

		created, err := s.CreateRoom(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.CreateRoom(ctx, Room{Name: "lobby", Password: "y", CreatedAt: time.Now()})
		require.NoError(t, err)
		assert.False(t, created)

		room, err := s.LoadRoom(ctx, "lobby")
		require.NoError(t, err)
		assert.Equal(t, first, room)

		_, err = s.LoadRoom(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_CreateRoomConcurrentlyCreatesOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const workers = 16

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.CreateRoom(ctx, Room{Name: "MainRoom", Password: fmt.Sprint(i), CreatedAt: time.Now()})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, created)
	})
}

func TestStore_HistoryKeepsAppendOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)

		for i, text := range []string{"A", "B", "C"} {
			require.NoError(t, s.AppendChat(ctx, "lobby", ChatEntry{
				Username: "bob", Text: text, Timestamp: at.Add(time.Duration(i) * time.Second),
			}))
		}
		require.NoError(t, s.AppendChat(ctx, "lobby2", ChatEntry{Username: "eve", Text: "other room", Timestamp: at}))

		chat, err := s.ChatHistory(ctx, "lobby")
		require.NoError(t, err)
		require.Len(t, chat, 3)
		assert.Equal(t, "A", chat[0].Text)
		assert.Equal(t, "B", chat[1].Text)
		assert.Equal(t, "C", chat[2].Text)
		assert.Equal(t, at.Add(2*time.Second), chat[2].Timestamp)

		stroke := StrokeEntry{Start: Point{X: 0.1, Y: 0.2}, End: Point{X: 0.3, Y: 0.4}, Color: "#ff0000", Width: 2}
		require.NoError(t, s.AppendStroke(ctx, "lobby", stroke))
		strokes, err := s.StrokeHistory(ctx, "lobby")
		require.NoError(t, err)
		assert.Equal(t, []StrokeEntry{stroke}, strokes)

		empty, err := s.StrokeHistory(ctx, "nowhere")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

// appendRaw writes record verbatim to a room log, bypassing the encoders.
func appendRaw(t *testing.T, s Store, kind, room, record string) {
	t.Helper()
	ctx := context.Background()
	switch st := s.(type) {
	case *RedisStore:
		key := st.chatKey(room)
		if kind == "draw" {
			key = st.drawKey(room)
		}
		require.NoError(t, st.client.RPush(ctx, key, record).Err())
	case *BadgerStore:
		require.NoError(t, st.appendRecord(st.listKey(kind, room), record))
	default:
		t.Fatalf("unsupported store %T", s)
	}
}

func TestStore_HistorySkipsMalformedRecords(t *testing.T) {
	backends := map[string]func(t *testing.T, log *zap.Logger) Store{
		"redis": func(t *testing.T, log *zap.Logger) Store {
			mr := miniredis.RunT(t)
			s := NewRedisStore(NewRedisClient(mr.Addr(), "", 0), "test:", WithLogger(log))
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"badger": func(t *testing.T, log *zap.Logger) Store {
			db, err := OpenBadger("")
			require.NoError(t, err)
			s := NewBadgerStore(db, "test:", WithLogger(log))
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			s := open(t, zap.New(core))
			ctx := context.Background()
			at := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)

			require.NoError(t, s.AppendChat(ctx, "MainRoom", ChatEntry{Username: "bob", Text: "before", Timestamp: at}))
			appendRaw(t, s, "chat", "MainRoom", "not a chat record")
			require.NoError(t, s.AppendChat(ctx, "MainRoom", ChatEntry{Username: "bob", Text: "after", Timestamp: at}))

			good := StrokeEntry{Start: Point{X: 0, Y: 0}, End: Point{X: 1, Y: 1}, Color: "red", Width: 1}
			require.NoError(t, s.AppendStroke(ctx, "MainRoom", good))
			appendRaw(t, s, "draw", "MainRoom", "0 0 1 1   1")
			require.NoError(t, s.AppendStroke(ctx, "MainRoom", good))

			chat, err := s.ChatHistory(ctx, "MainRoom")
			require.NoError(t, err)
			require.Len(t, chat, 2)
			assert.Equal(t, "before", chat[0].Text)
			assert.Equal(t, "after", chat[1].Text)

			strokes, err := s.StrokeHistory(ctx, "MainRoom")
			require.NoError(t, err)
			assert.Equal(t, []StrokeEntry{good, good}, strokes)

			assert.Equal(t, 1, logs.FilterMessage("skipping malformed chat record").Len())
			assert.Equal(t, 1, logs.FilterMessage("skipping malformed stroke record").Len())
		})
	}
}

func TestRecord_ChatTextMayContainSeparator(t *testing.T) {
	entry := ChatEntry{Username: "ann", Text: "a <*> b", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)}

	decoded, err := DecodeChat(EncodeChat(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)

	_, err = DecodeChat("no separators here")
	assert.Error(t, err)
}

func TestRecord_UsernameWithSeparatorLookalikes(t *testing.T) {
	entry := ChatEntry{Username: "<*x*>", Text: "hello", Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}

	decoded, err := DecodeChat(EncodeChat(entry))
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)

	// A username holding the full separator cannot be told apart from the
	// text; the registry refuses such names.
	entry.Username = "x" + ChatSeparator + "y"
	decoded, err = DecodeChat(EncodeChat(entry))
	require.NoError(t, err)
	assert.NotEqual(t, entry.Username, decoded.Username)
}

func TestRecord_StrokeColorWithSpaces(t *testing.T) {
	entry := StrokeEntry{Start: Point{X: 0, Y: 1}, End: Point{X: 0.5, Y: 0.25}, Color: "rgb(0, 128, 255)", Width: 3.5}

	record := EncodeStroke(entry)
	assert.Equal(t, "0 1 0.5 0.25 rgb(0, 128, 255) 3.5", record)

	decoded, err := DecodeStroke(record)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)

	_, err = DecodeStroke("0 1 red 2")
	assert.Error(t, err)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "cassandra"})
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestOpen_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := Open(context.Background(), Config{Backend: BackendRedis, RedisAddr: mr.Addr(), Timeout: time.Second})
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())
}
