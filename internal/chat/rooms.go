package chat

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/sketchhub/internal/store"
	"go.uber.org/zap"
)

// DefaultRoomName is the room every session joins on connect unless
// configured otherwise.
const DefaultRoomName = "MainRoom"

// History is the replayable content of a room.
type History struct {
	Chat    []store.ChatEntry
	Strokes []store.StrokeEntry
}

// ReplayFunc receives the history of a room a session just joined. It runs
// before any later post to that room is broadcast and must not block.
type ReplayFunc func(room string, history History)

// Rooms owns room metadata, membership changes, and the ordered posting of
// chat messages and strokes.
//
// Each room has a sequencer mutex. Joining (history read, membership add,
// replay) and posting (membership check, append, broadcast) both hold it, so
// a joiner sees every message exactly once: either in its replay or live,
// and always after the replay.
type Rooms struct {
	store       store.Store
	registry    *Registry
	broadcaster *Broadcaster
	defaultRoom string
	log         *zap.Logger
	now         func() time.Time

	seqMu      sync.Mutex
	sequencers map[string]*sync.Mutex
}

// NewRooms creates the room manager. defaultRoom is seeded lazily.
func NewRooms(st store.Store, registry *Registry, broadcaster *Broadcaster, defaultRoom string, log *zap.Logger) *Rooms {
	if defaultRoom == "" {
		defaultRoom = DefaultRoomName
	}
	return &Rooms{
		store:       st,
		registry:    registry,
		broadcaster: broadcaster,
		defaultRoom: defaultRoom,
		log:         log,
		now:         time.Now,
		sequencers:  make(map[string]*sync.Mutex),
	}
}

// DefaultRoom returns the name of the room every session auto-joins.
func (r *Rooms) DefaultRoom() string {
	return r.defaultRoom
}

// normalizeName strips all whitespace from a room name or password.
func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// normalizeColor collapses whitespace runs in a stroke color to single
// spaces, the form the stroke log can hold.
func normalizeColor(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// EnsureDefaultRoom creates the default room with an empty password if it
// does not exist. The store performs the check-then-create atomically.
func (r *Rooms) EnsureDefaultRoom(ctx context.Context) error {
	_, err := r.store.CreateRoom(ctx, store.Room{Name: r.defaultRoom, CreatedAt: r.now().UTC()})
	if err != nil {
		return storeFailure("seed default room", err)
	}
	return nil
}

// CreateRoom persists a new room. It does not join the requester.
func (r *Rooms) CreateRoom(ctx context.Context, name, password, requestedBy string) (store.Room, error) {
	name = normalizeName(name)
	if name == "" {
		return store.Room{}, ErrInvalidArgument
	}
	if name == r.defaultRoom {
		return store.Room{}, ErrAlreadyExists
	}

	room := store.Room{Name: name, Password: normalizeName(password), CreatedAt: r.now().UTC()}
	created, err := r.store.CreateRoom(ctx, room)
	if err != nil {
		return store.Room{}, storeFailure("create room", err)
	}
	if !created {
		return store.Room{}, ErrAlreadyExists
	}

	r.log.Info("roomCreated", zap.String("room", name), zap.String("socket", requestedBy))
	return room, nil
}

// JoinRoom adds the session to room and hands the room history to replay.
// The default room ignores the password. For every other room an unknown
// name and a wrong password both yield ErrWrongCredentials. Joining a room
// the session already belongs to succeeds and replays the history again.
// It returns the normalized room name.
func (r *Rooms) JoinRoom(ctx context.Context, connectionID, name, password string, replay ReplayFunc) (string, error) {
	name = normalizeName(name)
	if name == "" {
		return "", ErrWrongCredentials
	}

	if name == r.defaultRoom {
		if err := r.EnsureDefaultRoom(ctx); err != nil {
			return "", err
		}
	} else if err := r.checkCredentials(ctx, name, normalizeName(password)); err != nil {
		return "", err
	}

	unlock := r.lockRoom(name)
	defer unlock()

	history, err := r.history(ctx, name)
	if err != nil {
		return "", err
	}
	if err := r.registry.join(connectionID, name); err != nil {
		return "", err
	}
	if replay != nil {
		replay(name, history)
	}
	return name, nil
}

func (r *Rooms) checkCredentials(ctx context.Context, name, password string) error {
	room, err := r.store.LoadRoom(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		r.log.Debug("join refused: unknown room", zap.String("room", name))
		return ErrWrongCredentials
	}
	if err != nil {
		return storeFailure("load room", err)
	}
	if subtle.ConstantTimeCompare([]byte(room.Password), []byte(password)) != 1 {
		r.log.Debug("join refused: wrong password", zap.String("room", name))
		return ErrWrongCredentials
	}
	return nil
}

// LeaveRoom removes the session from room and reports whether it was a
// member, along with the normalized room name. The default room cannot be
// left.
func (r *Rooms) LeaveRoom(_ context.Context, connectionID, name string) (string, bool, error) {
	name = normalizeName(name)
	if name == r.defaultRoom {
		return name, false, ErrPermissionDenied
	}
	left, err := r.registry.leave(connectionID, name)
	return name, left, err
}

// ListRooms returns the session's current membership.
func (r *Rooms) ListRooms(connectionID string) ([]string, error) {
	return r.registry.Rooms(connectionID)
}

// PostMessage appends a chat message to room and broadcasts it. Sessions
// that are not members get ErrNotMember and nothing is stored or sent. A
// failed append is logged and the message is still broadcast.
func (r *Rooms) PostMessage(ctx context.Context, connectionID, room, text string) (ChatMessage, error) {
	// Checked before taking the sequencer so that posts to rooms the session
	// never joined do not allocate one; checked again under it.
	if !r.registry.IsMember(connectionID, room) {
		return ChatMessage{}, ErrNotMember
	}

	unlock := r.lockRoom(room)
	defer unlock()

	if !r.registry.IsMember(connectionID, room) {
		return ChatMessage{}, ErrNotMember
	}
	username, ok := r.registry.username(connectionID)
	if !ok {
		return ChatMessage{}, ErrNotFound
	}

	msg := ChatMessage{Room: room, Username: username, Msg: text, Date: r.now().UTC()}
	err := r.store.AppendChat(ctx, room, store.ChatEntry{Username: username, Text: text, Timestamp: msg.Date})
	if err != nil {
		r.log.Error("persisting chat message failed", zap.String("room", room), zap.Error(err))
	}

	r.broadcaster.BroadcastToRoom(room, Event{Name: EventNewMessage, Data: msg})
	return msg, nil
}

// PostStroke appends a stroke to its room and broadcasts it, with the same
// membership gate and failure handling as PostMessage.
func (r *Rooms) PostStroke(ctx context.Context, connectionID string, line DrawLine) error {
	if len(line.Line) != 2 {
		return ErrInvalidArgument
	}
	line.Color = normalizeColor(line.Color)
	if line.Color == "" {
		return ErrInvalidArgument
	}
	if !r.registry.IsMember(connectionID, line.Room) {
		return ErrNotMember
	}

	unlock := r.lockRoom(line.Room)
	defer unlock()

	if !r.registry.IsMember(connectionID, line.Room) {
		return ErrNotMember
	}

	if err := r.store.AppendStroke(ctx, line.Room, strokeEntry(line)); err != nil {
		r.log.Error("persisting stroke failed", zap.String("room", line.Room), zap.Error(err))
	}

	r.broadcaster.BroadcastToRoom(line.Room, Event{Name: EventDrawLine, Data: line})
	return nil
}

func (r *Rooms) history(ctx context.Context, room string) (History, error) {
	strokes, err := r.store.StrokeHistory(ctx, room)
	if err != nil {
		return History{}, storeFailure("load stroke history", err)
	}
	chat, err := r.store.ChatHistory(ctx, room)
	if err != nil {
		return History{}, storeFailure("load chat history", err)
	}
	return History{Chat: chat, Strokes: strokes}, nil
}

func (r *Rooms) lockRoom(room string) func() {
	r.seqMu.Lock()
	mu, ok := r.sequencers[room]
	if !ok {
		mu = &sync.Mutex{}
		r.sequencers[room] = mu
	}
	r.seqMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func strokeEntry(line DrawLine) store.StrokeEntry {
	return store.StrokeEntry{
		Start: store.Point{X: line.Line[0].X, Y: line.Line[0].Y},
		End:   store.Point{X: line.Line[1].X, Y: line.Line[1].Y},
		Color: line.Color,
		Width: line.LineWidth,
	}
}

func drawLineFromEntry(room string, entry store.StrokeEntry) DrawLine {
	return DrawLine{
		Room:      room,
		Line:      []Point{{X: entry.Start.X, Y: entry.Start.Y}, {X: entry.End.X, Y: entry.End.Y}},
		Color:     entry.Color,
		LineWidth: entry.Width,
	}
}
