package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultUsername is the display name of a session that never set one.
const DefaultUsername = "anonymous"

// Session is the server-side state of one live connection.
type Session struct {
	ID          string
	Username    string
	ConnectedAt time.Time
	JoinedRooms []string
}

type session struct {
	id          string
	username    string
	connectedAt time.Time
	rooms       map[string]struct{}
	sender      Sender
}

func (s *session) snapshot() Session {
	rooms := lo.Keys(s.rooms)
	slices.Sort(rooms)
	return Session{
		ID:          s.id,
		Username:    s.username,
		ConnectedAt: s.connectedAt,
		JoinedRooms: rooms,
	}
}

// Registry tracks live sessions and the live membership of every room. Both
// directions of the membership relation are kept in one structure behind a
// single mutex, so a broadcast never observes a half-applied join or leave.
//
// Lock order: a room sequencer lock (see Rooms) may be held while taking mu;
// mu is never held while taking a sequencer lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	members  map[string]map[string]*session

	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewRegistry creates an empty registry persisting profiles to st.
func NewRegistry(st store.Store, log *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		members:  make(map[string]map[string]*session),
		store:    st,
		log:      log,
		now:      time.Now,
	}
}

// Create registers a new session for connectionID. Registering the same id
// twice is rejected with ErrAlreadyExists. A failure to persist the profile
// is logged; the live session is still created.
func (r *Registry) Create(ctx context.Context, connectionID string, sender Sender) (Session, error) {
	r.mu.Lock()
	if _, exists := r.sessions[connectionID]; exists {
		r.mu.Unlock()
		return Session{}, ErrAlreadyExists
	}
	s := &session{
		id:          connectionID,
		username:    DefaultUsername,
		connectedAt: r.now().UTC(),
		rooms:       make(map[string]struct{}),
		sender:      sender,
	}
	r.sessions[connectionID] = s
	snap := s.snapshot()
	r.mu.Unlock()

	err := r.store.SaveProfile(ctx, store.Profile{
		ID:          snap.ID,
		Username:    snap.Username,
		ConnectedAt: snap.ConnectedAt,
	})
	if err != nil {
		r.log.Error("persisting profile failed", zap.String("socket", connectionID), zap.Error(err))
	}
	return snap, nil
}

// GetProfile returns the session for connectionID, reading the store when the
// session is not live in this process.
func (r *Registry) GetProfile(ctx context.Context, connectionID string) (Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[connectionID]
	var snap Session
	if ok {
		snap = s.snapshot()
	}
	r.mu.RUnlock()
	if ok {
		return snap, nil
	}

	profile, err := r.store.LoadProfile(ctx, connectionID)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, storeFailure("load profile", err)
	}
	return Session{ID: profile.ID, Username: profile.Username, ConnectedAt: profile.ConnectedAt}, nil
}

// SetUsername renames a session and returns its previous username. Names
// must be non-empty once trimmed and must not contain the chat log
// separator; there is no uniqueness check.
func (r *Registry) SetUsername(ctx context.Context, connectionID, newName string) (string, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" || strings.Contains(newName, store.ChatSeparator) {
		return "", ErrInvalidArgument
	}

	r.mu.Lock()
	s, ok := r.sessions[connectionID]
	if !ok {
		r.mu.Unlock()
		return "", ErrNotFound
	}
	previous := s.username
	s.username = newName
	r.mu.Unlock()

	if err := r.store.SetUsername(ctx, connectionID, newName); err != nil {
		r.log.Error("persisting username failed", zap.String("socket", connectionID), zap.Error(err))
	}
	return previous, nil
}

// Destroy removes the session and its membership in every room, and returns
// the final state so the caller can announce the departure. It reports false
// when the session was already gone.
func (r *Registry) Destroy(ctx context.Context, connectionID string) (Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[connectionID]
	if !ok {
		r.mu.Unlock()
		return Session{}, false
	}
	snap := s.snapshot()
	for room := range s.rooms {
		r.removeMemberLocked(room, connectionID)
	}
	delete(r.sessions, connectionID)
	r.mu.Unlock()

	if err := r.store.DeleteProfile(ctx, connectionID); err != nil {
		r.log.Error("deleting profile failed", zap.String("socket", connectionID), zap.Error(err))
	}
	return snap, true
}

// Rooms returns the sorted membership of a live session.
func (r *Registry) Rooms(connectionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.snapshot().JoinedRooms, nil
}

// IsMember reports whether the session currently belongs to room.
func (r *Registry) IsMember(connectionID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[room][connectionID]
	return ok
}

func (r *Registry) join(connectionID, room string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return ErrNotFound
	}
	s.rooms[room] = struct{}{}
	if r.members[room] == nil {
		r.members[room] = make(map[string]*session)
	}
	r.members[room][connectionID] = s
	return nil
}

func (r *Registry) leave(connectionID, room string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return false, ErrNotFound
	}
	if _, member := s.rooms[room]; !member {
		return false, nil
	}
	delete(s.rooms, room)
	r.removeMemberLocked(room, connectionID)
	return true, nil
}

func (r *Registry) removeMemberLocked(room, connectionID string) {
	delete(r.members[room], connectionID)
	if len(r.members[room]) == 0 {
		delete(r.members, room)
	}
}

func (r *Registry) username(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[connectionID]
	if !ok {
		return "", false
	}
	return s.username, true
}

func (r *Registry) memberIDs(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := lo.Keys(r.members[room])
	slices.Sort(ids)
	return ids
}

// liveRooms lists every room with at least one live member.
func (r *Registry) liveRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := lo.Keys(r.members)
	slices.Sort(rooms)
	return rooms
}

// eachMember calls fn for every member of room while holding the read lock,
// so membership cannot change during the fan-out. fn must not block.
func (r *Registry) eachMember(room string, fn func(id string, sender Sender)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.members[room] {
		fn(id, s.sender)
	}
}
