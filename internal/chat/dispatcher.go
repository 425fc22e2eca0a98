package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// State is the lifecycle stage of one connection.
type State int32

const (
	StateConnected State = iota
	StateHistoryPending
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateHistoryPending:
		return "history-pending"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Dispatcher binds the inbound events of one connection to the core and
// emits the outbound events. Connect, Handle and Disconnect are meant to be
// called from the connection's read loop, so events of one connection are
// handled one at a time in arrival order. Disconnect may additionally be
// called from elsewhere; only the first call has an effect.
type Dispatcher struct {
	id     string
	sender Sender
	svc    *Service
	log    *zap.Logger

	state      atomic.Int32
	disconnect sync.Once
}

// NewDispatcher creates the state machine for connection id.
func (s *Service) NewDispatcher(id string, sender Sender) *Dispatcher {
	return &Dispatcher{
		id:     id,
		sender: sender,
		svc:    s,
		log:    s.log.With(zap.String("socket", id)),
	}
}

// ID returns the connection id.
func (d *Dispatcher) ID() string { return d.id }

// State returns the current lifecycle stage.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Connect creates the session, joins the default room, replays its history,
// announces the new member and answers with the room's member list. An error
// means the connection could not be set up and should be closed.
func (d *Dispatcher) Connect(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateConnected), int32(StateHistoryPending)) {
		return fmt.Errorf("connect in state %s", d.State())
	}

	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	if _, err := d.svc.Registry.Create(opCtx, d.id, d.sender); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	d.log.Info("userConnected")
	d.emit(Event{Name: EventConnected, Data: welcomeText})

	room, err := d.svc.Rooms.JoinRoom(opCtx, d.id, d.svc.Rooms.DefaultRoom(), "", d.replay)
	if err != nil {
		return fmt.Errorf("join default room: %w", err)
	}
	d.announceJoin(room)

	if !d.state.CompareAndSwap(int32(StateHistoryPending), int32(StateActive)) {
		return fmt.Errorf("connection closed during setup")
	}

	d.sendMembers(opCtx, room)
	return nil
}

// Handle decodes and processes one raw inbound frame.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		d.log.Warn("invalid frame", zap.Error(err))
		return
	}
	d.HandleEvent(ctx, in)
}

// HandleEvent processes one inbound event. Events are ignored unless the
// connection is active. Store failures are logged and the event is dropped.
func (d *Dispatcher) HandleEvent(ctx context.Context, in Inbound) {
	if d.State() != StateActive {
		d.log.Debug("ignoring event", zap.String("event", in.Name), zap.Stringer("state", d.State()))
		return
	}

	opCtx, cancel := d.opContext(ctx)
	defer cancel()

	var err error
	switch in.Name {
	case EventCreateRoom:
		err = d.onCreateRoom(opCtx, in.Data)
	case EventSubscribe:
		err = d.onSubscribe(opCtx, in.Data)
	case EventUnsubscribe:
		err = d.onUnsubscribe(opCtx, in.Data)
	case EventGetRooms:
		err = d.onGetRooms()
	case EventGetUsersInRoom:
		err = d.onGetUsersInRoom(opCtx, in.Data)
	case EventSetNickname:
		err = d.onSetNickname(opCtx, in.Data)
	case EventNewMessage:
		err = d.onNewMessage(opCtx, in.Data)
	case EventDrawLine:
		err = d.onDrawLine(opCtx, in.Data)
	default:
		d.log.Warn("unknown event", zap.String("event", in.Name))
		return
	}
	if err != nil {
		d.log.Warn("event dropped", zap.String("event", in.Name), zap.Error(err))
	}
}

// Disconnect destroys the session and announces the departure to every room
// it belonged to, using its last known username. Calls after the first are
// no-ops.
func (d *Dispatcher) Disconnect(ctx context.Context) {
	d.disconnect.Do(func() {
		d.state.Store(int32(StateDisconnected))

		opCtx, cancel := d.opContext(ctx)
		defer cancel()

		sess, ok := d.svc.Registry.Destroy(opCtx, d.id)
		if !ok {
			return
		}
		d.log.Info("userDisconnected", zap.String("username", sess.Username))
		for _, room := range sess.JoinedRooms {
			d.svc.Broadcaster.BroadcastToRoom(room, Event{Name: EventUserLeavesRoom, Data: Presence{
				Room: room, Username: sess.Username, Msg: leftText, ID: d.id,
			}})
		}
	})
}

func (d *Dispatcher) onCreateRoom(ctx context.Context, data json.RawMessage) error {
	var req RoomsRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}

	for _, creds := range req.Rooms {
		room, err := d.svc.Rooms.CreateRoom(ctx, creds.Name, creds.Password, d.id)
		switch {
		case errors.Is(err, ErrAlreadyExists):
			d.emit(Event{Name: EventCreateRoomFailed, Data: FailureNotice{Message: roomExistsText}})
			continue
		case errors.Is(err, ErrInvalidArgument):
			d.emit(Event{Name: EventCreateRoomFailed, Data: FailureNotice{Message: invalidRoomNameText}})
			continue
		case err != nil:
			return err
		}

		if err := d.join(ctx, room.Name, room.Password); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) onSubscribe(ctx context.Context, data json.RawMessage) error {
	var req RoomsRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}

	for _, creds := range req.Rooms {
		if err := d.join(ctx, creds.Name, creds.Password); err != nil {
			return err
		}
	}
	return nil
}

// join joins one room and announces it. Credential failures are answered
// with the generic subscriptionFailed; other failures are returned.
func (d *Dispatcher) join(ctx context.Context, name, password string) error {
	room, err := d.svc.Rooms.JoinRoom(ctx, d.id, name, password, d.replay)
	if errors.Is(err, ErrWrongCredentials) {
		d.emit(Event{Name: EventSubscriptionFailed, Data: FailureNotice{Message: wrongCredentialsText}})
		return nil
	}
	if err != nil {
		return err
	}
	d.announceJoin(room)
	return nil
}

// replay runs under the room's sequencer lock: the confirmation and history
// are queued as one batch ahead of any later live event for the room.
func (d *Dispatcher) replay(room string, history History) {
	batch := make([]Event, 0, 1+len(history.Strokes)+len(history.Chat))
	batch = append(batch, Event{Name: EventSubscriptionConfirmed, Data: RoomNotice{Room: room}})
	for _, stroke := range history.Strokes {
		batch = append(batch, Event{Name: EventDrawLine, Data: drawLineFromEntry(room, stroke)})
	}
	for _, entry := range history.Chat {
		batch = append(batch, Event{Name: EventNewMessage, Data: ChatMessage{
			Room: room, Username: entry.Username, Msg: entry.Text, Date: entry.Timestamp,
		}})
	}

	if d.State() == StateDisconnected {
		return
	}
	if err := d.sender.SendBatch(batch); err != nil {
		d.log.Warn("history replay failed", zap.String("room", room), zap.Int("events", len(batch)), zap.Error(err))
	}
}

func (d *Dispatcher) announceJoin(room string) {
	username, _ := d.svc.Registry.username(d.id)
	d.log.Info("userJoinsRoom", zap.String("room", room), zap.String("username", username))
	d.svc.Broadcaster.BroadcastToRoom(room, Event{Name: EventUserJoinsRoom, Data: Presence{
		Room: room, Username: username, Msg: joinedText, ID: d.id,
	}})
}

func (d *Dispatcher) onUnsubscribe(ctx context.Context, data json.RawMessage) error {
	var req UnsubscribeRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}

	username, _ := d.svc.Registry.username(d.id)
	for _, requested := range req.Rooms {
		room, left, err := d.svc.Rooms.LeaveRoom(ctx, d.id, requested)
		if errors.Is(err, ErrPermissionDenied) {
			d.log.Debug("refusing to leave default room", zap.String("room", room))
			continue
		}
		if err != nil {
			return err
		}

		d.emit(Event{Name: EventUnsubscriptionConfirmed, Data: RoomNotice{Room: room}})
		if !left {
			continue
		}
		d.log.Info("userLeavesRoom", zap.String("room", room), zap.String("username", username))
		d.svc.Broadcaster.BroadcastToRoom(room, Event{Name: EventUserLeavesRoom, Data: Presence{
			Room: room, Username: username, Msg: leftText, ID: d.id,
		}})
	}
	return nil
}

func (d *Dispatcher) onGetRooms() error {
	rooms, err := d.svc.Rooms.ListRooms(d.id)
	if err != nil {
		return err
	}
	d.log.Info("userGetsRooms")
	d.emit(Event{Name: EventRoomsReceived, Data: RoomList{Rooms: rooms}})
	return nil
}

func (d *Dispatcher) onGetUsersInRoom(ctx context.Context, data json.RawMessage) error {
	var req UsersInRoomRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}
	d.sendMembers(ctx, req.Room)
	return nil
}

func (d *Dispatcher) sendMembers(ctx context.Context, room string) {
	members, err := d.svc.Broadcaster.GatherMembers(ctx, room)
	if err != nil {
		d.log.Warn("gathering members failed", zap.String("room", room), zap.Error(err))
		return
	}
	d.emit(Event{Name: EventUsersInRoom, Data: MemberList{Users: members}})
}

func (d *Dispatcher) onSetNickname(ctx context.Context, data json.RawMessage) error {
	var req NicknameRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}

	previous, err := d.svc.Registry.SetUsername(ctx, d.id, req.Username)
	if err != nil {
		return err
	}
	current, _ := d.svc.Registry.username(d.id)
	rooms, err := d.svc.Registry.Rooms(d.id)
	if err != nil {
		return err
	}

	d.log.Info("userSetsNickname", zap.String("oldUsername", previous), zap.String("newUsername", current))
	for _, room := range rooms {
		d.svc.Broadcaster.BroadcastToRoom(room, Event{Name: EventUserNicknameUpdated, Data: NicknameUpdate{
			Room: room, OldUsername: previous, NewUsername: current, ID: d.id,
		}})
	}
	return nil
}

func (d *Dispatcher) onNewMessage(ctx context.Context, data json.RawMessage) error {
	var req MessageRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}

	msg, err := d.svc.Rooms.PostMessage(ctx, d.id, req.Room, req.Msg)
	if errors.Is(err, ErrNotMember) {
		d.log.Debug("message to foreign room dropped", zap.String("room", req.Room))
		return nil
	}
	if err != nil {
		return err
	}
	d.log.Info("newMessage", zap.String("room", msg.Room), zap.String("username", msg.Username))
	return nil
}

func (d *Dispatcher) onDrawLine(ctx context.Context, data json.RawMessage) error {
	var line DrawLine
	if err := d.decode(data, &line); err != nil {
		return err
	}

	err := d.svc.Rooms.PostStroke(ctx, d.id, line)
	if errors.Is(err, ErrNotMember) {
		d.log.Debug("stroke to foreign room dropped", zap.String("room", line.Room))
		return nil
	}
	return err
}

func (d *Dispatcher) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidArgument)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := d.svc.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

// emit sends to this connection only. Results of work that finishes after
// the connection went away are discarded.
func (d *Dispatcher) emit(evt Event) {
	if d.State() == StateDisconnected {
		return
	}
	if err := d.sender.Send(evt); err != nil {
		d.log.Warn("emit failed", zap.String("event", evt.Name), zap.Error(err))
	}
}

func (d *Dispatcher) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.svc.storeTimeout)
}
