package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/Tyrowin/sketchhub/internal/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

var errRedisDown = errors.New("dial tcp: connection refused")

// newMockService returns a service over a mock store that accepts profile
// writes and seeds the default room.
func newMockService(t *testing.T) (*Service, *mocks.MockStore) {
	t.Helper()
	st := mocks.NewMockStore(gomock.NewController(t))
	st.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	st.EXPECT().DeleteProfile(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	st.EXPECT().CreateRoom(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	return NewService(st, zap.NewNop(), Options{}), st
}

func TestRooms_CreateRoomValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Rooms.CreateRoom(ctx, " \t ", "", "x")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.Rooms.CreateRoom(ctx, "Main Room", "", "x")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	room, err := svc.Rooms.CreateRoom(ctx, "art club", " p w ", "x")
	require.NoError(t, err)
	assert.Equal(t, "artclub", room.Name)
	assert.Equal(t, "pw", room.Password)
}

func TestRooms_LeaveDefaultRoomDenied(t *testing.T) {
	svc, _ := newTestService(t)
	c := connect(t, svc, "c")

	_, _, err := svc.Rooms.LeaveRoom(context.Background(), c.ID(), DefaultRoomName)
	assert.ErrorIs(t, err, ErrPermissionDenied)
	_, _, err = svc.Rooms.LeaveRoom(context.Background(), c.ID(), " Main Room ")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.True(t, svc.Registry.IsMember(c.ID(), DefaultRoomName))

	_, left, err := svc.Rooms.LeaveRoom(context.Background(), c.ID(), "never-joined")
	require.NoError(t, err)
	assert.False(t, left)
}

func TestRooms_LeaveRoomNormalizesName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Rooms.CreateRoom(ctx, "my room", "", "setup")
	require.NoError(t, err)
	c := connect(t, svc, "c")
	_, err = svc.Rooms.JoinRoom(ctx, c.ID(), "my room", "", nil)
	require.NoError(t, err)

	room, left, err := svc.Rooms.LeaveRoom(ctx, c.ID(), "my room")
	require.NoError(t, err)
	assert.True(t, left)
	assert.Equal(t, "myroom", room)
	assert.False(t, svc.Registry.IsMember(c.ID(), "myroom"))
}

func TestRooms_PostToForeignRoomsAllocatesNoSequencer(t *testing.T) {
	svc, _ := newTestService(t)
	c := connect(t, svc, "c")

	for i := range 1000 {
		c.send(t, EventNewMessage, fmt.Sprintf(`{"room":"junk-%d","msg":"x"}`, i))
		c.send(t, EventDrawLine, fmt.Sprintf(`{"room":"junk-%d","line":[{"x":0,"y":0},{"x":1,"y":1}],"color":"red","lineWidth":1}`, i))
	}

	svc.Rooms.seqMu.Lock()
	defer svc.Rooms.seqMu.Unlock()
	assert.Len(t, svc.Rooms.sequencers, 1)
	assert.Contains(t, svc.Rooms.sequencers, DefaultRoomName)
}

func TestRooms_PostStrokeNormalizesColor(t *testing.T) {
	svc, st := newTestService(t)
	c := connect(t, svc, "c")
	ctx := context.Background()

	line := DrawLine{Room: DefaultRoomName, Line: []Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, LineWidth: 1}

	line.Color = " \t "
	assert.ErrorIs(t, svc.Rooms.PostStroke(ctx, c.ID(), line), ErrInvalidArgument)

	line.Color = " rgb(0,  128,\t255) "
	require.NoError(t, svc.Rooms.PostStroke(ctx, c.ID(), line))

	strokes, err := st.StrokeHistory(ctx, DefaultRoomName)
	require.NoError(t, err)
	require.Len(t, strokes, 1)
	assert.Equal(t, "rgb(0, 128, 255)", strokes[0].Color)
	assert.Equal(t, "rgb(0, 128, 255)", c.out.named(EventDrawLine)[0].Data.(DrawLine).Color)
}

func TestRooms_PostStrokeRejectsMalformedLine(t *testing.T) {
	svc, _ := newTestService(t)
	c := connect(t, svc, "c")

	err := svc.Rooms.PostStroke(context.Background(), c.ID(), DrawLine{Room: DefaultRoomName, Line: []Point{{X: 0, Y: 0}}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRooms_AppendFailureStillBroadcasts(t *testing.T) {
	svc, st := newMockService(t)
	st.EXPECT().StrokeHistory(gomock.Any(), DefaultRoomName).Return(nil, nil)
	st.EXPECT().ChatHistory(gomock.Any(), DefaultRoomName).Return(nil, nil)
	st.EXPECT().AppendChat(gomock.Any(), DefaultRoomName, gomock.Any()).Return(errRedisDown)
	st.EXPECT().AppendStroke(gomock.Any(), DefaultRoomName, gomock.Any()).Return(errRedisDown)

	c := connect(t, svc, "c")

	c.send(t, EventNewMessage, `{"room":"MainRoom","msg":"still here"}`)
	c.send(t, EventDrawLine, `{"room":"MainRoom","line":[{"x":0,"y":0},{"x":1,"y":1}],"color":"red","lineWidth":1}`)

	assert.Equal(t, []string{EventNewMessage, EventDrawLine}, c.out.names())
}

func TestRooms_HistoryFailureAbortsJoin(t *testing.T) {
	svc, st := newMockService(t)
	st.EXPECT().LoadRoom(gomock.Any(), "lobby").Return(store.Room{Name: "lobby"}, nil)
	st.EXPECT().StrokeHistory(gomock.Any(), "lobby").Return(nil, nil)
	st.EXPECT().ChatHistory(gomock.Any(), "lobby").Return(nil, errRedisDown)

	_, err := svc.Registry.Create(context.Background(), "c", &recorder{})
	require.NoError(t, err)

	replayed := false
	_, err = svc.Rooms.JoinRoom(context.Background(), "c", "lobby", "", func(string, History) { replayed = true })

	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errRedisDown)
	assert.False(t, replayed)
	assert.False(t, svc.Registry.IsMember("c", "lobby"))
}

func TestRooms_LoadRoomFailureIsNotACredentialError(t *testing.T) {
	svc, st := newMockService(t)
	st.EXPECT().LoadRoom(gomock.Any(), "lobby").Return(store.Room{}, errRedisDown)

	_, err := svc.Registry.Create(context.Background(), "c", &recorder{})
	require.NoError(t, err)

	_, err = svc.Rooms.JoinRoom(context.Background(), "c", "lobby", "", nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrWrongCredentials)
}

func TestConnect_FailsWhenDefaultRoomCannotBeSeeded(t *testing.T) {
	st := mocks.NewMockStore(gomock.NewController(t))
	st.EXPECT().SaveProfile(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().CreateRoom(gomock.Any(), gomock.Any()).Return(false, errRedisDown)
	st.EXPECT().DeleteProfile(gomock.Any(), "c").Return(nil)
	svc := NewService(st, zap.NewNop(), Options{})

	out := &recorder{}
	d := svc.NewDispatcher("c", out)
	err := d.Connect(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)

	d.Disconnect(context.Background())
	assert.Equal(t, []string{EventConnected}, out.names())
	_, err = svc.Registry.Rooms("c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ProfileStoreFailure(t *testing.T) {
	svc, st := newMockService(t)
	st.EXPECT().LoadProfile(gomock.Any(), "remote").Return(store.Profile{}, errRedisDown)

	_, err := svc.Registry.GetProfile(context.Background(), "remote")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
