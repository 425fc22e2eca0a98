package chat

import (
	"encoding/json"
	"time"
)

// Protocol event names, in both directions.
const (
	EventConnected               = "connected"
	EventCreateRoom              = "createRoom"
	EventCreateRoomFailed        = "createRoomFailed"
	EventSubscribe               = "subscribe"
	EventSubscriptionConfirmed   = "subscriptionConfirmed"
	EventSubscriptionFailed      = "subscriptionFailed"
	EventUnsubscribe             = "unsubscribe"
	EventUnsubscriptionConfirmed = "unsubscriptionConfirmed"
	EventGetRooms                = "getRooms"
	EventRoomsReceived           = "roomsReceived"
	EventGetUsersInRoom          = "getUsersInRoom"
	EventUsersInRoom             = "usersInRoom"
	EventSetNickname             = "setNickname"
	EventUserNicknameUpdated     = "userNicknameUpdated"
	EventNewMessage              = "newMessage"
	EventDrawLine                = "drawLine"
	EventUserJoinsRoom           = "userJoinsRoom"
	EventUserLeavesRoom          = "userLeavesRoom"
)

const (
	welcomeText          = "Welcome to the chat server"
	joinedText           = "----- Joined the room -----"
	leftText             = "----- Left the room -----"
	roomExistsText       = "Room already exists"
	invalidRoomNameText  = "Invalid room name"
	wrongCredentialsText = "Room name or password is wrong"

	// ServerBot is the author of operator broadcasts.
	ServerBot = "ServerBot"
)

// Event is one outbound protocol message.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Inbound is one protocol message received from a client. Data is decoded
// once the event name is known.
type Inbound struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Sender delivers events to one connection. Neither method may block; a
// connection that cannot keep up reports an error and is dropped by its
// transport.
type Sender interface {
	Send(evt Event) error
	// SendBatch delivers evts in order as a single unit of the connection's
	// queue, however many events it holds. History replay uses it so that a
	// long history does not overflow the queue.
	SendBatch(evts []Event) error
}

type RoomCredentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type RoomsRequest struct {
	Rooms []RoomCredentials `json:"rooms"`
}

type UnsubscribeRequest struct {
	Rooms []string `json:"rooms"`
}

type UsersInRoomRequest struct {
	Room string `json:"room" validate:"required"`
}

type NicknameRequest struct {
	Username string `json:"username"`
}

type MessageRequest struct {
	Room string `json:"room" validate:"required"`
	Msg  string `json:"msg"`
}

type Point struct {
	X float64 `json:"x" validate:"gte=0,lte=1"`
	Y float64 `json:"y" validate:"gte=0,lte=1"`
}

// DrawLine is a stroke segment, inbound and outbound.
type DrawLine struct {
	Room      string  `json:"room" validate:"required"`
	Line      []Point `json:"line" validate:"len=2,dive"`
	Color     string  `json:"color" validate:"required"`
	LineWidth float64 `json:"lineWidth" validate:"gt=0"`
}

type RoomNotice struct {
	Room string `json:"room"`
}

type FailureNotice struct {
	Message string `json:"message"`
}

type RoomList struct {
	Rooms []string `json:"rooms"`
}

// Member is one entry of a usersInRoom answer.
type Member struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	ID       string `json:"id"`
}

type MemberList struct {
	Users []Member `json:"users"`
}

type ChatMessage struct {
	Room     string    `json:"room"`
	Username string    `json:"username"`
	Msg      string    `json:"msg"`
	Date     time.Time `json:"date"`
}

// Presence announces a session joining or leaving a room.
type Presence struct {
	Room     string `json:"room"`
	Username string `json:"username"`
	Msg      string `json:"msg"`
	ID       string `json:"id"`
}

type NicknameUpdate struct {
	Room        string `json:"room"`
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
	ID          string `json:"id"`
}
