package integration

import (
	"io"
	"net/http"
	"testing"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/Tyrowin/sketchhub/test/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHTTPRoutes(t *testing.T) {
	env := testhelpers.StartServer(t, nil)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/", http.StatusOK, "text/plain", "Welcome to chat server"},
		{"/health", http.StatusOK, "text/plain", "SketchHub server is running!"},
		{"/test", http.StatusOK, "text/html", "SketchHub Test Page"},
		{"/nope", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := testhelpers.MakeRequest(t, http.MethodGet, env.HTTP.URL+tt.path, "", "")
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
			assert.Contains(t, readBody(t, resp), tt.contains)
		})
	}
}

func TestBroadcastEndpointReachesEveryRoom(t *testing.T) {
	env := testhelpers.StartServer(t, nil)
	c := testhelpers.Connect(t, env.WSURL())
	c.Emit(chat.EventCreateRoom, rooms(roomCreds{Name: "lobby"}))
	c.WaitFor(chat.EventUserJoinsRoom)

	resp := testhelpers.MakeRequest(t, http.MethodPost, env.HTTP.URL+"/api/broadcast/", "application/json", `{"msg":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No message provided\n", readBody(t, resp))

	resp = testhelpers.MakeRequest(t, http.MethodPost, env.HTTP.URL+"/api/broadcast/", "application/json", `{"msg":"server restarts soon"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Message sent to all rooms", readBody(t, resp))

	reached := map[string]bool{}
	for range 2 {
		msg := testhelpers.Decode[chat.ChatMessage](t, c.WaitFor(chat.EventNewMessage))
		assert.Equal(t, chat.ServerBot, msg.Username)
		assert.Equal(t, "server restarts soon", msg.Msg)
		reached[msg.Room] = true
	}
	assert.Equal(t, map[string]bool{chat.DefaultRoomName: true, "lobby": true}, reached)
}

func TestHealthReportsClients(t *testing.T) {
	env := testhelpers.StartServer(t, nil)
	testhelpers.Connect(t, env.WSURL())

	resp := testhelpers.MakeRequest(t, http.MethodGet, env.HTTP.URL+"/health", "", "")
	assert.Contains(t, readBody(t, resp), "Connected clients: 1")
}
