// Package testhelpers provides common utilities for end-to-end tests of the
// SketchHub server.
//
// It starts a complete server over a miniredis-backed store, dials WebSocket
// clients with an allowed Origin, and reads and writes the JSON event
// envelopes the server speaks.
package testhelpers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/sketchhub/internal/chat"
	"github.com/Tyrowin/sketchhub/internal/server"
	"github.com/Tyrowin/sketchhub/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestOrigin is allowed by every server started with StartServer.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every read done by the helpers.
const DefaultTimeout = 2 * time.Second

// Env is a running server with direct access to its store.
type Env struct {
	Server  *server.Server
	HTTP    *httptest.Server
	Store   store.Store
	Service *chat.Service
	Redis   *miniredis.Miniredis
}

// WSURL returns the WebSocket endpoint of the server.
func (e *Env) WSURL() string {
	return "ws" + strings.TrimPrefix(e.HTTP.URL, "http") + "/ws"
}

// StartServer starts a server on a random port. configure may adjust the
// defaults before the server is built. Everything is torn down at test end.
func StartServer(t *testing.T, configure func(*server.Config)) *Env {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	if configure != nil {
		configure(cfg)
	}

	mr := miniredis.RunT(t)
	st := store.NewRedisStore(store.NewRedisClient(mr.Addr(), "", 0), cfg.Store.KeyPrefix)
	t.Cleanup(func() { _ = st.Close() })

	svc := chat.NewService(st, zap.NewNop(), chat.Options{
		DefaultRoom:  cfg.DefaultRoom,
		StoreTimeout: cfg.Store.Timeout,
	})
	srv := server.New(*cfg, svc, zap.NewNop())
	srv.Start()

	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return &Env{Server: srv, HTTP: ts, Store: st, Service: svc, Redis: mr}
}

// Envelope is one event as read off the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into T.
func Decode[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoErrorf(t, json.Unmarshal(env.Data, &v), "decoding %s payload %s", env.Event, env.Data)
	return v
}

// Client is a test WebSocket connection.
type Client struct {
	t    *testing.T
	Conn *websocket.Conn
	// ID is the connection id assigned by the server; set by Connect.
	ID string
}

// Dial connects to url with the allowed test Origin.
func Dial(t *testing.T, url string) *Client {
	t.Helper()
	conn, err := DialWithOrigin(url, TestOrigin)
	require.NoError(t, err)
	c := &Client{t: t, Conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	return c
}

// DialWithOrigin connects to url with the given Origin header, which is
// omitted when empty.
func DialWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Connect dials url and consumes the connection handshake, up to and
// including the initial usersInRoom answer. The first join announcement is
// taken as the client's own, so Connect must not race other connects.
func Connect(t *testing.T, url string) *Client {
	t.Helper()
	c := Dial(t, url)
	c.ID = Decode[chat.Presence](t, c.WaitFor(chat.EventUserJoinsRoom)).ID
	c.WaitFor(chat.EventUsersInRoom)
	return c
}

// Emit sends one event.
func (c *Client) Emit(event string, data any) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// Next reads the next event, failing the test after DefaultTimeout.
func (c *Client) Next() Envelope {
	c.t.Helper()
	env, err := c.read(DefaultTimeout)
	require.NoError(c.t, err)
	return env
}

// WaitFor reads until an event named name arrives and returns it.
func (c *Client) WaitFor(name string) Envelope {
	c.t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		env, err := c.read(time.Until(deadline))
		require.NoErrorf(c.t, err, "waiting for %s", name)
		if env.Event == name {
			return env
		}
	}
}

// Collect reads events for d and returns the ones named name. It ends with
// a read timeout, after which the connection can no longer be read; use it
// as the last read on a client.
func (c *Client) Collect(name string, d time.Duration) []Envelope {
	c.t.Helper()
	var out []Envelope
	deadline := time.Now().Add(d)
	for {
		env, err := c.read(time.Until(deadline))
		if err != nil {
			return out
		}
		if env.Event == name {
			out = append(out, env)
		}
	}
}

// ExpectNone fails if an event named name arrives within d. Like Collect,
// it must be the last read on the client.
func (c *Client) ExpectNone(name string, d time.Duration) {
	c.t.Helper()
	got := c.Collect(name, d)
	require.Emptyf(c.t, got, "unexpected %s events", name)
}

// Close sends a normal close frame and closes the connection.
func (c *Client) Close() {
	_ = c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Conn.Close()
}

func (c *Client) read(timeout time.Duration) (Envelope, error) {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	err := c.Conn.ReadJSON(&env)
	return env, err
}

// MakeRequest executes an HTTP request with a 5-second timeout.
func MakeRequest(t *testing.T, method, url, contentType, body string) *http.Response {
	t.Helper()

	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
