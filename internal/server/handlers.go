// Package server exposes HTTP handlers, including WebSocket upgrades, the
// operator broadcast endpoint, health checks, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	welcomeText          = "Welcome to chat server"
	noMessageText        = "No message provided"
	messageBroadcastText = "Message sent to all rooms"
)

// Authenticator guards operator endpoints. A non-nil error rejects the
// request with 401.
type Authenticator func(r *http.Request) error

// allowAll is the default Authenticator.
func allowAll(*http.Request) error {
	return nil
}

// WebSocketHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the connection, assigns it a fresh
// connection id and hands the client to the hub, which starts its pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, s.hub, s.svc, uuid.NewString(), r.RemoteAddr, s.cfg, s.log.Named("client"))
	if !s.hub.registerClient(client) {
		s.log.Warn("hub stopped; rejecting connection", zap.String("addr", r.RemoteAddr))
		client.closeConnection()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "SketchHub server is running! Connected clients: %d", s.hub.ClientCount())
}

// WelcomeHandler answers the root path.
func (s *Server) WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, welcomeText)
}

// BroadcastHandler sends an operator message, authored by the server bot,
// to every room that has live members. The message is read from a JSON body
// or a form field named "msg" and HTML-escaped before delivery.
func (s *Server) BroadcastHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Broadcast endpoint only accepts POST requests.", http.StatusMethodNotAllowed)
		return
	}

	if err := s.authenticate(r); err != nil {
		s.log.Warn("broadcast rejected", zap.String("remote", r.RemoteAddr), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxMessageSize)
	req, err := decodeBroadcastRequest(r)
	if err != nil {
		s.log.Debug("unreadable broadcast body", zap.Error(err))
	}
	req.Message = sanitizeMessage(req.Message)

	if err := s.validate.Struct(req); err != nil {
		http.Error(w, noMessageText, http.StatusBadRequest)
		return
	}

	rooms := s.svc.Broadcast(req.Message)
	s.log.Info("operator broadcast", zap.Strings("rooms", rooms))

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprint(w, messageBroadcastText)
}

func decodeBroadcastRequest(r *http.Request) (broadcastRequest, error) {
	var req broadcastRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
	if err := r.ParseForm(); err != nil {
		return req, err
	}
	req.Message = r.PostForm.Get("msg")
	return req, nil
}

// sanitizeMessage trims the message and escapes HTML so that operator text
// cannot inject markup into clients that render chat as HTML.
func sanitizeMessage(msg string) string {
	return html.EscapeString(strings.TrimSpace(msg))
}

// TestPageHandler serves an HTML page for trying the room protocol by hand.
// It connects to the WebSocket endpoint, joins rooms, chats, and lists every
// event it receives.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		s.log.Warn("error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>SketchHub Test Page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 320px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
            font-size: 12px;
        }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 6px; }
        button {
            padding: 5px 12px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .row { margin: 6px 0; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>SketchHub Test Page</h1>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>

    <div class="row">
        <input type="text" id="nickname" placeholder="Nickname">
        <button onclick="emit('setNickname', {username: value('nickname')})">Set nickname</button>
    </div>
    <div class="row">
        <input type="text" id="room" placeholder="Room" value="MainRoom">
        <input type="text" id="password" placeholder="Password">
        <button onclick="emit('createRoom', {rooms: [{name: value('room'), password: value('password')}]})">Create</button>
        <button onclick="emit('subscribe', {rooms: [{name: value('room'), password: value('password')}]})">Join</button>
        <button onclick="emit('unsubscribe', {rooms: [value('room')]})">Leave</button>
        <button onclick="emit('getUsersInRoom', {room: value('room')})">Who is here</button>
        <button onclick="emit('getRooms', {})">My rooms</button>
    </div>
    <div class="row">
        <input type="text" id="message" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="events"></div>

    <script>
        let ws = null;
        const eventsDiv = document.getElementById('events');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function value(id) {
            return document.getElementById(id).value;
        }

        function log(direction, text) {
            const line = document.createElement('div');
            line.textContent = direction + ' ' + text;
            line.style.color = direction === '>' ? 'blue' : 'green';
            eventsDiv.appendChild(line);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function emit(event, data) {
            if (!ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            const frame = JSON.stringify({event: event, data: data});
            ws.send(frame);
            log('>', frame);
        }

        function sendMessage() {
            const msg = value('message').trim();
            if (msg) {
                emit('newMessage', {room: value('room'), msg: msg});
                document.getElementById('message').value = '';
            }
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { updateStatus(true); };
            ws.onmessage = function(event) { log('<', event.data); };
            ws.onclose = function() { updateStatus(false); ws = null; };
            ws.onerror = function() { log('!', 'connection error'); };
        }

        document.getElementById('message').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
