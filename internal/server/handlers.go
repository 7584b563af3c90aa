// Package server exposes HTTP handlers, including the WebSocket chat
// endpoint, health and stats checks, and the built-in browser page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/tcpchat/internal/logger"
	"github.com/Tyrowin/tcpchat/internal/transport"
)

// StatsResponse is the body served on /stats.
type StatsResponse struct {
	Sessions  int      `json:"sessions"`
	Nicknames []string `json:"nicknames"`
}

type handlers struct {
	router   *Router
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func newHandlers(router *Router) *handlers {
	log := logger.Component("http")
	origins := newOriginPolicy(router.cfg.AllowedOrigins, log)
	return &handlers{
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		log: log,
	}
}

// webSocket upgrades the request and runs a chat session over it. The
// session speaks the same NICK handshake as TCP clients and shares their
// router, so browser and terminal participants see each other.
func (h *handlers) webSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	wsConn := transport.NewWSConn(conn, h.router.cfg.MaxMessageSize)
	s := NewSession(wsConn, h.router)
	if err := h.router.spawn(s); err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket session rejected")
		_ = wsConn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "tcpchat server is running!")
}

func (h *handlers) stats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{
		Sessions:  h.router.Count(),
		Nicknames: h.router.Nicknames(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Warn().Err(err).Msg("Error writing stats response")
	}
}

// chatPage serves a browser client that speaks the chat protocol over /ws.
func (h *handlers) chatPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, chatPageHTML); err != nil {
		h.log.Warn().Err(err).Msg("Error writing HTML response")
	}
}

const chatPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>tcpchat</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #1e1e2f; color: #f0f0f0; }
        #messages {
            border: 1px solid #444;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #2b2b3f;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #ff4c4c; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #ff1a1a; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>tcpchat</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="nickInput" placeholder="Nickname">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        let nickname = '';
        const messagesDiv = document.getElementById('messages');
        const nickInput = document.getElementById('nickInput');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || '#f0f0f0';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected as ' + nickname : 'Disconnected';
            statusDiv.className = connected ? 'status connected' : 'status disconnected';
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            nickInput.disabled = connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            nickname = nickInput.value.trim();
            if (!nickname) {
                addMessage('Pick a nickname first', 'gray');
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onmessage = function(event) {
                if (event.data === 'NICK') {
                    ws.send(nickname);
                    updateStatus(true);
                    return;
                }
                addMessage(event.data);
            };

            ws.onclose = function() {
                addMessage('Connection lost', 'gray');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const text = messageInput.value;
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(nickname + ': ' + text);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
