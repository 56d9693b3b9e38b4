package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"arena-duel/internal/game"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 200

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 8

	defaultBroadcastInterval = time.Second / 30

	wsWriteWait    = 2 * time.Second
	wsMaxMessage   = 512
	stateEventName = "match:state"
	phaseEventName = "match:phase"
)

// wsClient tracks a WebSocket connection with its source IP and encoding.
type wsClient struct {
	conn   *websocket.Conn
	ip     string
	binary bool // msgpack frames instead of JSON text
}

// wsFrame is one broadcast. The JSON text is encoded up front; msgpack
// is encoded on first use by a binary client.
type wsFrame struct {
	msg    map[string]interface{}
	text   []byte
	binary []byte
}

// clientMessage is the only shape accepted from clients:
// {"type":"key","key":"arrowup"} or {"type":"toggle"}.
type clientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

// WebSocketHub pushes match snapshots to every connected client and feeds
// their key presses back into the engine.
type WebSocketHub struct {
	engine   EngineInterface
	upgrader websocket.Upgrader

	clients    map[*websocket.Conn]*wsClient
	broadcast  chan wsFrame
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once

	wsLimiter *WebSocketRateLimiter
	trusted   TrustedProxies
}

// NewWebSocketHub creates a hub. Nothing runs until Run. Per-IP limits key
// on the peer address unless it is one of the trusted proxies.
func NewWebSocketHub(engine EngineInterface, allowedOrigins []string, trusted TrustedProxies) *WebSocketHub {
	h := &WebSocketHub{
		engine:     engine,
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan wsFrame, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		stopChan:   make(chan struct{}),
		wsLimiter:  NewWebSocketRateLimiter(MaxWSConnectionsPerIP),
		trusted:    trusted,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin
			if origin == "" || IsAllowedOrigin(origin, allowedOrigins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns client registration and all writes. It returns after Stop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for conn, client := range h.clients {
				h.wsLimiter.Release(client.ip)
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d from this IP, %d total)",
				client.ip, h.wsLimiter.GetConnectionCount(client.ip), count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if client, ok := h.clients[conn]; ok {
				h.wsLimiter.Release(client.ip)
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case frame := <-h.broadcast:
			h.writeFrame(frame)
			IncrementWSMessages()
		}
	}
}

func (h *WebSocketHub) writeFrame(frame wsFrame) {
	var failed []*websocket.Conn

	h.mu.RLock()
	for conn, client := range h.clients {
		msgType, payload := websocket.TextMessage, frame.text
		if client.binary {
			if frame.binary == nil {
				bin, err := marshalMsgpack(frame.msg)
				if err != nil {
					log.Printf("❌ msgpack encode failed: %v", err)
					continue
				}
				frame.binary = bin
			}
			msgType, payload = websocket.BinaryMessage, frame.binary
		}
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(msgType, payload); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range failed {
		if client, ok := h.clients[conn]; ok {
			h.wsLimiter.Release(client.ip)
			delete(h.clients, conn)
		}
		conn.Close()
	}
	count := len(h.clients)
	h.mu.Unlock()
	UpdateWSConnections(count)
}

// Stop ends Run and the broadcast loop and closes every connection.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast queues {"event":...,"data":...} for all clients.
// The message is dropped when the queue is full.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	text, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- wsFrame{msg: msg, text: text}:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// StartBroadcastLoop pushes the latest snapshot every interval while
// anyone is connected, plus a phase event whenever the match state changes.
// A non-positive interval means 30 pushes per second.
func (h *WebSocketHub) StartBroadcastLoop(interval time.Duration) {
	if interval <= 0 {
		interval = defaultBroadcastInterval
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		lastState := h.engine.GetSnapshot().State

		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			if h.ClientCount() == 0 {
				continue
			}

			snap := h.engine.GetSnapshot()
			if snap.State != lastState {
				lastState = snap.State
				h.Broadcast(phaseEventName, map[string]interface{}{
					"state":      snap.State,
					"winner":     snap.Winner,
					"winnerName": snap.WinnerName,
				})
			}
			h.Broadcast(stateEventName, snap)
		}
	}()
}

// HandleWebSocket upgrades the request and reads client input until the
// connection closes. ?format=msgpack selects binary frames.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r, h.trusted)

	if h.ClientCount() >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}
	conn.SetReadLimit(wsMaxMessage)

	client := &wsClient{conn: conn, ip: ip, binary: wantsMsgpack(r)}
	select {
	case h.register <- client:
	case <-h.stopChan:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go h.readLoop(client)
}

func (h *WebSocketHub) readLoop(client *wsClient) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.stopChan:
		}
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := decodeClientMessage(msgType, data)
		if err != nil {
			continue
		}
		h.handleClientMessage(client, msg)
	}
}

func decodeClientMessage(msgType int, data []byte) (clientMessage, error) {
	var msg clientMessage
	if msgType == websocket.BinaryMessage {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		err := dec.Decode(&msg)
		return msg, err
	}
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// handleClientMessage applies one client command. Keys pressed outside a
// running match are ignored.
func (h *WebSocketHub) handleClientMessage(client *wsClient, msg clientMessage) {
	switch msg.Type {
	case "toggle":
		h.engine.Toggle()
	case "key":
		if game.IsToggleKey(msg.Key) {
			h.engine.Toggle()
			return
		}
		id, intent, ok := game.IntentForKey(msg.Key)
		if !ok {
			return
		}
		h.engine.ApplyIntent(id, intent)
	default:
		log.Printf("📨 Unknown WebSocket message from %s: %q", client.ip, msg.Type)
	}
}
