package api

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arena-duel/internal/config"
	"arena-duel/internal/game"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func startTestHub(t *testing.T, engine EngineInterface) (*WebSocketHub, *httptest.Server) {
	t.Helper()
	hub := NewWebSocketHub(engine, nil, nil)
	go hub.Run()
	hub.StartBroadcastLoop(10 * time.Millisecond)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})
	return hub, ts
}

func dialHub(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg map[string]interface{}
		if msgType == websocket.BinaryMessage {
			require.NoError(t, msgpack.Unmarshal(data, &msg))
		} else {
			require.NoError(t, json.Unmarshal(data, &msg))
		}
		if msg["event"] == want {
			return msg
		}
	}
}

func TestWebSocketBroadcastsState(t *testing.T) {
	hub, ts := startTestHub(t, newMockEngine())
	conn := dialHub(t, ts, "")

	msg := readEvent(t, conn, stateEventName)
	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "idle", data["state"])
	assert.Len(t, data["fighters"], 2)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestWebSocketMsgpackClient(t *testing.T) {
	_, ts := startTestHub(t, newMockEngine())
	conn := dialHub(t, ts, "?format=msgpack")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, _, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, msgType)

	msg := readEvent(t, conn, stateEventName)
	assert.Contains(t, msg, "data")
}

func TestWebSocketKeyInput(t *testing.T) {
	engine := newMockEngine()
	_, ts := startTestHub(t, engine)
	conn := dialHub(t, ts, "")

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "key", Key: "ArrowUp"}))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "key", Key: "nope"}))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "toggle"}))

	require.Eventually(t, func() bool { return engine.toggleCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	got, n := engine.lastIntent()
	require.Equal(t, 1, n)
	assert.Equal(t, game.P2, got.id)
	assert.Equal(t, game.IntentUp, got.intent)
}

func TestWebSocketPhaseEvent(t *testing.T) {
	engine := newMockEngine()
	_, ts := startTestHub(t, engine)
	conn := dialHub(t, ts, "")

	readEvent(t, conn, stateEventName)
	engine.Start()

	msg := readEvent(t, conn, phaseEventName)
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "running", data["state"])
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, ts := startTestHub(t, newMockEngine())

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketPerIPLimit(t *testing.T) {
	hub, ts := startTestHub(t, newMockEngine())

	for i := 0; i < MaxWSConnectionsPerIP; i++ {
		dialHub(t, ts, "")
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == MaxWSConnectionsPerIP }, 2*time.Second, 5*time.Millisecond)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketPerIPLimitIgnoresForwardedFor(t *testing.T) {
	hub, ts := startTestHub(t, newMockEngine())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	dial := func(i int) (*http.Response, error) {
		header := http.Header{"X-Forwarded-For": {fmt.Sprintf("203.0.113.%d", i)}}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if err == nil {
			t.Cleanup(func() { conn.Close() })
		}
		return resp, err
	}

	for i := 0; i < MaxWSConnectionsPerIP; i++ {
		_, err := dial(i)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == MaxWSConnectionsPerIP }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, MaxWSConnectionsPerIP, hub.wsLimiter.GetConnectionCount("127.0.0.1"))
	assert.Zero(t, hub.wsLimiter.GetConnectionCount("203.0.113.0"))

	resp, err := dial(MaxWSConnectionsPerIP)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocketConnectionCountReleased(t *testing.T) {
	hub, ts := startTestHub(t, newMockEngine())

	first := dialHub(t, ts, "")
	dialHub(t, ts, "")
	require.Eventually(t, func() bool { return hub.wsLimiter.GetConnectionCount("127.0.0.1") == 2 }, 2*time.Second, 5*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return hub.wsLimiter.GetConnectionCount("127.0.0.1") == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcastLoopDefaultsInterval(t *testing.T) {
	hub := NewWebSocketHub(newMockEngine(), nil, nil)
	go hub.Run()
	assert.NotPanics(t, func() { hub.StartBroadcastLoop(0) })

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Stop()
		ts.Close()
	})

	conn := dialHub(t, ts, "")
	readEvent(t, conn, stateEventName)
}

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{"https://duel.example.com", "https://*.arena.test"}

	assert.True(t, IsAllowedOrigin("http://localhost:5173", allowed))
	assert.True(t, IsAllowedOrigin("https://duel.example.com", allowed))
	assert.True(t, IsAllowedOrigin("https://eu.arena.test", allowed))
	assert.False(t, IsAllowedOrigin("https://arena.test.evil.com", allowed))
	assert.False(t, IsAllowedOrigin("https://evil.example.com", allowed))
	assert.False(t, IsAllowedOrigin("", allowed))
}

// TestServerWithEngine drives a real engine through the full server router.
func TestServerWithEngine(t *testing.T) {
	match := game.NewMatch(game.DefaultArena, rand.New(rand.NewSource(3)))
	engine := game.NewEngine(match, game.EngineConfig{TickRate: 60})
	t.Cleanup(engine.Stop)

	server := NewServer(engine, nil, config.DefaultServer())
	t.Cleanup(func() { server.Stop(cleanupContext()) })
	router := server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/intent", map[string]string{"key": "s"})
	assert.Equal(t, http.StatusConflict, rec.Code, "input is ignored before the match starts")

	rec = doRequest(t, router, http.MethodPost, "/api/match/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeBody(t, rec)["state"])

	rec = doRequest(t, router, http.MethodPost, "/api/intent", map[string]string{"key": "s"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return engine.GetSnapshot().TickNumber > 0
	}, 2*time.Second, 5*time.Millisecond)

	rec = doRequest(t, router, http.MethodPost, "/api/match/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", decodeBody(t, rec)["state"])
	assert.False(t, engine.Running())
}
