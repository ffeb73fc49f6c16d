package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokens maps "token-<user>" to "<user>".
func fakeAuth(_ context.Context, token string) (string, error) {
	if uid, ok := strings.CutPrefix(token, "token-"); ok && uid != "" {
		return uid, nil
	}
	return "", errors.New("bad token")
}

func newWSServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", WSHandler(hub, fakeAuth))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWS(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	ws, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"welcome"`)
	return ws
}

func TestWSDeliversOnlyToOwner(t *testing.T) {
	hub := NewHub(zap.NewNop())
	url := newWSServer(t, hub)

	alice := dialWS(t, url, "token-alice")
	bob := dialWS(t, url, "token-bob")
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), ShelfEvent{Type: EventShelfUpdate, UserID: "alice", UserBookID: "ub1", Progress: 40}))

	_ = alice.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := alice.ReadMessage()
	require.NoError(t, err)
	var ev ShelfEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "ub1", ev.UserBookID)
	assert.Equal(t, 40, ev.Progress)

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err, "bob must not see alice's events")
}

func TestWSRejectsMissingToken(t *testing.T) {
	hub := NewHub(zap.NewNop())
	url := newWSServer(t, hub)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.Stats().WSClients)
}

func TestWSAcceptsQueryToken(t *testing.T) {
	hub := NewHub(zap.NewNop())
	url := newWSServer(t, hub)

	ws, _, err := websocket.DefaultDialer.Dial(url+"?access_token=token-carol", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, time.Second, 10*time.Millisecond)
}

func startTCP(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := NewServer("127.0.0.1:0", hub, fakeAuth, zap.NewNop())
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.ln.Addr().String()
}

func TestTCPHandshakeAndDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop())
	addr := startTCP(t, hub)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("Bearer token-alice\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"transport":"tcp"`)

	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), ShelfEvent{Type: EventShelfInsert, UserID: "alice", BookID: "b1"}))

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	var ev ShelfEvent
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	assert.Equal(t, EventShelfInsert, ev.Type)
	assert.Equal(t, "b1", ev.BookID)
}

func TestTCPRejectsBadToken(t *testing.T) {
	hub := NewHub(zap.NewNop())
	addr := startTCP(t, hub)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("garbage\n"))
	require.NoError(t, err)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "invalid token")
	assert.Zero(t, hub.Stats().TCPClients)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, ShelfEvent) error { return f.err }

func TestFanoutJoinsErrors(t *testing.T) {
	e1, e2 := errors.New("amqp down"), errors.New("other down")
	var delivered int
	ok := publisherFunc(func(context.Context, ShelfEvent) error { delivered++; return nil })

	err := Fanout{failing{e1}, nil, ok, failing{e2}}.Publish(context.Background(), ShelfEvent{})
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.Equal(t, 1, delivered)

	assert.NoError(t, Fanout{ok}.Publish(context.Background(), ShelfEvent{}))
}

type publisherFunc func(context.Context, ShelfEvent) error

func (f publisherFunc) Publish(ctx context.Context, ev ShelfEvent) error { return f(ctx, ev) }
