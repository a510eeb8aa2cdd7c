package hub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/GG-Yelin/factory-monitor-screen/internal/cache"
	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(NewHandler(h, 4, zap.NewNop()))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readSnapshot(t *testing.T, conn *websocket.Conn) models.DashboardSnapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var s models.DashboardSnapshot
	require.NoError(t, json.Unmarshal(msg, &s))
	return s
}

func TestWebSocket_ReceivesCurrentThenBroadcast(t *testing.T) {
	c := cache.NewSnapshotCache()
	c.Set(snapshotAt(1000, 7))
	h := NewHub(c, zap.NewNop())

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	first := readSnapshot(t, conn)
	assert.Equal(t, 7, first.TotalDevices)
	assert.Equal(t, int64(1000), first.UpdateTime)

	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	next := snapshotAt(2000, 8)
	c.Set(next)
	assert.Equal(t, 1, h.Broadcast(next))

	second := readSnapshot(t, conn)
	assert.Equal(t, 8, second.TotalDevices)
}

func TestWebSocket_RefreshResendsCurrent(t *testing.T) {
	c := cache.NewSnapshotCache()
	c.Set(snapshotAt(1000, 2))
	h := NewHub(c, zap.NewNop())

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	readSnapshot(t, conn)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("refresh")))

	again := readSnapshot(t, conn)
	assert.Equal(t, int64(1000), again.UpdateTime)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())

	conn, cleanup := dialHub(t, h)
	defer cleanup()

	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWSClient_SendAfterCloseFails(t *testing.T) {
	h := NewHub(cache.NewSnapshotCache(), zap.NewNop())
	conn, cleanup := dialHub(t, h)
	defer cleanup()
	readSnapshot(t, conn)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	h.mu.RLock()
	var client *WSClient
	for _, e := range h.subs {
		client = e.sub.(*WSClient)
	}
	h.mu.RUnlock()
	require.NotNil(t, client)

	client.Close()
	assert.False(t, client.Send([]byte("x")))
}
