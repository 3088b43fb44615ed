package live

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Join(r.URL.Query().Get("room"), conn)
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?room=" + room
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastReachesRoomViewers(t *testing.T) {
	hub, server := newTestHub(t)

	first := dial(t, server, "final")
	second := dial(t, server, "final")
	// Registration runs through the hub loop.
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast("final", Message{
		Type:    MessageScoreUpdated,
		Payload: map[string]string{"contestant_id": "3"},
	})

	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, MessageScoreUpdated, msg.Type)
		assert.Equal(t, "final", msg.ContestID)
	}
}

func TestHubBroadcastIsRoomScoped(t *testing.T) {
	hub, server := newTestHub(t)

	finalViewer := dial(t, server, "final")
	semiViewer := dial(t, server, "semi")
	time.Sleep(50 * time.Millisecond)

	hub.Broadcast("final", Message{Type: MessageContestUpdated})

	msg := readMessage(t, finalViewer)
	assert.Equal(t, MessageContestUpdated, msg.Type)

	// The other room sees nothing.
	require.NoError(t, semiViewer.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := semiViewer.ReadMessage()
	assert.Error(t, err)
}
