package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestWebsocketJoinByQueryReceivesRoomMessages(t *testing.T) {
	hub := NewHub(8)
	ws := NewWSServer(hub, []string{"*"})
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv, "?eventId=ev1")
	assert.Equal(t, "joined", readFrame(t, conn)["type"])

	hub.Publish(context.Background(), "ev1", NewLike{ID: "m1", Likes: 7})
	hub.Publish(context.Background(), "ev2", NewLike{ID: "x", Likes: 1})

	frame := readFrame(t, conn)
	assert.Equal(t, TypeNewLike, frame["type"])
	assert.Equal(t, "ev1", frame["eventId"])
	data := frame["data"].(map[string]any)
	assert.Equal(t, float64(7), data["likes"])
}

func TestWebsocketJoinAndLeaveFrames(t *testing.T) {
	hub := NewHub(8)
	srv := httptest.NewServer(NewWSServer(hub, []string{"*"}))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "join_event", "eventId": "ev9"}))
	assert.Equal(t, "joined", readFrame(t, conn)["type"])
	assert.Equal(t, 1, hub.Stats().Subscribers)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "leave_event", "eventId": "ev9"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
	assert.Equal(t, 0, hub.Stats().Subscribers)
}

func TestWebsocketRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(8)
	srv := httptest.NewServer(NewWSServer(hub, []string{"https://gallery.example.com"}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.org"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebsocketDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(8)
	srv := httptest.NewServer(NewWSServer(hub, []string{"*"}))
	defer srv.Close()

	conn := dial(t, srv, "?eventId=ev1")
	readFrame(t, conn)
	require.Equal(t, 1, hub.Stats().Subscribers)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	assert.Eventually(t, func() bool { return hub.Stats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}
