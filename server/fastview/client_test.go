package fastview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type clientHarness struct {
	updates  chan []EleUpdate
	messages chan string
	synced   chan error
	conn     *websocket.Conn
}

func startClient(t *testing.T) *clientHarness {
	t.Helper()
	h := &clientHarness{
		updates:  make(chan []EleUpdate),
		messages: make(chan string, 8),
		synced:   make(chan error, 1),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cli, err := NewClient(h.updates, w, r,
			WithPublishInterval(10*time.Millisecond),
			WithClientLogger(zaptest.NewLogger(t)),
			WithMessageHandler(func(_ context.Context, msg []byte) error {
				h.messages <- string(msg)
				return nil
			}))
		if err != nil {
			h.synced <- err
			return
		}
		h.synced <- cli.Sync()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	h.conn = conn
	return h
}

func TestClientPublishesUpdates(t *testing.T) {
	h := startClient(t)

	h.updates <- []EleUpdate{{EleId: "a", Ops: []Op{{Key: TextContent, Value: "1"}}}}
	h.updates <- []EleUpdate{{EleId: "a", Ops: []Op{{Key: TextContent, Value: "2"}}}}

	require.NoError(t, h.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var latest string
	for latest != "2" {
		var received []EleUpdate
		require.NoError(t, h.conn.ReadJSON(&received))
		require.NotEmpty(t, received)
		for _, update := range received {
			require.Equal(t, "a", update.EleId)
			latest = update.Ops[0].Value
		}
	}
}

func TestClientPassesMessagesToHandler(t *testing.T) {
	h := startClient(t)

	require.NoError(t, h.conn.WriteMessage(websocket.TextMessage, []byte(`{"kind":"run"}`)))
	select {
	case msg := <-h.messages:
		require.Equal(t, `{"kind":"run"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received the message")
	}
}

func TestClientDisconnect(t *testing.T) {
	h := startClient(t)

	require.NoError(t, h.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case err := <-h.synced:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not return after the peer closed")
	}
}

func TestClosedUpdatesEndSync(t *testing.T) {
	h := startClient(t)

	close(h.updates)
	select {
	case err := <-h.synced:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not return after the updates closed")
	}
}
