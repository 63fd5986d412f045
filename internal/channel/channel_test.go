package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/chat"
)

var upgrader = websocket.Upgrader{}

func wsURL(server *httptest.Server) func(int64) string {
	return func(int64) string {
		return "ws" + strings.TrimPrefix(server.URL, "http")
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev chat.Event) {
	t.Helper()
	frame, err := chat.EncodeEvent(ev)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func TestSubscribeDeliversDecodedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		sendEvent(t, conn, chat.TypingChanged{ConversationID: 3, UserID: 2, IsTyping: true})
		sendEvent(t, conn, chat.MessageSent{Message: chat.Message{ID: 9, ConversationID: 3, SenderID: 2, Body: "hi", Type: chat.MessageText}})

		// Unknown kinds must be skipped, not kill the stream.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"presence.ping","data":{}}`)))
		sendEvent(t, conn, chat.ReadAdvanced{ConversationID: 3, UserID: 2, LastReadMessageID: 9})

		// Keep the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	dialer, err := NewDialer(Config{URLFor: wsURL(server), Token: "secret"})
	require.NoError(t, err)

	events, stop, err := dialer.Subscribe(context.Background(), 3)
	require.NoError(t, err)
	defer stop()

	require.Equal(t, chat.KindTypingChanged, (<-events).Kind())
	sent := (<-events).(chat.MessageSent)
	require.Equal(t, int64(9), sent.Message.ID)
	require.Equal(t, chat.KindReadAdvanced, (<-events).Kind())
}

func TestSubscribeForbiddenUpgradeIsAccessDenied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	dialer, err := NewDialer(Config{URLFor: wsURL(server)})
	require.NoError(t, err)

	_, _, err = dialer.Subscribe(context.Background(), 3)
	require.ErrorIs(t, err, api.ErrAccessDenied)
}

func TestSubscribeReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		if attempt == 1 {
			sendEvent(t, conn, chat.ReadAdvanced{ConversationID: 3, UserID: 2, LastReadMessageID: 1})
			return // drop the socket
		}
		sendEvent(t, conn, chat.ReadAdvanced{ConversationID: 3, UserID: 2, LastReadMessageID: 2})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	dialer, err := NewDialer(Config{URLFor: wsURL(server), Reconnect: 10 * time.Millisecond})
	require.NoError(t, err)

	events, stop, err := dialer.Subscribe(context.Background(), 3)
	require.NoError(t, err)
	defer stop()

	first := (<-events).(chat.ReadAdvanced)
	require.Equal(t, int64(1), first.LastReadMessageID)

	select {
	case ev := <-events:
		require.Equal(t, int64(2), ev.(chat.ReadAdvanced).LastReadMessageID)
	case <-time.After(5 * time.Second):
		t.Fatal("no event after reconnect")
	}
	require.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestStopClosesEventChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	dialer, err := NewDialer(Config{URLFor: wsURL(server)})
	require.NoError(t, err)

	events, stop, err := dialer.Subscribe(context.Background(), 3)
	require.NoError(t, err)

	stop()
	stop() // idempotent

	select {
	case _, open := <-events:
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("event channel not closed")
	}
}
