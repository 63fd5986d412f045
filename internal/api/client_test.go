package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/chat"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, Token: "secret", HTTPClient: server.Client()})
	require.NoError(t, err)
	return client, server
}

func TestListMessagesBuildsCursorQuery(t *testing.T) {
	var gotPath, gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"messages":[{"id":9,"conversation_id":3,"sender_id":2,"body":"hi","type":"text"}]}`))
	}))

	msgs, err := client.ListMessages(context.Background(), 3, 10, 25)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, int64(9), msgs[0].ID)
	require.Equal(t, "/api/conversations/3/messages", gotPath)
	require.Equal(t, "before=10&limit=25", gotQuery)
}

func TestListMessagesDefaultsPageSize(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"messages":[]}`))
	}))

	_, err := client.ListMessages(context.Background(), 3, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "limit=50", gotQuery)
}

func TestMeReturnsIdentity(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"user":{"user_id":42,"name":"Aina"}}`))
	}))

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/api/me", gotPath)
	require.Equal(t, int64(42), me.UserID)
	require.Equal(t, "Aina", me.Name)
}

func TestForbiddenMapsToAccessDenied(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not a participant"}`, http.StatusForbidden)
	}))

	_, err := client.GetConversation(context.Background(), 3)
	require.ErrorIs(t, err, ErrAccessDenied)
	require.False(t, IsRetryable(err))
}

func TestServerErrorsAreRetryable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, http.StatusBadGateway)
	}))

	_, err := client.ListConversations(context.Background(), "")
	require.True(t, IsRetryable(err))

	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusBadGateway, status.Code)
	require.Equal(t, "boom", status.Message)
}

func TestTransportFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on

	client, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.UnreadCount(context.Background())
	require.True(t, IsRetryable(err))
}

func TestClientErrorIsNotRetryable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"too large"}`, http.StatusRequestEntityTooLarge)
	}))

	err := client.MarkRead(context.Background(), 3, 10)
	require.False(t, IsRetryable(err))

	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusRequestEntityTooLarge, status.Code)
}

func TestSendMessagePostsMultipartWithFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.txt")
	second := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(first, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("beta"), 0o644))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hello", r.FormValue("body"))
		require.Equal(t, "c0ffee", r.FormValue("client_id"))

		files := r.MultipartForm.File["files[]"]
		require.Len(t, files, 2)
		require.Equal(t, "a.txt", files[0].Filename)
		require.Equal(t, "b.txt", files[1].Filename)
		w.WriteHeader(http.StatusCreated)
	}))

	draft := chat.Draft{Body: "hello", Files: []string{first, second}}
	require.NoError(t, client.SendMessage(context.Background(), 3, draft, "c0ffee"))
}

func TestSendMessageRejectsEmptyDraft(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("empty draft must not reach the server")
	}))

	err := client.SendMessage(context.Background(), 3, chat.Draft{}, "c0ffee")
	require.ErrorIs(t, err, chat.ErrEmptyDraft)
}

func TestEventsURLSwapsScheme(t *testing.T) {
	client, err := New(Config{BaseURL: "https://chat.example.edu/"})
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example.edu/api/conversations/7/events", client.EventsURL(7))

	client, err = New(Config{BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/api/conversations/7/events", client.EventsURL(7))
}
