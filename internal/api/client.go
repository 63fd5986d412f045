// Package api is the client for the messaging service's REST surface.
// Endpoint shapes are owned by the service; this package only maps them
// onto the chat DTOs and the error taxonomy the UI branches on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/rs/zerolog"
)

const defaultTimeout = 15 * time.Second

// DefaultPageSize is the message page size used by the thread
// controller's initial fetch and load-more calls.
const DefaultPageSize = 50

// Config configures a Client.
type Config struct {
	// BaseURL is the service root, e.g. "https://chat.example.edu".
	BaseURL string

	// Token is the bearer token attached to every request.
	Token string

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to the messaging service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a Client. BaseURL must be non-empty.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api: base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    httpClient,
		log:     logging.Component("api"),
	}, nil
}

// ListConversations returns the viewer's conversations, newest activity
// first, optionally filtered by a free-text search.
func (c *Client) ListConversations(ctx context.Context, search string) ([]chat.Conversation, error) {
	query := url.Values{}
	if strings.TrimSpace(search) != "" {
		query.Set("search", strings.TrimSpace(search))
	}
	var out struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, "/api/conversations", query, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// GetConversation fetches a single conversation's metadata.
func (c *Client) GetConversation(ctx context.Context, id int64) (chat.Conversation, error) {
	var out struct {
		Conversation chat.Conversation `json:"conversation"`
	}
	path := fmt.Sprintf("/api/conversations/%d", id)
	if err := c.getJSON(ctx, path, nil, &out); err != nil {
		return chat.Conversation{}, err
	}
	return out.Conversation, nil
}

// ListMessages fetches up to limit messages, strictly older than
// beforeID when beforeID > 0, newest page when beforeID == 0.
func (c *Client) ListMessages(ctx context.Context, conversationID, beforeID int64, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if beforeID > 0 {
		query.Set("before", strconv.FormatInt(beforeID, 10))
	}
	var out struct {
		Messages []chat.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if err := c.getJSON(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a draft as multipart form data (body, client_id,
// files[] in order). The persisted message arrives over the live
// channel; the response body is not relied upon.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, draft chat.Draft, clientID string) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("body", draft.Body); err != nil {
		return err
	}
	if err := writer.WriteField("client_id", clientID); err != nil {
		return err
	}
	for _, path := range draft.Files {
		if err := attachFile(writer, path); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType(), nil)
}

// MarkRead advances the viewer's read high-water mark.
func (c *Client) MarkRead(ctx context.Context, conversationID, lastReadMessageID int64) error {
	body := map[string]int64{"last_read_message_id": lastReadMessageID}
	path := fmt.Sprintf("/api/conversations/%d/read", conversationID)
	return c.postJSON(ctx, path, body, nil)
}

// MarkConversationRead clears the whole conversation's unread state.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID int64) error {
	path := fmt.Sprintf("/api/conversations/%d/read-all", conversationID)
	return c.postJSON(ctx, path, struct{}{}, nil)
}

// SetTyping publishes the viewer's typing state.
func (c *Client) SetTyping(ctx context.Context, conversationID int64, isTyping bool) error {
	body := map[string]bool{"is_typing": isTyping}
	path := fmt.Sprintf("/api/conversations/%d/typing", conversationID)
	return c.postJSON(ctx, path, body, nil)
}

// ToggleArchive flips the conversation's archived state and returns the
// updated metadata.
func (c *Client) ToggleArchive(ctx context.Context, conversationID int64) (chat.Conversation, error) {
	var out struct {
		Conversation chat.Conversation `json:"conversation"`
	}
	path := fmt.Sprintf("/api/conversations/%d/archive", conversationID)
	if err := c.postJSON(ctx, path, struct{}{}, &out); err != nil {
		return chat.Conversation{}, err
	}
	return out.Conversation, nil
}

// Me returns the authenticated user's identity. Login uses it both to
// verify a token and to learn the viewer's user id.
func (c *Client) Me(ctx context.Context) (chat.Participant, error) {
	var out struct {
		User chat.Participant `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/me", nil, &out); err != nil {
		return chat.Participant{}, err
	}
	return out.User, nil
}

// UnreadCount returns the total unread-message count across
// conversations, for the inbox badge.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Unread int `json:"unread"`
	}
	if err := c.getJSON(ctx, "/api/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Unread, nil
}

// EventsURL is the websocket endpoint for a conversation's live events.
func (c *Client) EventsURL(conversationID int64) string {
	ws := c.baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return fmt.Sprintf("%s/api/conversations/%d/events", ws, conversationID)
}

// Token returns the configured bearer token (for the channel dialer).
func (c *Client) Token() string {
	return c.token
}

func attachFile(writer *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("files[]", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, bytes.NewReader(data), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Transport errors can echo the full request including the
		// Authorization header.
		c.log.Debug().Str("method", method).Str("path", path).Str("error", logging.Redact(err.Error())).Msg("request failed")
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("request failed")
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAccessDenied
	case resp.StatusCode >= 500:
		return &TransientError{Err: &StatusError{Code: resp.StatusCode, Message: errorMessage(resp)}}
	default:
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(resp)}
	}
}

func errorMessage(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Error
}
