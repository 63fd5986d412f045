// Package thread orchestrates one active conversation: it loads the
// metadata and newest message page, owns the single live-channel
// subscription, folds inbound events into local state, and exposes the
// send/load-more/mark-read/typing/archive actions the view binds to.
package thread

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/channel"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/chat/grouping"
	"github.com/parleyhq/parley/internal/chat/presence"
	"github.com/parleyhq/parley/internal/chat/readstate"
	"github.com/parleyhq/parley/internal/logging"
)

// Phase is the controller's lifecycle state for the active conversation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

// ErrSendInFlight rejects a send while the previous one has not
// resolved; sends are serialized one at a time per conversation.
var ErrSendInFlight = errors.New("a send is already in flight")

// API is the slice of the REST client the controller uses.
type API interface {
	GetConversation(ctx context.Context, id int64) (chat.Conversation, error)
	ListMessages(ctx context.Context, conversationID, beforeID int64, limit int) ([]chat.Message, error)
	SendMessage(ctx context.Context, conversationID int64, draft chat.Draft, clientID string) error
	MarkRead(ctx context.Context, conversationID, lastReadMessageID int64) error
	SetTyping(ctx context.Context, conversationID int64, isTyping bool) error
	ToggleArchive(ctx context.Context, conversationID int64) (chat.Conversation, error)
}

// Config configures a Controller.
type Config struct {
	API        API
	Subscriber channel.Subscriber
	ViewerID   int64

	// PageSize overrides the message page size (default api.DefaultPageSize).
	PageSize int

	// Location is the calendar used for date separators (default local).
	Location *time.Location

	// Now overrides the clock (tests).
	Now func() time.Time

	// TypingQuiet overrides the outbound typing debounce period (tests).
	TypingQuiet time.Duration
}

// Snapshot is an immutable view of the controller state for rendering.
type Snapshot struct {
	Phase        Phase
	Err          error
	Terminal     bool // access denied: no retry offered
	Conversation chat.Conversation
	Items        []grouping.Item
	Read         map[int64]bool // own message id -> all others have read it
	TypingLabel  string
	HasMore      bool
	LoadingMore  bool
	Sending      bool
}

// Controller drives one conversation at a time. All state is guarded by
// mu; the UI observes it through Snapshot and the coalescing Changes
// channel.
type Controller struct {
	apiClient  API
	subscriber channel.Subscriber
	viewerID   int64
	pageSize   int
	loc        *time.Location
	now        func() time.Time
	log        zerolog.Logger

	mu sync.Mutex
	// epoch identifies the current Open call; results carrying a stale
	// epoch are discarded (the fetch they came from was superseded).
	epoch          int64
	conversationID int64
	conversation   chat.Conversation
	phase          Phase
	err            error
	terminal       bool

	messages    []chat.Message
	known       map[int64]struct{}
	hasMore     bool
	loadingMore bool
	sending     bool

	typing   *presence.Tracker
	reads    *readstate.Tracker
	debounce *presence.Debouncer

	unsubscribe func()

	changed chan struct{}
}

// New creates a Controller in PhaseIdle.
func New(cfg Config) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = api.DefaultPageSize
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		apiClient:  cfg.API,
		subscriber: cfg.Subscriber,
		viewerID:   cfg.ViewerID,
		pageSize:   cfg.PageSize,
		loc:        cfg.Location,
		now:        cfg.Now,
		log:        logging.Component("thread"),
		phase:      PhaseIdle,
		known:      make(map[int64]struct{}),
		typing:     presence.New(cfg.ViewerID),
		reads:      readstate.New(cfg.ViewerID),
		changed:    make(chan struct{}, 1),
	}
	c.debounce = presence.NewDebouncer(cfg.TypingQuiet, c.postTyping)
	return c
}

// Changes signals that a new Snapshot is available. Signals coalesce;
// consumers re-render from Snapshot whenever one arrives.
func (c *Controller) Changes() <-chan struct{} {
	return c.changed
}

// Open switches the controller to a conversation: the previous
// subscription is torn down first (two live subscriptions must never
// coexist), all transient state is reset, then metadata and the newest
// message page are fetched in parallel.
func (c *Controller) Open(ctx context.Context, conversationID int64) {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil

	c.conversationID = conversationID
	c.conversation = chat.Conversation{}
	c.phase = PhaseLoading
	c.err = nil
	c.terminal = false
	c.messages = nil
	c.known = make(map[int64]struct{})
	c.hasMore = false
	c.loadingMore = false
	c.sending = false
	c.typing.Reset()
	c.reads.Reset()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.notify()

	go c.load(ctx, epoch, conversationID)
}

// Retry re-runs a failed open. No-op for terminal (access denied)
// errors and outside the error phase.
func (c *Controller) Retry(ctx context.Context) {
	c.mu.Lock()
	retryable := c.phase == PhaseError && !c.terminal
	conversationID := c.conversationID
	c.mu.Unlock()

	if retryable {
		c.Open(ctx, conversationID)
	}
}

// Close tears down the subscription and withdraws the typing state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.epoch++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.phase = PhaseIdle
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.debounce.Stop()
}

func (c *Controller) load(ctx context.Context, epoch int64, conversationID int64) {
	// Subscribe before taking the page snapshot so a message persisted
	// between the two still arrives live; the id dedupe absorbs any
	// overlap with the page. Events queue on the channel until the
	// consumer starts.
	events, unsubscribe, err := c.subscriber.Subscribe(ctx, conversationID)
	if err != nil {
		c.fail(epoch, err)
		return
	}

	// Register the handle right away so a superseding Open tears this
	// subscription down before issuing its own.
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()

	var (
		wg      sync.WaitGroup
		conv    chat.Conversation
		convErr error
		page    []chat.Message
		pageErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		conv, convErr = c.apiClient.GetConversation(ctx, conversationID)
	}()
	go func() {
		defer wg.Done()
		page, pageErr = c.apiClient.ListMessages(ctx, conversationID, 0, c.pageSize)
	}()
	wg.Wait()

	if convErr != nil {
		c.dropSubscription(epoch)
		c.fail(epoch, convErr)
		return
	}
	if pageErr != nil {
		c.dropSubscription(epoch)
		c.fail(epoch, pageErr)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		// Superseded by a newer Open, which already tore the
		// subscription down.
		c.mu.Unlock()
		return
	}
	c.conversation = conv
	c.reads.SetParticipants(conv.Participants)
	c.messages = page
	c.known = make(map[int64]struct{}, len(page))
	for i := range page {
		c.known[page[i].ID] = struct{}{}
	}
	c.hasMore = len(page) == c.pageSize
	c.phase = PhaseReady
	c.mu.Unlock()

	c.notify()
	go c.consume(epoch, events)
}

// dropSubscription releases the live subscription for an epoch, unless
// a newer Open already claimed or replaced it.
func (c *Controller) dropSubscription(epoch int64) {
	c.mu.Lock()
	if epoch != c.epoch || c.unsubscribe == nil {
		c.mu.Unlock()
		return
	}
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	unsubscribe()
}

func (c *Controller) fail(epoch int64, err error) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseError
	c.err = err
	c.terminal = errors.Is(err, api.ErrAccessDenied)
	c.mu.Unlock()

	c.log.Warn().Err(err).Msg("conversation load failed")
	c.notify()
}

func (c *Controller) consume(epoch int64, events <-chan chat.Event) {
	for ev := range events {
		c.apply(epoch, ev)
	}
}

// apply folds one live event into state. Re-delivery of an applied
// MessageSent is a no-op: creates are deduped by server id.
func (c *Controller) apply(epoch int64, ev chat.Event) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}

	switch typed := ev.(type) {
	case chat.MessageSent:
		if typed.Message.ConversationID != c.conversationID {
			break
		}
		if _, dup := c.known[typed.Message.ID]; dup {
			break
		}
		c.known[typed.Message.ID] = struct{}{}
		c.messages = append(c.messages, typed.Message)
		// The sender stopped typing by sending.
		c.typing.Apply(chat.TypingChanged{
			ConversationID: typed.Message.ConversationID,
			UserID:         typed.Message.SenderID,
			IsTyping:       false,
		}, c.now())
	case chat.MessageEdited:
		for i := range c.messages {
			if c.messages[i].ID == typed.Message.ID {
				c.messages[i] = typed.Message
				break
			}
		}
	case chat.MessageDeleted:
		c.applyDelete(typed)
	case chat.ReadAdvanced:
		if typed.ConversationID != c.conversationID {
			break
		}
		c.reads.Apply(typed)
		for i := range c.conversation.Participants {
			if c.conversation.Participants[i].UserID == typed.UserID {
				c.conversation.Participants[i].LastReadMessageID = typed.LastReadMessageID
			}
		}
	case chat.TypingChanged:
		if typed.ConversationID == c.conversationID {
			c.typing.Apply(typed, c.now())
		}
	case chat.ConversationUpdated:
		if typed.Conversation.ID == c.conversationID {
			c.conversation = typed.Conversation
			c.reads.SetParticipants(typed.Conversation.Participants)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// applyDelete handles both scopes: "all" tombstones the message for
// everyone, "self" removes it from this viewer's copy only.
func (c *Controller) applyDelete(ev chat.MessageDeleted) {
	if ev.ConversationID != c.conversationID {
		return
	}
	if ev.Scope == chat.DeleteScopeSelf {
		for i := range c.messages {
			if c.messages[i].ID == ev.MessageID {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				delete(c.known, ev.MessageID)
				return
			}
		}
		return
	}
	now := c.now()
	for i := range c.messages {
		if c.messages[i].ID == ev.MessageID {
			if c.messages[i].DeletedAt == nil {
				c.messages[i].DeletedAt = &now
			}
			return
		}
	}
}

// LoadMore fetches the page strictly older than the oldest held message
// and prepends it. No-op while a load is in flight or when no older
// page exists.
func (c *Controller) LoadMore(ctx context.Context) {
	c.mu.Lock()
	if c.phase != PhaseReady || !c.hasMore || c.loadingMore {
		c.mu.Unlock()
		return
	}
	c.loadingMore = true
	epoch := c.epoch
	conversationID := c.conversationID
	before := c.oldestIDLocked()
	c.mu.Unlock()
	c.notify()

	go func() {
		page, err := c.apiClient.ListMessages(ctx, conversationID, before, c.pageSize)

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return
		}
		c.loadingMore = false
		if err != nil {
			// Pagination failures are soft: stay Ready, keep hasMore so
			// the user can scroll to retry.
			c.mu.Unlock()
			c.log.Warn().Err(err).Msg("load more failed")
			c.notify()
			return
		}
		for i := range page {
			if _, dup := c.known[page[i].ID]; dup {
				continue
			}
			c.known[page[i].ID] = struct{}{}
			c.messages = append(c.messages, page[i])
		}
		c.hasMore = len(page) == c.pageSize
		c.mu.Unlock()
		c.notify()
	}()
}

func (c *Controller) oldestIDLocked() int64 {
	var oldest int64
	for i := range c.messages {
		if oldest == 0 || c.messages[i].ID < oldest {
			oldest = c.messages[i].ID
		}
	}
	return oldest
}

// Send posts a draft with a fresh correlation id. No placeholder bubble
// is inserted; the persisted message arrives over the live channel and
// is deduped by server id. Returns the API error so the composer can
// keep the draft and surface a toast.
func (c *Controller) Send(ctx context.Context, draft chat.Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sending = true
	conversationID := c.conversationID
	c.mu.Unlock()
	c.notify()

	c.debounce.Stop()
	err := c.apiClient.SendMessage(ctx, conversationID, draft, uuid.NewString())

	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()
	c.notify()
	return err
}

// Sending reports whether a send is in flight.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// ObserveVisible reports a message's visibility fraction. Crossing the
// threshold on an unread inbound message issues exactly one mark-read
// call and clears the conversation's unread badge.
func (c *Controller) ObserveVisible(ctx context.Context, msg chat.Message, fraction float64) {
	c.mu.Lock()
	if c.phase != PhaseReady || !c.reads.ObserveVisible(msg, fraction) {
		c.mu.Unlock()
		return
	}
	conversationID := c.conversationID
	c.reads.Apply(chat.ReadAdvanced{ConversationID: conversationID, UserID: c.viewerID, LastReadMessageID: msg.ID})
	c.conversation.UnreadCount = 0
	c.mu.Unlock()
	c.notify()

	go func() {
		if err := c.apiClient.MarkRead(ctx, conversationID, msg.ID); err != nil {
			c.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("mark read failed")
		}
	}()
}

// Keystroke records composer activity; the debouncer turns it into at
// most one typing=true per burst and a typing=false after the quiet
// period.
func (c *Controller) Keystroke() {
	c.debounce.Keystroke()
}

// StopTyping withdraws the viewer's typing state immediately.
func (c *Controller) StopTyping() {
	c.debounce.Stop()
}

func (c *Controller) postTyping(isTyping bool) {
	c.mu.Lock()
	conversationID := c.conversationID
	ready := c.phase == PhaseReady
	c.mu.Unlock()
	if !ready {
		return
	}

	// The debouncer fires on the composer's keystroke path; the POST
	// must not hold up the UI event loop.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.apiClient.SetTyping(ctx, conversationID, isTyping); err != nil {
			c.log.Debug().Err(err).Msg("typing post failed")
		}
	}()
}

// Archive toggles the conversation's archived state.
func (c *Controller) Archive(ctx context.Context) error {
	c.mu.Lock()
	conversationID := c.conversationID
	epoch := c.epoch
	c.mu.Unlock()

	conv, err := c.apiClient.ToggleArchive(ctx, conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if epoch == c.epoch {
		c.conversation = conv
		c.reads.SetParticipants(conv.Participants)
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Snapshot renders the current state. The items list is recomputed from
// a full sort every time, so channel delivery order never affects
// render order.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	snap := Snapshot{
		Phase:        c.phase,
		Err:          c.err,
		Terminal:     c.terminal,
		Conversation: c.conversation,
		Items:        grouping.Build(c.messages, c.viewerID, now, c.loc),
		TypingLabel:  c.typing.Label(now),
		HasMore:      c.hasMore,
		LoadingMore:  c.loadingMore,
		Sending:      c.sending,
	}

	snap.Read = make(map[int64]bool)
	for i := range c.messages {
		if c.messages[i].SenderID == c.viewerID {
			snap.Read[c.messages[i].ID] = c.reads.IsRead(c.messages[i])
		}
	}
	return snap
}

func (c *Controller) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}
