// Package channel delivers a conversation's live events over a
// websocket. Frames are JSON envelopes decoded through chat.DecodeEvent;
// the stream is read-only (all client actions go through the REST API).
package channel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/internal/api"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/logging"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameSize      = 1 << 20
	defaultReconnect  = 2 * time.Second
	defaultBufferSize = 256
)

// Subscriber is the narrow interface the thread controller depends on.
// The returned cancel function tears the subscription down and is safe
// to call more than once; the event channel closes once the
// subscription is fully gone.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationID int64) (<-chan chat.Event, func(), error)
}

// Config configures a Dialer.
type Config struct {
	// URLFor maps a conversation id to its websocket endpoint
	// (api.Client.EventsURL).
	URLFor func(conversationID int64) string

	// Token is the bearer token presented during the upgrade handshake.
	Token string

	// Reconnect is the pause between redial attempts after the socket
	// drops. Zero means defaultReconnect.
	Reconnect time.Duration

	// Buffer is the event channel capacity. Zero means defaultBufferSize.
	Buffer int
}

// Dialer implements Subscriber over gorilla/websocket.
type Dialer struct {
	cfg Config
	ws  *websocket.Dialer
	log zerolog.Logger
}

// NewDialer creates a Dialer.
func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.URLFor == nil {
		return nil, errors.New("channel: URLFor required")
	}
	if cfg.Reconnect <= 0 {
		cfg.Reconnect = defaultReconnect
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBufferSize
	}
	return &Dialer{
		cfg: cfg,
		ws:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log: logging.Component("channel"),
	}, nil
}

// Subscribe opens the event stream for one conversation. The first dial
// happens synchronously so authorization failures surface immediately;
// later drops are redialed in the background until cancel is called.
func (d *Dialer) Subscribe(ctx context.Context, conversationID int64) (<-chan chat.Event, func(), error) {
	conn, err := d.dial(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan chat.Event, d.cfg.Buffer)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(events)
		d.run(subCtx, conversationID, conn, events)
	}()

	stop := func() {
		cancel()
		<-done
	}
	return events, stop, nil
}

func (d *Dialer) dial(ctx context.Context, conversationID int64) (*websocket.Conn, error) {
	header := http.Header{}
	if d.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+d.cfg.Token)
	}

	conn, resp, err := d.ws.DialContext(ctx, d.cfg.URLFor(conversationID), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, api.ErrAccessDenied
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &api.TransientError{Err: err}
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// run pumps events from conn until the context is canceled, redialing
// whenever the socket drops. Access denial during a redial ends the
// subscription: a revoked membership will not recover by retrying.
func (d *Dialer) run(ctx context.Context, conversationID int64, conn *websocket.Conn, events chan<- chat.Event) {
	for {
		d.readPump(ctx, conn, events)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		d.log.Debug().Int64("conversation_id", conversationID).Msg("event stream dropped, reconnecting")

		var err error
		conn, err = d.redial(ctx, conversationID)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("event stream lost")
			}
			return
		}
	}
}

func (d *Dialer) redial(ctx context.Context, conversationID int64) (*websocket.Conn, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d.cfg.Reconnect):
		}

		conn, err := d.dial(ctx, conversationID)
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, api.ErrAccessDenied) || ctx.Err() != nil {
			return nil, err
		}
	}
}

// readPump reads frames until the socket errors or the context is
// canceled, keeping the connection alive with pings.
func (d *Dialer) readPump(ctx context.Context, conn *websocket.Conn, events chan<- chat.Event) {
	readDone := make(chan struct{})
	go func() {
		// Pings and cancellation both live here; closing the conn from
		// this side is what unblocks ReadMessage below.
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				conn.Close()
				return
			case <-readDone:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()
	defer close(readDone)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := chat.DecodeEvent(frame)
		if err != nil {
			// Unknown kinds are expected across protocol versions.
			d.log.Debug().Err(err).Msg("skipping event frame")
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
