// Package websocket pushes live room activity to connected participants.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/messages"
	"github.com/nfrund/batepapo/internal/middleware"
	"github.com/nfrund/batepapo/internal/presence"
	"github.com/nfrund/batepapo/internal/pubsub"
	"github.com/nfrund/batepapo/internal/sanitize"
)

// EventReady is the first frame of every stream, sent once the
// subscriptions are active.
const EventReady = "stream.ready"

const (
	defaultPingInterval = 30 * time.Second
	defaultSendBuffer   = 64
	writeTimeout        = 10 * time.Second
)

// Frame is one JSON message sent to a stream client.
type Frame struct {
	Event       string                     `json:"event"`
	Message     *domain.Message            `json:"message,omitempty"`
	Participant *presence.ParticipantEvent `json:"participant,omitempty"`
}

// Stream serves the websocket endpoint that relays message and presence
// events. Each connection only receives messages its caller may read.
type Stream struct {
	subscriber     pubsub.Subscriber
	sanitizer      *sanitize.Sanitizer
	logger         *slog.Logger
	originPatterns []string
	pingInterval   time.Duration
	sendBuffer     int
}

// Option configures a Stream.
type Option func(*Stream)

// WithOriginPatterns sets the origins allowed to open a cross-origin stream.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Stream) { s.originPatterns = patterns }
}

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(s *Stream) { s.pingInterval = d }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// NewStream creates a stream fed by subscriber.
func NewStream(subscriber pubsub.Subscriber, san *sanitize.Sanitizer, opts ...Option) *Stream {
	s := &Stream{
		subscriber:   subscriber,
		sanitizer:    san,
		logger:       slog.Default(),
		pingInterval: defaultPingInterval,
		sendBuffer:   defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", "stream")
	return s
}

// Handler upgrades the request and streams frames until either side closes.
func (s *Stream) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		viewer := s.sanitizer.Text(middleware.User(c))

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			OriginPatterns: s.originPatterns,
		})
		if err != nil {
			s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
			return nil
		}

		client := &Client{
			Viewer: viewer,
			conn:   conn,
			send:   make(chan []byte, s.sendBuffer),
			logger: s.logger.With("viewer", viewer),
		}

		// CloseRead drains control frames and cancels ctx once the peer is gone.
		ctx := conn.CloseRead(c.Request().Context())

		if err := s.subscribe(ctx, client); err != nil {
			client.logger.Error("Failed to subscribe stream", "error", err)
			conn.Close(websocket.StatusInternalError, "subscription failed")
			return nil
		}

		_ = client.enqueue(Frame{Event: EventReady})
		client.logger.Info("Stream opened")
		client.writePump(ctx, s.pingInterval)
		client.logger.Info("Stream closed")
		return nil
	}
}

func (s *Stream) subscribe(ctx context.Context, client *Client) error {
	for _, event := range messages.Topics() {
		err := s.subscriber.Subscribe(ctx, event.Name(), func(ctx context.Context, msg pubsub.Message) error {
			m, err := event.Decode(msg)
			if err != nil {
				return err
			}
			if m.VisibleTo(client.Viewer) {
				return client.enqueue(Frame{Event: event.Name(), Message: &m})
			}
			// An edit that made the message private withdraws it from
			// everyone else. Only the ID is sent.
			if event.Name() == messages.EventUpdated.Name() {
				return client.enqueue(Frame{Event: messages.EventDeleted.Name(), Message: &domain.Message{ID: m.ID}})
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	for _, event := range []pubsub.Event[presence.ParticipantEvent]{presence.EventJoined, presence.EventLeft} {
		err := s.subscriber.Subscribe(ctx, event.Name(), func(ctx context.Context, msg pubsub.Message) error {
			p, err := event.Decode(msg)
			if err != nil {
				return err
			}
			return client.enqueue(Frame{Event: event.Name(), Participant: &p})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Client is one connected stream consumer.
type Client struct {
	Viewer string
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

var errSlowClient = errors.New("stream client is not keeping up")

// enqueue never blocks the bus: frames for a full client are dropped.
func (c *Client) enqueue(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSlowClient
	}
}

// writePump writes queued frames and pings until ctx ends or a write fails.
func (c *Client) writePump(ctx context.Context, pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logStreamError("WebSocket write error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.logStreamError("WebSocket ping failed", err)
				return
			}
		}
	}
}

func (c *Client) logStreamError(msg string, err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Warn(msg, "error", err)
}
