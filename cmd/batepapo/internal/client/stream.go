package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/batepapo/internal/middleware"
	stream "github.com/nfrund/batepapo/internal/websocket"
)

// Frame is one event received from the live stream.
type Frame = stream.Frame

const closeTimeout = time.Second

// Stream follows the room's live events and calls handle for each one,
// including the initial ready frame. It returns nil when ctx is done or the
// server closes the stream normally, and handle's error if it fails.
func (c *Client) Stream(ctx context.Context, handle func(Frame) error) error {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/messages/stream"

	header := http.Header{}
	if c.user != "" {
		header.Set(middleware.UserHeader, c.user)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("stream rejected: %s", resp.Status)
		}
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(closeTimeout))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}
		if err := handle(f); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
}

// ErrStopStream may be returned by a Stream handler to stop following
// without an error.
var ErrStopStream = errors.New("stop stream")
