// Package client talks to a batepapo server: the JSON API over net/http and
// the live stream over gorilla/websocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nfrund/batepapo/internal/domain"
	"github.com/nfrund/batepapo/internal/handlers"
	"github.com/nfrund/batepapo/internal/middleware"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Errors  []string
}

func (e *APIError) Error() string {
	switch {
	case len(e.Errors) > 0:
		return fmt.Sprintf("%d: %s", e.Status, strings.Join(e.Errors, "; "))
	case e.Message != "":
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("%d: %s", e.Status, http.StatusText(e.Status))
	}
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client calls one server on behalf of one participant.
type Client struct {
	base *url.URL
	http *http.Client
	user string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser sets the participant name sent in the User header.
func WithUser(name string) Option {
	return func(c *Client) { c.user = name }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{base: u, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// User returns the participant the client acts as.
func (c *Client) User() string {
	return c.user
}

// Register joins the room as name. Later calls act as the registered name.
func (c *Client) Register(ctx context.Context, name string) (*handlers.ParticipantResponse, error) {
	var out handlers.ParticipantResponse
	if err := c.do(ctx, http.MethodPost, "/participants", handlers.RegisterRequest{Name: name}, &out); err != nil {
		return nil, err
	}
	c.user = out.Name
	return &out, nil
}

// Participants lists who is in the room.
func (c *Client) Participants(ctx context.Context) ([]handlers.ParticipantResponse, error) {
	var out []handlers.ParticipantResponse
	if err := c.do(ctx, http.MethodGet, "/participants", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Touch tells the server the participant is still here.
func (c *Client) Touch(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/status", nil, nil)
}

// Send posts a message.
func (c *Client) Send(ctx context.Context, in domain.MessageInput) (*domain.Message, error) {
	var out domain.Message
	if err := c.do(ctx, http.MethodPost, "/messages", toRequest(in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages returns the messages visible to the participant. limit <= 0
// returns them all.
func (c *Client) Messages(ctx context.Context, limit int) ([]domain.Message, error) {
	path := "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var out []domain.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Edit replaces one of the participant's messages.
func (c *Client) Edit(ctx context.Context, id string, in domain.MessageInput) (*domain.Message, error) {
	var out domain.Message
	if err := c.do(ctx, http.MethodPut, "/messages/"+url.PathEscape(id), toRequest(in), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes one of the participant's messages.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/messages/"+url.PathEscape(id), nil, nil)
}

// KeepAlive touches the participant every interval until ctx is done. It
// stops with the error when the server no longer knows the participant;
// other failures are passed to onError and retried on the next tick.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration, onError func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Touch(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsStatus(err, http.StatusNotFound) {
				return err
			}
			if onError != nil {
				onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func toRequest(in domain.MessageInput) handlers.MessageRequest {
	return handlers.MessageRequest{To: in.To, Text: in.Text, Type: in.Type}
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.Header.Set(middleware.UserHeader, c.user)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}

	var verr handlers.ValidationResponse
	if json.Unmarshal(raw, &verr) == nil && len(verr.Errors) > 0 {
		apiErr.Errors = verr.Errors
		return apiErr
	}

	var eresp handlers.ErrorResponse
	if json.Unmarshal(raw, &eresp) == nil && eresp.Message != "" {
		apiErr.Code = eresp.Code
		apiErr.Message = eresp.Message
		return apiErr
	}

	// Echo's own errors carry only a message.
	var plain struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &plain) == nil {
		apiErr.Message = plain.Message
	}
	return apiErr
}
