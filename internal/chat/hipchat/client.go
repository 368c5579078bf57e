// Package hipchat implements chat.Client over the HipChat v2 REST API.
package hipchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dayuer/hipbot-go/internal/chat"
)

// DefaultEndpoint is the hosted HipChat API root.
const DefaultEndpoint = "https://api.hipchat.com"

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
)

// Client talks to a HipChat v2 compatible server.
type Client struct {
	endpoint string
	http     *http.Client
	pageSize int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller is then
// responsible for attaching credentials.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPageSize sets max-results on history and listing requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for endpoint authenticated with a bearer token.
func New(endpoint, token string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.Background(), ts)
	hc.Timeout = defaultTimeout

	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     hc,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ chat.Client = (*Client)(nil)

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hipchat %s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

// ListUsers returns all users, following pagination links.
func (c *Client) ListUsers(ctx context.Context) ([]chat.User, error) {
	var out []chat.User
	err := c.paginate(ctx, "/v2/user", func(raw json.RawMessage) error {
		var items []wireUser
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		for _, u := range items {
			out = append(out, u.user())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

// ListRooms returns all rooms, following pagination links.
func (c *Client) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var out []chat.Room
	err := c.paginate(ctx, "/v2/room", func(raw json.RawMessage) error {
		var items []wireRoom
		if err := json.Unmarshal(raw, &items); err != nil {
			return err
		}
		for _, r := range items {
			out = append(out, chat.Room{ID: string(r.ID), Name: r.Name})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return out, nil
}

// RoomHistory returns the most recent page of history, oldest first.
func (c *Client) RoomHistory(ctx context.Context, roomID string) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("date", "recent")
	q.Set("max-results", strconv.Itoa(c.pageSize))
	msgs, err := c.messages(ctx, "/v2/room/"+url.PathEscape(roomID)+"/history", q)
	if err != nil {
		return nil, fmt.Errorf("room %s history: %w", roomID, err)
	}
	return msgs, nil
}

// RoomMessagesSince returns messages from messageID onwards, oldest first.
// The server includes messageID itself as the first item.
func (c *Client) RoomMessagesSince(ctx context.Context, roomID, messageID string) ([]chat.Message, error) {
	q := url.Values{}
	q.Set("not-before", messageID)
	q.Set("max-results", strconv.Itoa(c.pageSize))
	msgs, err := c.messages(ctx, "/v2/room/"+url.PathEscape(roomID)+"/history/latest", q)
	if err != nil {
		return nil, fmt.Errorf("room %s latest: %w", roomID, err)
	}
	return msgs, nil
}

// SendMessage posts text to a room as the token's user.
func (c *Client) SendMessage(ctx context.Context, roomID, text string) error {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return err
	}
	path := "/v2/room/" + url.PathEscape(roomID) + "/message"
	if _, err := c.do(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("send to room %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) messages(ctx context.Context, path string, q url.Values) ([]chat.Message, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Items []wireMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	out := make([]chat.Message, 0, len(page.Items))
	for _, m := range page.Items {
		out = append(out, m.message())
	}
	return out, nil
}

// paginate walks a list endpoint, handing each page's items to fn.
func (c *Client) paginate(ctx context.Context, path string, fn func(json.RawMessage) error) error {
	q := url.Values{}
	q.Set("max-results", strconv.Itoa(c.pageSize))
	next := c.endpoint + path + "?" + q.Encode()
	for next != "" {
		data, err := c.do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return err
		}
		var page struct {
			Items json.RawMessage `json:"items"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}
		if err := json.Unmarshal(data, &page); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		if len(page.Items) > 0 {
			if err := fn(page.Items); err != nil {
				return fmt.Errorf("decode items: %w", err)
			}
		}
		next = page.Links.Next
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Method: method, Path: req.URL.Path, Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
