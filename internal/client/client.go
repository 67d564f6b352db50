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
	"strings"
	"time"

	"github.com/terraconstructs/classgrid/internal/session"
	"golang.org/x/oauth2"
)

// ErrNotAuthenticated is returned when no session is published.
var ErrNotAuthenticated = errors.New("not authenticated")

// SessionSource yields the currently published session, or nil.
// *session.Reconciler satisfies it.
type SessionSource interface {
	Session() *session.Session
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("scheduler returned %d: %s", e.StatusCode, e.Body)
}

// sessionTokenSource hands out the credential of whichever session is
// published at request time. It never caches, so a sign-out or account
// switch takes effect on the next request.
type sessionTokenSource struct {
	src SessionSource
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	sess := s.src.Session()
	if sess == nil || sess.Credential == "" {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: sess.Credential, TokenType: "Bearer"}, nil
}

// Client calls the scheduling and timetable review endpoints with the
// current session's credential as a bearer token. Payloads are passed
// through unchanged.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseTransport sets the transport used beneath bearer attachment.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport.(*oauth2.Transport).Base = rt
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a Client for the scheduler at baseURL.
func New(baseURL string, src SessionSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: sessionTokenSource{src: src}},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitParameters posts scheduling parameters.
func (c *Client) SubmitParameters(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/parameters", params)
}

// ListPending returns the timetables awaiting review.
func (c *Client) ListPending(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/api/timetables/pending", nil)
}

// Approve approves timetable id.
func (c *Client) Approve(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/api/timetables/"+url.PathEscape(id)+"/approve", nil)
}

// Reject rejects timetable id with a review comment.
func (c *Client) Reject(ctx context.Context, id, comment string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"comment": comment})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/api/timetables/"+url.PathEscape(id)+"/reject", body)
}

// SelectTimetable marks timetable id as the active one.
func (c *Client) SelectTimetable(ctx context.Context, id string) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, "/api/timetables/select", body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		// Plain-text bodies are wrapped as a JSON string.
		quoted, _ := json.Marshal(string(data))
		return quoted, nil
	}
	return data, nil
}
