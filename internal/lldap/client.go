// Package lldap is a minimal client for the lldap admin API: simple login
// and user creation over GraphQL.
package lldap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const createUserMutation = `mutation CreateUser($user: CreateUserInput!) {
  createUser(user: $user) {
    id
    email
    displayName
  }
}`

// Attribute is a custom user attribute. lldap stores every value as a list.
type Attribute struct {
	Name  string   `json:"name"`
	Value []string `json:"value"`
}

// CreateUserInput mirrors lldap's CreateUserInput GraphQL type.
type CreateUserInput struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// User is the part of the created user lldap echoes back.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// APIError reports a non-200 answer.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// GraphQLError reports errors returned in a 200 GraphQL response.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "GraphQL error: " + strings.Join(e.Messages, "; ")
}

// Client talks to one lldap instance. Login must succeed before CreateUser.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	token   string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport (for testing)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// WithRetryMax sets how often a failed request is retried. Requests that
// change state are only retried when the connection was never established.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// NewClient creates a client for the lldap server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.CheckRetry = checkRetry
	rc.HTTPClient.Timeout = 30 * time.Second

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    rc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges admin credentials for a JWT used by later calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}

	var out struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/auth/simple/login", body, "Authentication failed", true, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return fmt.Errorf("authentication failed: response carried no token")
	}
	c.token = out.Token
	return nil
}

// CreateUser creates a user and returns what lldap stored.
func (c *Client) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	if c.token == "" {
		return nil, fmt.Errorf("not authenticated")
	}

	body := map[string]interface{}{
		"query":     createUserMutation,
		"variables": map[string]interface{}{"user": input},
	}

	var out struct {
		Data struct {
			CreateUser *User `json:"createUser"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := c.post(ctx, "/api/graphql", body, "User creation failed", false, &out); err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		messages := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			messages = append(messages, e.Message)
		}
		return nil, &GraphQLError{Messages: messages}
	}
	if out.Data.CreateUser == nil {
		return nil, fmt.Errorf("user creation failed: empty response")
	}
	return out.Data.CreateUser, nil
}

// noReplayKey marks a request whose body must reach the server at most once.
type noReplayKey struct{}

// checkRetry applies the default policy to replayable requests. Others are
// retried only when the dial failed, since then nothing was sent.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Value(noReplayKey{}) == nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return isDialError(err), nil
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, op string, replayable bool, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if !replayable {
		ctx = context.WithValue(ctx, noReplayKey{}, true)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach lldap at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
