package lldap

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLDAP struct {
	t        *testing.T
	token    string
	failures atomic.Int32
	graphqlN atomic.Int32

	lastUser  CreateUserInput
	lastQuery string
	gqlErrors []string
}

func (f *fakeLLDAP) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth/simple/login", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, http.MethodPost, r.Method)
		assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] != "admin" || body["password"] != "hunter22" {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token, "refreshToken": "r"})
	})

	mux.HandleFunc("/api/graphql", func(w http.ResponseWriter, r *http.Request) {
		f.graphqlN.Add(1)
		if f.failures.Load() > 0 {
			f.failures.Add(-1)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Query     string `json:"query"`
			Variables struct {
				User CreateUserInput `json:"user"`
			} `json:"variables"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.lastQuery = body.Query
		f.lastUser = body.Variables.User

		if len(f.gqlErrors) > 0 {
			errs := make([]map[string]string, 0, len(f.gqlErrors))
			for _, m := range f.gqlErrors {
				errs = append(errs, map[string]string{"message": m})
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": nil, "errors": errs})
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"createUser": map[string]string{
					"id":          body.Variables.User.ID,
					"email":       body.Variables.User.Email,
					"displayName": body.Variables.User.DisplayName,
				},
			},
		})
	})
	return mux
}

func newTestServer(t *testing.T) (*fakeLLDAP, *Client) {
	t.Helper()

	fake := &fakeLLDAP{t: t, token: "jwt-token"}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return fake, NewClient(srv.URL+"/", WithHTTPClient(srv.Client()), WithRetryMax(0))
}

func TestLoginAndCreateUser(t *testing.T) {
	fake, client := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, client.Login(ctx, "admin", "hunter22"))

	input := CreateUserInput{
		ID:          "jdoe",
		Email:       "jdoe@example.com",
		DisplayName: "Jane Doe",
		Attributes: []Attribute{
			{Name: "first_name", Value: []string{"Jane"}},
			{Name: "last_name", Value: []string{"Doe"}},
		},
	}
	user, err := client.CreateUser(ctx, input)
	require.NoError(t, err)

	assert.Equal(t, &User{ID: "jdoe", Email: "jdoe@example.com", DisplayName: "Jane Doe"}, user)
	assert.Equal(t, input, fake.lastUser)
	assert.Contains(t, fake.lastQuery, "createUser(user: $user)")
}

func TestLoginRejected(t *testing.T) {
	_, client := newTestServer(t)

	err := client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Authentication failed (401): Invalid credentials", err.Error())
}

func TestCreateUserRequiresLogin(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.CreateUser(context.Background(), CreateUserInput{ID: "x", Email: "x@example.com"})
	assert.EqualError(t, err, "not authenticated")
}

func TestCreateUserGraphQLErrors(t *testing.T) {
	fake, client := newTestServer(t)
	fake.gqlErrors = []string{"Error creating user: UNIQUE constraint failed: users.user_id"}

	require.NoError(t, client.Login(context.Background(), "admin", "hunter22"))
	_, err := client.CreateUser(context.Background(), CreateUserInput{ID: "jdoe", Email: "jdoe@example.com"})
	require.Error(t, err)

	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Contains(t, err.Error(), "GraphQL error: Error creating user")
}

func TestCreateUserServerError(t *testing.T) {
	fake, client := newTestServer(t)
	fake.failures.Store(1)

	require.NoError(t, client.Login(context.Background(), "admin", "hunter22"))
	_, err := client.CreateUser(context.Background(), CreateUserInput{ID: "jdoe", Email: "jdoe@example.com"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "User creation failed (502)")
}

func TestCreateUserIsNotResent(t *testing.T) {
	fake, client := newTestServer(t)
	WithRetryMax(2)(client)
	client.http.RetryWaitMin = 0
	client.http.RetryWaitMax = 0
	fake.failures.Store(1)
	fake.gqlErrors = []string{"Error creating user: UNIQUE constraint failed: users.user_id"}

	require.NoError(t, client.Login(context.Background(), "admin", "hunter22"))
	_, err := client.CreateUser(context.Background(), CreateUserInput{ID: "jdoe", Email: "jdoe@example.com"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(1), fake.graphqlN.Load())
}

func TestCheckRetry(t *testing.T) {
	noReplay := context.WithValue(context.Background(), noReplayKey{}, true)
	dialErr := &url.Error{Op: "Post", URL: "http://lldap:17170", Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	readErr := &url.Error{Op: "Post", URL: "http://lldap:17170", Err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}}
	badGateway := &http.Response{StatusCode: http.StatusBadGateway}

	tests := []struct {
		name string
		ctx  context.Context
		resp *http.Response
		err  error
		want bool
	}{
		{"replayable 502", context.Background(), badGateway, nil, true},
		{"replayable dial error", context.Background(), nil, dialErr, true},
		{"state change 502", noReplay, badGateway, nil, false},
		{"state change read error", noReplay, nil, readErr, false},
		{"state change dial error", noReplay, nil, dialErr, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := checkRetry(tt.ctx, tt.resp, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, WithRetryMax(0))
	err := client.Login(context.Background(), "admin", "hunter22")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach lldap")
}
