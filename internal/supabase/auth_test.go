package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hitoshi/webnote/internal/model"
)

const (
	testAPIKey = "anon-key"
	userID1    = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	userID2    = "9b2d3f4e-1a2b-4c3d-8e9f-0a1b2c3d4e5f"
)

type recordedCall struct {
	Method string
	Path   string
	Query  string
	Auth   string
	APIKey string
	Prefer string
	Body   map[string]any
	Rows   []map[string]any
}

// newTestServer はhandlerに委譲しつつ受信リクエストを記録するテストサーバーを起動する。
func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedCall) {
	t.Helper()

	var mu sync.Mutex
	calls := []recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		var rows []map[string]any
		if json.Unmarshal(raw, &body) != nil {
			_ = json.Unmarshal(raw, &rows)
		}

		mu.Lock()
		calls = append(calls, recordedCall{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			APIKey: r.Header.Get("apikey"),
			Prefer: r.Header.Get("Prefer"),
			Body:   body,
			Rows:   rows,
		})
		mu.Unlock()

		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL+"/", testAPIKey, srv.Client(), nil), &calls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type observedCall struct {
	service, operation, result string
}

type fakeObserver struct {
	calls []observedCall
}

func (o *fakeObserver) ObserveGatewayCall(service, operation, result string, _ time.Duration) {
	o.calls = append(o.calls, observedCall{service, operation, result})
}

func TestAuthClient_SignInWithPassword(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "acc-1",
			"refresh_token": "ref-1",
			"expires_in":    3600,
			"user":          map[string]any{"id": userID1, "email": "a@example.com"},
		})
	})

	session, err := NewAuthClient(client).SignInWithPassword(context.Background(), "a@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, &model.Session{AccessToken: "acc-1", RefreshToken: "ref-1"}, session)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, http.MethodPost, call.Method)
	require.Equal(t, "/auth/v1/token", call.Path)
	require.Equal(t, "grant_type=password", call.Query)
	require.Equal(t, testAPIKey, call.APIKey)
	require.Equal(t, "a@example.com", call.Body["email"])
}

func TestAuthClient_SignInWithPassword_InvalidCredentials(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	})

	session, err := NewAuthClient(client).SignInWithPassword(context.Background(), "a@example.com", "wrong")
	require.Nil(t, session)
	require.Error(t, err)
	require.True(t, IsRejected(err))
	require.False(t, IsTransient(err))
	require.Equal(t, "Invalid login credentials", MessageOf(err, "fallback"))

	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, "invalid_grant", se.Code)
}

func TestAuthClient_SignUp_SendsMetadata(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            userID1,
			"email":         "a@example.com",
			"user_metadata": map[string]any{"username": "alice", "display_name": "alice"},
		})
	})

	user, err := NewAuthClient(client).SignUp(context.Background(), SignUpParams{
		Email:    "a@example.com",
		Password: "secret",
		Username: "alice",
	})
	require.NoError(t, err)
	require.Equal(t, userID1, user.ID)
	require.Equal(t, "alice", user.Name)

	data, ok := (*calls)[0].Body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "alice", data["username"])
	require.Equal(t, "alice", data["display_name"])
}

func TestAuthClient_SignUp_SessionResponse(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "acc",
			"user":         map[string]any{"id": userID2, "email": "b@example.com"},
		})
	})

	user, err := NewAuthClient(client).SignUp(context.Background(), SignUpParams{Email: "b@example.com", Password: "p", Username: "b"})
	require.NoError(t, err)
	require.Equal(t, userID2, user.ID)
	require.Equal(t, "b", user.Name)
}

func TestAuthClient_GetUser(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            userID1,
			"email":         "a@example.com",
			"user_metadata": map[string]any{"display_name": "Alice"},
		})
	})
	auth := NewAuthClient(client)

	t.Run("有効なトークン", func(t *testing.T) {
		user, err := auth.GetUser(context.Background(), "good")
		require.NoError(t, err)
		require.Equal(t, &model.User{ID: userID1, Email: "a@example.com", Name: "Alice"}, user)
	})

	t.Run("拒否されたトークン", func(t *testing.T) {
		user, err := auth.GetUser(context.Background(), "bad")
		require.Nil(t, user)
		require.True(t, IsRejected(err))
		require.Equal(t, "invalid JWT", MessageOf(err, ""))
	})

	require.Equal(t, "Bearer good", (*calls)[0].Auth)
}

func TestAuthClient_GetUser_ServerErrorIsTransient(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := NewAuthClient(client).GetUser(context.Background(), "tok")
	require.Error(t, err)
	require.True(t, IsTransient(err))
	require.False(t, IsRejected(err))
}

func TestAuthClient_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, testAPIKey, &http.Client{Timeout: time.Second}, nil)
	_, err := NewAuthClient(client).GetUser(context.Background(), "tok")
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestAuthClient_RefreshSession(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "acc-2",
			"refresh_token": "ref-2",
		})
	})

	session, err := NewAuthClient(client).RefreshSession(context.Background(), model.Session{AccessToken: "acc-1", RefreshToken: "ref-1"})
	require.NoError(t, err)
	require.Equal(t, "acc-2", session.AccessToken)
	require.Equal(t, "ref-2", session.RefreshToken)

	call := (*calls)[0]
	require.Equal(t, "grant_type=refresh_token", call.Query)
	require.Equal(t, "ref-1", call.Body["refresh_token"])
}

func TestAuthClient_SignOutAndUpdateUser(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			writeJSON(w, http.StatusOK, map[string]any{"id": userID1, "email": "a@example.com"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	obs := &fakeObserver{}
	client.SetObserver(obs)
	auth := NewAuthClient(client)

	require.NoError(t, auth.SignOut(context.Background(), "acc"))
	require.NoError(t, auth.UpdateUser(context.Background(), "acc", UserUpdate{Password: "newpass"}))

	require.Len(t, *calls, 2)
	require.Equal(t, "/auth/v1/logout", (*calls)[0].Path)
	require.Equal(t, "Bearer acc", (*calls)[0].Auth)
	require.Equal(t, http.MethodPut, (*calls)[1].Method)
	require.Equal(t, "newpass", (*calls)[1].Body["password"])
	_, hasData := (*calls)[1].Body["data"]
	require.False(t, hasData)

	require.Equal(t, []observedCall{
		{"auth", "logout", ResultOK},
		{"auth", "update_user", ResultOK},
	}, obs.calls)
}

func TestAuthClient_GetUser_EmptyIDIsRejected(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "00000000-0000-0000-0000-000000000000"})
	})

	_, err := NewAuthClient(client).GetUser(context.Background(), "tok")
	require.True(t, IsRejected(err))
}

func TestAuthClient_SignInWithPassword_EmptyPasswordNotSent(t *testing.T) {
	client, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "acc"})
	})

	_, err := NewAuthClient(client).SignInWithPassword(context.Background(), "a@example.com", "")
	require.Error(t, err)
	require.True(t, IsRejected(err))
	require.Empty(t, *calls)
}

func TestAuthClient_PassesRequestContext(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewAuthClient(client).GetUser(ctx, "tok")
	require.Error(t, err)
	require.True(t, IsTransient(err))
	require.Less(t, time.Since(start), time.Second)
}

func TestAuthClient_TimeoutFromHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, testAPIKey, &http.Client{Timeout: 50 * time.Millisecond}, nil)
	err := NewAuthClient(client).SignOut(context.Background(), "tok")
	require.Error(t, err)
	require.True(t, IsTransient(err))
}

func TestParseError_NonJSONBody(t *testing.T) {
	e := parseError(http.StatusServiceUnavailable, []byte("<html>down</html>"))
	require.Equal(t, http.StatusServiceUnavailable, e.Status)
	require.Equal(t, "Service Unavailable", e.Message)
}
