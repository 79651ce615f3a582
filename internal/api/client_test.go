package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestClient_DecodesContents(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/species/connectivity", r.URL.Path)
		assert.Equal(t, "formula=H2O&partial", r.URL.RawQuery)
		_, _ = io.WriteString(w, `{"contents":[{"id":1,"formula":"H2O"}]}`)
	})

	var out []struct {
		ID      int64  `json:"id"`
		Formula string `json:"formula"`
	}
	err := c.Do(context.Background(), http.MethodGet, "/api/species/connectivity", "formula=H2O&partial", nil, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "H2O", out[0].Formula)
}

func TestClient_SendsJSONBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CC.[OH]", body["smiles"])
		w.WriteHeader(http.StatusCreated)
	})

	err := c.Do(context.Background(), http.MethodPost, "/api/species/connectivity", "", map[string]string{"smiles": "CC.[OH]"}, nil)
	assert.NoError(t, err)
}

func TestClient_EmptyBodyLeavesOutUntouched(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	out := []int{7}
	err := c.Do(context.Background(), http.MethodDelete, "/api/collection/1", "", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, out)
}

func TestClient_StatusError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"A user with this email already exists"}`)
	})

	err := c.Do(context.Background(), http.MethodPost, "/api/register", "", map[string]string{}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
	assert.Equal(t, "A user with this email already exists", ServerMessage(err))
	assert.False(t, IsUnauthorized(err))
}

func TestClient_StatusErrorWithoutEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.Do(context.Background(), http.MethodGet, "/api/@me", "", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
	assert.Equal(t, "boom", ServerMessage(err))
}

func TestClient_UnauthorizedWithoutMessage(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.Do(context.Background(), http.MethodGet, "/api/collection", "", nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Unauthorized", ServerMessage(err))
}

func TestClient_KeepsSessionCookie(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			_, _ = io.WriteString(w, `{"contents":{"id":1}}`)
		case "/api/@me":
			ck, err := r.Cookie("session")
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "abc", ck.Value)
			_, _ = io.WriteString(w, `{"contents":{"id":1,"email":"a@b.c"}}`)
		}
	})

	ctx := context.Background()
	require.NoError(t, c.Do(ctx, http.MethodPost, "/api/login", "", map[string]string{}, nil))

	var me struct {
		Email string `json:"email"`
	}
	require.NoError(t, c.Do(ctx, http.MethodGet, "/api/@me", "", nil, &me))
	assert.Equal(t, "a@b.c", me.Email)
}

func TestClient_ContextCancellation(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Do(ctx, http.MethodGet, "/api/@me", "", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, StatusCode(err))
}

func TestServerMessage_Nil(t *testing.T) {
	assert.Equal(t, "", ServerMessage(nil))
}

func TestWithHTTPClient_LeavesCallerClientAlone(t *testing.T) {
	hc := &http.Client{}

	c, err := New("http://example.test", WithHTTPClient(hc))
	require.NoError(t, err)
	assert.Nil(t, hc.Jar)
	assert.NotNil(t, c.http.Jar)
	assert.NotSame(t, hc, c.http)
}

func TestWithTimeout_SurvivesLaterHTTPClient(t *testing.T) {
	c, err := New("http://example.test",
		WithTimeout(3*time.Second),
		WithHTTPClient(&http.Client{}),
	)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.http.Timeout)

	c, err = New("http://example.test", WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.http.Timeout)
}
