// Package testutil provides shared helpers for tests that talk to the
// development backend.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flame/internal/api"
	"github.com/roach88/flame/internal/devserver"
)

// Backend is a seeded development server behind an httptest listener.
type Backend struct {
	Server *devserver.Server
	URL    string
	Client *api.Client
}

// NewBackend starts a development server seeded with fx and returns a
// client for it. Everything is torn down in t.Cleanup, including idle
// keep-alive connections, so goleak sees no stray goroutines.
func NewBackend(t testing.TB, fx devserver.Fixture, opts ...api.Option) *Backend {
	t.Helper()

	srv := devserver.New()
	require.NoError(t, srv.Seed(fx))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)

	opts = append([]api.Option{api.WithHTTPClient(&http.Client{Transport: tr})}, opts...)
	client, err := api.New(hs.URL, opts...)
	require.NoError(t, err)

	return &Backend{Server: srv, URL: hs.URL, Client: client}
}
