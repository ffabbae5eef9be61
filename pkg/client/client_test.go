package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"phase":"idle","last_cycle":{"id":"c1","up":["5011"],"down":["5012"],"suppressed":["5012"]},
			"targets":[{"id":"5011","port":5011,"probe":"listen:5011","checked":true,"up":true,"remaining":3},
			{"id":"5012","port":5012,"probe":"listen:5012","checked":true,"up":false,"suppressed":true,"attempts_in_window":3}]}`))
	})
	mux.HandleFunc("/api/status/5011", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"5011","port":5011,"up":true,"remaining":3}`))
	})
	mux.HandleFunc("/api/status/9999", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown target 9999"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStatus(t *testing.T) {
	srv := apiServer(t)
	c, err := New(Config{BaseURL: srv.URL + "/api/"})
	require.NoError(t, err)
	ctx := context.Background()

	assert.True(t, c.IsReachable(ctx))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "idle", st.Phase)
	require.Len(t, st.Targets, 2)
	assert.True(t, st.Targets[1].Suppressed)
	assert.Equal(t, 3, st.Targets[1].Attempts)
	require.NotNil(t, st.LastCycle)
	assert.Equal(t, []string{"5012"}, st.LastCycle.Suppressed)

	ts, err := c.Target(ctx, 5011)
	require.NoError(t, err)
	assert.True(t, ts.Up)

	_, err = c.Target(ctx, 9999)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "unknown target 9999")
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url})
	require.NoError(t, err)
	assert.False(t, c.IsReachable(context.Background()))
	_, err = c.Status(context.Background())
	assert.Error(t, err)
}

func TestClientServerErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestClientTLSConfig(t *testing.T) {
	_, err := New(Config{TLS: &TLSClientConfig{CACert: filepath.Join(t.TempDir(), "missing.pem")}})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = New(Config{TLS: &TLSClientConfig{CACert: bad}})
	assert.Error(t, err)

	c, err := New(Config{Insecure: true})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, c.baseURL)
}

func TestClientAgainstTLSServer(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, Insecure: true})
	require.NoError(t, err)
	assert.True(t, c.IsReachable(context.Background()))
}
