package client

import (
	"context"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeDaemon(t *testing.T, stopping bool) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"web","command":"sleep 9","enabled":true,"running":true,"pid":42,"starts":1,"usage":{"memory_rss":1024}},
			{"name":"job","command":"exit 3","enabled":true,"running":false,"exit_code":3,"starts":2}]`))
	})
	mux.HandleFunc("/api/status/web", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"web","running":true,"pid":42}`))
	})
	mux.HandleFunc("/api/status/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"process nope not found"}`))
	})
	mux.HandleFunc("/api/global", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"owner":"ops"}`))
	})
	mux.HandleFunc("/api/healthz", func(w http.ResponseWriter, r *http.Request) {
		if stopping {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"ok":false,"stopping":true,"processes":2}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"processes":2}`))
	})
	return mux
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(fakeDaemon(t, false))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL + "/api/"})
	ctx := context.Background()

	all, err := c.Status(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 42, all[0].PID)
	require.NotNil(t, all[0].Usage)
	assert.Equal(t, uint64(1024), all[0].Usage.MemoryRSS)
	require.NotNil(t, all[1].ExitCode)
	assert.Equal(t, 3, *all[1].ExitCode)

	one, err := c.StatusOf(ctx, "web")
	require.NoError(t, err)
	assert.True(t, one.Running)

	_, err = c.StatusOf(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	g, err := c.Global(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "ops"}, g)
}

func TestClient_Health(t *testing.T) {
	srv := httptest.NewServer(fakeDaemon(t, true))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL + "/api"})

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, h.Stopping)
	assert.False(t, h.OK)
	assert.True(t, c.IsReachable(context.Background()))
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()

	c := New(Config{BaseURL: u, Timeout: time.Second})
	assert.False(t, c.IsReachable(context.Background()))
	_, err := c.Status(context.Background())
	assert.Error(t, err)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	_, err := New(Config{BaseURL: srv.URL}).Status(context.Background())
	assert.EqualError(t, err, "HTTP 500")
}

func TestClient_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(fakeDaemon(t, false))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL + "/api"}).Status(context.Background())
	assert.Error(t, err, "self-signed certificate is rejected by default")

	_, err = New(Config{BaseURL: srv.URL + "/api", Insecure: true}).Status(context.Background())
	assert.NoError(t, err)

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, pemBytes, 0o600))
	c := New(Config{BaseURL: srv.URL + "/api", TLS: &TLSClientConfig{Enabled: true, CACert: caPath}})
	_, err = c.Status(context.Background())
	assert.NoError(t, err)
}

func TestClientTLS_Config(t *testing.T) {
	_, err := clientTLS(Config{TLS: &TLSClientConfig{Enabled: true, CACert: "/nonexistent/ca.pem"}})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = clientTLS(Config{TLS: &TLSClientConfig{Enabled: true, CACert: bad}})
	assert.Error(t, err)

	cfg, err := clientTLS(Config{TLS: &TLSClientConfig{Enabled: true, SkipVerify: true, ServerName: "spawnd"}})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "spawnd", cfg.ServerName)
}
