package hosting

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/speedrun/internal/metrics"
)

type recorded struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recorded, *metrics.Metrics) {
	t.Helper()

	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	m := metrics.New()
	client := New(Config{URL: srv.URL + "/v1/", Token: "secret", ServerID: "abc123"}, m)

	return client, &calls, m
}

func TestStatus(t *testing.T) {
	client, calls, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"error":null,"data":{"id":"abc123","status":3}}`)
	})

	code, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusStopping, code)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodGet, (*calls)[0].method)
	assert.Equal(t, "/v1/servers/abc123/", (*calls)[0].path)
	assert.Equal(t, "Bearer secret", (*calls)[0].auth)
}

func TestStatusUnsuccessfulEnvelope(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":false,"error":"Server not found","data":null}`)
	})

	_, err := client.Status(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "Server not found", terr.Body)
}

func TestPowerCalls(t *testing.T) {
	client, calls, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":null}`)
	})
	ctx := context.Background()

	require.NoError(t, client.Stop(ctx))
	require.NoError(t, client.Start(ctx))
	require.NoError(t, client.Restart(ctx))

	require.Len(t, *calls, 3)
	for i, suffix := range []string{"stop/", "start/", "restart/"} {
		assert.Equal(t, http.MethodPost, (*calls)[i].method)
		assert.Equal(t, "/v1/servers/abc123/"+suffix, (*calls)[i].path)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("restart", "success")))
}

func TestFileCalls(t *testing.T) {
	client, calls, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, "motd=hello\nlevel-seed=1\n")
		}
	})
	ctx := context.Background()

	content, err := client.ReadFile(ctx, "server.properties")
	require.NoError(t, err)
	assert.Equal(t, "motd=hello\nlevel-seed=1\n", content)

	require.NoError(t, client.WriteFile(ctx, "server.properties", "level-seed=2\n"))
	require.NoError(t, client.DeleteFile(ctx, "/world_the_end/"))
	require.NoError(t, client.DeleteFile(ctx, "my world/region"))

	require.Len(t, *calls, 4)
	assert.Equal(t, "/v1/servers/abc123/files/data/server.properties", (*calls)[0].path)
	assert.Equal(t, http.MethodPut, (*calls)[1].method)
	assert.Equal(t, "level-seed=2\n", (*calls)[1].body)
	assert.Equal(t, http.MethodDelete, (*calls)[2].method)
	assert.Equal(t, "/v1/servers/abc123/files/data/world_the_end", (*calls)[2].path)
	assert.Equal(t, "/v1/servers/abc123/files/data/my%20world/region", (*calls)[3].path)
}

func TestTransportError(t *testing.T) {
	client, _, m := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "server is not offline", http.StatusConflict)
	})

	err := client.Start(context.Background())
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "start", terr.Op)
	assert.Equal(t, http.StatusConflict, terr.StatusCode)
	assert.Equal(t, "server is not offline", terr.Body)
	assert.Contains(t, terr.Error(), "409")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("start", "error")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "OFFLINE", StatusLabel(StatusOffline))
	assert.Equal(t, "ONLINE", StatusLabel(StatusOnline))
	assert.Equal(t, "PREPARING", StatusLabel(StatusPreparing))
	assert.Equal(t, "UNKNOWN", StatusLabel(9))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{URL: "https://x"}.Enabled())
	assert.True(t, Config{URL: "https://x", Token: "t", ServerID: "s"}.Enabled())
}
