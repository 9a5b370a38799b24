package engine

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/stubd/pkg/config"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_StartStop(t *testing.T) {
	e := newLoadedEngine(t, `
plugin: rest
resources:
  - path: /hello
    response:
      template: true
      content: 'served by ${system.server.url}'
`)
	srv := NewServer(e, WithAddr("127.0.0.1:0"), WithTimeouts(5*time.Second, 5*time.Second))
	ctx := context.Background()

	require.NoError(t, srv.Start(ctx))
	assert.Error(t, srv.Start(ctx), "second start fails")

	addr := srv.Addr()
	require.NotEmpty(t, addr)

	status, body := get(t, "http://"+addr+"/hello")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "served by http://localhost:")

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(stopCtx))
	require.NoError(t, srv.Stop(stopCtx), "stop is idempotent")
	assert.Empty(t, srv.Addr())
}

func TestServer_Reload(t *testing.T) {
	e := newLoadedEngine(t, `
plugin: rest
resources:
  - path: /v1
    response:
      content: one
`)
	srv := NewServer(e, WithAddr("127.0.0.1:0"), WithServerURL("http://mock.test"))
	require.NoError(t, srv.Start(context.Background()))
	defer srv.Stop(context.Background())
	base := "http://" + srv.Addr()

	status, _ := get(t, base+"/v2")
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, srv.Reload([]*config.Resource{
		{Path: "/v2", Response: &config.Response{Content: "two"}},
	}))
	status, body := get(t, base+"/v2")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "two", body)

	require.Error(t, srv.Reload([]*config.Resource{{Path: "no-slash"}}))
	status, _ = get(t, base+"/v2")
	assert.Equal(t, http.StatusOK, status, "invalid reload keeps the previous resources")

	assert.Equal(t, "http://mock.test", e.Expressions().EvalExpression("system.server.url", nil))
}
