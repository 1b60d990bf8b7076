package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/strata"
	httpadapter "github.com/aretw0/strata/pkg/adapters/http"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkspace(t *testing.T, opts ...strata.Option) *strata.Workspace {
	t.Helper()
	base := []strata.Option{
		strata.WithName("http-test"),
		strata.WithInitialState(domain.Tree{"canvas": map[string]any{"color": "white"}}),
	}
	ws, err := strata.New(append(base, opts...)...)
	require.NoError(t, err)
	return ws
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestServer_ExecuteUndoRedo(t *testing.T) {
	ws := newWorkspace(t)
	h := httpadapter.NewHandler(ws)

	w := do(t, h, "POST", "/commands/merge", httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "canvas", "patch": map[string]any{"color": "red"}},
		Label:   "Paint red",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[httpadapter.ResultResponse](t, w)
	assert.Equal(t, 0, res.Pointer)
	assert.Equal(t, 1, res.Length)
	assert.Equal(t, uint64(1), res.Version)

	w = do(t, h, "GET", "/state/canvas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"color": "red"}, decode[map[string]any](t, w))

	w = do(t, h, "POST", "/undo", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, decode[httpadapter.ResultResponse](t, w).Pointer)

	w = do(t, h, "GET", "/state", nil)
	state := decode[httpadapter.StateResponse](t, w)
	assert.Equal(t, map[string]any{"color": "white"}, state.State["canvas"])

	w = do(t, h, "POST", "/redo", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, "GET", "/history", nil)
	hist := decode[httpadapter.HistoryResponse](t, w)
	assert.Equal(t, 0, hist.Pointer)
	assert.True(t, hist.CanUndo)
	assert.False(t, hist.CanRedo)
	require.Len(t, hist.Entries, 1)
	assert.Equal(t, "Paint red", hist.Entries[0].Label)
}

func TestServer_ErrorStatus(t *testing.T) {
	ws := newWorkspace(t)
	h := httpadapter.NewHandler(ws)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown command", "POST", "/commands/bogus", httpadapter.ExecuteRequest{}, http.StatusNotFound},
		{"unknown slice", "GET", "/state/missing", nil, http.StatusNotFound},
		{"bad window", "POST", "/commands/set", httpadapter.ExecuteRequest{CoalesceWindow: "soon"}, http.StatusBadRequest},
		{"bad capacity", "PUT", "/history/settings", map[string]any{"capacity": 0}, http.StatusBadRequest},
		{"no checkpoint store", "GET", "/checkpoints", nil, http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
}

func TestServer_Settings(t *testing.T) {
	ws := newWorkspace(t)
	h := httpadapter.NewHandler(ws)

	w := do(t, h, "PUT", "/history/settings", map[string]any{"capacity": 5, "coalesce_window": "1s"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	hist := decode[httpadapter.HistoryResponse](t, w)
	assert.Equal(t, 5, hist.Capacity)
	assert.Equal(t, "1s", hist.CoalesceWindow)
}

func TestServer_ClearAndMermaid(t *testing.T) {
	ws := newWorkspace(t)
	h := httpadapter.NewHandler(ws)

	do(t, h, "POST", "/commands/set", httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "layers", "value": []any{"bg"}},
	})

	w := do(t, h, "GET", "/history?format=mermaid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph LR")

	w = do(t, h, "DELETE", "/history", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, ws.History().Len())
}

func TestServer_Checkpoints(t *testing.T) {
	ws := newWorkspace(t, strata.WithCheckpointStore(memory.NewStore()))
	h := httpadapter.NewHandler(ws)

	do(t, h, "POST", "/commands/merge", httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "canvas", "patch": map[string]any{"color": "red"}},
	})

	w := do(t, h, "POST", "/checkpoints/doc-1", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, "GET", "/checkpoints", nil)
	assert.Equal(t, []string{"doc-1"}, decode[[]string](t, w))

	w = do(t, h, "GET", "/checkpoints/doc-1", nil)
	cp := decode[domain.Checkpoint](t, w)
	assert.Equal(t, map[string]any{"color": "red"}, cp.State["canvas"])
	assert.Len(t, cp.History, 1)

	do(t, h, "POST", "/undo", nil)

	w = do(t, h, "POST", "/checkpoints/doc-1/restore", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"color": "red"}, decode[httpadapter.StateResponse](t, w).State["canvas"])
	assert.Equal(t, 0, ws.History().Len())

	w = do(t, h, "DELETE", "/checkpoints/doc-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, "POST", "/checkpoints/doc-1/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Schema(t *testing.T) {
	ws := newWorkspace(t, strata.WithSchema(schema.Schema{"zoom": schema.Float()}))
	h := httpadapter.NewHandler(ws)

	w := do(t, h, "GET", "/schema", nil)
	assert.Equal(t, map[string]string{"zoom": "float"}, decode[map[string]string](t, w))

	w = do(t, h, "POST", "/commands/set", httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "zoom", "value": "large"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ws := newWorkspace(t, strata.WithMetrics(reg))
	h := httpadapter.NewHandler(ws, httpadapter.WithGatherer(reg))

	do(t, h, "POST", "/commands/set", httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "zoom", "value": 2},
	})

	w := do(t, h, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "strata_history_length 1")
}

func TestServer_Info(t *testing.T) {
	h := httpadapter.NewHandler(newWorkspace(t))

	w := do(t, h, "GET", "/info", nil)
	info := decode[map[string]string](t, w)
	assert.Equal(t, strata.Version, info["version"])
	assert.Equal(t, "http-test", info["workspace"])

	w = do(t, h, "OPTIONS", "/state", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_SSE(t *testing.T) {
	ws := newWorkspace(t)
	srv := httpadapter.NewServer(ws)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/events?kinds=history:execute", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	// The handler is subscribed once the ping was flushed.
	require.Eventually(t, func() bool { return srv.Streams.Len() == 1 }, time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(httpadapter.ExecuteRequest{
		Payload: map[string]any{"slice": "canvas", "value": map[string]any{"color": "blue"}},
	})
	post, err := http.Post(ts.URL+"/commands/set", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	var event, data string
	for lines.Scan() {
		line := lines.Text()
		if kind, ok := strings.CutPrefix(line, "event: "); ok && kind != "ping" {
			event = kind
			require.True(t, lines.Scan())
			data = strings.TrimPrefix(lines.Text(), "data: ")
			break
		}
	}

	// store:change is filtered out.
	assert.Equal(t, "history:execute", event)
	assert.Contains(t, data, `"type":"set"`)
}
