// ABOUTME: Tests for the extension WebSocket transport against a real httptest server.
// ABOUTME: Covers correlation over the wire, disconnect draining, replacement, origins and pings.

package extension

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/dom-relay/internal/fakedom"
	"github.com/2389/dom-relay/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts Options) (*relay.Relay, *Handler, string) {
	t.Helper()
	r := relay.New(relay.Options{Logger: testLogger()})
	opts.Logger = testLogger()
	h := NewHandler(r, opts)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		r.Close()
		srv.Close()
	})
	return r, h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitConnected(t *testing.T, r *relay.Relay, want relay.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.Hub().State() == want
	}, 2*time.Second, 5*time.Millisecond, "hub never reached %s", want)
}

// serveDocument answers relay commands from doc until the connection ends.
func serveDocument(conn *websocket.Conn, doc *fakedom.Document) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if out := doc.HandleRaw(msg); out != nil {
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}
}

func TestHandler_RoundTrip(t *testing.T) {
	r, _, url := newTestServer(t, Options{})
	conn := dial(t, url, nil)
	waitConnected(t, r, relay.StateConnected)

	doc, err := fakedom.ParseString(`<input id="x" value="hello">`)
	require.NoError(t, err)
	go serveDocument(conn, doc)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := r.Execute(ctx, relay.ActionRequest{Action: relay.ActionRead, Selector: "#x"})
	require.NoError(t, err)
	assert.Equal(t, relay.Result{Success: true, Data: "hello", ElementType: "input"}, res)
}

func TestHandler_TestPageSequence(t *testing.T) {
	r, _, url := newTestServer(t, Options{})
	conn := dial(t, url, http.Header{"Origin": []string{"chrome-extension://abcdef"}})
	waitConnected(t, r, relay.StateConnected)
	go serveDocument(conn, fakedom.TestPage())

	value := "Hello World"
	steps := []relay.ActionRequest{
		{Action: relay.ActionWrite, Selector: "#test-input", Value: &value},
		{Action: relay.ActionRead, Selector: "#test-input"},
		{Action: relay.ActionClick, Selector: "#test-button"},
		{Action: relay.ActionRead, Selector: "#test-output"},
	}

	var last relay.Result
	for _, step := range steps {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		res, err := r.Execute(ctx, step)
		cancel()
		require.NoError(t, err)
		require.True(t, res.Success, "%s %s: %s", step.Action, step.Selector, res.Error)
		last = res
	}
	assert.Equal(t, "Input: Hello World, Textarea: empty", last.Data)
}

func TestHandler_ClientCloseDrainsPending(t *testing.T) {
	r, _, url := newTestServer(t, Options{})
	conn := dial(t, url, nil)
	waitConnected(t, r, relay.StateConnected)

	w1 := r.Submit(relay.ActionRequest{Action: relay.ActionRead, Selector: "#a"})
	w2 := r.Submit(relay.ActionRequest{Action: relay.ActionRead, Selector: "#b"})

	// Consume both requests so they are known to be in flight, then drop.
	for i := 0; i < 2; i++ {
		_, _, err := conn.ReadMessage()
		require.NoError(t, err)
	}
	require.NoError(t, conn.Close())

	for _, w := range []*relay.Waiter{w1, w2} {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		res, err := w.Wait(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, relay.ErrorDisconnected, res.Error)
	}
	waitConnected(t, r, relay.StateAbsent)
	assert.Equal(t, 0, r.Table().Len())
}

func TestHandler_SecondConnectionReplacesFirst(t *testing.T) {
	r, _, url := newTestServer(t, Options{})
	first := dial(t, url, nil)
	waitConnected(t, r, relay.StateConnected)

	pending := r.Submit(relay.ActionRequest{Action: relay.ActionRead, Selector: "#a"})
	_, _, err := first.ReadMessage()
	require.NoError(t, err)

	second := dial(t, url, nil)
	go serveDocument(second, fakedom.TestPage())

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	res, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, relay.ErrorDisconnected, res.Error)

	// The first socket is closed by the relay.
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = first.ReadMessage()
	assert.Error(t, err)

	res, err = r.Execute(ctx, relay.ActionRequest{Action: relay.ActionRead, Selector: "#test-output"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, relay.StateConnected, r.Hub().State())
}

func TestHandler_Origins(t *testing.T) {
	_, _, url := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	allowed := []string{
		"chrome-extension://abc",
		"moz-extension://abc",
		"safari-web-extension://abc",
		"http://localhost:3000",
	}
	for _, origin := range allowed {
		conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{origin}})
		require.NoError(t, err, origin)
		_ = resp.Body.Close()
		_ = conn.Close()
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandler_RejectsNonLoopback(t *testing.T) {
	r := relay.New(relay.Options{Logger: testLogger()})
	h := NewHandler(r, Options{Logger: testLogger()})

	req := httptest.NewRequest(http.MethodGet, "/extension", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, relay.StateAbsent, r.Hub().State())
}

func TestHandler_Pings(t *testing.T) {
	_, _, url := newTestServer(t, Options{PingInterval: 20 * time.Millisecond})
	conn := dial(t, url, nil)

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	assert.Eventually(t, func() bool { return pings.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_SilentPeerDropped(t *testing.T) {
	r, _, url := newTestServer(t, Options{PingInterval: -1, ReadTimeout: 50 * time.Millisecond})
	dial(t, url, nil)
	waitConnected(t, r, relay.StateConnected)
	waitConnected(t, r, relay.StateAbsent)
}

func TestHandler_MalformedMessagesIgnored(t *testing.T) {
	r, _, url := newTestServer(t, Options{})
	conn := dial(t, url, nil)
	waitConnected(t, r, relay.StateConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`)))
	raw, _ := json.Marshal(map[string]any{"id": 7, "success": true})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))

	require.Eventually(t, func() bool {
		return r.Snapshot().Stats.Dropped == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, relay.StateConnected, r.Hub().State())
}

func TestIsLoopbackAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:1234", true},
		{"127.8.8.8:1", true},
		{"[::1]:80", true},
		{"localhost:80", true},
		{"10.0.0.1:80", false},
		{"[2001:db8::1]:80", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLoopbackAddr(tt.addr), tt.addr)
	}
}
