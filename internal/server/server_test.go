package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/aerctl/internal/auth"
	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/receiver"
	"github.com/danmuck/aerctl/internal/sink"
	"github.com/danmuck/aerctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type fakeCapture struct {
	running bool
	resets  []bool
}

func (f *fakeCapture) Snapshot() capture.Stats {
	return capture.Stats{Receiver: receiver.Stats{WordsOK: 7}, LastStatus: "ok"}
}

func (f *fakeCapture) RequestReset(clearCounters bool) { f.resets = append(f.resets, clearCounters) }

func (f *fakeCapture) Running() bool { return f.running }

type fakeStream struct {
	enabled bool
	stats   sink.StreamStats
}

func (f *fakeStream) Stats() sink.StreamStats { return f.stats }
func (f *fakeStream) ResetStats()             { f.stats = sink.StreamStats{} }
func (f *fakeStream) Enabled() bool           { return f.enabled }
func (f *fakeStream) SetEnabled(v bool)       { f.enabled = v }

func newTestServer(t *testing.T, stream StreamControl) (*Server, *fakeCapture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c := &fakeCapture{running: true}
	return New(Config{ID: "aerctl-test"}, c, stream, zerolog.Nop()), c
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s, c := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/health")
	if w.Code != http.StatusOK || decode(t, w)["service"] != "aerctl-test" {
		t.Fatalf("health %d %s", w.Code, w.Body.String())
	}
	if w := do(t, s, http.MethodGet, "/ready"); w.Code != http.StatusOK {
		t.Fatalf("ready %d", w.Code)
	}
	c.running = false
	if w := do(t, s, http.MethodGet, "/ready"); w.Code != http.StatusServiceUnavailable || decode(t, w)["ready"] != false {
		t.Fatalf("not ready %d %s", w.Code, w.Body.String())
	}
}

func TestStatsAndReset(t *testing.T) {
	testlog.Start(t)
	stream := &fakeStream{enabled: true, stats: sink.StreamStats{SentOK: 3}}
	s, c := newTestServer(t, stream)

	w := do(t, s, http.MethodGet, "/stats")
	body := decode(t, w)
	capt, ok := body["capture"].(map[string]any)
	if w.Code != http.StatusOK || !ok || body["stream_enabled"] != true {
		t.Fatalf("stats %d %s", w.Code, w.Body.String())
	}
	if rx := capt["receiver"].(map[string]any); rx["words_ok"] != float64(7) {
		t.Fatalf("receiver=%v", rx)
	}

	if w := do(t, s, http.MethodPost, "/stats/reset"); w.Code != http.StatusAccepted {
		t.Fatalf("reset %d", w.Code)
	}
	if stream.stats.SentOK != 3 {
		t.Fatalf("flag-only reset cleared stream counters")
	}
	if w := do(t, s, http.MethodPost, "/stats/reset?counters=true"); w.Code != http.StatusAccepted {
		t.Fatalf("reset counters %d", w.Code)
	}
	if len(c.resets) != 2 || c.resets[0] || !c.resets[1] || stream.stats.SentOK != 0 {
		t.Fatalf("resets=%v stream=%+v", c.resets, stream.stats)
	}
	if w := do(t, s, http.MethodPost, "/stats/reset?counters=maybe"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad counters %d", w.Code)
	}
}

func TestSinkSwitch(t *testing.T) {
	testlog.Start(t)
	stream := &fakeStream{enabled: true}
	s, _ := newTestServer(t, stream)

	if w := do(t, s, http.MethodPost, "/sink/enabled/off"); w.Code != http.StatusOK || stream.enabled {
		t.Fatalf("off %d enabled=%v", w.Code, stream.enabled)
	}
	if w := do(t, s, http.MethodPost, "/sink/enabled/on"); w.Code != http.StatusOK || !stream.enabled {
		t.Fatalf("on %d enabled=%v", w.Code, stream.enabled)
	}
	if w := do(t, s, http.MethodPost, "/sink/enabled/sideways"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad state %d", w.Code)
	}

	bare, _ := newTestServer(t, nil)
	if w := do(t, bare, http.MethodPost, "/sink/enabled/on"); w.Code != http.StatusNotFound {
		t.Fatalf("no stream %d", w.Code)
	}
}

func TestMutatingRoutesRequireToken(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	stream := &fakeStream{enabled: true}
	c := &fakeCapture{running: true}
	s := New(Config{ID: "aerctl-test", Auth: auth.StaticToken{Token: "s3cret"}}, c, stream, zerolog.Nop())

	if w := do(t, s, http.MethodPost, "/sink/enabled/off"); w.Code != http.StatusUnauthorized || !stream.enabled {
		t.Fatalf("unauthenticated switch %d enabled=%v", w.Code, stream.enabled)
	}
	if w := do(t, s, http.MethodGet, "/stats"); w.Code != http.StatusOK {
		t.Fatalf("stats should stay open: %d", w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/stats/reset", nil)
	req.Header.Set(auth.TokenHeader, "s3cret")
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted || len(c.resets) != 1 {
		t.Fatalf("authenticated reset %d resets=%v", w.Code, c.resets)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)
	_ = do(t, s, http.MethodGet, "/health")
	w := do(t, s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "aerctl_http_requests_total") {
		t.Fatalf("metrics %d", w.Code)
	}
}

func TestServeListenerShutsDownOnCancel(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
