// Package main contains integration tests for the API server.
package main

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/onnwee/marketrank/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               8080,
		Env:                "test",
		CacheTTLSeconds:    config.DefaultCacheTTLSeconds,
		MaxRecords:         100,
		RateLimitPerMinute: 1000,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()
	a, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("newApp() failed: %v", err)
	}
	srv := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		srv.Close()
		a.close()
	})
	return srv
}

// freeAddr returns a loopback address with a free port.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// waitForServer polls addr until it accepts connections.
func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server failed to start in time")
}

// TestApp_Routes tests the wired router end to end.
func TestApp_Routes(t *testing.T) {
	srv := newTestApp(t, testConfig())

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
	}{
		{name: "root", method: http.MethodGet, path: "/", expectedStatus: http.StatusOK},
		{name: "unknown path", method: http.MethodGet, path: "/markets", expectedStatus: http.StatusNotFound},
		{name: "rank", method: http.MethodPost, path: "/trending", body: `{"records": [{"id": "a", "impressions": 3}]}`, expectedStatus: http.StatusOK},
		{name: "rank wrong method", method: http.MethodGet, path: "/trending", expectedStatus: http.StatusMethodNotAllowed},
		{name: "rank invalid", method: http.MethodPost, path: "/trending", body: `{"records": 1}`, expectedStatus: http.StatusBadRequest},
		{name: "presets", method: http.MethodGet, path: "/trending/presets", expectedStatus: http.StatusOK},
		{name: "preset", method: http.MethodGet, path: "/trending/presets/balanced", expectedStatus: http.StatusOK},
		{name: "unknown preset", method: http.MethodGet, path: "/trending/presets/viral", expectedStatus: http.StatusNotFound},
		{name: "defaults", method: http.MethodGet, path: "/trending/defaults", expectedStatus: http.StatusOK},
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "ready", method: http.MethodGet, path: "/ready", expectedStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{name: "profiling disabled", method: http.MethodGet, path: "/debug/pprof/", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected status %d, got %d: %s", tt.expectedStatus, resp.StatusCode, body)
			}
			if resp.Header.Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID header")
			}
		})
	}
}

// TestApp_RankCachesAndCounts tests caching and metrics across the stack.
func TestApp_RankCachesAndCounts(t *testing.T) {
	srv := newTestApp(t, testConfig())
	body := `{"records": [{"id": "a", "impressions": 3}, {"id": "b", "last_24hrs": true}], "preset": "top10"}`

	var cacheHeaders []string
	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/trending", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var ranked struct {
			Items []map[string]any `json:"items"`
			Count int              `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		resp.Body.Close()

		if ranked.Count != 2 || ranked.Items[0]["id"] != "b" {
			t.Errorf("unexpected ranking: %+v", ranked)
		}
		cacheHeaders = append(cacheHeaders, resp.Header.Get("X-Cache"))
	}
	if cacheHeaders[0] != "MISS" || cacheHeaders[1] != "HIT" {
		t.Errorf("expected MISS then HIT, got %v", cacheHeaders)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()
	metrics, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`ranking_requests_total{outcome="ok",preset="top10"} 2`,
		`ranking_cache_hits_total 1`,
		`http_requests_total{method="POST",path="/trending",status="200"} 2`,
	} {
		if !bytes.Contains(metrics, []byte(want)) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

// TestApp_RankingRateLimit tests the tighter limit on the ranking endpoint.
func TestApp_RankingRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	srv := newTestApp(t, cfg)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/trending", "application/json", strings.NewReader(`{"records": []}`))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
		if i == 2 && resp.Header.Get("Retry-After") == "" {
			t.Error("expected Retry-After on blocked request")
		}
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("expected 200, 200, 429, got %v", statuses)
	}
}

// TestApp_CORS tests that configured origins receive CORS headers.
func TestApp_CORS(t *testing.T) {
	cfg := testConfig()
	cfg.CORSAllowedOrigins = "https://markets.example.com"
	srv := newTestApp(t, cfg)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/trending", nil)
	req.Header.Set("Origin", "https://markets.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://markets.example.com" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}

// TestApp_InvalidRedisURL tests that a bad Redis URL fails wiring.
func TestApp_InvalidRedisURL(t *testing.T) {
	cfg := testConfig()
	cfg.RedisURL = "http://localhost:6379"

	if _, err := newApp(cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

// TestServe_GracefulShutdown tests that the server handles signals correctly
// and logs in order.
func TestServe_GracefulShutdown(t *testing.T) {
	var logBuf bytes.Buffer
	var logMu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &logBuf, mu: &logMu}, nil))

	addr := freeAddr(t)
	server := &http.Server{
		Addr:    addr,
		Handler: http.NotFoundHandler(),
	}

	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- serve(server, logger, quit) }()

	waitForServer(t, addr)
	quit <- syscall.SIGTERM

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}

	logMu.Lock()
	logs := logBuf.String()
	logMu.Unlock()
	startIdx := strings.Index(logs, "starting server")
	shutdownIdx := strings.Index(logs, "shutting down server")
	stoppedIdx := strings.Index(logs, "server stopped")

	if startIdx == -1 || shutdownIdx == -1 || stoppedIdx == -1 {
		t.Fatalf("expected start, shutdown and stop log messages, got: %s", logs)
	}
	if startIdx > shutdownIdx || shutdownIdx > stoppedIdx {
		t.Error("expected log messages in start, shutdown, stop order")
	}
}

// TestServe_InFlightRequests tests that in-flight requests complete before shutdown.
func TestServe_InFlightRequests(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerCanContinue := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(handlerStarted)
		<-handlerCanContinue
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	})

	addr := freeAddr(t)
	server := &http.Server{Addr: addr, Handler: mux}
	quit := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() { done <- serve(server, slog.New(slog.NewTextHandler(io.Discard, nil)), quit) }()
	waitForServer(t, addr)

	type result struct {
		status int
		err    error
	}
	requestDone := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err != nil {
			requestDone <- result{err: err}
			return
		}
		resp.Body.Close()
		requestDone <- result{status: resp.StatusCode}
	}()

	select {
	case <-handlerStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler failed to start in time")
	}

	quit <- syscall.SIGINT
	time.Sleep(50 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("server stopped before in-flight request finished")
	default:
	}

	close(handlerCanContinue)

	res := <-requestDone
	if res.err != nil {
		t.Fatalf("request error: %v", res.err)
	}
	if res.status != http.StatusOK {
		t.Errorf("expected status 200, got %d", res.status)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("server failed to stop in time")
	}
}

// TestServe_ListenError tests that a listen failure is returned.
func TestServe_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	server := &http.Server{Addr: ln.Addr().String()}
	if err := serve(server, slog.New(slog.NewTextHandler(io.Discard, nil)), make(chan os.Signal)); err == nil {
		t.Error("expected error when address is in use")
	}
}

// TestSignalNotify_SIGTERM tests that SIGTERM is delivered to the notify channel.
func TestSignalNotify_SIGTERM(t *testing.T) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM)
	defer signal.Stop(quit)

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case sig := <-quit:
		if sig != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", sig)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive SIGTERM signal")
	}
}

// lockedWriter serializes writes from the server goroutine and the test.
type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
