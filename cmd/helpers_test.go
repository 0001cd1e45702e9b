package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/lureiq/internal/config"
	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/pkg/collector"
)

// setTestConfig installs a memory-backed config with no location, so no
// test touches the network unless it points a URL at an httptest server.
func setTestConfig(t *testing.T, collectorURL string) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "memory"},
		Collector: config.CollectorConfig{
			URL:              collectorURL,
			TimeoutSecs:      5,
			FailureThreshold: 3,
			ResetTimeoutSecs: 60,
		},
		Feedback: config.FeedbackConfig{DelayMinutes: 90},
		Retry:    config.RetryConfig{MaxAttempts: 1, InitialBackoffMs: 1, MaxBackoffMs: 1},
		Server:   config.ServerConfig{Port: 8080, AllowedOrigins: []string{"*"}},
	}
	t.Cleanup(func() { cfg = prev })
}

func newTestEnv(t *testing.T, collectorURL string) *appEnv {
	t.Helper()
	setTestConfig(t, collectorURL)
	env, err := initEnv(context.Background())
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}

// collectorServer records every uploaded batch and answers with status.
type collectorServer struct {
	*httptest.Server

	mu      sync.Mutex
	status  int
	batches [][]model.FeedbackRecord
}

func newCollectorServer(t *testing.T, status int) *collectorServer {
	t.Helper()
	cs := &collectorServer{status: status}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b collector.Batch
		_ = json.NewDecoder(r.Body).Decode(&b)
		cs.mu.Lock()
		cs.batches = append(cs.batches, b.Records)
		code := cs.status
		cs.mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *collectorServer) received() [][]model.FeedbackRecord {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([][]model.FeedbackRecord(nil), cs.batches...)
}

func newJSONServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
