package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climacast/recoverd/internal/alert"
)

// Warning-severity events must reach the webhook channel, not only the
// log. A cancelled rollout alerts at warning and the on-call webhook is
// its delivery path.
func TestRuntimeWebhookReceivesWarnings(t *testing.T) {
	var mu sync.Mutex
	var received []alert.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e alert.Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("base_dir: %q\nenvironments:\n  staging:\n    webhook_url: %q\n", dir, srv.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	prevConfig, prevEnv := flagConfig, flagEnv
	flagConfig, flagEnv = cfgPath, "staging"
	t.Cleanup(func() { flagConfig, flagEnv = prevConfig, prevEnv })

	rt, err := newRuntime(false)
	require.NoError(t, err)
	defer rt.close()

	rt.alerts.Dispatch(context.Background(),
		alert.NewEvent(alert.Warning, "climacast-forecast", "drill", "rollout cancelled mid-flight", nil))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1, "warning event should be delivered to the webhook")
	assert.Equal(t, alert.Warning, received[0].Severity)
	assert.Equal(t, "rollout cancelled mid-flight", received[0].Message)
}
