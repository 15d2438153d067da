package e2e_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/climacast/recoverd/internal/backup"
	"github.com/climacast/recoverd/internal/vecindex"
)

// TestEnv is a temporary isolated environment for a single test: its own
// HOME with a ~/.recoverd tree, a config pointing every external surface
// at closed local ports, and a kubeconfig for a control plane that will
// never answer. Nothing in these tests needs a real cluster.
type TestEnv struct {
	Home string
	T    *testing.T
}

func (e *TestEnv) baseDir() string    { return filepath.Join(e.Home, ".recoverd") }
func (e *TestEnv) backupDir() string  { return filepath.Join(e.baseDir(), "backups", "staging") }
func (e *TestEnv) reportsDir() string { return filepath.Join(e.baseDir(), "reports") }

// newTestEnv creates the isolated environment. Probe URLs point at a
// closed loopback port so every probe fails fast instead of timing out.
func newTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	home := t.TempDir()
	e := &TestEnv{Home: home, T: t}

	kubeconfigPath := filepath.Join(home, "kubeconfig")
	kubeconfig := `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:19187
  name: drill
contexts:
- context:
    cluster: drill
    user: drill
  name: drill
current-context: drill
users:
- name: drill
  user: {}
`
	if err := os.WriteFile(kubeconfigPath, []byte(kubeconfig), 0644); err != nil {
		t.Fatalf("write kubeconfig: %v", err)
	}

	configContent := fmt.Sprintf(`base_dir: %q
default_environment: staging
environments:
  staging:
    base_url: http://127.0.0.1:19188
    search_url: http://127.0.0.1:19188/v1/search/healthz
    kubeconfig: %q
    kube_context: drill
    probe_timeout_seconds: 2
    cycle_timeout_seconds: 5
    rollback:
      settle_delay_seconds: 0
      recheck_attempts: 1
      recheck_interval_seconds: 1
`, e.baseDir(), kubeconfigPath)

	if err := os.MkdirAll(e.baseDir(), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	configPath := filepath.Join(e.baseDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config.yaml: %v", err)
	}

	return e
}

// seedBackups writes one verifiable release manifest, its search-index
// snapshot and the last-known-good pointer into the staging backup store.
func (e *TestEnv) seedBackups() {
	e.T.Helper()

	dir := e.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.T.Fatalf("mkdir backups: %v", err)
	}

	config := map[string]string{"release": "v2.3.0", "forecast_horizon_days": "7"}
	rel := &backup.Release{
		Tag:             "v2.3.0",
		Image:           "climacast/forecast:v2.3.0",
		Replicas:        3,
		Config:          config,
		ConfigHash:      backup.ConfigHash(config),
		IndexSnapshot:   "indexes/v2.3.0.db",
		IndexDimensions: 8,
		CreatedAt:       "2026-08-20T11:30:00Z",
	}
	if err := backup.WriteRelease(dir, "20260820T1130Z-v2.3.0.json", rel); err != nil {
		e.T.Fatalf("write release: %v", err)
	}
	if err := backup.WritePointer(dir, "20260820T1130Z-v2.3.0.json"); err != nil {
		e.T.Fatalf("write pointer: %v", err)
	}

	indexPath := filepath.Join(dir, "indexes", "v2.3.0.db")
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		e.T.Fatalf("mkdir indexes: %v", err)
	}
	ix, err := vecindex.Open(indexPath, rel.IndexDimensions)
	if err != nil {
		e.T.Fatalf("open index: %v", err)
	}
	defer ix.Close()
	emb := make([]float32, rel.IndexDimensions)
	emb[0] = 1.0
	if err := ix.Add(context.Background(), "doc-1", "hourly forecast", emb); err != nil {
		e.T.Fatalf("seed index: %v", err)
	}
}

// runRecoverd executes the compiled binary with the given arguments.
func (e *TestEnv) runRecoverd(args ...string) (stdout, stderr string, exitCode int) {
	e.T.Helper()

	cmd := exec.Command(recoverdBin, args...)
	cmd.Env = []string{
		"HOME=" + e.Home,
		"PATH=" + os.Getenv("PATH"),
		"USER=" + os.Getenv("USER"),
	}

	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()

	exitCode = 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	return outBuf.String(), errBuf.String(), exitCode
}

// fileExists returns true if path exists and is not a directory.
func (e *TestEnv) fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
