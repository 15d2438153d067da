// Package backup reads the release backups the deployment pipeline writes
// for each shipped version of the forecast service. A backup is a JSON
// release manifest stored under a date-prefixed key, pointing at the release
// image, its config payload and its search-index snapshot. recoverd only
// reads this store; the pipeline owns all writes, including the
// last-known-good pointer.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/climacast/recoverd/internal/vecindex"
)

// pointerFile names the manifest of the last release verified good by the
// deployment pipeline.
const pointerFile = "last_known_good"

// manifestRe matches date-prefixed release manifest keys,
// e.g. 20260820T1130Z-v2.3.0.json.
var manifestRe = regexp.MustCompile(`^\d{8}T\d{4}Z-.+\.json$`)

// ErrNoBackups is returned when the store holds no release manifests at all.
var ErrNoBackups = errors.New("backup: no release manifests in store")

// Release is one restorable deployment of the forecast service.
type Release struct {
	Tag             string            `json:"tag"`
	Image           string            `json:"image"`
	Replicas        int32             `json:"replicas"`
	Config          map[string]string `json:"config"`
	ConfigHash      string            `json:"config_hash"`
	IndexSnapshot   string            `json:"index_snapshot"` // key relative to the store root
	IndexDimensions int               `json:"index_dimensions"`
	CreatedAt       string            `json:"created_at"` // RFC3339
}

// Store lists and fetches release manifests under one root directory.
type Store struct {
	dir string
}

// NewStore creates a Store over dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// Recent returns up to n releases, most recent key first. Keys are
// date-prefixed, so lexical order is chronological order.
func (s *Store) Recent(n int) ([]*Release, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: read store: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !manifestRe.MatchString(entry.Name()) {
			continue
		}
		keys = append(keys, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	if n > len(keys) {
		n = len(keys)
	}
	releases := make([]*Release, 0, n)
	for _, key := range keys[:n] {
		r, err := s.load(key)
		if err != nil {
			// A half-written manifest must not hide the usable ones.
			continue
		}
		releases = append(releases, r)
	}
	return releases, nil
}

// LastKnownGood resolves the rollback target: the release named by the
// pointer file, falling back to the most recent manifest when the pipeline
// has not written a pointer yet.
func (s *Store) LastKnownGood() (*Release, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, pointerFile))
	if err == nil {
		key := strings.TrimSpace(string(data))
		if key != "" {
			r, err := s.load(key)
			if err != nil {
				return nil, fmt.Errorf("backup: last-known-good pointer names unreadable manifest %s: %w", key, err)
			}
			return r, nil
		}
	}

	recent, err := s.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrNoBackups
	}
	return recent[0], nil
}

// IndexPath resolves a release's index snapshot key against the store root.
func (s *Store) IndexPath(r *Release) string {
	return filepath.Join(s.dir, filepath.FromSlash(r.IndexSnapshot))
}

// Verify checks that a release is a usable rollback target: required fields
// present, config payload matching its recorded hash, and the index snapshot
// passing an open-and-query integrity check. Pre-validation refuses to roll
// back to anything that fails here.
func (s *Store) Verify(ctx context.Context, r *Release) error {
	if r.Tag == "" || r.Image == "" {
		return fmt.Errorf("backup: release manifest missing tag or image")
	}
	if r.ConfigHash != "" && ConfigHash(r.Config) != r.ConfigHash {
		return fmt.Errorf("backup: release %s config does not match its recorded hash", r.Tag)
	}
	if r.IndexSnapshot == "" {
		return fmt.Errorf("backup: release %s has no index snapshot", r.Tag)
	}
	if err := vecindex.Verify(ctx, s.IndexPath(r), r.IndexDimensions); err != nil {
		return fmt.Errorf("backup: release %s index snapshot unusable: %w", r.Tag, err)
	}
	return nil
}

// WriteRelease persists a release manifest under a date-prefixed key. The
// deployment pipeline is the production writer; recoverd itself calls this
// only from tests and fixtures.
func WriteRelease(dir string, key string, r *Release) error {
	if !manifestRe.MatchString(key) {
		return fmt.Errorf("backup: key %q is not date-prefixed", key)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backup: mkdir store: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal release: %w", err)
	}
	tmp := filepath.Join(dir, key+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("backup: write release: %w", err)
	}
	return os.Rename(tmp, filepath.Join(dir, key))
}

// WritePointer sets the last-known-good pointer. Test fixture helper; in
// production the deployment pipeline owns this file.
func WritePointer(dir string, key string) error {
	return os.WriteFile(filepath.Join(dir, pointerFile), []byte(key+"\n"), 0o644)
}

func (s *Store) load(key string) (*Release, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		return nil, err
	}
	var r Release
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ConfigHash is the canonical digest of a config payload: sha256 over
// sorted key=value lines. The deployment pipeline computes the same digest
// when it writes manifests; the drift probe computes it over the deployed
// config map.
func ConfigHash(config map[string]string) string {
	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, config[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
