package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Anchor pins one day's chain tail. Comparing a stored anchor against a
// re-walked chain catches whole-file replacement, which per-record hashes
// alone cannot.
type Anchor struct {
	Date        string `json:"date"`
	ChainHash   string `json:"chain_hash"`
	RecordCount int    `json:"record_count"`
	CreatedAt   string `json:"created_at"`
}

const anchorsFile = "anchors.jsonl"

// LoadAnchors reads every stored anchor, oldest first.
func LoadAnchors(auditDir string) ([]Anchor, error) {
	data, err := os.ReadFile(filepath.Join(auditDir, anchorsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return nil, nil
	}
	var anchors []Anchor
	for _, line := range strings.Split(content, "\n") {
		var a Anchor
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return nil, fmt.Errorf("audit: parse anchor: %w", err)
		}
		anchors = append(anchors, a)
	}
	return anchors, nil
}

// WriteAnchor stores or replaces the anchor for its date.
func WriteAnchor(auditDir string, anchor Anchor) error {
	existing, err := LoadAnchors(auditDir)
	if err != nil {
		return err
	}
	found := false
	for i, a := range existing {
		if a.Date == anchor.Date {
			existing[i] = anchor
			found = true
			break
		}
	}
	if !found {
		existing = append(existing, anchor)
	}

	path := filepath.Join(auditDir, anchorsFile)
	tmp := path + ".tmp"
	var buf strings.Builder
	for _, a := range existing {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(tmp, []byte(buf.String()), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MaybeCreateAnchor anchors today's chain tail if there are records and the
// tail moved since the last anchor. Returns true when an anchor was written.
func MaybeCreateAnchor(logger *Logger) (bool, error) {
	today := time.Now().UTC().Format("2006-01-02")
	hash, count, err := logger.LastHashForDate(today)
	if err != nil {
		return false, fmt.Errorf("audit: read records: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	existing, err := LoadAnchors(logger.Dir())
	if err != nil {
		return false, fmt.Errorf("audit: load anchors: %w", err)
	}
	for _, a := range existing {
		if a.Date == today && a.ChainHash == hash {
			return false, nil
		}
	}
	anchor := Anchor{
		Date:        today,
		ChainHash:   hash,
		RecordCount: count,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := WriteAnchor(logger.Dir(), anchor); err != nil {
		return false, fmt.Errorf("audit: write anchor: %w", err)
	}
	return true, nil
}
