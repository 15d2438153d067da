// Package audit keeps the tamper-evident trail of rollback activity: every
// attempt and every high-severity alert becomes one hash-chained JSONL
// record. The chain makes after-the-fact edits detectable, which matters
// when the trail is the evidence for an incident review.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/climacast/recoverd/internal/redact"
)

// dateFileRe matches audit log files named YYYY-MM-DD.jsonl.
var dateFileRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.jsonl$`)

// auditFiles returns only date-named .jsonl files from the audit directory,
// excluding non-audit files like anchors.jsonl.
func auditFiles(dir string) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	var filtered []string
	for _, f := range all {
		if dateFileRe.MatchString(filepath.Base(f)) {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// Entry is what callers log: one rollback attempt outcome or one
// high-severity alert.
type Entry struct {
	Kind        string // "attempt" | "alert"
	AttemptID   string
	Environment string
	Category    string
	Outcome     string
	Severity    string
	Message     string
	Duration    time.Duration
}

// Record is the persisted, hash-chained form of an Entry.
type Record struct {
	Timestamp   string `json:"timestamp"`
	RecordID    string `json:"record_id"`
	Kind        string `json:"kind"`
	AttemptID   string `json:"attempt_id,omitempty"`
	Environment string `json:"environment,omitempty"`
	Category    string `json:"category,omitempty"`
	Outcome     string `json:"outcome,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Message     string `json:"message,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
	PrevHash    string `json:"prev_hash,omitempty"`
	Hash        string `json:"hash,omitempty"`
}

// Logger appends hash-chained records to daily JSONL files.
type Logger struct {
	dir      string
	lastHash string
	redactor *redact.Redactor
}

// NewLogger opens (creating if needed) the audit directory and resumes the
// hash chain from the newest existing record.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	l := &Logger{dir: dir}
	l.initLastHash()
	return l, nil
}

// Dir returns the audit directory.
func (l *Logger) Dir() string { return l.dir }

// SetRedactor scrubs message text before it is hashed and written.
func (l *Logger) SetRedactor(r *redact.Redactor) {
	l.redactor = r
}

func (l *Logger) initLastHash() {
	files, err := auditFiles(l.dir)
	if err != nil || len(files) == 0 {
		return
	}
	sort.Strings(files) // ascending date order
	data, err := os.ReadFile(files[len(files)-1])
	if err != nil {
		return
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return
	}
	lines := strings.Split(content, "\n")
	var r Record
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &r); err != nil {
		return
	}
	l.lastHash = r.Hash
}

func computeHash(r Record) string {
	r.Hash = ""
	data, _ := json.Marshal(r)
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Log appends one entry to today's file, chained to the previous record.
func (l *Logger) Log(entry Entry) error {
	record := Record{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		RecordID:    uuid.New().String(),
		Kind:        entry.Kind,
		AttemptID:   entry.AttemptID,
		Environment: entry.Environment,
		Category:    entry.Category,
		Outcome:     entry.Outcome,
		Severity:    entry.Severity,
		Message:     entry.Message,
		DurationMs:  entry.Duration.Milliseconds(),
		PrevHash:    l.lastHash,
	}
	// Redact before hashing so the chain covers exactly what is on disk.
	if l.redactor != nil {
		record.Message = l.redactor.Redact(record.Message)
	}
	record.Hash = computeHash(record)

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	path := filepath.Join(l.dir, time.Now().UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err = f.Write(data); err != nil {
		return err
	}
	l.lastHash = record.Hash
	return nil
}

// Recent returns up to n records, newest first.
func (l *Logger) Recent(n int) ([]Record, error) {
	files, err := auditFiles(l.dir)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	var records []Record
	for _, f := range files {
		if len(records) >= n {
			break
		}
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if len(records) >= n {
				break
			}
			var r Record
			if err := json.Unmarshal([]byte(lines[i]), &r); err != nil {
				continue
			}
			records = append(records, r)
		}
	}
	return records, nil
}

// Verify walks the whole chain in date order. It returns (true, -1) for an
// intact chain, or (false, index) naming the first record whose hash or
// linkage does not hold.
func (l *Logger) Verify() (bool, int, error) {
	files, err := auditFiles(l.dir)
	if err != nil {
		return false, -1, err
	}
	sort.Strings(files) // ascending date order

	var expectedPrevHash string
	index := 0

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return false, -1, err
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		for _, line := range strings.Split(content, "\n") {
			var r Record
			if err := json.Unmarshal([]byte(line), &r); err != nil {
				return false, index, nil
			}
			if computeHash(r) != r.Hash {
				return false, index, nil
			}
			if r.PrevHash != expectedPrevHash {
				return false, index, nil
			}
			expectedPrevHash = r.Hash
			index++
		}
	}

	return true, -1, nil
}

// RecordsForDate returns every record logged on date (YYYY-MM-DD).
func (l *Logger) RecordsForDate(date string) ([]Record, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, date+".jsonl"))
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
	var records []Record
	for _, line := range strings.Split(content, "\n") {
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// LastHashForDate returns the tail hash and record count for one day's file.
func (l *Logger) LastHashForDate(date string) (string, int, error) {
	records, err := l.RecordsForDate(date)
	if err != nil {
		return "", 0, err
	}
	if len(records) == 0 {
		return "", 0, nil
	}
	return records[len(records)-1].Hash, len(records), nil
}
