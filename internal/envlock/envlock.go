// Package envlock serializes rollback execution against one environment
// using flock-based file locks. Two controllers rolling back the same
// environment at once would corrupt each other's timing measurements and
// fight over the deployment, so Executing and PostValidating run under
// this lock.
package envlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// MetaVersion is the current version of the lock metadata format.
const MetaVersion = 1

// ErrLocked is returned when another process holds the environment lock.
var ErrLocked = errors.New("environment is locked by another process")

// Lock represents an acquired environment lock.
type Lock struct {
	Path        string
	Environment string
	file        *os.File
}

// Meta is the on-disk metadata written alongside a lock file. The flock
// itself dies with its holder; the meta file is what survives a crash and
// lets other processes name the previous holder.
type Meta struct {
	PID         int    `json:"pid"`
	Environment string `json:"environment"`
	Operation   string `json:"operation"`
	Timestamp   string `json:"timestamp"`
	Version     int    `json:"lock_version"`
}

// Path returns the lock file path for an environment.
func Path(dir, environment string) string {
	return filepath.Join(dir, environment+".lock")
}

// Acquire takes the environment lock without blocking. If another
// process holds it, ErrLocked is returned with the holder's PID when the
// meta file names one; a holder whose PID is no longer running is
// reported as stale.
func Acquire(dir, environment, operation string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("envlock: mkdir for lock: %w", err)
	}

	lockPath := Path(dir, environment)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("envlock: open lock file: %w", err)
	}

	fd := int(f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			holderPID := 0
			if meta, metaErr := ReadMeta(lockPath); metaErr == nil {
				holderPID = meta.PID
			}
			// A held flock whose meta names a dead PID means the lock was
			// inherited from a crashed run (a child kept the descriptor
			// open). Name that in the error so the operator knows the
			// contention will not clear on its own.
			if IsStale(lockPath) {
				return nil, fmt.Errorf("envlock: %w (stale holder PID %d is not running)", ErrLocked, holderPID)
			}
			return nil, fmt.Errorf("envlock: %w (holder PID %d)", ErrLocked, holderPID)
		}
		return nil, fmt.Errorf("envlock: flock: %w", err)
	}

	meta := Meta{
		PID:         os.Getpid(),
		Environment: environment,
		Operation:   operation,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Version:     MetaVersion,
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		syscall.Flock(fd, syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("envlock: marshal meta: %w", err)
	}
	if err := os.WriteFile(lockPath+".meta", metaData, 0644); err != nil {
		syscall.Flock(fd, syscall.LOCK_UN)
		f.Close()
		return nil, fmt.Errorf("envlock: write meta: %w", err)
	}

	return &Lock{Path: lockPath, Environment: environment, file: f}, nil
}

// Release drops the flock, closes the file, and removes the meta file.
// Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_UN); err != nil {
		return fmt.Errorf("envlock: flock LOCK_UN: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("envlock: close lock file: %w", err)
	}
	l.file = nil

	// Best-effort removal of the meta file.
	_ = os.Remove(l.Path + ".meta")
	return nil
}

// ReadMeta reads and parses the .meta JSON file associated with lockPath.
func ReadMeta(lockPath string) (Meta, error) {
	data, err := os.ReadFile(lockPath + ".meta")
	if err != nil {
		return Meta{}, fmt.Errorf("envlock: read meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("envlock: unmarshal meta: %w", err)
	}
	return meta, nil
}

// IsStale reports whether the meta file at lockPath was left behind by a
// dead process. A kernel-released flock with a surviving meta file is the
// signature of a crashed run.
func IsStale(lockPath string) bool {
	meta, err := ReadMeta(lockPath)
	if err != nil {
		return true
	}

	proc, err := os.FindProcess(meta.PID)
	if err != nil {
		return true
	}

	// Signal 0 checks process existence without sending a signal.
	return proc.Signal(syscall.Signal(0)) != nil
}
