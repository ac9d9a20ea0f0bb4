package fsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	lockSuffix    = ".lock"
	lockKeyMaxLen = 120
	lockPollEvery = 25 * time.Millisecond
)

// Lock keys are lowercase dotted names such as "settings" or "settings.main".
var lockKeyRe = regexp.MustCompile(`^[a-z0-9_-]+(\.[a-z0-9_-]+)*$`)

// lockHolder is written into a held lock file so a stuck lock can be traced
// back to the process that owns it.
type lockHolder struct {
	PID        int    `json:"pid"`
	Host       string `json:"host,omitempty"`
	AcquiredAt string `json:"acquired_at"`
}

// BuildLockPath returns the lock file for key under lockRoot.
func BuildLockPath(lockRoot string, lockKey string) (string, error) {
	root, err := normalizePath(lockRoot)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(lockKey)
	switch {
	case key == "":
		return "", fmt.Errorf("%w: empty lock key", ErrInvalidPath)
	case len(key) > lockKeyMaxLen:
		return "", fmt.Errorf("%w: lock key too long", ErrInvalidPath)
	case !lockKeyRe.MatchString(key):
		return "", fmt.Errorf("%w: invalid lock key %q", ErrInvalidPath, key)
	}
	return filepath.Join(root, key+lockSuffix), nil
}

// WithLock runs fn while holding an exclusive lock on lockPath. It waits for
// a held lock until ctx is done and then fails with ErrLockTimeout.
func WithLock(ctx context.Context, lockPath string, fn func() error) error {
	path, err := normalizePath(lockPath)
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := EnsureDir(filepath.Dir(path), defaultDirPerm); err != nil {
		return err
	}
	return withLockFile(ctx, path, fn)
}

func recordHolder(file *os.File) {
	host, _ := os.Hostname()
	data, err := json.Marshal(lockHolder{
		PID:        os.Getpid(),
		Host:       host,
		AcquiredAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return
	}
	if err := file.Truncate(0); err != nil {
		return
	}
	_, _ = file.WriteAt(append(data, '\n'), 0)
}

func waitForLock(ctx context.Context, lockPath string) error {
	timer := time.NewTimer(lockPollEvery)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrLockTimeout, lockPath, ctx.Err())
	case <-timer.C:
		return nil
	}
}
