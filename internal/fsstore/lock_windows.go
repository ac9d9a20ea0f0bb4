//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Windows has no flock; an exclusively created file stands in for the lock.
func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	var file *os.File
	for file == nil {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, defaultFilePerm)
		switch {
		case err == nil:
			file = f
		case errors.Is(err, os.ErrExist):
			if err := waitForLock(ctx, lockPath); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: open %s: %v", ErrLockUnavailable, lockPath, err)
		}
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(lockPath)
	}()
	recordHolder(file)
	return fn()
}
