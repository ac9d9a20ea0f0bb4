package fsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

func ReadJSON(path string, out any) (bool, error) {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(normalizedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read json %s: %w", normalizedPath, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrDecodeFailed, normalizedPath, err)
	}
	return true, nil
}

func WriteJSONAtomic(path string, v any, opts FileOptions) error {
	normalizedPath, err := normalizePath(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrEncodeFailed, normalizedPath, err)
	}
	data = append(data, '\n')
	return writeAtomic(normalizedPath, data, opts)
}

// MutateJSON loads path into a fresh value from newValue, applies fn and
// writes the result back, all under the lock at lockPath. A missing or empty
// file leaves the value as newValue returned it.
func MutateJSON[T any](ctx context.Context, path, lockPath string, opts FileOptions, newValue func() T, fn func(*T) error) error {
	if fn == nil || newValue == nil {
		return fmt.Errorf("mutate json %s: nil callback", path)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return WithLock(ctx, lockPath, func() error {
		value := newValue()
		if _, err := ReadJSON(path, &value); err != nil {
			return err
		}
		if err := fn(&value); err != nil {
			return err
		}
		return WriteJSONAtomic(path, value, opts)
	})
}
