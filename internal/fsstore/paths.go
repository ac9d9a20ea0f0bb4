package fsstore

import (
	"fmt"
	"path/filepath"
	"strings"
)

// normalizePath cleans path and rejects values no filesystem call should
// see: empty strings and embedded NUL bytes.
func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	case strings.ContainsRune(path, 0):
		return "", fmt.Errorf("%w: path contains NUL", ErrInvalidPath)
	}
	return filepath.Clean(path), nil
}
