package fsstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadText returns ok=false without error when path does not exist. A
// leading UTF-8 byte order mark is dropped so notes saved by Windows editors
// still start with their frontmatter fence.
func ReadText(path string) (string, bool, error) {
	file, err := normalizePath(path)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(file)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read text %s: %w", file, err)
	}
	return string(bytes.TrimPrefix(data, utf8BOM)), true, nil
}

// WriteTextAtomic replaces path with content via a synced temp file and rename.
func WriteTextAtomic(path string, content string, opts FileOptions) error {
	return writeAtomic(path, []byte(content), opts)
}
