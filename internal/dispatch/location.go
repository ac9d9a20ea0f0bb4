package dispatch

import (
	"errors"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// locatedError carries a best-effort "file.go:123" hint for chat users who
// cannot read the local log.
type locatedError struct {
	err error
	loc string
}

func (e *locatedError) Error() string { return e.err.Error() }

func (e *locatedError) Unwrap() error { return e.err }

// withLocation tags err with its caller's position.
func withLocation(err error) error {
	if err == nil {
		return nil
	}
	var le *locatedError
	if errors.As(err, &le) {
		return err
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return err
	}
	return &locatedError{err: err, loc: frameLocation(file, line)}
}

// Location returns the hint attached to err, or "".
func Location(err error) string {
	var le *locatedError
	if errors.As(err, &le) {
		return le.loc
	}
	return ""
}

func frameLocation(file string, line int) string {
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// panicLocation picks the frame that panicked out of a debug.Stack dump:
// the first file line after the runtime's panic frame.
func panicLocation(stack []byte) string {
	lines := strings.Split(string(stack), "\n")
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "panic(") {
			continue
		}
		// lines[i+1] is the runtime's own file line; the next frame is a
		// function line followed by its file line.
		for j := i + 2; j < len(lines); j++ {
			if strings.HasPrefix(lines[j], "\t") {
				return trimFrame(lines[j])
			}
		}
	}
	return ""
}

func trimFrame(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.LastIndex(line, " +0x"); i >= 0 {
		line = line[:i]
	}
	return filepath.Base(line)
}
