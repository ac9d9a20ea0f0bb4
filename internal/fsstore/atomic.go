package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates path and any missing parents.
func EnsureDir(path string, perm os.FileMode) error {
	dir, err := normalizePath(path)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = defaultDirPerm
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("fsstore ensure dir %s: %w", dir, err)
	}
	return nil
}

// writeAtomic writes content next to path and renames it into place, so a
// reader (or the note editor) never sees a half written file.
func writeAtomic(path string, content []byte, opts FileOptions) error {
	target, err := normalizePath(path)
	if err != nil {
		return err
	}
	opts = normalizeFileOptions(opts)
	dir := filepath.Dir(target)
	if err := EnsureDir(dir, opts.DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return atomicErr("create temp", target, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	steps := []struct {
		name string
		run  func() error
	}{
		{"write temp", func() error { _, err := tmp.Write(content); return err }},
		{"sync temp", tmp.Sync},
		{"chmod temp", func() error { return tmp.Chmod(targetPerm(target, opts)) }},
		{"close temp", tmp.Close},
		{"rename temp", func() error { return os.Rename(tmpPath, target) }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return atomicErr(step.name, target, err)
		}
	}
	committed = true
	syncDir(dir)
	return nil
}

func targetPerm(target string, opts FileOptions) os.FileMode {
	if opts.KeepMode {
		if info, err := os.Stat(target); err == nil {
			return info.Mode().Perm()
		}
	}
	return opts.FilePerm
}

func atomicErr(step, target string, err error) error {
	return fmt.Errorf("%w: %s for %s: %v", ErrAtomicWriteFailed, step, target, err)
}

func syncDir(dir string) {
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
