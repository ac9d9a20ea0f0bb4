// Package vault is the file-storage side of a notes vault: list markdown
// notes, read them and write them back whole.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/fsstore"
)

var (
	ErrNotFound    = errors.New("vault: file not found")
	ErrExists      = errors.New("vault: file already exists")
	ErrOutsideRoot = errors.New("vault: path escapes vault root")
)

// Vault addresses files by slash-separated paths relative to the vault root.
type Vault interface {
	ListMarkdownFiles() ([]string, error)
	Read(p string) (string, error)
	Write(p, content string) error
	Exists(p string) (bool, error)
	Create(p, content string) error
	CreateFolder(p string) error
}

// DirVault is a Vault backed by a directory. Dot-directories such as
// .obsidian, .trash and .git are skipped when listing.
type DirVault struct {
	root string
}

func NewDirVault(root string) (*DirVault, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("%w: empty vault root", fsstore.ErrInvalidPath)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s: not a directory", abs)
	}
	return &DirVault{root: abs}, nil
}

func (v *DirVault) Root() string { return v.root }

func (v *DirVault) ListMarkdownFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault %s: %w", v.root, err)
	}
	sort.Strings(out)
	return out, nil
}

func (v *DirVault) Read(p string) (string, error) {
	abs, err := v.resolve(p)
	if err != nil {
		return "", err
	}
	content, ok, err := fsstore.ReadText(abs)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return content, nil
}

// Write replaces an existing note.
func (v *DirVault) Write(p, content string) error {
	abs, err := v.resolve(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return err
	}
	return fsstore.WriteTextAtomic(abs, content, fsstore.VaultFileOptions)
}

func (v *DirVault) Exists(p string) (bool, error) {
	abs, err := v.resolve(p)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// Create writes a new note, creating parent folders as needed.
func (v *DirVault) Create(p, content string) error {
	abs, err := v.resolve(p)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, p)
	}
	return fsstore.WriteTextAtomic(abs, content, fsstore.VaultFileOptions)
}

func (v *DirVault) CreateFolder(p string) error {
	abs, err := v.resolve(p)
	if err != nil {
		return err
	}
	return fsstore.EnsureDir(abs, fsstore.VaultFileOptions.DirPerm)
}

func (v *DirVault) resolve(p string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(filepath.ToSlash(p)))
	if clean == "/" {
		return "", fmt.Errorf("%w: empty vault path", fsstore.ErrInvalidPath)
	}
	abs := filepath.Join(v.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if abs != v.root && !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return abs, nil
}

// ParentDir returns the folder part of a vault path, "" for the root.
func ParentDir(p string) string {
	dir := path.Dir(filepath.ToSlash(p))
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}
