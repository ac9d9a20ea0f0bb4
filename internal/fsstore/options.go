package fsstore

import "os"

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// FileOptions controls permissions for atomic writes. With KeepMode an
// existing file keeps its current permission bits, so notes edited in place
// stay readable by the editor that owns the vault.
type FileOptions struct {
	DirPerm  os.FileMode
	FilePerm os.FileMode
	KeepMode bool
}

// VaultFileOptions is used for markdown files inside the user's vault.
var VaultFileOptions = FileOptions{DirPerm: 0o755, FilePerm: 0o644, KeepMode: true}

func normalizeFileOptions(opts FileOptions) FileOptions {
	if opts.DirPerm == 0 {
		opts.DirPerm = defaultDirPerm
	}
	if opts.FilePerm == 0 {
		opts.FilePerm = defaultFilePerm
	}
	return opts
}
