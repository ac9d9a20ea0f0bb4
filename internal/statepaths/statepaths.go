package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultStateDir  = "~/.tasknotify"
	SettingsFilename = "settings.json"
	LockDirName      = ".fslocks"
	SettingsLockKey  = "settings"
)

// FileStateDir resolves file_state_dir, expanding a leading "~".
func FileStateDir() string {
	dir := strings.TrimSpace(viper.GetString("file_state_dir"))
	if dir == "" {
		dir = defaultStateDir
	}
	return ExpandHome(dir)
}

func SettingsPath() string {
	return filepath.Join(FileStateDir(), SettingsFilename)
}

func LockRoot() string {
	return filepath.Join(FileStateDir(), LockDirName)
}

// VaultDir resolves vault.dir; empty means the current directory.
func VaultDir() string {
	dir := strings.TrimSpace(viper.GetString("vault.dir"))
	if dir == "" {
		dir = "."
	}
	return ExpandHome(dir)
}

func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
