package statepaths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	cases := map[string]string{
		"~":             home,
		"~/notes":       filepath.Join(home, "notes"),
		"/var/lib/x/":   "/var/lib/x",
		"relative/../a": "a",
	}
	for in, want := range cases {
		if got := ExpandHome(in); got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
