package outputfmt

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeErrorTextRedactsBotToken(t *testing.T) {
	t.Parallel()

	in := `Post "https://api.telegram.org/bot123456:AAH-secret_Token/sendMessage": dial tcp: i/o timeout`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "api.telegram.org") {
		t.Fatalf("host should be removed, got %q", out)
	}
	if strings.Contains(out, "AAH-secret_Token") {
		t.Fatalf("bot token should be redacted, got %q", out)
	}
	if !strings.Contains(out, `Post "/bot[redacted]/sendMessage"`) {
		t.Fatalf("expected method path to be kept, got %q", out)
	}
}

func TestSanitizeErrorTextQueryValues(t *testing.T) {
	t.Parallel()

	in := `fetch failed: https://a.example.com/ping?access_token=abc then https://b.example.com/health?ok=1`
	out := SanitizeErrorText(in)
	if strings.Contains(out, "a.example.com") || strings.Contains(out, "b.example.com") {
		t.Fatalf("hosts should be removed, got %q", out)
	}
	if !strings.Contains(out, "/ping?access_token=%5Bredacted%5D") {
		t.Fatalf("token query should be redacted, got %q", out)
	}
	if !strings.Contains(out, "/health?ok=1") {
		t.Fatalf("plain query should be kept, got %q", out)
	}
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	if got := FormatError(nil); got != "" {
		t.Fatalf("FormatError(nil) = %q, want empty", got)
	}
	got := FormatError(errors.New(`read "https://vault.local/notes/a.md?key=1": permission denied`))
	if got != `read "/notes/a.md?key=%5Bredacted%5D": permission denied` {
		t.Fatalf("FormatError() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("Truncate() = %q, want unchanged", got)
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("Truncate() = %q, want %q", got, "abc...")
	}
	// Each emoji is two UTF-16 units.
	in := strings.Repeat("\U0001F4C5", 4)
	got := Truncate(in, 7)
	if got != "\U0001F4C5\U0001F4C5..." || Len(got) != 7 {
		t.Fatalf("Truncate(emoji) = %q (len %d)", got, Len(got))
	}
	if Len(in) != 8 {
		t.Fatalf("Len() = %d, want 8", Len(in))
	}
}
