package tasksapi

import (
	"context"
	"errors"
	"os/exec"
	"testing"
)

func TestDecodeAcceptsJSONAndYAML(t *testing.T) {
	t.Parallel()

	got, err := Decode([]byte(`{"tasks":[{"text":"a","line":3}]}`))
	if err != nil {
		t.Fatalf("Decode(json) error = %v", err)
	}
	obj, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Decode(json) = %T, want map", got)
	}
	list, ok := obj["tasks"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("Decode(json) tasks = %#v", obj["tasks"])
	}

	got, err = Decode([]byte("- text: b\n  path: x.md\n"))
	if err != nil {
		t.Fatalf("Decode(yaml) error = %v", err)
	}
	if items, ok := got.([]any); !ok || len(items) != 1 {
		t.Fatalf("Decode(yaml) = %#v", got)
	}

	if got, err := Decode([]byte("  \n")); got != nil || err != nil {
		t.Fatalf("Decode(empty) = %v, %v", got, err)
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Fatalf("Decode(garbage) should fail")
	}
}

func TestNewCommandQuerierEmpty(t *testing.T) {
	t.Parallel()

	q := NewCommandQuerier("   ", "")
	if q != nil {
		t.Fatalf("NewCommandQuerier(blank) = %#v, want nil", q)
	}
	if _, err := q.Query(context.Background(), "not done"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Query() on nil querier error = %v, want ErrUnavailable", err)
	}
}

func TestCommandQuerierEchoesStdin(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	q := NewCommandQuerier("cat", t.TempDir())
	got, err := q.Query(context.Background(), QueryObject("not done"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	obj, ok := got.(map[string]any)
	if !ok || obj["query"] != "not done" {
		t.Fatalf("Query() = %#v, want echoed query object", got)
	}
}

func TestCommandQuerierMissingBinary(t *testing.T) {
	t.Parallel()

	q := NewCommandQuerier("tasknotify-no-such-binary-xyz", "")
	if _, err := q.Query(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Query() error = %v, want ErrUnavailable", err)
	}
}
