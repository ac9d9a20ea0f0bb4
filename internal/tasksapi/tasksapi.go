// Package tasksapi talks to an external task-query engine. The engine takes
// a query and answers with loosely shaped task items.
package tasksapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrUnavailable = errors.New("tasksapi: query engine unavailable")

// Querier runs a query. The argument is either the query string or an
// object of the form {"query": "..."}; engines differ in what they accept.
type Querier interface {
	Query(ctx context.Context, query any) (any, error)
}

const defaultCommandTimeout = 30 * time.Second

// CommandQuerier runs an external command per query. The query is written
// to stdin as JSON and stdout is decoded as YAML, which also covers JSON.
type CommandQuerier struct {
	Command []string
	Dir     string
	Timeout time.Duration
}

// NewCommandQuerier splits a command line on whitespace. It returns nil for
// an empty command so callers can treat "no engine" uniformly.
func NewCommandQuerier(commandLine string, dir string) *CommandQuerier {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil
	}
	return &CommandQuerier{Command: fields, Dir: dir}
}

func (q *CommandQuerier) Query(ctx context.Context, query any) (any, error) {
	if q == nil || len(q.Command) == 0 {
		return nil, ErrUnavailable
	}
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	timeout := q.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, q.Command[0], q.Command[1:]...)
	cmd.Dir = q.Dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("query command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("query command failed: %w", err)
	}
	return Decode(stdout.Bytes())
}

// Decode parses an engine response. Empty output decodes to nil.
func Decode(out []byte) (any, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}
	var result any
	if err := yaml.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return result, nil
}

// QueryObject wraps a query string in the object form.
func QueryObject(query string) map[string]any {
	return map[string]any{"query": query}
}
