package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
)

func sampleRecords() []tasks.Record {
	return []tasks.Record{
		{ID: "0ae964d121", ShortID: "0ae964d1", Text: "pay bill #work", Path: "bills.md", Line: 2, Priority: 3, Due: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "deadbeef01", ShortID: "deadbeef", Text: "bring snacks #shared", Line: tasks.NoLine},
	}
}

func TestPrintTasksJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printTasks(&buf, "json", sampleRecords(), marker.NewTagPattern("work")); err != nil {
		t.Fatalf("printTasks() error = %v", err)
	}
	var got []taskView
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("printTasks() rows = %d, want 2", len(got))
	}
	if got[0].Text != "pay bill" || got[0].Line != 3 || got[0].Due != "2024-05-10" {
		t.Fatalf("row 0 = %+v", got[0])
	}
	if !got[1].Shared || got[1].Line != 0 {
		t.Fatalf("row 1 = %+v", got[1])
	}
}

func TestPrintTasksYAMLAndTable(t *testing.T) {
	var buf bytes.Buffer
	if err := printTasks(&buf, "yaml", sampleRecords(), nil); err != nil {
		t.Fatalf("printTasks(yaml) error = %v", err)
	}
	if !strings.Contains(buf.String(), "id: 0ae964d1") {
		t.Fatalf("yaml output = %q", buf.String())
	}

	buf.Reset()
	if err := printTasks(&buf, "table", sampleRecords(), nil); err != nil {
		t.Fatalf("printTasks(table) error = %v", err)
	}
	if !strings.Contains(buf.String(), "bills.md:3") {
		t.Fatalf("table output missing source:\n%s", buf.String())
	}

	if err := printTasks(&buf, "xml", nil, nil); err == nil {
		t.Fatalf("printTasks(xml) error = nil, want unknown format")
	}
}

func TestPrintRequestors(t *testing.T) {
	st := settings.Defaults()
	st.HostChatID = "5"
	st.Requestors = []int64{5, 77}

	var buf bytes.Buffer
	printRequestors(&buf, st)
	out := buf.String()
	if !strings.Contains(out, "Requestors (2)") || !strings.Contains(out, "host") || !strings.Contains(out, "unassigned") {
		t.Fatalf("printRequestors() = %q", out)
	}
	if !strings.Contains(out, "telegram.guest_chat_ids: 77") {
		t.Fatalf("printRequestors() = %q, want a guest_chat_ids hint", out)
	}
}
