package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quailyquaily/tasknotify/internal/clifmt"
	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
)

type taskView struct {
	ID       string `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Line     int    `json:"line,omitempty" yaml:"line,omitempty"`
	Priority int    `json:"priority" yaml:"priority"`
	Due      string `json:"due,omitempty" yaml:"due,omitempty"`
	Shared   bool   `json:"shared,omitempty" yaml:"shared,omitempty"`
}

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the open tasks the notifier would send",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			st, err := a.settings(cmd.Context())
			if err != nil {
				return err
			}
			records, err := a.collector.Collect(cmd.Context(), collector.OptionsFrom(st))
			if err != nil {
				return err
			}
			format := strings.ToLower(strings.TrimSpace(flagOrViperString(cmd, "format", "")))
			return printTasks(cmd.OutOrStdout(), format, records, marker.NewTagPattern(st.GlobalFilterTag))
		},
	}
	cmd.Flags().String("format", "table", "Output format: table|yaml|json.")
	return cmd
}

func printTasks(out io.Writer, format string, records []tasks.Record, filter *marker.TagPattern) error {
	views := make([]taskView, 0, len(records))
	for _, r := range records {
		views = append(views, viewOf(r, filter))
	}
	switch format {
	case "", "table":
		rows := make([]clifmt.TaskRow, 0, len(views))
		for _, v := range views {
			row := clifmt.TaskRow{ID: v.ID, Due: v.Due, Text: v.Text, Source: v.Path}
			if v.Path != "" && v.Line > 0 {
				row.Source = v.Path + ":" + strconv.Itoa(v.Line)
			}
			rows = append(rows, row)
		}
		clifmt.PrintTaskTable(out, clifmt.TaskTableOptions{
			Title:     "Open tasks",
			Rows:      rows,
			EmptyText: "No unfinished tasks found.",
		})
		return nil
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	default:
		return fmt.Errorf("unknown --format %q (want table|yaml|json)", format)
	}
}

func viewOf(r tasks.Record, filter *marker.TagPattern) taskView {
	v := taskView{
		ID:       r.ShortID,
		Text:     r.DisplayText(filter),
		Path:     r.Path,
		Priority: r.Priority,
		Shared:   r.Shared(),
	}
	if r.HasLine() {
		v.Line = r.Line + 1
	}
	if r.HasDue() {
		v.Due = r.Due.Format("2006-01-02")
		if r.DueHasTime {
			v.Due = r.Due.Local().Format("2006-01-02 15:04")
		}
	}
	return v
}

func newRequestorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requestors",
		Short: "List chats that sent /start, with their configured role",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			st, err := a.settings(cmd.Context())
			if err != nil {
				return err
			}
			printRequestors(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printRequestors(out io.Writer, st settings.Settings) {
	_, _ = fmt.Fprintln(out, clifmt.Headerf("Requestors (%d)", len(st.Requestors)))
	if len(st.Requestors) == 0 {
		_, _ = fmt.Fprintln(out, clifmt.Warn("No chat has sent /start yet."))
		return
	}
	var unassigned []int64
	for _, id := range st.Requestors {
		role := string(st.RoleOf(id))
		if role == "" {
			role = "unassigned"
			unassigned = append(unassigned, id)
		}
		_, _ = fmt.Fprintf(out, "%s  %s\n", clifmt.Key(strconv.FormatInt(id, 10)), clifmt.Dim(role))
	}
	if len(unassigned) > 0 {
		guests := append(append([]int64(nil), st.GuestChatIDs...), unassigned...)
		_, _ = fmt.Fprintln(out, clifmt.Dim("To share tasks with them, set telegram.guest_chat_ids: "+settings.FormatIDs(guests)))
	}
}
