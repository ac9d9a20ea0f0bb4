// Package dispatch turns inbound Telegram updates into task actions and
// renders task lists back to the chats.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/marker"
	"github.com/quailyquaily/tasknotify/internal/outputfmt"
	"github.com/quailyquaily/tasknotify/internal/remind"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
	"github.com/quailyquaily/tasknotify/internal/telegram"
)

const (
	TextEmptyList    = "No unfinished tasks found."
	TextAllDone      = "All tasks are done."
	TextNoReminders  = "No reminders due."
	TextUnauthorized = "Unauthorized"
	TextSentList     = "Sent task list"
	TextCompleted    = "Task marked complete"
	TextNotFound     = "Task not found"
)

const helpText = `Commands:
/list - show open tasks
/reminders - show tasks with reminders or overdue dues
done <id> - mark a task complete
/help - this message

Any other text is added as a new task. Use due:YYYY-MM-DD and priority:high (or p0-p4) inline.`

var (
	startRe     = regexp.MustCompile(`(?i)^\s*/start\b`)
	listRe      = regexp.MustCompile(`(?i)^\s*/list(?:@\S+)?\s*$`)
	remindersRe = regexp.MustCompile(`(?i)^\s*/reminders(?:@\S+)?\s*$`)
	helpRe      = regexp.MustCompile(`(?i)^\s*/help(?:@\S+)?\s*$`)
	doneRe      = regexp.MustCompile(`(?i)^\s*done\s+([a-f0-9]+)\s*$`)
)

// IsStart reports whether text is a /start command.
func IsStart(text string) bool { return startRe.MatchString(text) }

// Sender is the outbound half of the gateway.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// TaskService is the task side the dispatcher drives.
type TaskService interface {
	Collect(ctx context.Context, opts collector.Options) ([]tasks.Record, error)
	CompleteByID(ctx context.Context, opts collector.Options, id string) (tasks.Record, error)
	AddTask(ctx context.Context, input string, opts collector.AddOptions) (collector.Added, error)
}

type Dispatcher struct {
	sender Sender
	tasks  TaskService
	logger *slog.Logger
	now    func() time.Time
}

func New(sender Sender, svc TaskService, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, tasks: svc, logger: logger, now: time.Now}
}

// Action names what Handle did with an update.
type Action string

const (
	ActionIgnored      Action = "ignored"
	ActionUnauthorized Action = "unauthorized"
	ActionStart        Action = "start"
	ActionList         Action = "list"
	ActionReminders    Action = "reminders"
	ActionHelp         Action = "help"
	ActionDone         Action = "done"
	ActionAdd          Action = "add"
)

type Outcome struct {
	UpdateID int64
	ChatID   int64
	Role     settings.Role
	Action   Action
	// SettingsChanged is set when the update mutated st.
	SettingsChanged bool
	Err             error
}

type BatchResult struct {
	Outcomes []Outcome
	// Changed reports that st must be saved.
	Changed bool
}

// HandleBatch processes updates in update_id order and advances
// st.LastUpdateID once the whole batch is handled.
func (d *Dispatcher) HandleBatch(ctx context.Context, st *settings.Settings, updates []telegram.Update) BatchResult {
	ordered := make([]telegram.Update, len(updates))
	copy(ordered, updates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UpdateID < ordered[j].UpdateID })

	var result BatchResult
	latest := st.LastUpdateID
	for _, u := range ordered {
		if u.UpdateID > latest {
			latest = u.UpdateID
		}
		out := d.Handle(ctx, st, u)
		if out.SettingsChanged {
			result.Changed = true
		}
		result.Outcomes = append(result.Outcomes, out)
	}
	if latest != st.LastUpdateID {
		st.LastUpdateID = latest
		result.Changed = true
	}
	return result
}

// Handle processes one update. Errors are reported in the outcome and never
// stop the caller's loop.
func (d *Dispatcher) Handle(ctx context.Context, st *settings.Settings, u telegram.Update) Outcome {
	out := Outcome{UpdateID: u.UpdateID, ChatID: u.ChatID(), Action: ActionIgnored}
	sender := u.Sender()
	if sender != nil && sender.IsBot {
		return out
	}
	if u.Message != nil && startRe.MatchString(u.Message.Text) {
		return d.handleStart(ctx, st, u, out)
	}
	out.Role = st.RoleOf(out.ChatID)
	if out.Role == settings.RoleUnknown {
		return out
	}
	userID := int64(0)
	if sender != nil {
		userID = sender.ID
	}
	if cb := u.CallbackQuery; cb != nil {
		if !st.AllowsUser(userID) {
			out.Action = ActionUnauthorized
			out.Err = d.answer(ctx, cb.ID, TextUnauthorized)
			return out
		}
		return d.handleCallback(ctx, *st, cb, out)
	}
	if u.Message == nil || !st.AllowsUser(userID) {
		return out
	}
	return d.handleText(ctx, *st, strings.TrimSpace(u.Message.Text), out)
}

func (d *Dispatcher) handleStart(ctx context.Context, st *settings.Settings, u telegram.Update, out Outcome) Outcome {
	out.Action = ActionStart
	if out.ChatID == 0 {
		return out
	}
	if st.AddRequestor(out.ChatID) {
		out.SettingsChanged = true
		d.logger.Info("telegram_requestor_recorded", "chat_id", out.ChatID, "user", telegram.DisplayName(u.Message.From))
	}
	out.Role = st.RoleOf(out.ChatID)
	if out.Role != settings.RoleUnknown {
		out.Err = d.send(ctx, out.ChatID, helpText, nil)
	}
	return out
}

func (d *Dispatcher) handleCallback(ctx context.Context, st settings.Settings, cb *telegram.CallbackQuery, out Outcome) Outcome {
	data := strings.TrimSpace(cb.Data)
	switch {
	case data == CallbackList:
		out.Action = ActionList
		err := d.SendList(ctx, st, settings.Recipient{ChatID: out.ChatID, Role: out.Role}, TextEmptyList)
		out.Err = errors.Join(err, d.answer(ctx, cb.ID, TextSentList))
	case strings.HasPrefix(data, CallbackDonePrefix):
		out.Action = ActionDone
		id := strings.TrimPrefix(data, CallbackDonePrefix)
		done, err := d.complete(ctx, st, out.Role, id)
		answer := TextNotFound
		if done {
			answer = TextCompleted
		}
		ansErr := d.answer(ctx, cb.ID, answer)
		listErr := d.SendList(ctx, st, settings.Recipient{ChatID: out.ChatID, Role: out.Role}, TextAllDone)
		out.Err = errors.Join(err, ansErr, listErr)
	default:
		out.Err = d.answer(ctx, cb.ID, "")
	}
	return out
}

func (d *Dispatcher) handleText(ctx context.Context, st settings.Settings, text string, out Outcome) Outcome {
	recipient := settings.Recipient{ChatID: out.ChatID, Role: out.Role}
	switch {
	case text == "":
		return out
	case listRe.MatchString(text):
		out.Action = ActionList
		out.Err = d.SendList(ctx, st, recipient, TextEmptyList)
	case remindersRe.MatchString(text):
		out.Action = ActionReminders
		out.Err = d.sendReminderList(ctx, st, recipient)
	case helpRe.MatchString(text):
		out.Action = ActionHelp
		out.Err = d.send(ctx, out.ChatID, helpText, nil)
	case doneRe.MatchString(text):
		out.Action = ActionDone
		id := doneRe.FindStringSubmatch(text)[1]
		done, err := d.complete(ctx, st, out.Role, id)
		if !done && err == nil {
			err = d.send(ctx, out.ChatID, TextNotFound, nil)
		}
		out.Err = errors.Join(err, d.SendList(ctx, st, recipient, TextAllDone))
	case strings.HasPrefix(text, "/"):
		return out
	default:
		out.Action = ActionAdd
		out.Err = d.addTask(ctx, st, recipient, text)
	}
	return out
}

// complete marks id done when the role may see it. A guest can only
// complete #shared tasks.
func (d *Dispatcher) complete(ctx context.Context, st settings.Settings, role settings.Role, id string) (bool, error) {
	opts := collector.OptionsFrom(st)
	if role == settings.RoleGuest {
		records, err := d.tasks.Collect(ctx, opts)
		if err != nil {
			return false, err
		}
		rec, ok := tasks.FindByID(records, id)
		if !ok || !rec.Shared() {
			return false, nil
		}
		id = rec.ID
	}
	rec, err := d.tasks.CompleteByID(ctx, opts, id)
	if errors.Is(err, collector.ErrTaskNotFound) {
		d.logger.Info("task_complete_not_found", "id", id)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	d.logger.Info("task_complete_via_telegram", "id", rec.ID, "role", string(role))
	return true, nil
}

func (d *Dispatcher) addTask(ctx context.Context, st settings.Settings, r settings.Recipient, text string) error {
	opts := collector.AddOptions{
		Options:               collector.OptionsFrom(st),
		DailyNotePathTemplate: st.DailyNotePathTemplate,
		Shared:                r.Role == settings.RoleGuest,
	}
	added, err := d.safeAddTask(ctx, text, opts)
	if err != nil {
		d.logger.Error("task_add_failed", "chat_id", r.ChatID, "error", err.Error(), "location", Location(err))
		msg := "Failed to add task: " + outputfmt.FormatError(err)
		if loc := Location(err); loc != "" {
			msg += " (at " + loc + ")"
		}
		return errors.Join(err, d.send(ctx, r.ChatID, outputfmt.Truncate(msg, SafeMessageLength), nil))
	}
	ack := fmt.Sprintf("Added task: %s #%s", added.Text, added.Record.ShortID)
	if err := d.send(ctx, r.ChatID, ack, nil); err != nil {
		return err
	}
	if !added.Record.Shared() {
		return nil
	}
	return d.Broadcast(ctx, st, TextEmptyList)
}

func (d *Dispatcher) safeAddTask(ctx context.Context, text string, opts collector.AddOptions) (added collector.Added, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &locatedError{err: fmt.Errorf("panic: %v", rec), loc: panicLocation(debug.Stack())}
		}
	}()
	added, err = d.tasks.AddTask(ctx, text, opts)
	if err != nil {
		return added, withLocation(err)
	}
	return added, nil
}

// Scope keeps what role may see: everything for the host, #shared tasks
// for guests, nothing otherwise.
func Scope(records []tasks.Record, role settings.Role) []tasks.Record {
	switch role {
	case settings.RoleHost:
		return records
	case settings.RoleGuest:
		var out []tasks.Record
		for _, r := range records {
			if r.Shared() {
				out = append(out, r)
			}
		}
		return out
	}
	return nil
}

func listOptions(st settings.Settings, title string) ListOptions {
	return ListOptions{
		Title:           title,
		Max:             st.MaxTasksPerNotification,
		IncludeFilePath: st.IncludeFilePath,
		Filter:          marker.NewTagPattern(st.GlobalFilterTag),
	}
}

// SendList collects and sends the role-scoped list to one chat. emptyText
// is sent when nothing is open; an empty emptyText sends nothing.
func (d *Dispatcher) SendList(ctx context.Context, st settings.Settings, r settings.Recipient, emptyText string) error {
	records, err := d.tasks.Collect(ctx, collector.OptionsFrom(st))
	if err != nil {
		return err
	}
	return d.SendRecords(ctx, st, r, records, emptyText)
}

// SendRecords sends an already collected list, scoped to r's role.
func (d *Dispatcher) SendRecords(ctx context.Context, st settings.Settings, r settings.Recipient, records []tasks.Record, emptyText string) error {
	scoped := Scope(records, r.Role)
	if len(scoped) == 0 {
		if emptyText == "" {
			return nil
		}
		return d.send(ctx, r.ChatID, emptyText, nil)
	}
	return d.sendAll(ctx, r.ChatID, RenderList(scoped, listOptions(st, TitleTasks)))
}

// Broadcast collects once and sends each configured chat its scoped list.
func (d *Dispatcher) Broadcast(ctx context.Context, st settings.Settings, emptyText string) error {
	records, err := d.tasks.Collect(ctx, collector.OptionsFrom(st))
	if err != nil {
		return err
	}
	return d.BroadcastRecords(ctx, st, records, emptyText)
}

func (d *Dispatcher) BroadcastRecords(ctx context.Context, st settings.Settings, records []tasks.Record, emptyText string) error {
	var errs []error
	for _, r := range st.Recipients() {
		if err := d.SendRecords(ctx, st, r, records, emptyText); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", r.ChatID, err))
		}
	}
	return errors.Join(errs...)
}

// SendReminders sends each chat the reminder entries it may see. It reports
// whether at least one message went out.
func (d *Dispatcher) SendReminders(ctx context.Context, st settings.Settings, due []remind.Due) (bool, error) {
	sent := false
	var errs []error
	for _, r := range st.Recipients() {
		msgs := renderReminders(st, Scope(dueRecords(due), r.Role), due)
		if len(msgs) == 0 {
			continue
		}
		if err := d.sendAll(ctx, r.ChatID, msgs); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", r.ChatID, err))
			continue
		}
		sent = true
	}
	return sent, errors.Join(errs...)
}

func (d *Dispatcher) sendReminderList(ctx context.Context, st settings.Settings, r settings.Recipient) error {
	records, err := d.tasks.Collect(ctx, collector.OptionsFrom(st))
	if err != nil {
		return err
	}
	due := remind.Select(Scope(records, r.Role), time.Time{}, d.now())
	msgs := renderReminders(st, dueRecords(due), due)
	if len(msgs) == 0 {
		return d.send(ctx, r.ChatID, TextNoReminders, nil)
	}
	return d.sendAll(ctx, r.ChatID, msgs)
}

func dueRecords(due []remind.Due) []tasks.Record {
	out := make([]tasks.Record, len(due))
	for i, dd := range due {
		out[i] = dd.Record
	}
	return out
}

func renderReminders(st settings.Settings, records []tasks.Record, due []remind.Due) []Message {
	reasons := make(map[string]string, len(due))
	for _, dd := range due {
		reasons[dd.Record.ID] = dd.Reason
	}
	opts := listOptions(st, TitleReminders)
	opts.Suffix = func(r tasks.Record) string {
		return reminderSuffix(r, reasons[r.ID])
	}
	return RenderList(records, opts)
}

func reminderSuffix(r tasks.Record, reason string) string {
	if !r.HasDue() {
		return ""
	}
	when := r.Due.Format(time.DateOnly)
	if r.DueHasTime {
		when = r.Due.Local().Format("2006-01-02 15:04")
	}
	switch reason {
	case remind.ReasonOverdue, remind.ReasonOverdueDate:
		return " [overdue since " + when + "]"
	default:
		return " [due " + when + "]"
	}
}

// sendAll sends msgs in order and stops at the first failure.
func (d *Dispatcher) sendAll(ctx context.Context, chatID int64, msgs []Message) error {
	for i, m := range msgs {
		if err := d.sender.SendMessage(ctx, chatID, m.Text, m.Markup); err != nil {
			if i > 0 {
				d.logger.Warn("telegram_send_partial", "chat_id", chatID, "sent", i, "total", len(msgs), "error", err.Error())
			}
			return err
		}
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	return d.sender.SendMessage(ctx, chatID, text, markup)
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	return d.sender.AnswerCallbackQuery(ctx, callbackID, text)
}
