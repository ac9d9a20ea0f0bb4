package telegram

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/logutil"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/tasks"
	tgapi "github.com/quailyquaily/tasknotify/internal/telegram"
	"github.com/quailyquaily/tasknotify/internal/vault"
)

type memStore struct {
	mu    sync.Mutex
	st    settings.Settings
	saves int
}

func (m *memStore) Load(context.Context) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

func (m *memStore) Save(_ context.Context, st settings.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	m.saves++
	return nil
}

func (m *memStore) Update(_ context.Context, fn func(*settings.Settings) error) (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.st
	st.Requestors = append([]int64(nil), m.st.Requestors...)
	if err := fn(&st); err != nil {
		return settings.Settings{}, err
	}
	m.st = st
	m.saves++
	return st, nil
}

func (m *memStore) snapshot() (settings.Settings, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, m.saves
}

type sent struct {
	chatID int64
	text   string
}

type fakeGateway struct {
	mu       sync.Mutex
	batches  [][]tgapi.Update
	offsets  []int64
	timeouts []int
	sent     []sent
	failSend bool
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string, _ *tgapi.InlineKeyboardMarkup) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSend {
		return errors.New("telegram: Bad Request: chat not found")
	}
	g.sent = append(g.sent, sent{chatID: chatID, text: text})
	return nil
}

func (g *fakeGateway) AnswerCallbackQuery(context.Context, string, string) error { return nil }

func (g *fakeGateway) GetUpdates(_ context.Context, offset int64, timeoutSeconds int) ([]tgapi.Update, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offsets = append(g.offsets, offset)
	g.timeouts = append(g.timeouts, timeoutSeconds)
	if len(g.batches) == 0 {
		return nil, nil
	}
	batch := g.batches[0]
	g.batches = g.batches[1:]
	return batch, nil
}

func (g *fakeGateway) messages() []sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sent(nil), g.sent...)
}

type countingTasks struct {
	*collector.Collector
	collects atomic.Int32
}

func (c *countingTasks) Collect(ctx context.Context, opts collector.Options) ([]tasks.Record, error) {
	c.collects.Add(1)
	return c.Collector.Collect(ctx, opts)
}

type harness struct {
	rt      *Runtime
	store   *memStore
	gateway *fakeGateway
	tasks   *countingTasks
	root    string
}

func newHarness(t *testing.T, st settings.Settings, files map[string]string, now time.Time, opts RunOptions) *harness {
	t.Helper()
	root := t.TempDir()
	for p, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	v, err := vault.NewDirVault(root)
	if err != nil {
		t.Fatalf("NewDirVault() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		store:   &memStore{st: st},
		gateway: &fakeGateway{},
		tasks:   &countingTasks{Collector: collector.New(collector.Deps{Vault: v, Logger: logutil.Discard()})},
		root:    root,
	}
	h.rt, err = New(ctx, Dependencies{
		Logger:  func() (*slog.Logger, error) { return logutil.Discard(), nil },
		Store:   h.store,
		Gateway: h.gateway,
		Tasks:   h.tasks,
		Now:     func() time.Time { return now },
	}, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func baseSettings() settings.Settings {
	st := settings.Defaults()
	st.BotToken = "token"
	st.HostChatID = "5"
	st.TaskIDTaggingMode = settings.TagNever
	return st
}

func TestPollOnceDispatchesAndPersistsCursor(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.LastUpdateID = 6
	h := newHarness(t, st, map[string]string{"a.md": "- [ ] Task one"}, time.Now(), RunOptions{})
	h.gateway.batches = [][]tgapi.Update{{
		{UpdateID: 8, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 5}, From: &tgapi.User{ID: 1}, Text: "/list"}},
		{UpdateID: 7, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 99}, From: &tgapi.User{ID: 2}, Text: "hello"}},
	}}

	result, err := h.rt.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce() error = %v", err)
	}
	if len(result.Outcomes) != 2 || !result.Changed {
		t.Fatalf("PollOnce() = %+v, want 2 outcomes and a change", result)
	}
	if h.gateway.offsets[0] != 7 || h.gateway.timeouts[0] != 10 {
		t.Fatalf("GetUpdates(offset=%d, timeout=%d), want (7, 10)", h.gateway.offsets[0], h.gateway.timeouts[0])
	}
	saved, saves := h.store.snapshot()
	if saved.LastUpdateID != 8 || saves != 1 {
		t.Fatalf("saved cursor = %d after %d saves, want 8 after 1", saved.LastUpdateID, saves)
	}
	if h.rt.Settings().LastUpdateID != 8 {
		t.Fatalf("in-memory cursor = %d, want 8", h.rt.Settings().LastUpdateID)
	}
	msgs := h.gateway.messages()
	if len(msgs) != 1 || msgs[0].chatID != 5 || !strings.Contains(msgs[0].text, "Task one") {
		t.Fatalf("sent = %+v, want the list to the host", msgs)
	}

	if _, err := h.rt.PollOnce(context.Background()); err != nil {
		t.Fatalf("second PollOnce() error = %v", err)
	}
	if h.gateway.offsets[1] != 9 {
		t.Fatalf("second GetUpdates offset = %d, want 9", h.gateway.offsets[1])
	}
	if _, saves := h.store.snapshot(); saves != 1 {
		t.Fatalf("empty batch saved settings (%d saves)", saves)
	}
}

func TestDigestAdvancesCursors(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	files := map[string]string{
		"bills.md": "- [ ] pay bill " + tasks.EmojiDue + " 2024-05-10 #remind/1d\n- [ ] someday",
	}
	h := newHarness(t, baseSettings(), files, now, RunOptions{})

	res, err := h.rt.Digest(context.Background())
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if !res.Ran || res.Due != 1 || !res.Sent {
		t.Fatalf("Digest() = %+v, want one reminder sent", res)
	}
	msgs := h.gateway.messages()
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0].text, "Reminders: 1") || strings.Contains(msgs[0].text, "someday") {
		t.Fatalf("sent = %+v", msgs)
	}
	saved, _ := h.store.snapshot()
	if saved.LastReminderCheckAt != now.UnixMilli() || saved.LastIntervalNotificationSentAt != now.UnixMilli() {
		t.Fatalf("cursors = %d/%d, want %d", saved.LastReminderCheckAt, saved.LastIntervalNotificationSentAt, now.UnixMilli())
	}

	again, err := h.rt.Digest(context.Background())
	if err != nil || again.Ran {
		t.Fatalf("Digest() inside the interval = %+v, %v; want skipped", again, err)
	}
}

func TestDigestWithNothingDueAdvancesCheckOnly(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, baseSettings(), map[string]string{"a.md": "- [ ] someday"}, now, RunOptions{})

	res, err := h.rt.Digest(context.Background())
	if err != nil || !res.Ran || res.Sent {
		t.Fatalf("Digest() = %+v, %v; want ran without sending", res, err)
	}
	saved, _ := h.store.snapshot()
	if saved.LastReminderCheckAt != now.UnixMilli() || saved.LastIntervalNotificationSentAt != 0 {
		t.Fatalf("cursors = %d/%d, want check only", saved.LastReminderCheckAt, saved.LastIntervalNotificationSentAt)
	}
}

func TestDigestSendFailureKeepsCursors(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 9, 12, 0, 0, 0, time.UTC)
	files := map[string]string{"bills.md": "- [ ] pay bill " + tasks.EmojiDue + " 2024-05-10 #remind/1d"}
	h := newHarness(t, baseSettings(), files, now, RunOptions{})
	h.gateway.failSend = true

	if _, err := h.rt.Digest(context.Background()); err == nil {
		t.Fatalf("Digest() error = nil, want send failure")
	}
	saved, saves := h.store.snapshot()
	if saves != 0 || saved.LastReminderCheckAt != 0 {
		t.Fatalf("cursors advanced after a failed send: %+v (%d saves)", saved, saves)
	}
}

func TestNotifyStartupRetriesWhileEmpty(t *testing.T) {
	t.Parallel()

	h := newHarness(t, baseSettings(), nil, time.Now(), RunOptions{StartupAttempts: 3, StartupDelay: -1})
	count, err := h.rt.NotifyStartup(context.Background())
	if err != nil || count != 0 {
		t.Fatalf("NotifyStartup() = %d, %v; want 0, nil", count, err)
	}
	if got := h.tasks.collects.Load(); got != 3 {
		t.Fatalf("collects = %d, want 3", got)
	}
	if msgs := h.gateway.messages(); len(msgs) != 0 {
		t.Fatalf("sent = %+v, want nothing for an empty list", msgs)
	}
}

func TestNotifyStartupSendsFirstNonEmpty(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.GuestChatIDs = []int64{6}
	files := map[string]string{"a.md": "- [ ] private\n- [ ] common #shared"}
	h := newHarness(t, st, files, time.Now(), RunOptions{StartupDelay: -1})
	count, err := h.rt.NotifyStartup(context.Background())
	if err != nil || count != 2 {
		t.Fatalf("NotifyStartup() = %d, %v; want 2, nil", count, err)
	}
	if got := h.tasks.collects.Load(); got != 1 {
		t.Fatalf("collects = %d, want 1", got)
	}
	msgs := h.gateway.messages()
	if len(msgs) != 2 || msgs[0].chatID != 5 || msgs[1].chatID != 6 {
		t.Fatalf("sent = %+v, want host then guest", msgs)
	}
	if strings.Contains(msgs[1].text, "private") {
		t.Fatalf("guest saw a private task: %q", msgs[1].text)
	}
}

func TestDetectChatIDPrefersStart(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.HostChatID = ""
	h := newHarness(t, st, nil, time.Now(), RunOptions{})
	h.gateway.batches = [][]tgapi.Update{{
		{UpdateID: 5, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 77}, Text: "hi"}},
		{UpdateID: 3, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 42}, Text: "/start"}},
		{UpdateID: 4, CallbackQuery: &tgapi.CallbackQuery{ID: "cb", Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 99}}}},
	}}

	det, err := h.rt.DetectChatID(context.Background())
	if err != nil {
		t.Fatalf("DetectChatID() error = %v", err)
	}
	if det.ChatID != 42 || !det.FromStart || !det.HostSet {
		t.Fatalf("DetectChatID() = %+v, want chat 42 from /start", det)
	}
	saved, _ := h.store.snapshot()
	if saved.HostChatID != "42" || saved.LastUpdateID != 5 || len(saved.Requestors) != 1 || saved.Requestors[0] != 42 {
		t.Fatalf("saved = host %q cursor %d requestors %v", saved.HostChatID, saved.LastUpdateID, saved.Requestors)
	}
}

func TestDetectChatIDUpdatesPersistedBlob(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.HostChatID = ""
	h := newHarness(t, st, nil, time.Now(), RunOptions{})

	// Another process saved a requestor and a newer cursor after New loaded.
	h.store.mu.Lock()
	h.store.st.Requestors = []int64{11}
	h.store.st.LastUpdateID = 20
	h.store.mu.Unlock()

	h.gateway.batches = [][]tgapi.Update{{
		{UpdateID: 8, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 42}, Text: "/start"}},
	}}
	if _, err := h.rt.DetectChatID(context.Background()); err != nil {
		t.Fatalf("DetectChatID() error = %v", err)
	}
	saved, _ := h.store.snapshot()
	if saved.HostChatID != "42" || saved.LastUpdateID != 20 {
		t.Fatalf("saved host %q cursor %d, want 42 and 20", saved.HostChatID, saved.LastUpdateID)
	}
	if len(saved.Requestors) != 2 || saved.Requestors[0] != 11 || saved.Requestors[1] != 42 {
		t.Fatalf("saved requestors = %v, want [11 42]", saved.Requestors)
	}
	if got := h.rt.Settings().HostChatID; got != "42" {
		t.Fatalf("in-memory host chat = %q, want 42", got)
	}
}

func TestSendAllRequiresChats(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.HostChatID = ""
	h := newHarness(t, st, map[string]string{"a.md": "- [ ] someday"}, time.Now(), RunOptions{})
	if _, err := h.rt.SendAll(context.Background()); !errors.Is(err, settings.ErrMissingChats) {
		t.Fatalf("SendAll() error = %v, want %v", err, settings.ErrMissingChats)
	}
	if msgs := h.gateway.messages(); len(msgs) != 0 {
		t.Fatalf("sent = %+v, want nothing", msgs)
	}
}

func TestDetectChatIDKeepsExistingHost(t *testing.T) {
	t.Parallel()

	h := newHarness(t, baseSettings(), nil, time.Now(), RunOptions{})
	h.gateway.batches = [][]tgapi.Update{{
		{UpdateID: 1, Message: &tgapi.Message{Chat: &tgapi.Chat{ID: 77}, Text: "hello"}},
	}}
	det, err := h.rt.DetectChatID(context.Background())
	if err != nil {
		t.Fatalf("DetectChatID() error = %v", err)
	}
	if det.ChatID != 77 || det.FromStart || det.HostSet {
		t.Fatalf("DetectChatID() = %+v, want latest chat without touching the host", det)
	}
	if h.rt.Settings().HostChatID != "5" {
		t.Fatalf("host chat = %q, want 5", h.rt.Settings().HostChatID)
	}
}

func TestDetectChatIDNoUpdates(t *testing.T) {
	t.Parallel()

	h := newHarness(t, baseSettings(), nil, time.Now(), RunOptions{})
	if _, err := h.rt.DetectChatID(context.Background()); !errors.Is(err, ErrNoUpdates) {
		t.Fatalf("DetectChatID() error = %v, want %v", err, ErrNoUpdates)
	}
}

func TestSweepStampsRecurring(t *testing.T) {
	t.Parallel()

	h := newHarness(t, baseSettings(), map[string]string{"chores.md": "- [x] Water plants #recur/1d"}, time.Now(), RunOptions{})
	res, err := h.rt.Sweep(context.Background())
	if err != nil || res.Stamped != 1 {
		t.Fatalf("Sweep() = %+v, %v; want one stamp", res, err)
	}
	data, err := os.ReadFile(filepath.Join(h.root, "chores.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "#recurdone/") {
		t.Fatalf("chores.md = %q, want a completion stamp", data)
	}
}

func TestRunRequiresToken(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.BotToken = ""
	h := newHarness(t, st, nil, time.Now(), RunOptions{})
	if err := h.rt.Run(context.Background()); !errors.Is(err, settings.ErrMissingToken) {
		t.Fatalf("Run() error = %v, want %v", err, settings.ErrMissingToken)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	st := baseSettings()
	st.NotifyOnStartup = false
	st.EnableTelegramPolling = false
	h := newHarness(t, st, nil, time.Now(), RunOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.rt.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}
