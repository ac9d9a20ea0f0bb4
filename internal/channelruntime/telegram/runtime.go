// Package telegram is the long-running Telegram side of tasknotify: it
// long-polls updates, sends periodic reminder digests and reopens recurring
// tasks, funnelling all vault and settings writes through one worker.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quailyquaily/tasknotify/internal/channelruntime/worker"
	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/dispatch"
	"github.com/quailyquaily/tasknotify/internal/remind"
	"github.com/quailyquaily/tasknotify/internal/retryutil"
	"github.com/quailyquaily/tasknotify/internal/schedule"
	"github.com/quailyquaily/tasknotify/internal/settings"
	tgapi "github.com/quailyquaily/tasknotify/internal/telegram"
)

type Runtime struct {
	store      SettingsStore
	gateway    Gateway
	tasks      Tasks
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	now        func() time.Time
	opts       runtimeLoopOptions

	// work is the single writer for the vault and the settings blob.
	work *worker.Pool

	stMu sync.Mutex
	st   settings.Settings

	polling     atomic.Bool
	digestState *schedule.State
	sweepState  *schedule.State
}

// New loads the settings blob and starts the work queue. The queue stops
// with ctx.
func New(ctx context.Context, d Dependencies, opts RunOptions) (*Runtime, error) {
	if err := checkDeps(d); err != nil {
		return nil, err
	}
	logger, err := loggerFromDeps(d)
	if err != nil {
		return nil, err
	}
	st, err := d.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	loopOpts := resolveRuntimeLoopOptionsFromRunOptions(opts)
	return &Runtime{
		store:       d.Store,
		gateway:     d.Gateway,
		tasks:       d.Tasks,
		dispatcher:  dispatch.New(d.Gateway, d.Tasks, logger),
		logger:      logger,
		now:         now,
		opts:        loopOpts,
		work:        worker.Start(ctx, 1),
		st:          st,
		digestState: &schedule.State{},
		sweepState:  &schedule.State{MinInterval: loopOpts.SweepMinInterval},
	}, nil
}

// Run starts the runtime and blocks until ctx is done.
func Run(ctx context.Context, d Dependencies, opts RunOptions) error {
	rt, err := New(ctx, d, opts)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// Settings returns a copy of the in-memory settings.
func (rt *Runtime) Settings() settings.Settings {
	rt.stMu.Lock()
	defer rt.stMu.Unlock()
	return rt.st
}

func (rt *Runtime) Run(ctx context.Context) error {
	st := rt.Settings()
	if err := st.Validate(); errors.Is(err, settings.ErrMissingToken) {
		return err
	}
	if _, ok := st.HostChat(); !ok && rt.opts.DetectChat {
		if det, err := rt.DetectChatID(ctx); err != nil {
			rt.logger.Warn("telegram_detect_chat_failed", "error", err)
		} else {
			rt.logger.Info("telegram_chat_detected", "chat_id", det.ChatID, "from_start", det.FromStart, "host_set", det.HostSet)
		}
		st = rt.Settings()
	}
	if err := st.Validate(); err != nil {
		rt.logger.Warn("telegram_no_chats_configured", "requestors", settings.FormatIDs(st.Requestors), "error", err)
	}
	rt.logger.Info("telegram_start",
		"poll", st.EnableTelegramPolling,
		"poll_interval_seconds", st.PollIntervalSeconds,
		"interval_minutes", st.NotificationIntervalMinutes,
		"sweep_interval", rt.opts.SweepInterval,
	)

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	if st.NotifyOnStartup {
		spawn(func() {
			if _, err := rt.NotifyStartup(ctx); err != nil && ctx.Err() == nil {
				rt.logger.Warn("telegram_startup_notify_failed", "error", err)
			}
		})
	}
	spawn(func() {
		schedule.Every(ctx, rt.logger, "digest", rt.opts.DigestTick, rt.digestState, func(ctx context.Context) error {
			_, err := rt.Digest(ctx)
			return err
		})
	})
	spawn(func() {
		schedule.Every(ctx, rt.logger, "recurrence_sweep", rt.opts.SweepInterval, rt.sweepState, func(ctx context.Context) error {
			_, err := rt.Sweep(ctx)
			return err
		})
	})
	if st.EnableTelegramPolling && st.PollIntervalSeconds > 0 {
		spawn(func() { rt.pollLoop(ctx) })
	}

	<-ctx.Done()
	wg.Wait()
	rt.logger.Info("telegram_stop", "reason", "context_canceled")
	return nil
}

// do runs fn on the work queue with the current settings. fn may mutate st;
// when it reports a change the new settings are kept and persisted.
func (rt *Runtime) do(ctx context.Context, fn func(ctx context.Context, st *settings.Settings) (bool, error)) error {
	return rt.work.Do(ctx, func(ctx context.Context) error {
		st := rt.Settings()
		changed, err := fn(ctx, &st)
		if !changed {
			return err
		}
		rt.stMu.Lock()
		rt.st = st
		rt.stMu.Unlock()
		if saveErr := rt.store.Save(ctx, st); saveErr != nil {
			rt.logger.Warn("settings_save_failed", "error", saveErr)
			return errors.Join(err, saveErr)
		}
		return err
	})
}

func (rt *Runtime) pollLoop(ctx context.Context) {
	streak := 0
	for ctx.Err() == nil {
		_, err := rt.PollOnce(ctx)
		if err == nil {
			streak = 0
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if tgapi.IsPollTimeout(err) {
			rt.logger.Debug("telegram_get_updates_timeout", "error", err)
			continue
		}
		streak++
		wait := retryutil.PollBackoff(streak)
		rt.logger.Warn("telegram_poll_error", "error", err, "streak", streak, "backoff", wait)
		if err := schedule.Sleep(ctx, wait); err != nil {
			return
		}
	}
}

// PollOnce fetches one batch of updates after the stored cursor and
// dispatches it. Overlapping calls return immediately.
func (rt *Runtime) PollOnce(ctx context.Context) (dispatch.BatchResult, error) {
	if !rt.polling.CompareAndSwap(false, true) {
		return dispatch.BatchResult{}, nil
	}
	defer rt.polling.Store(false)

	st := rt.Settings()
	offset := st.LastUpdateID + 1
	timeout := max(1, st.PollIntervalSeconds)
	updates, err := rt.gateway.GetUpdates(ctx, offset, timeout)
	if err != nil {
		return dispatch.BatchResult{}, err
	}
	if len(updates) == 0 {
		return dispatch.BatchResult{}, nil
	}

	logger := rt.logger.With("batch_id", uuid.NewString())
	logger.Debug("telegram_batch_received", "updates", len(updates), "offset", offset)
	var result dispatch.BatchResult
	err = rt.do(ctx, func(ctx context.Context, st *settings.Settings) (bool, error) {
		result = rt.dispatcher.HandleBatch(ctx, st, updates)
		return result.Changed, nil
	})
	for _, out := range result.Outcomes {
		if out.Err != nil {
			logger.Warn("telegram_update_failed", "update_id", out.UpdateID, "chat_id", out.ChatID, "action", out.Action, "error", out.Err)
			continue
		}
		logger.Debug("telegram_update_handled", "update_id", out.UpdateID, "chat_id", out.ChatID, "role", out.Role, "action", out.Action)
	}
	return result, err
}

// NotifyStartup sends the task list to every configured chat, retrying
// while the list is still empty so a cold task index is not reported as
// "nothing to do". It returns how many tasks were found.
func (rt *Runtime) NotifyStartup(ctx context.Context) (int, error) {
	for attempt := 1; ; attempt++ {
		var count int
		err := rt.do(ctx, func(ctx context.Context, st *settings.Settings) (bool, error) {
			records, err := rt.tasks.Collect(ctx, collector.OptionsFrom(*st))
			if err != nil {
				return false, err
			}
			count = len(records)
			if count == 0 && attempt < rt.opts.StartupAttempts {
				return false, nil
			}
			return false, rt.dispatcher.BroadcastRecords(ctx, *st, records, "")
		})
		if err != nil || count > 0 || attempt >= rt.opts.StartupAttempts {
			return count, err
		}
		if err := schedule.Sleep(ctx, rt.opts.StartupDelay); err != nil {
			return 0, err
		}
	}
}

// SendAll collects once and sends each configured chat its scoped list. It
// fails with settings.ErrMissingChats when there is nobody to send to.
func (rt *Runtime) SendAll(ctx context.Context) (int, error) {
	var count int
	err := rt.do(ctx, func(ctx context.Context, st *settings.Settings) (bool, error) {
		if err := st.Validate(); err != nil {
			return false, err
		}
		records, err := rt.tasks.Collect(ctx, collector.OptionsFrom(*st))
		if err != nil {
			return false, err
		}
		count = len(records)
		return false, rt.dispatcher.BroadcastRecords(ctx, *st, records, dispatch.TextEmptyList)
	})
	return count, err
}

type DigestResult struct {
	Ran  bool
	Due  int
	Sent bool
}

// Digest sends the reminder digest once the notification interval has
// elapsed since the later of the last check and the last send. The check
// cursor advances on every completed attempt; the sent cursor only when a
// message went out.
func (rt *Runtime) Digest(ctx context.Context) (DigestResult, error) {
	var res DigestResult
	err := rt.do(ctx, func(ctx context.Context, st *settings.Settings) (bool, error) {
		now := rt.now()
		lastCheck := remind.FromMillis(st.LastReminderCheckAt)
		lastSent := remind.FromMillis(st.LastIntervalNotificationSentAt)
		interval := time.Duration(st.NotificationIntervalMinutes) * time.Minute
		if !remind.DigestDue(lastCheck, lastSent, now, interval) {
			return false, nil
		}
		res.Ran = true
		records, err := rt.tasks.Collect(ctx, collector.OptionsFrom(*st))
		if err != nil {
			return false, err
		}
		due := remind.Select(records, lastCheck, now)
		res.Due = len(due)
		sent, sendErr := rt.dispatcher.SendReminders(ctx, *st, due)
		res.Sent = sent
		if sent {
			st.LastIntervalNotificationSentAt = now.UnixMilli()
		}
		if sendErr != nil && !sent {
			return false, sendErr
		}
		st.LastReminderCheckAt = now.UnixMilli()
		return true, sendErr
	})
	if res.Ran && err == nil {
		rt.logger.Info("digest_checked", "due", res.Due, "sent", res.Sent)
	}
	return res, err
}

// Sweep reopens recurring tasks whose next occurrence has arrived.
func (rt *Runtime) Sweep(ctx context.Context) (collector.SweepResult, error) {
	var res collector.SweepResult
	err := rt.work.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = rt.tasks.SweepRecurring(ctx)
		return err
	})
	return res, err
}
