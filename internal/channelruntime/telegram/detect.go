package telegram

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"github.com/quailyquaily/tasknotify/internal/dispatch"
	"github.com/quailyquaily/tasknotify/internal/settings"
	tgapi "github.com/quailyquaily/tasknotify/internal/telegram"
)

var (
	ErrNoUpdates = errors.New("no telegram updates found; send /start to the bot first")
	ErrNoChat    = errors.New("no chat id found in updates")
)

type Detection struct {
	ChatID int64
	// FromStart is false when no /start was seen and the latest chat was
	// used instead.
	FromStart  bool
	HostSet    bool
	Requestors []int64
}

// settingsUpdater is a store that can apply a change to the persisted blob
// under its own lock, so a one-shot command does not clobber a running loop.
type settingsUpdater interface {
	Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Settings, error)
}

// DetectChatID reads pending updates and picks the chat of the latest
// /start, else the latest chat seen. Every /start chat is recorded as a
// requestor, the host chat is set when empty, and the cursor moves past the
// batch.
func (rt *Runtime) DetectChatID(ctx context.Context) (Detection, error) {
	var det Detection
	err := rt.work.Do(ctx, func(ctx context.Context) error {
		updates, err := rt.gateway.GetUpdates(ctx, 0, 0)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return ErrNoUpdates
		}
		st := rt.Settings()
		before := st.LastUpdateID
		det = detectChat(&st, updates)
		if det.ChatID == 0 && st.LastUpdateID == before {
			return ErrNoChat
		}
		rt.stMu.Lock()
		rt.st = st
		rt.stMu.Unlock()
		if err := rt.persistDetection(ctx, st, updates); err != nil {
			rt.logger.Warn("settings_save_failed", "error", err)
			return err
		}
		if det.ChatID == 0 {
			return ErrNoChat
		}
		return nil
	})
	return det, err
}

func (rt *Runtime) persistDetection(ctx context.Context, st settings.Settings, updates []tgapi.Update) error {
	u, ok := rt.store.(settingsUpdater)
	if !ok {
		return rt.store.Save(ctx, st)
	}
	_, err := u.Update(ctx, func(disk *settings.Settings) error {
		detectChat(disk, updates)
		return nil
	})
	return err
}

func detectChat(st *settings.Settings, updates []tgapi.Update) Detection {
	ordered := make([]tgapi.Update, len(updates))
	copy(ordered, updates)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].UpdateID < ordered[j].UpdateID })

	var det Detection
	var latest, start int64
	for _, u := range ordered {
		chatID := u.ChatID()
		if chatID == 0 {
			continue
		}
		latest = chatID
		if u.Message != nil && dispatch.IsStart(u.Message.Text) {
			start = chatID
			st.AddRequestor(chatID)
		}
	}
	st.LastUpdateID = latestUpdateID(st.LastUpdateID, ordered)

	det.ChatID = start
	det.FromStart = start != 0
	if det.ChatID == 0 {
		det.ChatID = latest
	}
	if _, ok := st.HostChat(); !ok && det.ChatID != 0 {
		st.HostChatID = strconv.FormatInt(det.ChatID, 10)
		det.HostSet = true
	}
	det.Requestors = append([]int64(nil), st.Requestors...)
	return det
}

func latestUpdateID(current int64, updates []tgapi.Update) int64 {
	for _, u := range updates {
		if u.UpdateID > current {
			current = u.UpdateID
		}
	}
	return current
}
