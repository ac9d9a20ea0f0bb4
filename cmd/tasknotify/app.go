package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	telegramruntime "github.com/quailyquaily/tasknotify/internal/channelruntime/telegram"
	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/logutil"
	"github.com/quailyquaily/tasknotify/internal/settings"
	"github.com/quailyquaily/tasknotify/internal/statepaths"
	"github.com/quailyquaily/tasknotify/internal/tasksapi"
	"github.com/quailyquaily/tasknotify/internal/telegram"
	"github.com/quailyquaily/tasknotify/internal/vault"
)

// configStore overlays explicitly configured viper keys on every load, so
// config and environment win over the persisted blob while cursors stay
// owned by the blob.
type configStore struct {
	*settings.Store
	v *viper.Viper
}

func (s configStore) Load(ctx context.Context) (settings.Settings, error) {
	st, err := s.Store.Load(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	settings.ApplyViper(s.v, &st)
	return st, nil
}

type app struct {
	logger    *slog.Logger
	store     configStore
	vault     *vault.DirVault
	collector *collector.Collector
}

func newApp() (*app, error) {
	logger, err := logutil.LoggerFromViper()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	store, err := settings.NewStore(statepaths.SettingsPath(), statepaths.LockRoot(), statepaths.SettingsLockKey)
	if err != nil {
		return nil, err
	}
	v, err := vault.NewDirVault(statepaths.VaultDir())
	if err != nil {
		return nil, err
	}

	deps := collector.Deps{
		Vault:      v,
		DailyNotes: vault.ObsidianDailyNotes{Vault: v},
		Logger:     logger,
	}
	if q := tasksapi.NewCommandQuerier(viper.GetString("tasks.query_command"), v.Root()); q != nil {
		q.Timeout = viper.GetDuration("tasks.query_timeout")
		deps.Querier = q
	}

	return &app{
		logger:    logger,
		store:     configStore{Store: store, v: viper.GetViper()},
		vault:     v,
		collector: collector.New(deps),
	}, nil
}

func (a *app) settings(ctx context.Context) (settings.Settings, error) {
	return a.store.Load(ctx)
}

func (a *app) telegramClient(token string) *telegram.Client {
	return telegram.New(token, telegram.Options{
		BaseURL:      strings.TrimRight(strings.TrimSpace(viper.GetString("telegram.base_url")), "/"),
		Logger:       a.logger,
		RatePerChat:  viper.GetFloat64("telegram.rate_per_chat"),
		BurstPerChat: viper.GetInt("telegram.burst_per_chat"),
	})
}

// runtime builds the Telegram runtime; its work queue lives as long as ctx.
func (a *app) runtime(ctx context.Context, opts telegramruntime.RunOptions) (*telegramruntime.Runtime, error) {
	st, err := a.settings(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Validate(); errors.Is(err, settings.ErrMissingToken) {
		return nil, err
	}
	return telegramruntime.New(ctx, a.runtimeDeps(st.BotToken), opts)
}

func (a *app) runtimeDeps(token string) telegramruntime.Dependencies {
	return telegramruntime.Dependencies{
		Logger:  func() (*slog.Logger, error) { return a.logger, nil },
		Store:   a.store,
		Gateway: a.telegramClient(token),
		Tasks:   a.collector,
	}
}
