package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailyquaily/tasknotify/internal/collector"
	"github.com/quailyquaily/tasknotify/internal/dispatch"
	"github.com/quailyquaily/tasknotify/internal/settings"
	tgapi "github.com/quailyquaily/tasknotify/internal/telegram"
)

// SettingsStore loads and persists the settings blob.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	Save(ctx context.Context, st settings.Settings) error
}

// Gateway is the Bot API surface the runtime needs.
type Gateway interface {
	dispatch.Sender
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]tgapi.Update, error)
}

// Tasks is the vault side: the dispatcher's task service plus the
// recurrence sweep.
type Tasks interface {
	dispatch.TaskService
	SweepRecurring(ctx context.Context) (collector.SweepResult, error)
}

type Dependencies struct {
	Logger  func() (*slog.Logger, error)
	Store   SettingsStore
	Gateway Gateway
	Tasks   Tasks
	Now     func() time.Time
}

func loggerFromDeps(d Dependencies) (*slog.Logger, error) {
	if d.Logger == nil {
		return slog.Default(), nil
	}
	return d.Logger()
}

func checkDeps(d Dependencies) error {
	switch {
	case d.Store == nil:
		return fmt.Errorf("Store dependency missing")
	case d.Gateway == nil:
		return fmt.Errorf("Gateway dependency missing")
	case d.Tasks == nil:
		return fmt.Errorf("Tasks dependency missing")
	}
	return nil
}
