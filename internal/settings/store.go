package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/quailyquaily/tasknotify/internal/fsstore"
	"github.com/spf13/viper"
)

// Store persists Settings as one JSON file guarded by an flock so the
// long-running loop and one-shot CLI commands do not interleave writes.
type Store struct {
	path     string
	lockPath string
}

func NewStore(path, lockRoot, lockKey string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty settings path", fsstore.ErrInvalidPath)
	}
	lockPath, err := fsstore.BuildLockPath(lockRoot, lockKey)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, lockPath: lockPath}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the defaults overlaid with the persisted blob.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	out := Defaults()
	err := fsstore.WithLock(ctx, s.lockPath, func() error {
		_, err := fsstore.ReadJSON(s.path, &out)
		return err
	})
	if err != nil {
		return Settings{}, err
	}
	out.Normalize()
	return out, nil
}

func (s *Store) Save(ctx context.Context, st Settings) error {
	return fsstore.WithLock(ctx, s.lockPath, func() error {
		return fsstore.WriteJSONAtomic(s.path, st, fsstore.FileOptions{})
	})
}

// Update applies fn to the current persisted blob and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) (Settings, error) {
	var out Settings
	err := fsstore.MutateJSON(ctx, s.path, s.lockPath, fsstore.FileOptions{}, Defaults, func(st *Settings) error {
		st.Normalize()
		if err := fn(st); err != nil {
			return err
		}
		out = *st
		return nil
	})
	return out, err
}

// ApplyViper overlays configuration keys that are explicitly set (config
// file, environment or flags) onto st. Cursor fields are never touched.
func ApplyViper(v *viper.Viper, st *Settings) {
	if v == nil || st == nil {
		return
	}
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			if val := strings.TrimSpace(v.GetString(key)); val != "" {
				*dst = val
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	ids := func(key string, dst *[]int64) {
		if v.IsSet(key) {
			if parsed := ParseIDs(strings.Join(v.GetStringSlice(key), ",")); len(parsed) > 0 {
				*dst = parsed
			}
		}
	}

	str("telegram.bot_token", &st.BotToken)
	str("telegram.host_chat_id", &st.HostChatID)
	ids("telegram.guest_chat_ids", &st.GuestChatIDs)
	ids("telegram.allowed_user_ids", &st.AllowedTelegramUserIDs)
	integer("telegram.poll_interval_seconds", &st.PollIntervalSeconds)
	boolean("telegram.enable_polling", &st.EnableTelegramPolling)
	str("tasks.query", &st.TasksQuery)
	str("tasks.global_filter_tag", &st.GlobalFilterTag)
	if v.IsSet("tasks.id_tagging_mode") {
		if mode := strings.TrimSpace(v.GetString("tasks.id_tagging_mode")); mode != "" {
			st.TaskIDTaggingMode = TaggingMode(strings.ToLower(mode))
		}
	}
	integer("tasks.max_per_notification", &st.MaxTasksPerNotification)
	boolean("tasks.include_file_path", &st.IncludeFilePath)
	boolean("notify.on_startup", &st.NotifyOnStartup)
	integer("notify.interval_minutes", &st.NotificationIntervalMinutes)
	str("daily_note.path_template", &st.DailyNotePathTemplate)
	st.Normalize()
}
