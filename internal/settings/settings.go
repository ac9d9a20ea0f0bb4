// Package settings holds the persisted configuration and cursor blob shared
// by the poll loop, the digest scheduler and the CLI.
package settings

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

type TaggingMode string

const (
	TagAlways     TaggingMode = "always"
	TagOnComplete TaggingMode = "on-complete"
	TagNever      TaggingMode = "never"
)

type Role string

const (
	RoleUnknown Role = ""
	RoleHost    Role = "host"
	RoleGuest   Role = "guest"
)

var (
	ErrMissingToken = errors.New("settings: telegram bot token is missing")
	ErrMissingChats = errors.New("settings: no host or guest chat configured")
)

var idSeparatorRe = regexp.MustCompile(`[,\s]+`)

// Settings is the persisted blob. JSON names are part of the on-disk format.
type Settings struct {
	BotToken                       string      `json:"botToken"`
	HostChatID                     string      `json:"hostChatId"`
	GuestChatIDs                   []int64     `json:"guestChatIds"`
	Requestors                     []int64     `json:"requestors"`
	TasksQuery                     string      `json:"tasksQuery"`
	GlobalFilterTag                string      `json:"globalFilterTag"`
	DailyNotePathTemplate          string      `json:"dailyNotePathTemplate"`
	NotifyOnStartup                bool        `json:"notifyOnStartup"`
	NotificationIntervalMinutes    int         `json:"notificationIntervalMinutes"`
	PollIntervalSeconds            int         `json:"pollIntervalSeconds"`
	MaxTasksPerNotification        int         `json:"maxTasksPerNotification"`
	IncludeFilePath                bool        `json:"includeFilePath"`
	EnableTelegramPolling          bool        `json:"enableTelegramPolling"`
	LastUpdateID                   int64       `json:"lastUpdateId"`
	AllowedTelegramUserIDs         []int64     `json:"allowedTelegramUserIds"`
	TaskIDTaggingMode              TaggingMode `json:"taskIdTaggingMode"`
	LastIntervalNotificationSentAt int64       `json:"lastIntervalNotificationSentAt"`
	LastReminderCheckAt            int64       `json:"lastReminderCheckAt"`
}

func Defaults() Settings {
	return Settings{
		GuestChatIDs:                []int64{},
		Requestors:                  []int64{},
		TasksQuery:                  "not done",
		NotifyOnStartup:             true,
		NotificationIntervalMinutes: 60,
		PollIntervalSeconds:         10,
		MaxTasksPerNotification:     20,
		IncludeFilePath:             true,
		EnableTelegramPolling:       true,
		AllowedTelegramUserIDs:      []int64{},
		TaskIDTaggingMode:           TagAlways,
	}
}

// Normalize repairs values a hand-edited blob may carry.
func (s *Settings) Normalize() {
	s.BotToken = strings.TrimSpace(s.BotToken)
	s.HostChatID = strings.TrimSpace(s.HostChatID)
	switch s.TaskIDTaggingMode {
	case TagAlways, TagOnComplete, TagNever:
	default:
		s.TaskIDTaggingMode = TagAlways
	}
	if s.MaxTasksPerNotification < 1 {
		s.MaxTasksPerNotification = 1
	}
	if s.NotificationIntervalMinutes < 0 {
		s.NotificationIntervalMinutes = 0
	}
	s.GuestChatIDs = dedupe(s.GuestChatIDs)
	s.Requestors = dedupe(s.Requestors)
	s.AllowedTelegramUserIDs = dedupe(s.AllowedTelegramUserIDs)
}

// HostChat parses HostChatID.
func (s Settings) HostChat() (int64, bool) {
	if s.HostChatID == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s.HostChatID, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// RoleOf resolves a chat id. The host wins when a chat is listed as both.
func (s Settings) RoleOf(chatID int64) Role {
	if host, ok := s.HostChat(); ok && host == chatID {
		return RoleHost
	}
	for _, id := range s.GuestChatIDs {
		if id == chatID {
			return RoleGuest
		}
	}
	return RoleUnknown
}

// AllowsUser applies the optional user allow-list. A zero id is an unknown
// sender and is never allowed.
func (s Settings) AllowsUser(userID int64) bool {
	if userID == 0 {
		return false
	}
	if len(s.AllowedTelegramUserIDs) == 0 {
		return true
	}
	for _, id := range s.AllowedTelegramUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Recipient is one configured chat and its role.
type Recipient struct {
	ChatID int64
	Role   Role
}

// Recipients lists the host chat followed by guest chats, each once.
func (s Settings) Recipients() []Recipient {
	var out []Recipient
	seen := map[int64]bool{}
	if host, ok := s.HostChat(); ok {
		out = append(out, Recipient{ChatID: host, Role: RoleHost})
		seen[host] = true
	}
	for _, id := range s.GuestChatIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, Recipient{ChatID: id, Role: RoleGuest})
	}
	return out
}

// AddRequestor records chatID once. It reports whether the list changed.
func (s *Settings) AddRequestor(chatID int64) bool {
	for _, id := range s.Requestors {
		if id == chatID {
			return false
		}
	}
	s.Requestors = append(s.Requestors, chatID)
	return true
}

// Validate reports what prevents the Telegram side from running.
func (s Settings) Validate() error {
	if s.BotToken == "" {
		return ErrMissingToken
	}
	if len(s.Recipients()) == 0 {
		return ErrMissingChats
	}
	return nil
}

// ParseIDs splits a comma or whitespace separated id list, dropping invalid
// entries and duplicates.
func ParseIDs(value string) []int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return []int64{}
	}
	out := []int64{}
	for _, part := range idSeparatorRe.Split(value, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return dedupe(out)
}

func FormatIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
