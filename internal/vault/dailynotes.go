package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
)

const (
	DailyNotesConfigPath = ".obsidian/daily-notes.json"
	DefaultDailyFormat   = "YYYY-MM-DD"
	DatePlaceholder      = "{date}"
)

// DailyNoteSettings mirrors the daily-notes plugin configuration.
type DailyNoteSettings struct {
	Folder   string `json:"folder"`
	Format   string `json:"format"`
	Template string `json:"template"`
}

// DailyNotes is the daily-notes collaborator. Settings returns nil when the
// vault has no daily-notes configuration.
type DailyNotes interface {
	Settings() (*DailyNoteSettings, error)
	AllNotes() (map[string]string, error)
	CreateNote(date time.Time, settings DailyNoteSettings) (string, error)
}

// ObsidianDailyNotes reads the daily-notes plugin config stored in the vault.
type ObsidianDailyNotes struct {
	Vault Vault
}

func (d ObsidianDailyNotes) Settings() (*DailyNoteSettings, error) {
	raw, err := d.Vault.Read(DailyNotesConfigPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var s DailyNoteSettings
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", DailyNotesConfigPath, err)
		}
	}
	s.Folder = strings.Trim(strings.TrimSpace(s.Folder), "/")
	s.Format = strings.TrimSpace(s.Format)
	if s.Format == "" {
		s.Format = DefaultDailyFormat
	}
	s.Template = strings.TrimSpace(s.Template)
	return &s, nil
}

// AllNotes indexes existing daily notes by YYYY-MM-DD.
func (d ObsidianDailyNotes) AllNotes() (map[string]string, error) {
	s, err := d.Settings()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return map[string]string{}, nil
	}
	layout := MomentToLayout(s.Format)
	files, err := d.Vault.ListMarkdownFiles()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	prefix := ""
	if s.Folder != "" {
		prefix = s.Folder + "/"
	}
	for _, f := range files {
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(f, prefix), path.Ext(f))
		t, err := time.ParseInLocation(layout, name, time.Local)
		if err != nil {
			continue
		}
		out[t.Format(time.DateOnly)] = f
	}
	return out, nil
}

// CreateNote creates the note for date, seeded from the template note when
// one is configured. An existing note is returned unchanged.
func (d ObsidianDailyNotes) CreateNote(date time.Time, s DailyNoteSettings) (string, error) {
	format := s.Format
	if format == "" {
		format = DefaultDailyFormat
	}
	p := date.Format(MomentToLayout(format)) + ".md"
	if folder := strings.Trim(s.Folder, "/"); folder != "" {
		p = folder + "/" + p
	}
	exists, err := d.Vault.Exists(p)
	if err != nil {
		return "", err
	}
	if exists {
		return p, nil
	}
	content := ""
	if s.Template != "" {
		tpl := s.Template
		if path.Ext(tpl) == "" {
			tpl += ".md"
		}
		if body, err := d.Vault.Read(tpl); err == nil {
			content = body
		} else if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	if err := createWithParents(d.Vault, p, content); err != nil {
		return "", err
	}
	return p, nil
}

// DailyNoteResolver picks the note that receives tasks added from chat.
type DailyNoteResolver struct {
	Vault        Vault
	Notes        DailyNotes
	PathTemplate string
	Logger       *slog.Logger
}

// Resolve returns a vault path that exists once it returns without error.
// Order: the configured path template, today's daily note from the index,
// a note created through the daily-notes collaborator, then YYYY-MM-DD.md.
func (r DailyNoteResolver) Resolve(now time.Time) (string, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	today := now.Format(time.DateOnly)

	if tpl := strings.TrimSpace(r.PathTemplate); tpl != "" {
		p := strings.TrimPrefix(strings.ReplaceAll(tpl, DatePlaceholder, today), "/")
		if !strings.EqualFold(path.Ext(p), ".md") {
			p += ".md"
		}
		return p, r.ensure(p)
	}

	if r.Notes != nil {
		if p, ok := r.fromDailyNotes(logger, now, today); ok {
			return p, nil
		}
	}

	p := today + ".md"
	return p, r.ensure(p)
}

func (r DailyNoteResolver) fromDailyNotes(logger *slog.Logger, now time.Time, today string) (string, bool) {
	settings, err := r.Notes.Settings()
	if err != nil {
		logger.Warn("daily_notes_settings_failed", "error", err.Error())
		return "", false
	}
	if settings == nil {
		return "", false
	}
	if notes, err := r.Notes.AllNotes(); err != nil {
		logger.Warn("daily_notes_index_failed", "error", err.Error())
	} else if p, ok := notes[today]; ok && p != "" {
		return p, true
	}
	p, err := r.Notes.CreateNote(now, *settings)
	if err != nil {
		logger.Warn("daily_note_create_failed", "error", err.Error())
		return "", false
	}
	if err := r.ensure(p); err != nil {
		logger.Warn("daily_note_create_failed", "path", p, "error", err.Error())
		return "", false
	}
	return p, true
}

func (r DailyNoteResolver) ensure(p string) error {
	exists, err := r.Vault.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return createWithParents(r.Vault, p, "")
}

func createWithParents(v Vault, p, content string) error {
	if dir := ParentDir(p); dir != "" {
		if err := v.CreateFolder(dir); err != nil {
			return fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	if err := v.Create(p, content); err != nil && !errors.Is(err, ErrExists) {
		return fmt.Errorf("create note %s: %w", p, err)
	}
	return nil
}

var momentTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
	{"HH", "15"},
	{"mm", "04"},
}

// MomentToLayout converts the subset of moment.js format tokens used for
// daily note names into a time layout. Text in [brackets] is kept literally.
func MomentToLayout(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i+1:], ']'); end >= 0 {
				b.WriteString(format[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}
		matched := false
		for _, tok := range momentTokens {
			if strings.HasPrefix(format[i:], tok.token) {
				b.WriteString(tok.layout)
				i += len(tok.token)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}
