package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/quailyquaily/tasknotify/internal/settings"
)

func TestConfigStoreOverlaysViper(t *testing.T) {
	root := t.TempDir()
	store, err := settings.NewStore(filepath.Join(root, "settings.json"), filepath.Join(root, ".fslocks"), "settings")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	base := settings.Defaults()
	base.BotToken = "old"
	base.LastUpdateID = 42
	if err := store.Save(ctx, base); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	v := viper.New()
	v.Set("telegram.bot_token", "new")
	v.Set("telegram.guest_chat_ids", "6, 7")
	cs := configStore{Store: store, v: v}

	st, err := cs.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if st.BotToken != "new" || st.LastUpdateID != 42 {
		t.Fatalf("Load() token=%q cursor=%d, want new/42", st.BotToken, st.LastUpdateID)
	}
	if len(st.GuestChatIDs) != 2 || st.GuestChatIDs[0] != 6 || st.GuestChatIDs[1] != 7 {
		t.Fatalf("Load() guests = %v, want [6 7]", st.GuestChatIDs)
	}
}
