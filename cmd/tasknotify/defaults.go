package main

import (
	"time"

	"github.com/quailyquaily/tasknotify/internal/telegram"
	"github.com/spf13/viper"
)

// initViperDefaults covers process-level keys only. Keys that mirror the
// settings blob (telegram.bot_token, tasks.*, notify.*, ...) get no viper
// default: a default would count as set and override the persisted value.
func initViperDefaults() {
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)

	viper.SetDefault("file_state_dir", "~/.tasknotify")
	viper.SetDefault("vault.dir", ".")

	viper.SetDefault("telegram.base_url", telegram.DefaultBaseURL)
	viper.SetDefault("telegram.rate_per_chat", 1.0)
	viper.SetDefault("telegram.burst_per_chat", 3)

	viper.SetDefault("tasks.query_command", "")
	viper.SetDefault("tasks.query_timeout", 20*time.Second)

	viper.SetDefault("recurrence.sweep_interval", 60*time.Second)
	viper.SetDefault("notify.digest_tick", time.Minute)
}
