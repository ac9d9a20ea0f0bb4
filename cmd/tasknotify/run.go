package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	telegramruntime "github.com/quailyquaily/tasknotify/internal/channelruntime/telegram"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll Telegram, send reminder digests and reopen recurring tasks until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := a.runtime(ctx, runOptionsFromFlags(cmd))
			if err != nil {
				return err
			}
			return rt.Run(ctx)
		},
	}

	cmd.Flags().Duration("sweep-interval", 60*time.Second, "Recurrence sweep cadence.")
	cmd.Flags().Duration("digest-tick", time.Minute, "How often the reminder digest gate is checked.")
	cmd.Flags().Bool("detect-chat", true, "Detect the host chat from pending updates when none is configured.")

	_ = viper.BindPFlag("recurrence.sweep_interval", cmd.Flags().Lookup("sweep-interval"))
	_ = viper.BindPFlag("notify.digest_tick", cmd.Flags().Lookup("digest-tick"))

	return cmd
}

func runOptionsFromFlags(cmd *cobra.Command) telegramruntime.RunOptions {
	return telegramruntime.RunOptions{
		SweepInterval: flagOrViperDuration(cmd, "sweep-interval", "recurrence.sweep_interval"),
		DigestTick:    flagOrViperDuration(cmd, "digest-tick", "notify.digest_tick"),
		DetectChat:    flagOrViperBool(cmd, "detect-chat", ""),
	}
}
