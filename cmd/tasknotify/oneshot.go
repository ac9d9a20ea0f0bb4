package main

import (
	"fmt"

	"github.com/spf13/cobra"

	telegramruntime "github.com/quailyquaily/tasknotify/internal/channelruntime/telegram"
	"github.com/quailyquaily/tasknotify/internal/clifmt"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the open task list to every configured chat once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rt, err := a.runtime(cmd.Context(), telegramruntime.RunOptions{})
			if err != nil {
				return err
			}
			count, err := rt.SendAll(cmd.Context())
			if err != nil {
				return err
			}
			chats := len(rt.Settings().Recipients())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), clifmt.Success(fmt.Sprintf("Sent %d task(s) to %d chat(s).", count, chats)))
			return nil
		},
	}
}

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Fetch and handle one batch of Telegram updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rt, err := a.runtime(cmd.Context(), telegramruntime.RunOptions{})
			if err != nil {
				return err
			}
			result, err := rt.PollOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Outcomes) == 0 {
				_, _ = fmt.Fprintln(out, clifmt.Warn("No new updates."))
				return nil
			}
			for _, o := range result.Outcomes {
				line := fmt.Sprintf("update %d chat %d: %s", o.UpdateID, o.ChatID, o.Action)
				if o.Err != nil {
					_, _ = fmt.Fprintln(out, clifmt.Error(line+" ("+o.Err.Error()+")"))
					continue
				}
				_, _ = fmt.Fprintln(out, line)
			}
			_, _ = fmt.Fprintln(out, clifmt.Dim(fmt.Sprintf("last update id: %d", rt.Settings().LastUpdateID)))
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reopen recurring tasks whose next occurrence has arrived",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			res, err := a.collector.SweepRecurring(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "files: %d  stamped: %d  reopened: %d\n", res.Files, res.Stamped, res.Reopened)
			return nil
		},
	}
}

func newDetectChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect-chat",
		Short: "Pick the host chat from pending updates (send /start to the bot first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			rt, err := a.runtime(cmd.Context(), telegramruntime.RunOptions{})
			if err != nil {
				return err
			}
			det, err := rt.DetectChatID(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !det.FromStart {
				_, _ = fmt.Fprintln(out, clifmt.Warn("No /start message found. Using latest chat ID from updates."))
			}
			if det.HostSet {
				_, _ = fmt.Fprintln(out, clifmt.Success(fmt.Sprintf("Host chat set to %d.", det.ChatID)))
			} else {
				_, _ = fmt.Fprintf(out, "Detected chat %d; host chat already configured as %s.\n", det.ChatID, rt.Settings().HostChatID)
			}
			return nil
		},
	}
}
