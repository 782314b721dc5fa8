package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nare/internal/channel"
	"nare/internal/console"
	"nare/internal/logging"
	"nare/internal/telegram"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the Telegram bot",
		Long: `Validates the bot token with getMe, then long-polls Telegram until
interrupted. Each chat gets its own session and language.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateTelegram(); err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := buildEngine(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Close(); err != nil {
					log.Warn("shutdown", zap.Error(err))
				}
			}()

			pollTimeout := time.Duration(cfg.Telegram.PollTimeoutSec) * time.Second
			client := telegram.NewClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken, pollTimeout)
			me, err := client.GetMe(ctx)
			if err != nil {
				return fmt.Errorf("validate bot token: %w", err)
			}
			log.Info("telegram bot connected",
				zap.String("username", me.UserName),
				zap.Int("allowed_chats", len(cfg.Telegram.AllowedChatIDs)),
			)

			adapter := channel.NewAdapter(telegram.NewChannel(client, pollTimeout, log), eng.sessions, eng.orch, channel.Options{
				AllowedChats: cfg.Telegram.AllowedChatIDs,
				ConfirmTTL:   eng.confirmTTL(),
				Permissions:  eng.perms,
				Logger:       log.Named("telegram"),
			})
			err = adapter.Run(ctx)
			log.Info("telegram bot stopped", zap.Int64("offset", adapter.Offset()))
			return err
		},
	}
}

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the engine from this terminal",
		Long: `Drives the same engine as the bot from a local terminal. Buttons are
shown as numbered choices; type the number, the label, or y/n.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			eng, err := buildEngine(cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := eng.Close(); err != nil {
					log.Warn("shutdown", zap.Error(err))
				}
			}()

			term, err := console.New(console.Options{
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
				HistoryPath: filepath.Join(cfg.Storage.BaseDir, "console_history"),
				Plain:       plain,
			})
			if err != nil {
				return err
			}
			defer term.Close()

			adapter := channel.NewAdapter(term, eng.sessions, eng.orch, channel.Options{
				ConfirmTTL:  eng.confirmTTL(),
				Permissions: eng.perms,
				Logger:      log.Named("console"),
			})
			return adapter.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable line editing, colors and markdown rendering")
	return cmd
}
