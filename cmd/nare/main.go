package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nare/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "nare: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "nare",
		Short: "Natural-language Linux administration over chat",
		Long: `NARE lets you administer a Linux machine from a chat. Messages go to an
AI backend; the shell commands it proposes are classified, checked against
the operator's permissions and run locally.

Run "nare run" to start the Telegram bot or "nare console" to chat from the
terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (json, jsonc or yaml)")

	root.AddCommand(
		newRunCmd(opts),
		newConsoleCmd(opts),
		newClassifyCmd(opts),
		newPermissionsCmd(opts),
		newAuditCmd(opts),
		newInitCmd(),
	)
	return root
}
