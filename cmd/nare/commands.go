package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nare/internal/config"
	"nare/internal/permission"
	"nare/internal/security"
	"nare/internal/storage"
)

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var asRun bool
	cmd := &cobra.Command{
		Use:   "classify <command>",
		Short: "Print how a shell command would be classified",
		Example: `  nare classify "pacman -S htop"
  nare classify --run "sudo systemctl restart nginx"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			if !asRun {
				fmt.Fprintln(out, security.Classify(command))
				return nil
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			set := permission.NewStore(cfg.PermissionsPath()).Load()
			fmt.Fprintln(out, security.ClassifyRun(command, set))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asRun, "run", false, "classify as an explicit /run request under the current permissions")
	return cmd
}

func newPermissionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Show or change the operator permissions",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "List every permission category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := permission.NewStore(cfg.PermissionsPath())
			writePermissions(cmd.OutOrStdout(), store.Load())
			return nil
		},
	}

	set := &cobra.Command{
		Use:     "set <name>=<bool>...",
		Short:   "Grant or revoke permission categories",
		Example: "  nare permissions set install_packages=true manage_services=false",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			store := permission.NewStore(cfg.PermissionsPath())
			next := store.Load()
			for _, arg := range args {
				c, v, err := parseAssignment(arg)
				if err != nil {
					return err
				}
				next = next.With(c, v)
			}
			if err := store.Save(next); err != nil {
				return err
			}
			writePermissions(cmd.OutOrStdout(), next)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// parseAssignment 解析 name=bool
func parseAssignment(arg string) (permission.Category, bool, error) {
	name, raw, ok := strings.Cut(arg, "=")
	if !ok {
		return "", false, fmt.Errorf("invalid assignment %q: want name=true|false", arg)
	}
	c, ok := permission.ParseCategory(name)
	if !ok {
		names := make([]string, 0, len(permission.Categories()))
		for _, c := range permission.Categories() {
			names = append(names, string(c))
		}
		return "", false, fmt.Errorf("unknown permission %q: want one of %s", name, strings.Join(names, ", "))
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return "", false, fmt.Errorf("invalid value for %s: %q", c, raw)
	}
	return c, v, nil
}

func writePermissions(w io.Writer, set permission.Set) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range permission.Categories() {
		state := "off"
		if set.Allowed(c) {
			state = "on"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c, state, c.Describe())
	}
	_ = tw.Flush()
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent command decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			db, err := storage.NewSQLiteStore(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			entries, err := db.ListAudit(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No audit entries.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCHAT\tSOURCE\tVERDICT\tRAN\tEXIT\tCOMMAND")
			for _, e := range entries {
				ran, exit := "no", "-"
				if e.Executed {
					ran, exit = "yes", strconv.Itoa(e.ExitCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.ChatID, e.Source, e.Verdict, ran, exit, e.Command)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func newInitCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.InitScaffold(dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", config.DefaultBaseDir, "config directory")
	return cmd
}
