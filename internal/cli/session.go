package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dioko-ai/bob/internal/config"
	"github.com/dioko-ai/bob/internal/session"
)

// newSessionCmd groups the session management subcommands.
func newSessionCmd(flags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage bob sessions",
	}
	cmd.AddCommand(newSessionInitCmd(flags))
	cmd.AddCommand(newSessionListCmd(flags))
	cmd.AddCommand(newSessionShowCmd(flags))
	return cmd
}

func newSessionInitCmd(flags *GlobalFlags) *cobra.Command {
	var (
		title       string
		testCommand string
		backend     string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new session for the current directory",
		Long: `Create a new session rooted at the current working directory.

Session defaults (title, test command, backend) come from the optional
.bob.yaml project config; flags override it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			project, err := config.LoadProject(cwd)
			if err != nil {
				return err
			}
			opts := session.InitOptions{
				Cwd:         cwd,
				Title:       firstNonEmpty(title, project.Title),
				TestCommand: firstNonEmpty(testCommand, project.TestCommand),
				Backend:     firstNonEmpty(backend, project.Backend, app.cfg.Backend),
			}

			h, err := app.store.Init(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]string{"session_id": h.SessionID(), "dir": h.Dir()})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created session %s\n  %s\n", h.SessionID(), h.Dir())
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "session title")
	cmd.Flags().StringVar(&testCommand, "test-command", "", "deterministic test command")
	cmd.Flags().StringVar(&backend, "backend", "", "agent backend for this session")

	return cmd
}

func newSessionListCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			sessions, err := app.store.List(cmd.Context())
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]any{"sessions": sessions})
			}

			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tCREATED\tTITLE\tWORKSPACE")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					s.SessionID, s.CreatedAt.Format(time.RFC3339), s.Title, s.Cwd)
			}
			return w.Flush()
		},
	}
}

func newSessionShowCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show [session]",
		Short: "Show session metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			h, err := app.store.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			meta, err := h.ReadMeta()
			if err != nil {
				return err
			}
			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]any{"meta": meta})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\n  title: %s\n  created: %s\n  cwd: %s\n  backend: %s\n  test command: %s\n",
				meta.SessionID, meta.Title, meta.CreatedAt.Format(time.RFC3339), meta.Cwd, meta.Backend, meta.TestCommand)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
