package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dioko-ai/bob/internal/domain"
)

// newStartCmd drives the pipeline for one session until it finishes or
// blocks. This is the headless equivalent of the interactive /start.
func newStartCmd(flags *GlobalFlags) *cobra.Command {
	var single bool

	cmd := &cobra.Command{
		Use:   "start [session]",
		Short: "Run the pipeline for a session",
		Long: `Advance the session's workflow until it reports done or blocked.

Each advance runs exactly one task through its agent and persists the
resulting graph and failure ledger before moving on. Use --single to
perform one advance and stop.`,
		Args: cobra.ExactArgs(1),
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

			st, err := app.svc.Load(h)
			if err != nil {
				return err
			}

			var action domain.Action
			if single {
				action, err = app.svc.Advance(cmd.Context(), st)
			} else {
				action, err = app.svc.RunToCompletion(cmd.Context(), st)
			}
			if err != nil {
				return err
			}

			if flags.Output == OutputJSON {
				return printJSON(cmd, map[string]any{"action": action})
			}
			switch action.Type {
			case domain.ActionDone:
				if action.OverallFailed {
					fmt.Fprintln(cmd.OutOrStdout(), "Pipeline finished: FAILED (see task-fails.json)")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Pipeline finished: all tasks passed")
				}
			case domain.ActionBlocked:
				fmt.Fprintf(cmd.OutOrStdout(), "Pipeline blocked: %s\n", action.Reason)
			case domain.ActionRunTask:
				fmt.Fprintf(cmd.OutOrStdout(), "Ran task %s (%s)\n", action.TaskID, action.Role)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&single, "single", false, "perform one advance and stop")
	return cmd
}
