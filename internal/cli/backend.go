package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/config"
)

// newBackendCmd shows or switches the process-wide backend selection.
// Switching persists to the global config and applies to adapters created
// thereafter; sessions that already recorded a backend keep it.
func newBackendCmd(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backend [name]",
		Short: "Show or switch the agent backend",
		Long: fmt.Sprintf(`Show the configured agent backend, or switch it.

Known backends: %s. The selection is stored in the global config and
applies to agent adapters created after the switch; in-flight runs and
existing session metadata are not rewritten.`, strings.Join(agent.BackendNames(), ", ")),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				current := app.cfg.Backend
				if current == "" {
					current = agent.DefaultBackendName + " (default)"
				}
				if flags.Output == OutputJSON {
					return printJSON(cmd, map[string]any{"backend": app.cfg.Backend, "known": agent.BackendNames()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backend: %s\n", current)
				return nil
			}

			name := args[0]
			if _, err := agent.LookupBackend(name); err != nil {
				return err
			}
			if err := config.SaveBackend(name); err != nil {
				return err
			}
			if err := app.svc.SetBackend(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend switched to %s\n", name)
			return nil
		},
	}
}
