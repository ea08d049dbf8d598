package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dioko-ai/bob/internal/capability"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// newRootCmd creates and returns the root command for the bob CLI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "bob",
		Short: "bob - task-graph pipeline orchestrator",
		Long: `bob decomposes a software-engineering request into a task graph and
drives each task through a fixed pipeline of AI sub-agents
(implement, audit, test-write, test-run, final-audit) with bounded
retry loops.

The interactive TUI and scripted callers share the same capability
surface; see 'bob call' for the scripted entry point.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}
			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: %q must be one of %v", boberrors.ErrInvalidOutputFormat, flags.Output, ValidOutputFormats())
			}
			// InitLogger stores the logger globally for GetLogger callers.
			InitLogger(flags.Verbose, flags.Quiet)
			return nil
		},
		// We print our own error messages.
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(cmd, flags)

	cmd.AddCommand(newCallCmd(flags))
	cmd.AddCommand(newSessionCmd(flags))
	cmd.AddCommand(newStartCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newViewCmd(flags))
	cmd.AddCommand(newBackendCmd(flags))
	cmd.AddCommand(newTUICmd(flags))

	return cmd
}

// Execute runs the CLI and returns the process exit code. Capability-level
// failures surfaced by 'bob call' carry their own exit codes via exitCodeError.
func Execute(info BuildInfo) int {
	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, info)
	defer CloseLogFile()

	if err := cmd.Execute(); err != nil {
		var coded *exitCodeError
		if errors.As(err, &coded) {
			if coded.message != "" {
				fmt.Fprintln(os.Stderr, coded.message)
			}
			return coded.code
		}
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		if errors.Is(err, boberrors.ErrInvalidRequest) || errors.Is(err, boberrors.ErrInvalidOutputFormat) {
			return ExitInvalidInput
		}
		return ExitError
	}
	return ExitSuccess
}

// exitCodeError carries a specific process exit code out of a command.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string {
	return e.message
}

// newExitCodeError wraps a capability error code into an exit-code error.
func newExitCodeError(code capability.Code, message string) *exitCodeError {
	return &exitCodeError{code: capability.ExitCode(code), message: message}
}

func formatVersion(info BuildInfo) string {
	version := info.Version
	if version == "" {
		version = "dev"
	}
	if info.Commit != "" {
		version += " (" + info.Commit + ")"
	}
	if info.Date != "" {
		version += " built " + info.Date
	}
	return version
}
