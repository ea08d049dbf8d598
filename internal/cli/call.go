package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dioko-ai/bob/internal/capability"
	"github.com/dioko-ai/bob/internal/transport"
)

// newCallCmd creates the scripted transport entry point: one capability
// request in, one JSON response out, with the taxonomy exit-code mapping.
func newCallCmd(_ *GlobalFlags) *cobra.Command {
	var (
		payloadFlag string
		requestID   string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "call [capability]",
		Short: "Invoke one capability through the scripted transport",
		Long: `Invoke one capability and print the response envelope as JSON.

With a capability argument, the payload comes from --payload (or stdin
when --payload is "-"). Without arguments, a full request envelope is
read from stdin.

On error the process exits with the taxonomy code mapping:
invalid_request=10, validation_failed=11, not_found=12, conflict=13,
io_failure=14, external_failure=15, unsupported=16, internal=17.

Examples:
  bob call capability.list
  bob call session.list
  bob call workflow.validate_tasks --payload '{"tasks": [...]}'
  echo '{"capability":"session.read_tasks","payload":{"session":"..."}}' | bob call`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			req, err := buildScriptRequest(cmd.InOrStdin(), args, payloadFlag, requestID, actor)
			if err != nil {
				return err
			}

			out, exitCode := transport.RunScript(cmd.Context(), app.dispatcher, req)
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if exitCode != 0 {
				return &exitCodeError{code: exitCode}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&payloadFlag, "payload", "p", "", `request payload JSON ("-" reads stdin)`)
	cmd.Flags().StringVar(&requestID, "request-id", "", "correlation ID echoed in the response")
	cmd.Flags().StringVar(&actor, "actor", "", "actor recorded in request metadata")

	return cmd
}

// buildScriptRequest assembles the request envelope from arguments or stdin.
// Argument-parsing failures are transport errors, not envelopes.
func buildScriptRequest(stdin io.Reader, args []string, payloadFlag, requestID, actor string) (capability.RequestEnvelope, error) {
	if len(args) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return capability.RequestEnvelope{}, fmt.Errorf("failed to read request from stdin: %w", err)
		}
		return transport.DecodeScriptInput(raw)
	}

	var payload json.RawMessage
	switch payloadFlag {
	case "":
	case "-":
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return capability.RequestEnvelope{}, fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		payload = raw
	default:
		payload = []byte(payloadFlag)
	}
	if payload != nil && !json.Valid(payload) {
		return capability.RequestEnvelope{}, fmt.Errorf("payload is not valid JSON")
	}

	return transport.ScriptRequest(requestID, args[0], actor, payload), nil
}
