// Package transport contains the thin adapters that map user-facing
// surfaces onto capability envelopes: the scripted JSON adapter and the
// interactive slash-command adapter. Adapters parse input, build a
// RequestEnvelope, call the single dispatch entry point, and format the
// ResponseEnvelope back. They contain no orchestration logic; argument
// errors stay on the transport's error channel while domain errors flow
// through envelopes.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dioko-ai/bob/internal/capability"
	boberrors "github.com/dioko-ai/bob/internal/errors"
)

// ScriptTransportName identifies the scripted adapter in request metadata.
const ScriptTransportName = "script"

// ScriptResult is the scripted adapter's stdout payload.
type ScriptResult struct {
	// Status is "ok" or "err".
	Status string `json:"status"`

	// Summary is a one-line description of what happened.
	Summary string `json:"summary,omitempty"`

	// Data is the capability response body on success.
	Data json.RawMessage `json:"data,omitempty"`

	// Error is the wire error on failure.
	Error *capability.Error `json:"error,omitempty"`
}

// ScriptRequest builds the envelope for one scripted call.
func ScriptRequest(requestID, capabilityName, actor string, payload json.RawMessage) capability.RequestEnvelope {
	return capability.RequestEnvelope{
		RequestID:  requestID,
		Capability: capabilityName,
		Metadata:   capability.Metadata{Transport: ScriptTransportName, Actor: actor},
		Payload:    payload,
	}
}

// RunScript dispatches one scripted request and renders the JSON output
// plus the process exit code (0 on success, the taxonomy mapping on error).
func RunScript(ctx context.Context, d *capability.Dispatcher, req capability.RequestEnvelope) ([]byte, int) {
	resp := d.Dispatch(ctx, req)
	return RenderScriptResponse(resp)
}

// RenderScriptResponse converts a response envelope into the scripted
// output contract.
func RenderScriptResponse(resp capability.ResponseEnvelope) ([]byte, int) {
	var result ScriptResult
	exitCode := 0
	if resp.Result.Err != nil {
		result = ScriptResult{Status: "err", Error: resp.Result.Err}
		exitCode = capability.ExitCode(resp.Result.Err.Code)
	} else {
		result = ScriptResult{
			Status:  "ok",
			Summary: fmt.Sprintf("%s completed", resp.Capability),
			Data:    resp.Result.Ok,
		}
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		// Serialization of our own types failing is a bug.
		fallback := capability.NewError(capability.CodeInternal, err.Error())
		out, _ = json.Marshal(ScriptResult{Status: "err", Error: fallback})
		return out, capability.ExitCode(capability.CodeInternal)
	}
	return out, exitCode
}

// DecodeScriptInput parses the raw JSON a script passes on stdin or as an
// argument. It accepts either a full request envelope or the shorthand
// {capability, payload} form.
func DecodeScriptInput(raw []byte) (capability.RequestEnvelope, error) {
	var req capability.RequestEnvelope
	if err := json.Unmarshal(raw, &req); err != nil {
		return capability.RequestEnvelope{}, fmt.Errorf("%w: malformed request JSON: %s", boberrors.ErrInvalidRequest, err)
	}
	if req.Capability == "" {
		return capability.RequestEnvelope{}, fmt.Errorf("%w: capability name is required", boberrors.ErrInvalidRequest)
	}
	if req.Metadata.Transport == "" {
		req.Metadata.Transport = ScriptTransportName
	}
	return req, nil
}
