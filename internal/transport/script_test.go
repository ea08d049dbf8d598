package transport

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dioko-ai/bob/internal/agent"
	"github.com/dioko-ai/bob/internal/capability"
	boberrors "github.com/dioko-ai/bob/internal/errors"
	"github.com/dioko-ai/bob/internal/orchestrator"
	"github.com/dioko-ai/bob/internal/session"
)

func newScriptDispatcher(t *testing.T) *capability.Dispatcher {
	t.Helper()
	store, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	svc := orchestrator.New(orchestrator.Options{
		Logger:      zerolog.Nop(),
		AgentRunner: agent.NewStubRunner(),
		TestRunner:  agent.NewStubRunner(),
	})
	return capability.NewDispatcher(store, svc)
}

func TestRunScript_SuccessEnvelope(t *testing.T) {
	d := newScriptDispatcher(t)
	req := ScriptRequest("r1", "capability.list", "tester", nil)

	out, exitCode := RunScript(context.Background(), d, req)
	assert.Equal(t, 0, exitCode)

	var result ScriptResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "capability.list completed", result.Summary)
	assert.NotEmpty(t, result.Data)
	assert.Nil(t, result.Error)
}

func TestRunScript_ErrorEnvelopeAndExitCode(t *testing.T) {
	d := newScriptDispatcher(t)
	req := ScriptRequest("", "session.read_tasks", "", json.RawMessage(`{"session":"missing"}`))

	out, exitCode := RunScript(context.Background(), d, req)
	assert.Equal(t, 12, exitCode, "not_found maps to exit 12")

	var result ScriptResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, "err", result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, capability.CodeNotFound, result.Error.Code)
	assert.False(t, result.Error.Retryable)
}

func TestRunScript_ValidationFailureExitCode(t *testing.T) {
	d := newScriptDispatcher(t)
	payload := json.RawMessage(`{"tasks": [{"id":"A","title":"a","kind":"implementation","parent_id":"A"}]}`)
	req := ScriptRequest("", "workflow.validate_tasks", "", payload)

	_, exitCode := RunScript(context.Background(), d, req)
	assert.Equal(t, 11, exitCode)
}

func TestDecodeScriptInput_FullEnvelope(t *testing.T) {
	raw := []byte(`{"request_id":"x","capability":"capability.list","metadata":{"actor":"ci"}}`)
	req, err := DecodeScriptInput(raw)
	require.NoError(t, err)
	assert.Equal(t, "x", req.RequestID)
	assert.Equal(t, "capability.list", req.Capability)
	assert.Equal(t, ScriptTransportName, req.Metadata.Transport, "transport defaults when unset")
	assert.Equal(t, "ci", req.Metadata.Actor)
}

func TestDecodeScriptInput_Malformed(t *testing.T) {
	_, err := DecodeScriptInput([]byte(`{`))
	require.ErrorIs(t, err, boberrors.ErrInvalidRequest)

	_, err = DecodeScriptInput([]byte(`{}`))
	require.ErrorIs(t, err, boberrors.ErrInvalidRequest)
}
