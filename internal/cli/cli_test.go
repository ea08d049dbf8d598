package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidOutputFormat(t *testing.T) {
	assert.True(t, IsValidOutputFormat(OutputText))
	assert.True(t, IsValidOutputFormat(OutputJSON))
	assert.False(t, IsValidOutputFormat("yaml"))
	assert.False(t, IsValidOutputFormat(""))
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev", formatVersion(BuildInfo{}))
	assert.Equal(t, "1.2.3 (abc1234)", formatVersion(BuildInfo{Version: "1.2.3", Commit: "abc1234"}))
	assert.Contains(t, formatVersion(BuildInfo{Version: "1.0.0", Date: "2026-08-05"}), "built 2026-08-05")
}

func TestBuildScriptRequest_FromArgsAndPayloadFlag(t *testing.T) {
	req, err := buildScriptRequest(strings.NewReader(""), []string{"capability.list"}, "", "r1", "ci")
	require.NoError(t, err)
	assert.Equal(t, "capability.list", req.Capability)
	assert.Equal(t, "r1", req.RequestID)
	assert.Equal(t, "ci", req.Metadata.Actor)

	req, err = buildScriptRequest(strings.NewReader(""), []string{"workflow.validate_tasks"}, `{"tasks": []}`, "", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks": []}`, string(req.Payload))
}

func TestBuildScriptRequest_PayloadFromStdin(t *testing.T) {
	req, err := buildScriptRequest(strings.NewReader(`{"tasks": []}`), []string{"workflow.validate_tasks"}, "-", "", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tasks": []}`, string(req.Payload))
}

func TestBuildScriptRequest_EnvelopeFromStdin(t *testing.T) {
	stdin := strings.NewReader(`{"capability": "capability.list"}`)
	req, err := buildScriptRequest(stdin, nil, "", "", "")
	require.NoError(t, err)
	assert.Equal(t, "capability.list", req.Capability)
}

func TestBuildScriptRequest_RejectsInvalidPayloadJSON(t *testing.T) {
	_, err := buildScriptRequest(strings.NewReader(""), []string{"capability.list"}, `{broken`, "", "")
	require.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("", "a", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestNewRootCmd_RejectsInvalidOutputFormat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	flags := &GlobalFlags{}
	cmd := newRootCmd(flags, BuildInfo{})
	cmd.SetArgs([]string{"--output", "yaml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "yaml")
}
