package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_Valid(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPending, TaskStatusRunning, TaskStatusPassed, TaskStatusFailed, TaskStatusSkipped} {
		assert.True(t, s.Valid(), "status %s", s)
	}
	assert.False(t, TaskStatus("limbo").Valid())
	assert.False(t, TaskStatus("").Valid())
}

func TestTaskKind_Valid(t *testing.T) {
	for _, k := range []TaskKind{KindImplementation, KindAudit, KindTestWrite, KindTestRun, KindFinalAudit} {
		assert.True(t, k.Valid(), "kind %s", k)
	}
	assert.False(t, TaskKind("mystery").Valid())
}

func TestTaskKind_OrderRankIsStrictPipelineOrder(t *testing.T) {
	order := []TaskKind{KindImplementation, KindAudit, KindTestWrite, KindTestRun, KindFinalAudit}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].OrderRank(), order[i].OrderRank())
	}
}

func TestTaskKind_MaxAttemptsPolicy(t *testing.T) {
	assert.Equal(t, 1, KindImplementation.MaxAttempts())
	assert.Equal(t, 4, KindAudit.MaxAttempts())
	assert.Equal(t, 1, KindTestWrite.MaxAttempts())
	assert.Equal(t, 5, KindTestRun.MaxAttempts())
	assert.Equal(t, 4, KindFinalAudit.MaxAttempts())
}
