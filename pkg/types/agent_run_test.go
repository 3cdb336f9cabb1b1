package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentNameValid(t *testing.T) {
	assert.True(t, AGENT_INGESTION.Valid())
	assert.True(t, AGENT_STUDY_CHAT.Valid())
	assert.False(t, AgentName("").Valid())
	assert.False(t, AgentName("podcast").Valid())
}

func TestRunStatusIsTerminal(t *testing.T) {
	assert.False(t, RUN_STATUS_QUEUED.IsTerminal())
	assert.False(t, RUN_STATUS_RUNNING.IsTerminal())
	assert.True(t, RUN_STATUS_SUCCEEDED.IsTerminal())
	assert.True(t, RUN_STATUS_FAILED.IsTerminal())
}

func TestStepListPreservesOrder(t *testing.T) {
	steps := []RunStep{
		{Name: "chunk", Status: STEP_STATUS_STARTED, Timestamp: 1},
		{Name: "chunk", Status: STEP_STATUS_COMPLETED, Detail: map[string]any{"chunks": 3.0}, Timestamp: 2},
		{Name: "embed", Status: STEP_STATUS_FAILED, Error: "provider unavailable", Timestamp: 3},
	}
	raw, err := json.Marshal(steps)
	require.NoError(t, err)

	run := AgentRun{Steps: raw}
	decoded, err := run.StepList()
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, steps, decoded)
}

func TestStepListEmpty(t *testing.T) {
	run := AgentRun{}
	decoded, err := run.StepList()
	require.NoError(t, err)
	assert.Nil(t, decoded)
}
