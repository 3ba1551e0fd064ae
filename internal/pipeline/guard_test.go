package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStage_HappyPath(t *testing.T) {
	s := New()
	err := RunStage(s, StageGatheringChangesets, func(st *State) error {
		assert.Equal(t, StageGatheringChangesets, st.Stage)
		assert.False(t, st.IsCurrentStageComplete)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StageGatheringChangesets, s.Stage)
	assert.True(t, s.IsCurrentStageComplete)
	assert.False(t, s.HasErrored)
}

func TestRunStage_RejectsNonAdjacentEntry(t *testing.T) {
	s := New()
	err := RunStage(s, StageDetectingConflicts, func(*State) error { return nil })
	require.Error(t, err)
	var mismatch *StageMismatchError
	assert.ErrorAs(t, err, &mismatch)
	assert.Equal(t, StageNotTriggered, s.Stage)
}

func TestRunStage_SetsErrorDetailsOnFailure(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	err := RunStage(s, StageGatheringChangesets, func(*State) error { return boom })
	require.Error(t, err)
	assert.True(t, s.HasErrored)
	assert.Equal(t, "boom", s.ErrorDetails)
	assert.False(t, s.IsCurrentStageComplete)
}

func TestRunStage_RejectsWhenAlreadyErrored(t *testing.T) {
	s := New()
	_ = RunStage(s, StageGatheringChangesets, func(*State) error { return errors.New("x") })
	err := RunStage(s, StageGatheringChangesets, func(*State) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyErrored)
}

func TestRunStage_SequentialStagesAdvance(t *testing.T) {
	s := New()
	require.NoError(t, RunStage(s, StageGatheringChangesets, func(*State) error { return nil }))
	require.NoError(t, RunStage(s, StageExtractingUpstreamAOI, func(*State) error { return nil }))
	assert.Equal(t, StageExtractingUpstreamAOI, s.Stage)

	// Cannot skip a stage.
	err := RunStage(s, StageDetectingConflicts, func(*State) error { return nil })
	require.Error(t, err)
}
