package appraisal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCreated(t *testing.T) {
	track := NewTrack("e1", Applicability{RM: true})
	assert.True(t, PlanCreated(track).Empty())

	track.States[StageSelf] = StateDone
	d := PlanCreated(track)
	assert.Equal(t, AudienceReportingManager, d.Audience)
	assert.Equal(t, StageRM, d.Next)
	assert.Equal(t, KindSelfAppraisalSubmitted, d.Kind())
}

func TestPlanUpdatedSkipsInapplicableStages(t *testing.T) {
	prev := NewTrack("e1", Applicability{RM: true, COO: true})
	prev.States[StageSelf] = StateDone
	next := prev
	next.States[StageRM] = StateDone

	d, err := PlanUpdated(prev, next)
	require.NoError(t, err)
	assert.Equal(t, AudienceReviewers, d.Audience)
	assert.Equal(t, StageRM, d.Completed)
	assert.Equal(t, StageCOO, d.Next)
}

func TestPlanUpdatedWithoutFlipPlansNothing(t *testing.T) {
	track := NewTrack("e1", Applicability{RM: true})
	d, err := PlanUpdated(track, track)
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestPlanUpdatedSelfWithoutRMGoesToReviewers(t *testing.T) {
	prev := NewTrack("e1", Applicability{HR: true})
	next := prev
	next.States[StageSelf] = StateDone

	d, err := PlanUpdated(prev, next)
	require.NoError(t, err)
	assert.Equal(t, AudienceReviewers, d.Audience)
	assert.Equal(t, StageHR, d.Next)

	title, body := d.Message(Employee{ID: "e1", Name: "Asha"})
	assert.Equal(t, "Appraisal awaiting HR review", title)
	assert.Contains(t, body, "Asha")
}

func TestPlanUpdatedCompletionAddressesEmployee(t *testing.T) {
	prev := NewTrack("e1", Applicability{})
	next := prev
	next.States[StageSelf] = StateDone

	d, err := PlanUpdated(prev, next)
	require.NoError(t, err)
	assert.Equal(t, AudienceEmployee, d.Audience)
	assert.Equal(t, KindAppraisalComplete, d.Kind())
}

func TestPlanUpdatedRejectsOutOfOrder(t *testing.T) {
	prev := NewTrack("e1", Applicability{RM: true, HR: true})
	prev.States[StageSelf] = StateDone
	next := prev
	next.States[StageHR] = StateDone

	_, err := PlanUpdated(prev, next)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageOutOfOrder)
}
