package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeworks/quill/workflow"
)

func TestReviewStage_ParsesVerdict(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"approved": true, "score": 0.92, "feedback": "solid"}`,
	}}
	stage := NewReviewStage(provider, testPrompts(), DefaultGenerationConfig(), 0.8, nil)

	state := newState("q")
	state.Draft = "the draft"

	require.Nil(t, stage.Run(context.Background(), state))
	require.NotNil(t, state.Review)
	assert.True(t, state.Review.Approved)
	assert.InDelta(t, 0.92, state.Review.Score, 1e-9)
	assert.Equal(t, "solid", state.Review.Feedback)
}

func TestReviewStage_ToleratesProseAroundJSON(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		"Here is my verdict:\n```json\n{\"approved\": false, \"score\": 0.4, \"feedback\": \"too thin\"}\n```\nDone.",
	}}
	stage := NewReviewStage(provider, testPrompts(), DefaultGenerationConfig(), 0.8, nil)

	state := newState("q")
	require.Nil(t, stage.Run(context.Background(), state))
	require.NotNil(t, state.Review)
	assert.False(t, state.Review.Approved)
	assert.Equal(t, "too thin", state.Review.Feedback)
}

func TestReviewStage_ThresholdFoldsIntoApproval(t *testing.T) {
	// A verdict above the quality threshold approves even when the flag says
	// no; routing only ever sees the folded flag.
	provider := &fakeProvider{responses: []string{
		`{"approved": false, "score": 0.85, "feedback": "minor nits"}`,
	}}
	stage := NewReviewStage(provider, testPrompts(), DefaultGenerationConfig(), 0.8, nil)

	state := newState("q")
	require.Nil(t, stage.Run(context.Background(), state))
	require.NotNil(t, state.Review)
	assert.True(t, state.Review.Approved)
}

func TestReviewStage_BelowThresholdRejects(t *testing.T) {
	provider := &fakeProvider{responses: []string{
		`{"approved": false, "score": 0.5, "feedback": "rework"}`,
	}}
	stage := NewReviewStage(provider, testPrompts(), DefaultGenerationConfig(), 0.8, nil)

	state := newState("q")
	require.Nil(t, stage.Run(context.Background(), state))
	require.NotNil(t, state.Review)
	assert.False(t, state.Review.Approved)
}

func TestReviewStage_MalformedVerdicts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "looks good to me"},
		{"invalid JSON", `{"approved": yes}`},
		{"score above one", `{"approved": false, "score": 7.5, "feedback": "x"}`},
		{"negative score", `{"approved": false, "score": -0.1, "feedback": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{responses: []string{tt.raw}}
			stage := NewReviewStage(provider, testPrompts(), DefaultGenerationConfig(), 0.8, nil)

			serr := stage.Run(context.Background(), newState("q"))
			require.NotNil(t, serr)
			assert.Equal(t, workflow.ErrMalformedOutput, serr.Kind)
			assert.Equal(t, StageReview, serr.Stage)
		})
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict(`noise {"approved": true, "score": 1, "feedback": ""} noise`)
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Equal(t, 1.0, v.Score)

	_, err = parseVerdict("}{")
	assert.Error(t, err)
}
