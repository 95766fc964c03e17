package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_ReferenceScenario(t *testing.T) {
	votes := []Vote{
		MustVote("a", DirectionUp, 0.8, 0.9, ""),
		MustVote("b", DirectionUp, 0.7, 0.8, ""),
		MustVote("c", DirectionDown, 0.6, 0.7, ""),
		MustVote("d", DirectionUp, 0.2, 0.2, ""),
	}
	pred := NewVoteAggregator(0.30).Aggregate(votes, nil)

	assert.Equal(t, DirectionUp, pred.Direction)
	assert.InDelta(t, 1.28, pred.WeightedScore, 1e-9)
	assert.InDelta(t, 0.42, pred.Scores[DirectionDown], 1e-9)
	assert.InDelta(t, 0.75, pred.Confidence, 1e-9)
	assert.InDelta(t, 0.85, pred.Quality, 1e-9)
	assert.InDelta(t, 2.0/3.0, pred.AgreementRate, 1e-9)
	assert.Equal(t, 2, pred.UpVotes)
	assert.Equal(t, 1, pred.DownVotes)
	assert.Equal(t, 3, pred.TotalAgents)
	require.Len(t, pred.Votes, 3)
	for _, v := range pred.Votes {
		assert.NotEqual(t, "d", v.AgentName())
	}
}

func TestAggregate_NeutralSentinel(t *testing.T) {
	agg := NewVoteAggregator(0.30)
	cases := map[string][]Vote{
		"no votes": nil,
		"single vote": {
			MustVote("a", DirectionUp, 0.9, 0.9, ""),
		},
		"all below floor": {
			MustVote("a", DirectionUp, 0.1, 0.9, ""),
			MustVote("b", DirectionDown, 0.29, 0.9, ""),
		},
		"skip votes do not qualify": {
			MustVote("a", DirectionUp, 0.9, 0.9, ""),
			MustVote("b", DirectionSkip, 0.9, 0.9, ""),
		},
	}
	for name, votes := range cases {
		t.Run(name, func(t *testing.T) {
			pred := agg.Aggregate(votes, nil)
			assert.Equal(t, DirectionNeutral, pred.Direction)
			assert.Zero(t, pred.WeightedScore)
			assert.Zero(t, pred.Confidence)
			assert.Zero(t, pred.Quality)
			assert.Zero(t, pred.AgreementRate)
		})
	}
}

func TestAggregate_ExactTieIsNeutral(t *testing.T) {
	votes := []Vote{
		MustVote("a", DirectionUp, 0.5, 0.8, ""),
		MustVote("b", DirectionDown, 0.8, 0.5, ""),
	}
	pred := NewVoteAggregator(0.30).Aggregate(votes, nil)
	assert.Equal(t, DirectionNeutral, pred.Direction)
	assert.Equal(t, neutralPrediction(votes), pred)
	assert.Zero(t, pred.WeightedScore)
	assert.Zero(t, pred.TotalAgents)
	assert.Zero(t, pred.UpVotes+pred.DownVotes+pred.NeutralVotes)
	assert.Empty(t, pred.Scores)
	assert.Len(t, pred.Votes, 2)
}

func TestAggregate_AllZeroTieIsNeutral(t *testing.T) {
	votes := []Vote{
		MustVote("a", DirectionUp, 0.5, 0.8, ""),
		MustVote("b", DirectionDown, 0.8, 0.5, ""),
	}
	pred := NewVoteAggregator(0.30).Aggregate(votes, map[string]float64{"a": 0, "b": 0})
	assert.Equal(t, DirectionNeutral, pred.Direction)
}

func TestAggregate_WeightsDecideWinner(t *testing.T) {
	votes := []Vote{
		MustVote("a", DirectionUp, 0.6, 1, ""),
		MustVote("b", DirectionDown, 0.5, 1, ""),
	}
	agg := NewVoteAggregator(0.30)
	assert.Equal(t, DirectionUp, agg.Aggregate(votes, nil).Direction)

	pred := agg.Aggregate(votes, map[string]float64{"b": 1.5})
	assert.Equal(t, DirectionDown, pred.Direction)
	assert.InDelta(t, 0.75, pred.WeightedScore, 1e-9)
	assert.InDelta(t, 0.5, pred.AgreementRate, 1e-9)
}

func TestAggregate_NeutralBucketCanWin(t *testing.T) {
	votes := []Vote{
		MustVote("a", DirectionNeutral, 0.9, 0.9, ""),
		MustVote("b", DirectionUp, 0.4, 0.5, ""),
	}
	pred := NewVoteAggregator(0.30).Aggregate(votes, nil)
	assert.Equal(t, DirectionNeutral, pred.Direction)
	assert.InDelta(t, 0.81, pred.WeightedScore, 1e-9)
	assert.Equal(t, 1, pred.NeutralVotes)
}

func TestAggregate_LowConfidenceVoteNeverCounts(t *testing.T) {
	base := []Vote{
		MustVote("a", DirectionUp, 0.6, 0.6, ""),
		MustVote("b", DirectionDown, 0.5, 0.6, ""),
	}
	withNoise := append(append([]Vote{}, base...), MustVote("c", DirectionDown, 0.29, 1, ""))
	agg := NewVoteAggregator(0.30)
	assert.Equal(t, agg.Aggregate(base, nil).Direction, agg.Aggregate(withNoise, nil).Direction)
	assert.Equal(t, agg.Aggregate(base, nil).Scores, agg.Aggregate(withNoise, nil).Scores)
}

func TestNewVoteAggregator_DefaultFloor(t *testing.T) {
	assert.Equal(t, DefaultMinIndividualConfidence, NewVoteAggregator(0).MinIndividualConfidence)
}
