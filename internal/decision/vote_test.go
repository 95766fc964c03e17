package decision

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVote_Invariants(t *testing.T) {
	cases := []struct {
		name       string
		dir        Direction
		confidence float64
		quality    float64
		field      string
	}{
		{"confidence above one", DirectionUp, 1.01, 0.5, "confidence"},
		{"confidence negative", DirectionUp, -0.1, 0.5, "confidence"},
		{"quality above one", DirectionDown, 0.5, 1.5, "quality"},
		{"quality NaN", DirectionDown, 0.5, math.NaN(), "quality"},
		{"unknown direction", Direction("Sideways"), 0.5, 0.5, "direction"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewVote("tech", tc.dir, tc.confidence, tc.quality, "", nil)
			var ive *InvalidVoteError
			require.True(t, errors.As(err, &ive))
			assert.Equal(t, tc.field, ive.Field)
		})
	}
}

func TestNewVote_BoundsInclusive(t *testing.T) {
	v, err := NewVote("tech", DirectionSkip, 0, 1, "edge", map[string]any{"k": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Confidence())
	assert.Equal(t, 1.0, v.Quality())
	assert.Equal(t, map[string]any{"k": 1}, v.Details())
}

func TestVote_DetailsAreCopied(t *testing.T) {
	src := map[string]any{"rsi": 70}
	v, err := NewVote("tech", DirectionUp, 0.6, 0.6, "", src)
	require.NoError(t, err)
	src["rsi"] = 10
	got := v.Details()
	got["rsi"] = 5
	assert.Equal(t, 70, v.Details()["rsi"])
}

func TestVote_WeightedScore(t *testing.T) {
	v := MustVote("tech", DirectionUp, 0.8, 0.9, "")
	assert.InDelta(t, 0.72, v.WeightedScore(1), 1e-9)
	assert.InDelta(t, 1.08, v.WeightedScore(1.5), 1e-9)
}

func TestVote_Inverted(t *testing.T) {
	up := MustVote("tech", DirectionUp, 0.8, 0.9, "breakout")
	inv := up.Inverted()
	assert.Equal(t, DirectionDown, inv.Direction())
	assert.Equal(t, DirectionUp, up.Direction())
	assert.Equal(t, "[inverted] breakout", inv.Reasoning())

	neutral := MustVote("tech", DirectionNeutral, 0.5, 0.5, "flat")
	assert.Equal(t, DirectionNeutral, neutral.Inverted().Direction())
	assert.Equal(t, "flat", neutral.Inverted().Reasoning())
}

func TestParseDirection(t *testing.T) {
	d, ok := ParseDirection(" UP ")
	assert.True(t, ok)
	assert.Equal(t, DirectionUp, d)
	d, ok = ParseDirection("no")
	assert.True(t, ok)
	assert.Equal(t, DirectionDown, d)
	_, ok = ParseDirection("maybe")
	assert.False(t, ok)
}
