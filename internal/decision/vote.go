package decision

import (
	"fmt"
	"math"
	"strings"
)

// Direction is a vote or trade direction.
type Direction string

const (
	DirectionUp      Direction = "Up"
	DirectionDown    Direction = "Down"
	DirectionNeutral Direction = "Neutral"
	DirectionSkip    Direction = "Skip"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionNeutral, DirectionSkip:
		return true
	default:
		return false
	}
}

// Directional is true only for Up and Down.
func (d Direction) Directional() bool {
	return d == DirectionUp || d == DirectionDown
}

// Opposite flips Up and Down; other values are returned unchanged.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return d
	}
}

// ParseDirection accepts case-insensitive names plus up/down aliases used by feeds.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "up", "yes", "long":
		return DirectionUp, true
	case "down", "no", "short":
		return DirectionDown, true
	case "neutral":
		return DirectionNeutral, true
	case "skip":
		return DirectionSkip, true
	default:
		return "", false
	}
}

// InvalidVoteError reports a Vote that violates its construction invariant.
type InvalidVoteError struct {
	Agent string
	Field string
	Value any
}

func (e *InvalidVoteError) Error() string {
	return fmt.Sprintf("invalid vote from %q: %s=%v", e.Agent, e.Field, e.Value)
}

// Vote is one agent's opinion for one (asset, epoch). Construct with NewVote;
// the zero value is not a valid vote.
type Vote struct {
	agentName  string
	direction  Direction
	confidence float64
	quality    float64
	reasoning  string
	details    map[string]any
}

// NewVote validates and builds an immutable Vote.
func NewVote(agent string, dir Direction, confidence, quality float64, reasoning string, details map[string]any) (Vote, error) {
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return Vote{}, &InvalidVoteError{Agent: agent, Field: "agent_name", Value: agent}
	}
	if !dir.Valid() {
		return Vote{}, &InvalidVoteError{Agent: agent, Field: "direction", Value: dir}
	}
	if !unitInterval(confidence) {
		return Vote{}, &InvalidVoteError{Agent: agent, Field: "confidence", Value: confidence}
	}
	if !unitInterval(quality) {
		return Vote{}, &InvalidVoteError{Agent: agent, Field: "quality", Value: quality}
	}
	var copied map[string]any
	if len(details) > 0 {
		copied = make(map[string]any, len(details))
		for k, v := range details {
			copied[k] = v
		}
	}
	return Vote{
		agentName:  agent,
		direction:  dir,
		confidence: confidence,
		quality:    quality,
		reasoning:  reasoning,
		details:    copied,
	}, nil
}

// MustVote panics on invalid input. Intended for tests and static fixtures.
func MustVote(agent string, dir Direction, confidence, quality float64, reasoning string) Vote {
	v, err := NewVote(agent, dir, confidence, quality, reasoning, nil)
	if err != nil {
		panic(err)
	}
	return v
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func (v Vote) AgentName() string    { return v.agentName }
func (v Vote) Direction() Direction { return v.direction }
func (v Vote) Confidence() float64  { return v.confidence }
func (v Vote) Quality() float64     { return v.quality }
func (v Vote) Reasoning() string    { return v.reasoning }

// Details returns a copy of the free-form detail map.
func (v Vote) Details() map[string]any {
	if len(v.details) == 0 {
		return nil
	}
	out := make(map[string]any, len(v.details))
	for k, val := range v.details {
		out[k] = val
	}
	return out
}

// WeightedScore = confidence * quality * weight.
func (v Vote) WeightedScore(weight float64) float64 {
	return v.confidence * v.quality * weight
}

// Inverted returns a new vote with Up/Down swapped.
func (v Vote) Inverted() Vote {
	out := v
	out.direction = v.direction.Opposite()
	if v.direction.Directional() {
		out.reasoning = "[inverted] " + v.reasoning
	}
	out.details = v.Details()
	return out
}

// check re-validates the construction invariant.
func (v Vote) check() error {
	_, err := NewVote(v.agentName, v.direction, v.confidence, v.quality, v.reasoning, nil)
	return err
}
