package decision

import "time"

// AggregatePrediction is the result of combining one cycle's votes.
type AggregatePrediction struct {
	Direction     Direction `json:"direction"`
	WeightedScore float64   `json:"weighted_score"`
	Confidence    float64   `json:"confidence"`
	Quality       float64   `json:"quality"`
	UpVotes       int       `json:"up_votes"`
	DownVotes     int       `json:"down_votes"`
	NeutralVotes  int       `json:"neutral_votes"`
	TotalAgents   int       `json:"total_agents"`
	AgreementRate float64   `json:"agreement_rate"`
	// Scores holds the per-bucket weighted sums (Up/Down/Neutral).
	Scores map[Direction]float64 `json:"scores,omitempty"`
	Votes  []Vote                `json:"-"`
}

// neutralPrediction is the sentinel for "nothing to act on": too few votes,
// every vote filtered out, or an exact tie.
func neutralPrediction(votes []Vote) AggregatePrediction {
	return AggregatePrediction{Direction: DirectionNeutral, Votes: votes}
}

// TradeDecision is the outcome of one Decide call. Rejections are values,
// never errors.
type TradeDecision struct {
	TraceID       string               `json:"trace_id"`
	ShouldTrade   bool                 `json:"should_trade"`
	Direction     Direction            `json:"direction,omitempty"`
	Reason        string               `json:"reason"`
	Prediction    *AggregatePrediction `json:"prediction,omitempty"`
	WeightedScore float64              `json:"weighted_score"`
	Confidence    float64              `json:"confidence"`
	Vetoed        bool                 `json:"vetoed"`
	VetoReasons   []string             `json:"veto_reasons,omitempty"`
	Asset         string               `json:"asset"`
	Epoch         int64                `json:"epoch"`
	Timestamp     time.Time            `json:"timestamp"`
	// Votes are the collected votes after strategy inversion, in registration order.
	Votes []Vote `json:"-"`
	// Weights are the effective weights used for aggregation.
	Weights map[string]float64 `json:"weights,omitempty"`
}
