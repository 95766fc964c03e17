package decision

// DefaultMinIndividualConfidence is the per-vote confidence floor.
const DefaultMinIndividualConfidence = 0.30

// VoteAggregator combines votes into one AggregatePrediction by weighted scoring.
type VoteAggregator struct {
	MinIndividualConfidence float64
}

// NewVoteAggregator returns an aggregator; a floor <= 0 uses the default.
func NewVoteAggregator(minIndividualConfidence float64) VoteAggregator {
	if minIndividualConfidence <= 0 {
		minIndividualConfidence = DefaultMinIndividualConfidence
	}
	return VoteAggregator{MinIndividualConfidence: minIndividualConfidence}
}

var buckets = [...]Direction{DirectionUp, DirectionDown, DirectionNeutral}

// Aggregate filters votes below the confidence floor and Skip votes, sums
// confidence*quality*weight per direction and picks the strictly greatest
// bucket. Fewer than two qualifying votes and exact ties both yield the
// Neutral sentinel. Agents missing from weights get 1.0.
func (a VoteAggregator) Aggregate(votes []Vote, weights map[string]float64) AggregatePrediction {
	valid := make([]Vote, 0, len(votes))
	for _, v := range votes {
		if v.Confidence() < a.MinIndividualConfidence {
			continue
		}
		if v.Direction() == DirectionSkip {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) < 2 {
		return neutralPrediction(valid)
	}

	scores := make(map[Direction]float64, len(buckets))
	members := make(map[Direction][]Vote, len(buckets))
	for _, v := range valid {
		w := 1.0
		if weights != nil {
			if custom, ok := weights[v.AgentName()]; ok {
				w = custom
			}
		}
		scores[v.Direction()] += v.WeightedScore(w)
		members[v.Direction()] = append(members[v.Direction()], v)
	}

	winner, ok := strictMax(scores)
	if !ok {
		return neutralPrediction(valid)
	}
	pred := AggregatePrediction{
		UpVotes:      len(members[DirectionUp]),
		DownVotes:    len(members[DirectionDown]),
		NeutralVotes: len(members[DirectionNeutral]),
		TotalAgents:  len(valid),
		Scores:       scores,
		Votes:        valid,
	}
	won := members[winner]
	var confSum, qualSum float64
	for _, v := range won {
		confSum += v.Confidence()
		qualSum += v.Quality()
	}
	pred.Direction = winner
	pred.WeightedScore = scores[winner]
	pred.Confidence = confSum / float64(len(won))
	pred.Quality = qualSum / float64(len(won))
	pred.AgreementRate = float64(len(won)) / float64(len(valid))
	return pred
}

// strictMax returns the bucket with the strictly greatest score; any tie at
// the top reports ok=false.
func strictMax(scores map[Direction]float64) (Direction, bool) {
	best := Direction("")
	bestScore := 0.0
	tied := false
	for i, dir := range buckets {
		s := scores[dir]
		switch {
		case i == 0 || s > bestScore:
			best, bestScore, tied = dir, s, false
		case s == bestScore:
			tied = true
		}
	}
	if tied {
		return "", false
	}
	return best, true
}
