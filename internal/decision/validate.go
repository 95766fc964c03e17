package decision

import (
	"fmt"
	"strings"
)

// DefaultMinAgents is the smallest vote set worth validating.
const DefaultMinAgents = 2

// ValidateVotes rejects empty input, fewer than minAgents votes, duplicate
// agent names and any vote that fails its own construction invariant.
// The message is meant for TradeDecision.Reason.
func ValidateVotes(votes []Vote, minAgents int) (bool, string) {
	if len(votes) == 0 {
		return false, "no votes to validate"
	}
	if minAgents <= 0 {
		minAgents = DefaultMinAgents
	}
	if len(votes) < minAgents {
		return false, fmt.Sprintf("insufficient votes: %d < %d required", len(votes), minAgents)
	}
	seen := make(map[string]struct{}, len(votes))
	var dups []string
	for _, v := range votes {
		if err := v.check(); err != nil {
			return false, err.Error()
		}
		if _, ok := seen[v.AgentName()]; ok {
			dups = append(dups, v.AgentName())
			continue
		}
		seen[v.AgentName()] = struct{}{}
	}
	if len(dups) > 0 {
		return false, "duplicate agent votes: " + strings.Join(dups, ", ")
	}
	return true, ""
}
