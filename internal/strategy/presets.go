package strategy

// Built-in presets. The first entry is the live policy; every other entry is
// evaluated in shadow mode against the same ticks.
var presets = []Config{
	{
		Name:                    "live",
		Description:             "current production policy",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AdaptiveWeights:         true,
		RegimeAdjustment:        true,
		IsLive:                  true,
	},
	{
		Name:                    "default",
		Description:             "live thresholds without adaptive weighting",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
	},
	{
		Name:                    "conservative",
		Description:             "high bar for consensus and confidence",
		ConsensusThreshold:      0.75,
		MinConfidence:           0.60,
		MinIndividualConfidence: 0.40,
		AdaptiveWeights:         true,
	},
	{
		Name:                    "aggressive",
		Description:             "trades on thin consensus",
		ConsensusThreshold:      0.25,
		MinConfidence:           0.30,
		MinIndividualConfidence: 0.30,
	},
	{
		Name:                    "adaptive_regime",
		Description:             "accuracy weighted, blended by regime",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AdaptiveWeights:         true,
		RegimeAdjustment:        true,
	},
	{
		Name:                    "tech_heavy",
		Description:             "doubles technical signals, halves sentiment",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AgentWeights:            map[string]float64{"tech": 2.0, "sentiment": 0.5},
	},
	{
		Name:                    "no_sentiment",
		Description:             "sentiment agent disabled",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AgentWeights:            map[string]float64{"sentiment": 0},
	},
	{
		Name:                    "contrarian",
		Description:             "fades the technical and sentiment crowd",
		ConsensusThreshold:      0.40,
		MinConfidence:           0.40,
		MinIndividualConfidence: 0.30,
		AgentWeights:            map[string]float64{"tech": -1.0, "sentiment": -1.0},
	},
}

// DefaultCatalog returns a fresh catalog of the built-in presets.
func DefaultCatalog() *Catalog {
	return MustCatalog(presets...)
}
