package cache

// The relevance score is a fixed design contract, not a tunable:
//
//	0.4*confidence + 0.3*min(accessCount/10, 1) + 0.3*recencyDecay
//
// where recencyDecay = 1 / (1 + hours since last access). Scores always land
// in [0,1].
const (
	relevanceConfidenceWeight = 0.4
	relevanceAccessWeight     = 0.3
	relevanceRecencyWeight    = 0.3
)

func (c *PatternCache) relevanceLocked(e *Entry, nowUnix int64) float64 {
	access := float64(e.AccessCount) / 10
	if access > 1 {
		access = 1
	}

	hoursSince := float64(nowUnix-e.LastAccessUnix) / 3600
	if hoursSince < 0 {
		hoursSince = 0
	}
	recency := 1 / (1 + hoursSince)

	score := relevanceConfidenceWeight*e.Pattern.Confidence +
		relevanceAccessWeight*access +
		relevanceRecencyWeight*recency
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
