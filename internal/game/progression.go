package game

// Caller-layer progression policy. The store knows nothing about thresholds
// and performs no automatic transitions; these helpers are invoked by the
// request-handling layer on every conversation turn.

const (
	minAffection = 0
	maxAffection = 100
)

// Backstory route identifiers and the affection levels that unlock them.
const (
	BackstoryOrigin      = "origin"
	BackstoryWorstDay    = "worst_day"
	BackstoryRiseToPower = "rise_to_power"
)

var backstoryThresholds = []struct {
	id    string
	level int
}{
	{BackstoryOrigin, 25},
	{BackstoryWorstDay, 50},
	{BackstoryRiseToPower, 75},
}

// ClampAffection applies a delta and clamps the result to [0, 100].
func ClampAffection(current, delta int) int {
	next := current + delta
	if next < minAffection {
		return minAffection
	}
	if next > maxAffection {
		return maxAffection
	}
	return next
}

// RelationshipForAffection derives the display label for an affection level.
func RelationshipForAffection(level int) string {
	switch {
	case level >= 100:
		return "soulmate"
	case level >= 75:
		return "romantic interest"
	case level >= 50:
		return "close friend"
	case level >= 25:
		return "friend"
	case level >= 10:
		return "acquaintance"
	default:
		return defaultRelationshipStatus
	}
}

// EligibleBackstories returns the backstory routes reachable at an affection
// level, lowest threshold first.
func EligibleBackstories(level int) []string {
	var eligible []string
	for _, threshold := range backstoryThresholds {
		if level >= threshold.level {
			eligible = append(eligible, threshold.id)
		}
	}
	return eligible
}
