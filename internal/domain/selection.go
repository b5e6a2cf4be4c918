package domain

import "time"

// Strategy names the algorithm that produced a Selection.
type Strategy string

const (
	StrategyBaseline Strategy = "baseline"
	StrategyFairness Strategy = "fairness"
)

// ParseStrategy converts a string to a Strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case StrategyBaseline:
		return StrategyBaseline, true
	case StrategyFairness:
		return StrategyFairness, true
	default:
		return "", false
	}
}

// Selection is one logged "now playing" pick. Immutable once appended.
type Selection struct {
	Strategy   Strategy
	Emotion    Emotion
	SelectedAt time.Time
}

// Pick is the outcome of one selection request. A nil field means the
// strategy had nothing to choose from.
type Pick struct {
	Baseline *Emotion
	Fairness *Emotion
}

// Empty reports whether neither strategy selected anything.
func (p Pick) Empty() bool {
	return p.Baseline == nil && p.Fairness == nil
}

// Satisfaction holds the coverage percentage of each strategy.
type Satisfaction struct {
	Baseline float64
	Fairness float64
}

// Stats is the read model behind the stats endpoint.
type Stats struct {
	History      []Selection
	Distribution Distribution
}
