package app

import "github.com/pscheid92/moodroom/internal/domain"

// pickBaseline returns the emotion with the most active votes. Emotions are
// scanned in the fixed emotion order and only a strictly higher count replaces
// the current best, so ties go to the emotion listed first.
func pickBaseline(dist domain.Distribution) (domain.Emotion, bool) {
	var best domain.Emotion
	bestCount := 0
	for _, e := range dist.Ordered() {
		if dist[e] > bestCount {
			best = e
			bestCount = dist[e]
		}
	}
	return best, bestCount > 0
}

// pickFairness returns the emotion with the highest starvation score
// (distance × count). history must hold fairness selections, most recent first.
// Ties go to the emotion listed first in the fixed emotion order.
func pickFairness(dist domain.Distribution, history []domain.Selection, ceiling int) (domain.Emotion, bool) {
	distances := starvationDistances(history)

	var best domain.Emotion
	bestScore := -1
	for _, e := range dist.Ordered() {
		distance, ok := distances[e]
		if !ok {
			distance = ceiling
		}
		if score := distance * dist[e]; score > bestScore {
			best = e
			bestScore = score
		}
	}
	return best, bestScore >= 0
}

// starvationDistances maps each emotion in history to the index of its most
// recent occurrence: 0 for the latest selection, 1 for the one before, and so on.
func starvationDistances(history []domain.Selection) map[domain.Emotion]int {
	distances := make(map[domain.Emotion]int, len(history))
	for i, s := range history {
		if _, seen := distances[s.Emotion]; !seen {
			distances[s.Emotion] = i
		}
	}
	return distances
}
