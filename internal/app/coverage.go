package app

import "github.com/pscheid92/moodroom/internal/domain"

// coverage is the share, in percent, of currently requested emotions that
// appear among recent selections. It is a proxy ("was everyone's request
// played lately"), not a utility measure. With no active votes nothing is
// unsatisfied, so the result is 100.
func coverage(dist domain.Distribution, recent []domain.Selection) float64 {
	requested := dist.Ordered()
	if len(requested) == 0 {
		return 100
	}

	played := make(map[domain.Emotion]struct{}, len(recent))
	for _, s := range recent {
		played[s.Emotion] = struct{}{}
	}

	hits := 0
	for _, e := range requested {
		if _, ok := played[e]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(requested)) * 100
}
