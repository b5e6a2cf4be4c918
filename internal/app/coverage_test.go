package app

import (
	"testing"

	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCoverage_EmptyDistributionIsFull(t *testing.T) {
	assert.Equal(t, 100.0, coverage(domain.Distribution{}, nil))
	assert.Equal(t, 100.0, coverage(domain.Distribution{}, fairnessHistory(domain.EmotionHappy)))
}

func TestCoverage_Partial(t *testing.T) {
	dist := domain.Distribution{domain.EmotionHappy: 5, domain.EmotionCalm: 2}
	recent := fairnessHistory(domain.EmotionHappy, domain.EmotionHappy, domain.EmotionSad)

	assert.Equal(t, 50.0, coverage(dist, recent))
}

func TestCoverage_Full(t *testing.T) {
	dist := domain.Distribution{domain.EmotionHappy: 5, domain.EmotionCalm: 2}
	recent := fairnessHistory(domain.EmotionCalm, domain.EmotionHappy)

	assert.Equal(t, 100.0, coverage(dist, recent))
}

func TestCoverage_NothingPlayed(t *testing.T) {
	dist := domain.Distribution{domain.EmotionHappy: 1, domain.EmotionCalm: 1, domain.EmotionSad: 1}

	assert.Equal(t, 0.0, coverage(dist, nil))
	assert.InDelta(t, 33.33, coverage(dist, fairnessHistory(domain.EmotionSad)), 0.01)
}
