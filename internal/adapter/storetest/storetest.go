// Package storetest holds the conformance suite every domain.RoomStore
// implementation runs from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) domain.RoomStore

// base is millisecond-aligned so every backend round-trips it exactly.
var base = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("UpsertVote_LatestWins", func(t *testing.T) { testUpsertLatestWins(t, newStore(t)) })
	t.Run("GetVote_NotFound", func(t *testing.T) { testGetVoteNotFound(t, newStore(t)) })
	t.Run("CountVotesSince_StrictBoundary", func(t *testing.T) { testCountBoundary(t, newStore(t)) })
	t.Run("CountVotesSince_GroupsByEmotion", func(t *testing.T) { testCountGroups(t, newStore(t)) })
	t.Run("RecentSelections_FiltersAndOrders", func(t *testing.T) { testRecentSelections(t, newStore(t)) })
	t.Run("AllSelections_KeepsPairOrder", func(t *testing.T) { testAllSelectionsPairOrder(t, newStore(t)) })
	t.Run("Selections_EmptyAndZeroLimit", func(t *testing.T) { testSelectionsEmpty(t, newStore(t)) })
	t.Run("PruneSelections", func(t *testing.T) { testPrune(t, newStore(t)) })
	t.Run("Reset_ClearsEverything", func(t *testing.T) { testReset(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func vote(participant string, emotion domain.Emotion, at time.Time) domain.Vote {
	return domain.Vote{ParticipantID: participant, Emotion: emotion, RecordedAt: at}
}

func sel(strategy domain.Strategy, emotion domain.Emotion, at time.Time) domain.Selection {
	return domain.Selection{Strategy: strategy, Emotion: emotion, SelectedAt: at}
}

func emotionsOf(selections []domain.Selection) []domain.Emotion {
	out := make([]domain.Emotion, len(selections))
	for i, s := range selections {
		out[i] = s.Emotion
	}
	return out
}

func strategiesOf(selections []domain.Selection) []domain.Strategy {
	out := make([]domain.Strategy, len(selections))
	for i, s := range selections {
		out[i] = s.Strategy
	}
	return out
}

func testUpsertLatestWins(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.UpsertVote(ctx, vote("p1", domain.EmotionHappy, base)))
	require.NoError(t, store.UpsertVote(ctx, vote("p1", domain.EmotionSad, base.Add(time.Second))))

	got, err := store.GetVote(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ParticipantID)
	assert.Equal(t, domain.EmotionSad, got.Emotion)
	assert.Equal(t, base.Add(time.Second).UnixMilli(), got.RecordedAt.UnixMilli())

	dist, err := store.CountVotesSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionSad: 1}, dist)
}

func testGetVoteNotFound(t *testing.T, store domain.RoomStore) {
	_, err := store.GetVote(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrVoteNotFound)
}

func testCountBoundary(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.UpsertVote(ctx, vote("edge", domain.EmotionCalm, base)))
	require.NoError(t, store.UpsertVote(ctx, vote("inside", domain.EmotionHappy, base.Add(time.Millisecond))))

	dist, err := store.CountVotesSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionHappy: 1}, dist)
}

func testCountGroups(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	for i, p := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.UpsertVote(ctx, vote(p, domain.EmotionHappy, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, store.UpsertVote(ctx, vote("f", domain.EmotionCalm, base)))
	require.NoError(t, store.UpsertVote(ctx, vote("g", domain.EmotionCalm, base)))

	dist, err := store.CountVotesSince(ctx, base.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionHappy: 5, domain.EmotionCalm: 2}, dist)
}

func testRecentSelections(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionHappy, base),
		sel(domain.StrategyFairness, domain.EmotionCalm, base),
	))
	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionHappy, base.Add(time.Second)),
		sel(domain.StrategyFairness, domain.EmotionSad, base.Add(time.Second)),
	))
	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionAngry, base.Add(2*time.Second)),
		sel(domain.StrategyFairness, domain.EmotionHappy, base.Add(2*time.Second)),
	))

	fairness, err := store.RecentSelections(ctx, domain.StrategyFairness, 20)
	require.NoError(t, err)
	assert.Equal(t, []domain.Emotion{domain.EmotionHappy, domain.EmotionSad, domain.EmotionCalm}, emotionsOf(fairness))
	for _, s := range fairness {
		assert.Equal(t, domain.StrategyFairness, s.Strategy)
	}
	assert.Equal(t, base.Add(2*time.Second).UnixMilli(), fairness[0].SelectedAt.UnixMilli())

	baseline, err := store.RecentSelections(ctx, domain.StrategyBaseline, 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.Emotion{domain.EmotionAngry, domain.EmotionHappy}, emotionsOf(baseline))
}

func testAllSelectionsPairOrder(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionHappy, base),
		sel(domain.StrategyFairness, domain.EmotionCalm, base),
	))
	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionSad, base.Add(time.Second)),
		sel(domain.StrategyFairness, domain.EmotionAngry, base.Add(time.Second)),
	))

	all, err := store.AllSelections(ctx, 100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []domain.Emotion{domain.EmotionAngry, domain.EmotionSad, domain.EmotionCalm, domain.EmotionHappy}, emotionsOf(all))
	assert.Equal(t, []domain.Strategy{domain.StrategyFairness, domain.StrategyBaseline, domain.StrategyFairness, domain.StrategyBaseline}, strategiesOf(all))

	limited, err := store.AllSelections(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func testSelectionsEmpty(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	all, err := store.AllSelections(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)

	recent, err := store.RecentSelections(ctx, domain.StrategyFairness, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	require.NoError(t, store.AppendSelections(ctx, sel(domain.StrategyBaseline, domain.EmotionHappy, base)))
	none, err := store.AllSelections(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testPrune(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionHappy, base),
		sel(domain.StrategyFairness, domain.EmotionCalm, base),
	))
	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionSad, base.Add(time.Hour)),
		sel(domain.StrategyFairness, domain.EmotionAngry, base.Add(time.Hour)),
	))

	removed, err := store.PruneSelections(ctx, base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	all, err := store.AllSelections(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []domain.Emotion{domain.EmotionAngry, domain.EmotionSad}, emotionsOf(all))

	fairness, err := store.RecentSelections(ctx, domain.StrategyFairness, 100)
	require.NoError(t, err)
	assert.Equal(t, []domain.Emotion{domain.EmotionAngry}, emotionsOf(fairness))

	removed, err = store.PruneSelections(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func testReset(t *testing.T, store domain.RoomStore) {
	ctx := context.Background()

	require.NoError(t, store.UpsertVote(ctx, vote("p1", domain.EmotionHappy, base)))
	require.NoError(t, store.AppendSelections(ctx,
		sel(domain.StrategyBaseline, domain.EmotionHappy, base),
		sel(domain.StrategyFairness, domain.EmotionHappy, base),
	))

	require.NoError(t, store.Reset(ctx))

	dist, err := store.CountVotesSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, dist)

	_, err = store.GetVote(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrVoteNotFound)

	all, err := store.AllSelections(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, all)

	fairness, err := store.RecentSelections(ctx, domain.StrategyFairness, 100)
	require.NoError(t, err)
	assert.Empty(t, fairness)

	// the store stays usable after a reset
	require.NoError(t, store.UpsertVote(ctx, vote("p2", domain.EmotionCalm, base)))
	dist, err = store.CountVotesSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionCalm: 1}, dist)
}
