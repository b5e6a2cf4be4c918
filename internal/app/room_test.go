package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodroom/internal/adapter/memory"
	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

// --- Recording Observer ---

type recordingObserver struct {
	mu        sync.Mutex
	submitted []domain.Emotion
	rejected  []string
	picks     []domain.Pick
	evaluated []domain.Satisfaction
}

func (o *recordingObserver) VoteSubmitted(e domain.Emotion) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitted = append(o.submitted, e)
}

func (o *recordingObserver) VoteRejected(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, reason)
}

func (o *recordingObserver) Selected(p domain.Pick) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.picks = append(o.picks, p)
}

func (o *recordingObserver) Evaluated(s domain.Satisfaction) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evaluated = append(o.evaluated, s)
}

// --- Failing store ---

type failingStore struct {
	*memory.Store
	countErr  error
	appendErr error
	resetErr  error
}

func (f *failingStore) CountVotesSince(ctx context.Context, since time.Time) (domain.Distribution, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	return f.Store.CountVotesSince(ctx, since)
}

func (f *failingStore) AppendSelections(ctx context.Context, selections ...domain.Selection) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Store.AppendSelections(ctx, selections...)
}

func (f *failingStore) Reset(ctx context.Context) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	return f.Store.Reset(ctx)
}

func newTestRoom(t *testing.T) (*Room, *memory.Store, *clockwork.FakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(testStart)
	return NewRoom(store, clock, DefaultRoomConfig(), nil), store, clock
}

func submitN(t *testing.T, room *Room, prefix string, n int, emotion domain.Emotion) {
	t.Helper()
	for i := range n {
		require.NoError(t, room.SubmitVote(context.Background(), fmt.Sprintf("%s-%d", prefix, i), emotion))
	}
}

func historyLen(t *testing.T, store *memory.Store) int {
	t.Helper()
	all, err := store.AllSelections(context.Background(), 1_000_000)
	require.NoError(t, err)
	return len(all)
}

// --- SubmitVote / Distribution ---

func TestSubmitVote_OneVotePerParticipantLatestWins(t *testing.T) {
	room, _, _ := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionHappy))
	require.NoError(t, room.SubmitVote(ctx, "bob", domain.EmotionHappy))
	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionSad))
	require.NoError(t, room.SubmitVote(ctx, "carol", domain.EmotionCalm))
	require.NoError(t, room.SubmitVote(ctx, "carol", domain.EmotionCalm))

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{
		domain.EmotionHappy: 1,
		domain.EmotionSad:   1,
		domain.EmotionCalm:  1,
	}, dist)
}

func TestSubmitVote_InvalidEmotionDoesNotMutate(t *testing.T) {
	obs := &recordingObserver{}
	store := memory.NewStore()
	room := NewRoom(store, clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), obs)
	ctx := context.Background()

	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionHappy))

	err := room.SubmitVote(ctx, "alice", domain.Emotion("Bored"))
	assert.ErrorIs(t, err, domain.ErrInvalidEmotion)
	err = room.SubmitVote(ctx, "dave", domain.Emotion(""))
	assert.ErrorIs(t, err, domain.ErrInvalidEmotion)

	vote, err := store.GetVote(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionHappy, vote.Emotion)

	_, err = store.GetVote(ctx, "dave")
	assert.ErrorIs(t, err, domain.ErrVoteNotFound)

	assert.Equal(t, []string{"invalid_emotion", "invalid_emotion"}, obs.rejected)
	assert.Equal(t, []domain.Emotion{domain.EmotionHappy}, obs.submitted)
}

func TestSubmitVote_EmptyParticipant(t *testing.T) {
	room, _, _ := newTestRoom(t)

	err := room.SubmitVote(context.Background(), "  ", domain.EmotionHappy)
	assert.ErrorIs(t, err, domain.ErrInvalidParticipant)
}

func TestDistribution_WindowBoundary(t *testing.T) {
	room, _, clock := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, room.SubmitVote(ctx, "edge", domain.EmotionCalm))
	clock.Advance(time.Millisecond)
	require.NoError(t, room.SubmitVote(ctx, "inside", domain.EmotionHappy))

	// "edge" is now exactly one window old, "inside" one millisecond younger.
	clock.Advance(DefaultVoteWindow - time.Millisecond)

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionHappy: 1}, dist)

	clock.Advance(time.Millisecond)
	dist, err = room.Distribution(ctx)
	require.NoError(t, err)
	assert.Empty(t, dist)
}

func TestSubmitVote_ResubmissionRefreshesTimestamp(t *testing.T) {
	room, _, clock := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionHappy))
	clock.Advance(20 * time.Minute)
	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionHappy))
	clock.Advance(20 * time.Minute)

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionHappy: 1}, dist)
}

func TestVote_ReportsActiveFlag(t *testing.T) {
	room, _, clock := newTestRoom(t)
	ctx := context.Background()

	_, _, err := room.Vote(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrVoteNotFound)

	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionEnergetic))

	vote, active, err := room.Vote(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, domain.EmotionEnergetic, vote.Emotion)

	clock.Advance(DefaultVoteWindow)
	_, active, err = room.Vote(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, active)
}

// --- SelectNext ---

func TestSelectNext_EmptyDistributionIsNoop(t *testing.T) {
	room, store, _ := newTestRoom(t)

	pick, err := room.SelectNext(context.Background())
	require.NoError(t, err)
	assert.True(t, pick.Empty())
	assert.Nil(t, pick.Baseline)
	assert.Nil(t, pick.Fairness)
	assert.Equal(t, 0, historyLen(t, store))
}

func TestSelectNext_ExpiredVotesAreNoop(t *testing.T) {
	room, store, clock := newTestRoom(t)
	ctx := context.Background()

	submitN(t, room, "happy", 3, domain.EmotionHappy)
	clock.Advance(DefaultVoteWindow + time.Second)

	pick, err := room.SelectNext(ctx)
	require.NoError(t, err)
	assert.True(t, pick.Empty())
	assert.Equal(t, 0, historyLen(t, store))
}

func TestSelectNext_MajorityWithoutHistory(t *testing.T) {
	room, _, _ := newTestRoom(t)
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 2, domain.EmotionCalm)

	pick, err := room.SelectNext(context.Background())
	require.NoError(t, err)
	require.NotNil(t, pick.Baseline)
	require.NotNil(t, pick.Fairness)
	assert.Equal(t, domain.EmotionHappy, *pick.Baseline)
	assert.Equal(t, domain.EmotionHappy, *pick.Fairness)
}

func TestSelectNext_StarvationDivergesFromBaseline(t *testing.T) {
	room, store, clock := newTestRoom(t)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, store.AppendSelections(ctx,
			domain.Selection{Strategy: domain.StrategyBaseline, Emotion: domain.EmotionHappy, SelectedAt: clock.Now()},
			domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionHappy, SelectedAt: clock.Now()},
		))
	}
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 2, domain.EmotionCalm)

	pick, err := room.SelectNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionHappy, *pick.Baseline)
	assert.Equal(t, domain.EmotionCalm, *pick.Fairness)
}

func TestSelectNext_AppendsOnePairPerCall(t *testing.T) {
	room, store, clock := newTestRoom(t)
	ctx := context.Background()
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 2, domain.EmotionCalm)

	for i := 1; i <= 4; i++ {
		clock.Advance(time.Second)
		_, err := room.SelectNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2*i, historyLen(t, store))
	}

	all, err := store.AllSelections(ctx, 100)
	require.NoError(t, err)
	for i := 0; i < len(all); i += 2 {
		fairness, baseline := all[i], all[i+1]
		assert.Equal(t, domain.StrategyFairness, fairness.Strategy)
		assert.Equal(t, domain.StrategyBaseline, baseline.Strategy)
		assert.True(t, fairness.SelectedAt.Equal(baseline.SelectedAt))
	}
}

func TestSelectNext_RepeatedCallsAdvanceFairness(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 2, domain.EmotionCalm)

	var baselines, fairness []domain.Emotion
	for range 4 {
		pick, err := room.SelectNext(ctx)
		require.NoError(t, err)
		baselines = append(baselines, *pick.Baseline)
		fairness = append(fairness, *pick.Fairness)
	}

	// Happy: unseen 100×5=500 beats Calm 200. Then Happy distance 0 → Calm 200.
	// Then Happy distance 1 → 5 vs Calm distance 0 → 0. Then Happy 0 vs Calm 1×2=2.
	assert.Equal(t, []domain.Emotion{domain.EmotionHappy, domain.EmotionHappy, domain.EmotionHappy, domain.EmotionHappy}, baselines)
	assert.Equal(t, []domain.Emotion{domain.EmotionHappy, domain.EmotionCalm, domain.EmotionHappy, domain.EmotionCalm}, fairness)
	assert.Equal(t, 8, historyLen(t, store))
}

func TestSelectNext_LookbackIsTruncated(t *testing.T) {
	store := memory.NewStore()
	clock := clockwork.NewFakeClockAt(testStart)
	cfg := DefaultRoomConfig()
	cfg.FairnessLookback = 2
	room := NewRoom(store, clock, cfg, nil)
	ctx := context.Background()

	// Calm was played three fairness slots ago, outside a lookback of 2,
	// so it counts as unseen (100×1) and beats Happy (distance 1 × 5).
	require.NoError(t, store.AppendSelections(ctx,
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionCalm, SelectedAt: testStart},
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionHappy, SelectedAt: testStart},
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionSad, SelectedAt: testStart},
	))
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 1, domain.EmotionCalm)

	pick, err := room.SelectNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionCalm, *pick.Fairness)
}

func TestSelectNext_UsesOnlyFairnessHistory(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()

	// Baseline picked Happy many times; fairness never did.
	for range 5 {
		require.NoError(t, store.AppendSelections(ctx,
			domain.Selection{Strategy: domain.StrategyBaseline, Emotion: domain.EmotionHappy, SelectedAt: testStart},
		))
	}
	require.NoError(t, store.AppendSelections(ctx,
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionCalm, SelectedAt: testStart},
	))
	submitN(t, room, "happy", 1, domain.EmotionHappy)
	submitN(t, room, "calm", 5, domain.EmotionCalm)

	pick, err := room.SelectNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EmotionCalm, *pick.Baseline)
	assert.Equal(t, domain.EmotionHappy, *pick.Fairness)
}

func TestSelectNext_ReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	room := NewRoom(memory.NewStore(), clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), obs)
	submitN(t, room, "sad", 2, domain.EmotionSad)

	_, err := room.SelectNext(context.Background())
	require.NoError(t, err)

	require.Len(t, obs.picks, 1)
	assert.Equal(t, domain.EmotionSad, *obs.picks[0].Baseline)
	assert.Equal(t, domain.EmotionSad, *obs.picks[0].Fairness)
}

func TestSelectNext_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("disk on fire")
	ctx := context.Background()

	store := &failingStore{Store: memory.NewStore(), countErr: boom}
	room := NewRoom(store, clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), nil)
	_, err := room.SelectNext(ctx)
	assert.ErrorIs(t, err, boom)

	store = &failingStore{Store: memory.NewStore(), appendErr: boom}
	room = NewRoom(store, clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), nil)
	require.NoError(t, room.SubmitVote(ctx, "alice", domain.EmotionHappy))
	_, err = room.SelectNext(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, historyLen(t, store.Store))
}

// --- Stats ---

func TestStats_HistoryAndDistribution(t *testing.T) {
	room, _, clock := newTestRoom(t)
	ctx := context.Background()
	submitN(t, room, "happy", 2, domain.EmotionHappy)

	for range 3 {
		clock.Advance(time.Second)
		_, err := room.SelectNext(ctx)
		require.NoError(t, err)
	}

	stats, err := room.Stats(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, stats.History, 6)
	assert.Equal(t, domain.Distribution{domain.EmotionHappy: 2}, stats.Distribution)
	assert.True(t, stats.History[0].SelectedAt.After(stats.History[len(stats.History)-1].SelectedAt))

	stats, err = room.Stats(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, stats.History, 3)
}

// --- Evaluate ---

func TestEvaluate_EmptyDistributionIsFull(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, store.AppendSelections(ctx,
		domain.Selection{Strategy: domain.StrategyBaseline, Emotion: domain.EmotionHappy, SelectedAt: testStart},
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionSad, SelectedAt: testStart},
	))

	s, err := room.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Satisfaction{Baseline: 100, Fairness: 100}, s)
}

func TestEvaluate_FairnessCoversMore(t *testing.T) {
	obs := &recordingObserver{}
	room := NewRoom(memory.NewStore(), clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), obs)
	ctx := context.Background()
	submitN(t, room, "happy", 5, domain.EmotionHappy)
	submitN(t, room, "calm", 2, domain.EmotionCalm)

	for range 2 {
		_, err := room.SelectNext(ctx)
		require.NoError(t, err)
	}

	s, err := room.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.Baseline)
	assert.Equal(t, 100.0, s.Fairness)
	assert.Equal(t, []domain.Satisfaction{s}, obs.evaluated)
}

func TestEvaluate_OnlyLastTenSelectionsCount(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()

	require.NoError(t, store.AppendSelections(ctx,
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionCalm, SelectedAt: testStart},
	))
	for range DefaultCoverageLookback {
		require.NoError(t, store.AppendSelections(ctx,
			domain.Selection{Strategy: domain.StrategyFairness, Emotion: domain.EmotionHappy, SelectedAt: testStart},
		))
	}
	submitN(t, room, "happy", 1, domain.EmotionHappy)
	submitN(t, room, "calm", 1, domain.EmotionCalm)

	s, err := room.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, s.Fairness)
	assert.Equal(t, 0.0, s.Baseline)
}

// --- Reset ---

func TestReset_ClearsVotesAndHistory(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()
	submitN(t, room, "happy", 3, domain.EmotionHappy)
	_, err := room.SelectNext(ctx)
	require.NoError(t, err)

	require.NoError(t, room.Reset(ctx))

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Empty(t, dist)

	pick, err := room.SelectNext(ctx)
	require.NoError(t, err)
	assert.True(t, pick.Empty())
	assert.Equal(t, 0, historyLen(t, store))
}

func TestReset_ErrorPropagates(t *testing.T) {
	boom := errors.New("nope")
	room := NewRoom(&failingStore{Store: memory.NewStore(), resetErr: boom}, clockwork.NewFakeClockAt(testStart), DefaultRoomConfig(), nil)

	assert.ErrorIs(t, room.Reset(context.Background()), boom)
}

// --- PruneHistory ---

func TestPruneHistory_DropsOldSelectionsKeepsVotes(t *testing.T) {
	room, store, clock := newTestRoom(t)
	ctx := context.Background()
	submitN(t, room, "happy", 1, domain.EmotionHappy)

	_, err := room.SelectNext(ctx)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	submitN(t, room, "calm", 1, domain.EmotionCalm)
	_, err = room.SelectNext(ctx)
	require.NoError(t, err)

	removed, err := room.PruneHistory(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 2, historyLen(t, store))

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Distribution{domain.EmotionCalm: 1}, dist)
}

// --- Config ---

func TestNewRoom_FillsDefaults(t *testing.T) {
	room := NewRoom(memory.NewStore(), clockwork.NewFakeClock(), RoomConfig{FairnessLookback: 5}, nil)

	cfg := room.Config()
	assert.Equal(t, 5, cfg.FairnessLookback)
	assert.Equal(t, DefaultVoteWindow, cfg.VoteWindow)
	assert.Equal(t, DefaultStarvationCeiling, cfg.StarvationCeiling)
	assert.Equal(t, DefaultCoverageLookback, cfg.CoverageLookback)
	assert.Equal(t, DefaultStatsLimit, cfg.StatsLimit)
}

// --- Concurrency ---

func TestRoom_ConcurrentWritersKeepPairsIntact(t *testing.T) {
	room, store, _ := newTestRoom(t)
	ctx := context.Background()
	emotions := domain.Emotions()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 10 {
				participant := fmt.Sprintf("p-%d-%d", i, j)
				assert.NoError(t, room.SubmitVote(ctx, participant, emotions[(i+j)%len(emotions)]))
				if j%3 == 0 {
					_, err := room.SelectNext(ctx)
					assert.NoError(t, err)
				}
				_, err := room.Evaluate(ctx)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	dist, err := room.Distribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, dist.Total())

	all, err := store.AllSelections(ctx, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, 20*4*2, len(all))
	for i := 0; i < len(all); i += 2 {
		assert.Equal(t, domain.StrategyFairness, all[i].Strategy)
		assert.Equal(t, domain.StrategyBaseline, all[i+1].Strategy)
	}
}
