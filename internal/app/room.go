package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodroom/internal/domain"
)

const (
	DefaultVoteWindow        = 30 * time.Minute
	DefaultFairnessLookback  = 20
	DefaultStarvationCeiling = 100
	DefaultCoverageLookback  = 10
	DefaultStatsLimit        = 100
)

// RoomConfig tunes the aggregation window and the strategy constants.
type RoomConfig struct {
	// VoteWindow is the freshness window; older votes are not counted.
	VoteWindow time.Duration
	// FairnessLookback caps how many fairness selections are scanned for distance.
	FairnessLookback int
	// StarvationCeiling is the distance of an emotion absent from the lookback.
	StarvationCeiling int
	// CoverageLookback is how many recent selections per strategy count as played.
	CoverageLookback int
	// StatsLimit is the history size returned when Stats is called without a limit.
	StatsLimit int
}

// DefaultRoomConfig returns the reference deployment settings.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		VoteWindow:        DefaultVoteWindow,
		FairnessLookback:  DefaultFairnessLookback,
		StarvationCeiling: DefaultStarvationCeiling,
		CoverageLookback:  DefaultCoverageLookback,
		StatsLimit:        DefaultStatsLimit,
	}
}

func (c RoomConfig) withDefaults() RoomConfig {
	d := DefaultRoomConfig()
	if c.VoteWindow <= 0 {
		c.VoteWindow = d.VoteWindow
	}
	if c.FairnessLookback <= 0 {
		c.FairnessLookback = d.FairnessLookback
	}
	if c.StarvationCeiling <= 0 {
		c.StarvationCeiling = d.StarvationCeiling
	}
	if c.CoverageLookback <= 0 {
		c.CoverageLookback = d.CoverageLookback
	}
	if c.StatsLimit <= 0 {
		c.StatsLimit = d.StatsLimit
	}
	return c
}

// Observer receives room events for instrumentation. Implementations must be
// cheap; they run while the room lock is held.
type Observer interface {
	VoteSubmitted(emotion domain.Emotion)
	VoteRejected(reason string)
	Selected(pick domain.Pick)
	Evaluated(s domain.Satisfaction)
}

type noopObserver struct{}

func (noopObserver) VoteSubmitted(domain.Emotion)  {}
func (noopObserver) VoteRejected(string)           {}
func (noopObserver) Selected(domain.Pick)          {}
func (noopObserver) Evaluated(domain.Satisfaction) {}

// Room owns the state of the single global listening room. Writers (SubmitVote,
// SelectNext, Reset, PruneHistory) hold the write lock; readers (Distribution,
// Stats, Evaluate, Vote) share the read lock, so no reader ever sees only one
// half of a selection pair.
type Room struct {
	mu       sync.RWMutex
	store    domain.RoomStore
	clock    clockwork.Clock
	cfg      RoomConfig
	observer Observer
}

// NewRoom creates a Room over store. observer may be nil.
func NewRoom(store domain.RoomStore, clock clockwork.Clock, cfg RoomConfig, observer Observer) *Room {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Room{
		store:    store,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		observer: observer,
	}
}

// Config returns the effective room settings.
func (r *Room) Config() RoomConfig {
	return r.cfg
}

// SubmitVote records emotion as the participant's current vote, replacing any
// earlier one and resetting its timestamp.
func (r *Room) SubmitVote(ctx context.Context, participantID string, emotion domain.Emotion) error {
	if strings.TrimSpace(participantID) == "" {
		r.observer.VoteRejected("invalid_participant")
		return domain.ErrInvalidParticipant
	}
	if !emotion.Valid() {
		r.observer.VoteRejected("invalid_emotion")
		return domain.ErrInvalidEmotion
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	vote := domain.Vote{
		ParticipantID: participantID,
		Emotion:       emotion,
		RecordedAt:    r.clock.Now(),
	}
	if err := r.store.UpsertVote(ctx, vote); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	r.observer.VoteSubmitted(emotion)
	slog.DebugContext(ctx, "Vote recorded", "participant", participantID, "emotion", emotion)
	return nil
}

// Vote returns the participant's stored vote and whether it is still inside
// the freshness window.
func (r *Room) Vote(ctx context.Context, participantID string) (*domain.Vote, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vote, err := r.store.GetVote(ctx, participantID)
	if err != nil {
		return nil, false, err
	}
	return vote, vote.RecordedAt.After(r.windowStart()), nil
}

// Distribution returns the active vote count per emotion.
func (r *Room) Distribution(ctx context.Context) (domain.Distribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.distribution(ctx)
}

// SelectNext runs both strategies over the current distribution and logs one
// selection per strategy with the same timestamp. An empty distribution
// yields an empty Pick and leaves the history untouched.
func (r *Room) SelectNext(ctx context.Context) (domain.Pick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()

	dist, err := r.distributionAt(ctx, now)
	if err != nil {
		return domain.Pick{}, err
	}
	if len(dist) == 0 {
		return domain.Pick{}, nil
	}

	history, err := r.store.RecentSelections(ctx, domain.StrategyFairness, r.cfg.FairnessLookback)
	if err != nil {
		return domain.Pick{}, fmt.Errorf("failed to read fairness history: %w", err)
	}

	baseline, _ := pickBaseline(dist)
	fairness, _ := pickFairness(dist, history, r.cfg.StarvationCeiling)

	err = r.store.AppendSelections(ctx,
		domain.Selection{Strategy: domain.StrategyBaseline, Emotion: baseline, SelectedAt: now},
		domain.Selection{Strategy: domain.StrategyFairness, Emotion: fairness, SelectedAt: now},
	)
	if err != nil {
		return domain.Pick{}, fmt.Errorf("failed to append selections: %w", err)
	}

	pick := domain.Pick{Baseline: &baseline, Fairness: &fairness}
	r.observer.Selected(pick)
	slog.InfoContext(ctx, "Selection made", "baseline", baseline, "fairness", fairness, "active_votes", dist.Total())
	return pick, nil
}

// Stats returns up to limit history entries, most recent first, together with
// the current distribution. A non-positive limit uses the configured default.
func (r *Room) Stats(ctx context.Context, limit int) (domain.Stats, error) {
	if limit <= 0 {
		limit = r.cfg.StatsLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	history, err := r.store.AllSelections(ctx, limit)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to read history: %w", err)
	}
	dist, err := r.distribution(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{History: history, Distribution: dist}, nil
}

// Evaluate computes the coverage of each strategy against the current
// distribution. See coverage for the definition.
func (r *Room) Evaluate(ctx context.Context) (domain.Satisfaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dist, err := r.distribution(ctx)
	if err != nil {
		return domain.Satisfaction{}, err
	}

	baseline, err := r.store.RecentSelections(ctx, domain.StrategyBaseline, r.cfg.CoverageLookback)
	if err != nil {
		return domain.Satisfaction{}, fmt.Errorf("failed to read baseline history: %w", err)
	}
	fairness, err := r.store.RecentSelections(ctx, domain.StrategyFairness, r.cfg.CoverageLookback)
	if err != nil {
		return domain.Satisfaction{}, fmt.Errorf("failed to read fairness history: %w", err)
	}

	s := domain.Satisfaction{
		Baseline: coverage(dist, baseline),
		Fairness: coverage(dist, fairness),
	}
	r.observer.Evaluated(s)
	return s, nil
}

// Reset clears all votes and the whole selection history.
func (r *Room) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset room: %w", err)
	}
	slog.InfoContext(ctx, "Room reset")
	return nil
}

// PruneHistory drops selections older than retention. Votes are kept.
func (r *Room) PruneHistory(ctx context.Context, retention time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed, err := r.store.PruneSelections(ctx, r.clock.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return removed, nil
}

// Ping checks the underlying store.
func (r *Room) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Room) windowStart() time.Time {
	return r.clock.Now().Add(-r.cfg.VoteWindow)
}

func (r *Room) distribution(ctx context.Context) (domain.Distribution, error) {
	return r.distributionAt(ctx, r.clock.Now())
}

func (r *Room) distributionAt(ctx context.Context, now time.Time) (domain.Distribution, error) {
	counts, err := r.store.CountVotesSince(ctx, now.Add(-r.cfg.VoteWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}

	dist := make(domain.Distribution, len(counts))
	for emotion, n := range counts {
		if n > 0 {
			dist[emotion] = n
		}
	}
	return dist, nil
}
