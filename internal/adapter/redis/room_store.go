package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/moodroom/internal/domain"
)

const (
	votesKey       = "moodroom:votes"
	voteTimesKey   = "moodroom:votes:at"
	selectionsKey  = "moodroom:selections"
	strategyPrefix = "moodroom:selections:"
)

// Selection lists are newest first: LPUSH on append, LRANGE from the head on read.
func strategyKey(s domain.Strategy) string {
	return strategyPrefix + string(s)
}

// selectionKeys lists the combined history first, then one list per strategy.
func selectionKeys() []string {
	return []string{
		selectionsKey,
		strategyKey(domain.StrategyBaseline),
		strategyKey(domain.StrategyFairness),
	}
}

func allKeys() []string {
	return append([]string{votesKey, voteTimesKey}, selectionKeys()...)
}

type selectionEntry struct {
	Strategy   string `json:"s"`
	Emotion    string `json:"e"`
	SelectedAt int64  `json:"t"`
}

// RoomStore keeps votes in a hash (participant to emotion) plus a sorted set
// (participant to unix ms), and selections in JSON-encoded lists. Timestamps
// are truncated to the millisecond, so the window edge is decided at that
// resolution.
type RoomStore struct {
	rdb *goredis.Client
}

func NewRoomStore(rdb *goredis.Client) *RoomStore {
	return &RoomStore{rdb: rdb}
}

func (s *RoomStore) UpsertVote(ctx context.Context, vote domain.Vote) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, votesKey, vote.ParticipantID, string(vote.Emotion))
	pipe.ZAdd(ctx, voteTimesKey, goredis.Z{
		Score:  float64(vote.RecordedAt.UnixMilli()),
		Member: vote.ParticipantID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert vote pipeline failed: %w", err)
	}
	return nil
}

func (s *RoomStore) GetVote(ctx context.Context, participantID string) (*domain.Vote, error) {
	pipe := s.rdb.Pipeline()
	emotionCmd := pipe.HGet(ctx, votesKey, participantID)
	scoreCmd := pipe.ZScore(ctx, voteTimesKey, participantID)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("get vote pipeline failed: %w", err)
	}

	emotion, err := emotionCmd.Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vote emotion: %w", err)
	}
	score, err := scoreCmd.Result()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read vote time: %w", err)
	}

	return &domain.Vote{
		ParticipantID: participantID,
		Emotion:       domain.Emotion(emotion),
		RecordedAt:    time.UnixMilli(int64(score)).UTC(),
	}, nil
}

func (s *RoomStore) CountVotesSince(ctx context.Context, since time.Time) (domain.Distribution, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, voteTimesKey, &goredis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range vote times: %w", err)
	}

	dist := make(domain.Distribution)
	if len(ids) == 0 {
		return dist, nil
	}

	emotions, err := s.rdb.HMGet(ctx, votesKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read vote emotions: %w", err)
	}
	for _, v := range emotions {
		if e, ok := v.(string); ok {
			dist[domain.Emotion(e)]++
		}
	}
	return dist, nil
}

func (s *RoomStore) AppendSelections(ctx context.Context, selections ...domain.Selection) error {
	if len(selections) == 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	for _, sel := range selections {
		raw, err := json.Marshal(selectionEntry{
			Strategy:   string(sel.Strategy),
			Emotion:    string(sel.Emotion),
			SelectedAt: sel.SelectedAt.UnixMilli(),
		})
		if err != nil {
			return fmt.Errorf("failed to encode selection: %w", err)
		}
		pipe.LPush(ctx, selectionsKey, raw)
		pipe.LPush(ctx, strategyKey(sel.Strategy), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append selections pipeline failed: %w", err)
	}
	return nil
}

func (s *RoomStore) RecentSelections(ctx context.Context, strategy domain.Strategy, limit int) ([]domain.Selection, error) {
	return s.rangeSelections(ctx, strategyKey(strategy), limit)
}

func (s *RoomStore) AllSelections(ctx context.Context, limit int) ([]domain.Selection, error) {
	return s.rangeSelections(ctx, selectionsKey, limit)
}

// PruneSelections trims stale entries off the tail of every list in one
// MULTI/EXEC, so the lists never disagree. Negative LTRIM bounds keep the trim
// correct if another writer pushes to the head in between.
func (s *RoomStore) PruneSelections(ctx context.Context, before time.Time) (int64, error) {
	keys := selectionKeys()
	stale := make([]int64, len(keys))
	for i, key := range keys {
		n, err := s.staleCount(ctx, key, before)
		if err != nil {
			return 0, err
		}
		stale[i] = n
	}

	pipe := s.rdb.TxPipeline()
	queued := false
	for i, key := range keys {
		if stale[i] > 0 {
			pipe.LTrim(ctx, key, 0, -(stale[i] + 1))
			queued = true
		}
	}
	if !queued {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("prune selections pipeline failed: %w", err)
	}
	return stale[0], nil
}

func (s *RoomStore) Reset(ctx context.Context) error {
	if err := s.rdb.Del(ctx, allKeys()...).Err(); err != nil {
		return fmt.Errorf("failed to reset room: %w", err)
	}
	return nil
}

func (s *RoomStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RoomStore) rangeSelections(ctx context.Context, key string, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	raws, err := s.rdb.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range selections: %w", err)
	}
	return decodeSelections(raws)
}

// staleCount returns how many entries at the tail of key are older than before.
func (s *RoomStore) staleCount(ctx context.Context, key string, before time.Time) (int64, error) {
	raws, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to range %s: %w", key, err)
	}
	entries, err := decodeSelections(raws)
	if err != nil {
		return 0, err
	}

	var stale int64
	for i := len(entries) - 1; i >= 0 && entries[i].SelectedAt.Before(before); i-- {
		stale++
	}
	return stale, nil
}

func decodeSelections(raws []string) ([]domain.Selection, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	out := make([]domain.Selection, 0, len(raws))
	for _, raw := range raws {
		var entry selectionEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode selection: %w", err)
		}
		out = append(out, domain.Selection{
			Strategy:   domain.Strategy(entry.Strategy),
			Emotion:    domain.Emotion(entry.Emotion),
			SelectedAt: time.UnixMilli(entry.SelectedAt).UTC(),
		})
	}
	return out, nil
}
