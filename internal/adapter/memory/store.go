// Package memory provides the in-process RoomStore used for single-instance
// deployments and tests. State lives only as long as the process.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pscheid92/moodroom/internal/domain"
)

// Store keeps votes in a map keyed by participant and selections in an
// append-only slice (oldest first).
type Store struct {
	mu         sync.RWMutex
	votes      map[string]domain.Vote
	selections []domain.Selection
}

func NewStore() *Store {
	return &Store{
		votes: make(map[string]domain.Vote),
	}
}

func (s *Store) UpsertVote(_ context.Context, vote domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[vote.ParticipantID] = vote
	return nil
}

func (s *Store) GetVote(_ context.Context, participantID string) (*domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vote, ok := s.votes[participantID]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	return &vote, nil
}

func (s *Store) CountVotesSince(_ context.Context, since time.Time) (domain.Distribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dist := make(domain.Distribution)
	for _, vote := range s.votes {
		if vote.RecordedAt.After(since) {
			dist[vote.Emotion]++
		}
	}
	return dist, nil
}

func (s *Store) AppendSelections(_ context.Context, selections ...domain.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections = append(s.selections, selections...)
	return nil
}

func (s *Store) RecentSelections(_ context.Context, strategy domain.Strategy, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Selection, 0, min(limit, len(s.selections)))
	for i := len(s.selections) - 1; i >= 0 && len(out) < limit; i-- {
		if s.selections[i].Strategy == strategy {
			out = append(out, s.selections[i])
		}
	}
	return out, nil
}

func (s *Store) AllSelections(_ context.Context, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Selection, 0, min(limit, len(s.selections)))
	for i := len(s.selections) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.selections[i])
	}
	return out, nil
}

func (s *Store) PruneSelections(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// selections are chronological, so the stale ones form a prefix
	cut := sort.Search(len(s.selections), func(i int) bool {
		return !s.selections[i].SelectedAt.Before(before)
	})
	if cut == 0 {
		return 0, nil
	}
	s.selections = append([]domain.Selection(nil), s.selections[cut:]...)
	return int64(cut), nil
}

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = make(map[string]domain.Vote)
	s.selections = nil
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}
