package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/moodroom/internal/domain"
)

// RoomStore persists the room in PostgreSQL. Selection order follows the
// seq column, so pairs written in one transaction keep their insertion order.
type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

func (s *RoomStore) UpsertVote(ctx context.Context, vote domain.Vote) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes (participant_id, emotion, recorded_at) VALUES ($1, $2, $3)
		ON CONFLICT (participant_id) DO UPDATE SET
			emotion = EXCLUDED.emotion,
			recorded_at = EXCLUDED.recorded_at`,
		vote.ParticipantID, string(vote.Emotion), vote.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (s *RoomStore) GetVote(ctx context.Context, participantID string) (*domain.Vote, error) {
	var (
		emotion    string
		recordedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT emotion, recorded_at FROM votes WHERE participant_id = $1`, participantID,
	).Scan(&emotion, &recordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &domain.Vote{
		ParticipantID: participantID,
		Emotion:       domain.Emotion(emotion),
		RecordedAt:    recordedAt.UTC(),
	}, nil
}

func (s *RoomStore) CountVotesSince(ctx context.Context, since time.Time) (domain.Distribution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT emotion, COUNT(*) FROM votes WHERE recorded_at > $1 GROUP BY emotion`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	dist := make(domain.Distribution)
	for rows.Next() {
		var (
			emotion string
			n       int64
		)
		if err := rows.Scan(&emotion, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		dist[domain.Emotion(emotion)] = int(n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote counts: %w", err)
	}
	return dist, nil
}

func (s *RoomStore) AppendSelections(ctx context.Context, selections ...domain.Selection) error {
	if len(selections) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, sel := range selections {
			_, err := tx.Exec(ctx,
				`INSERT INTO selections (strategy, emotion, selected_at) VALUES ($1, $2, $3)`,
				string(sel.Strategy), string(sel.Emotion), sel.SelectedAt.UTC())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append selections: %w", err)
	}
	return nil
}

func (s *RoomStore) RecentSelections(ctx context.Context, strategy domain.Strategy, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.querySelections(ctx,
		`SELECT strategy, emotion, selected_at FROM selections WHERE strategy = $1 ORDER BY seq DESC LIMIT $2`,
		string(strategy), limit)
}

func (s *RoomStore) AllSelections(ctx context.Context, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.querySelections(ctx,
		`SELECT strategy, emotion, selected_at FROM selections ORDER BY seq DESC LIMIT $1`, limit)
}

func (s *RoomStore) PruneSelections(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM selections WHERE selected_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune selections: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *RoomStore) Reset(ctx context.Context) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE votes, selections`)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset room: %w", err)
	}
	return nil
}

func (s *RoomStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *RoomStore) querySelections(ctx context.Context, query string, args ...any) ([]domain.Selection, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Selection, error) {
		var (
			strategy, emotion string
			selectedAt        time.Time
		)
		if err := row.Scan(&strategy, &emotion, &selectedAt); err != nil {
			return domain.Selection{}, err
		}
		return domain.Selection{
			Strategy:   domain.Strategy(strategy),
			Emotion:    domain.Emotion(emotion),
			SelectedAt: selectedAt.UTC(),
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect selections: %w", err)
	}
	return out, nil
}
