// Package sqlite provides a single-file RoomStore for deployments that want
// the room to survive restarts without running a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pscheid92/moodroom/internal/domain"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// SQLite allows a single writer; one connection keeps transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("SQLite store opened", "path", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertVote(ctx context.Context, vote domain.Vote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (participant_id, emotion, recorded_at) VALUES (?, ?, ?)
		ON CONFLICT (participant_id) DO UPDATE SET
			emotion = excluded.emotion,
			recorded_at = excluded.recorded_at`,
		vote.ParticipantID, string(vote.Emotion), toMillis(vote.RecordedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}
	return nil
}

func (s *Store) GetVote(ctx context.Context, participantID string) (*domain.Vote, error) {
	var (
		emotion    string
		recordedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT emotion, recorded_at FROM votes WHERE participant_id = ?`, participantID,
	).Scan(&emotion, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return &domain.Vote{
		ParticipantID: participantID,
		Emotion:       domain.Emotion(emotion),
		RecordedAt:    fromMillis(recordedAt),
	}, nil
}

func (s *Store) CountVotesSince(ctx context.Context, since time.Time) (domain.Distribution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT emotion, COUNT(*) FROM votes WHERE recorded_at > ? GROUP BY emotion`, toMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	dist := make(domain.Distribution)
	for rows.Next() {
		var (
			emotion string
			n       int
		)
		if err := rows.Scan(&emotion, &n); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		dist[domain.Emotion(emotion)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vote counts: %w", err)
	}
	return dist, nil
}

func (s *Store) AppendSelections(ctx context.Context, selections ...domain.Selection) error {
	if len(selections) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO selections (strategy, emotion, selected_at) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, sel := range selections {
			if _, err := stmt.ExecContext(ctx, string(sel.Strategy), string(sel.Emotion), toMillis(sel.SelectedAt)); err != nil {
				return fmt.Errorf("failed to insert selection: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) RecentSelections(ctx context.Context, strategy domain.Strategy, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.querySelections(ctx,
		`SELECT strategy, emotion, selected_at FROM selections WHERE strategy = ? ORDER BY seq DESC LIMIT ?`,
		string(strategy), limit)
}

func (s *Store) AllSelections(ctx context.Context, limit int) ([]domain.Selection, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.querySelections(ctx,
		`SELECT strategy, emotion, selected_at FROM selections ORDER BY seq DESC LIMIT ?`, limit)
}

func (s *Store) PruneSelections(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM selections WHERE selected_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to prune selections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned count: %w", err)
	}
	return n, nil
}

func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM votes`); err != nil {
			return fmt.Errorf("failed to clear votes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM selections`); err != nil {
			return fmt.Errorf("failed to clear selections: %w", err)
		}
		return nil
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) querySelections(ctx context.Context, query string, args ...any) ([]domain.Selection, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer rows.Close()

	var out []domain.Selection
	for rows.Next() {
		var (
			strategy, emotion string
			selectedAt        int64
		)
		if err := rows.Scan(&strategy, &emotion, &selectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		out = append(out, domain.Selection{
			Strategy:   domain.Strategy(strategy),
			Emotion:    domain.Emotion(emotion),
			SelectedAt: fromMillis(selectedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate selections: %w", err)
	}
	return out, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
