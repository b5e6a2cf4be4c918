package domain

import (
	"context"
	"time"
)

// VoteStore holds the current vote of every participant.
type VoteStore interface {
	UpsertVote(ctx context.Context, vote Vote) error
	GetVote(ctx context.Context, participantID string) (*Vote, error)
	// CountVotesSince groups votes recorded strictly after since by emotion.
	CountVotesSince(ctx context.Context, since time.Time) (Distribution, error)
}

// SelectionLog is the append-only selection history.
type SelectionLog interface {
	// AppendSelections appends all selections atomically, in order.
	AppendSelections(ctx context.Context, selections ...Selection) error
	// RecentSelections returns up to limit selections of one strategy, most recent first.
	RecentSelections(ctx context.Context, strategy Strategy, limit int) ([]Selection, error)
	// AllSelections returns up to limit selections of any strategy, most recent first.
	AllSelections(ctx context.Context, limit int) ([]Selection, error)
	// PruneSelections drops selections older than before and returns how many were removed.
	PruneSelections(ctx context.Context, before time.Time) (int64, error)
}

// RoomStore is the storage port of the single global room.
type RoomStore interface {
	VoteStore
	SelectionLog
	// Reset clears votes and selections atomically.
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
}
