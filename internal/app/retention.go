package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/moodroom/internal/platform/correlation"
)

const defaultRetentionInterval = time.Hour

type historyPruner interface {
	PruneHistory(ctx context.Context, retention time.Duration) (int64, error)
}

// HistoryRetention periodically drops selections older than a retention age.
// Votes are never touched; they expire logically through the vote window.
type HistoryRetention struct {
	room      historyPruner
	clock     clockwork.Clock
	retention time.Duration
	interval  time.Duration
}

func NewHistoryRetention(room historyPruner, clock clockwork.Clock, retention, interval time.Duration) *HistoryRetention {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	return &HistoryRetention{
		room:      room,
		clock:     clock,
		retention: retention,
		interval:  interval,
	}
}

// Run prunes once per interval. It blocks until ctx is cancelled.
func (h *HistoryRetention) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.prune(ctx)
		}
	}
}

func (h *HistoryRetention) prune(ctx context.Context) {
	tickCtx := correlation.WithID(ctx, correlation.NewID())

	removed, err := h.room.PruneHistory(tickCtx, h.retention)
	if err != nil {
		slog.WarnContext(tickCtx, "Retention: prune failed", "error", err)
		return
	}
	if removed > 0 {
		slog.InfoContext(tickCtx, "Retention: pruned selection history", "removed", removed, "retention", h.retention)
	}
}
