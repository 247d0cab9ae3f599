package sources

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"shrike/internal/config"
)

// StartRefreshRoutine periodically re-downloads the configured
// blocklist sources, rescheduling itself when the configured interval
// changes. Returns immediately when no sources are ever configured; the
// loop itself tolerates the list being edited at runtime.
func StartRefreshRoutine(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	updates := config.FilterRefreshIntervalUpdates()
	current := <-updates

	ticker := time.NewTicker(current)
	defer ticker.Stop()

	triggerRefresh(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			triggerRefresh(ctx, "scheduled")
		case newInterval := <-updates:
			if newInterval <= 0 || newInterval == current {
				continue
			}
			drainTicker(ticker)
			current = newInterval
			ticker.Reset(current)
		}
	}
}

// RunRefresh triggers a download round immediately (outside of the
// scheduled loop).
func RunRefresh(ctx context.Context, reason string) {
	if ctx == nil {
		ctx = context.Background()
	}
	triggerRefresh(ctx, reason)
}

func triggerRefresh(ctx context.Context, reason string) {
	outcome, err := Refresh(ctx, reason)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Blocklist refresh canceled", "reason", reason)
		} else {
			log.Error("Blocklist refresh failed", "reason", reason, "error", err)
		}
		return
	}
	if outcome == nil {
		log.Debug("Blocklist refresh skipped: no sources configured", "reason", reason)
		return
	}

	log.Info("Blocklist refresh completed",
		"reason", reason,
		"sources", outcome.Sources,
		"downloaded", outcome.Downloaded,
		"submitted", outcome.Submitted,
	)
}

func drainTicker(ticker *time.Ticker) {
	for {
		select {
		case <-ticker.C:
		default:
			return
		}
	}
}
