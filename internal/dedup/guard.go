// Package dedup suppresses repeated commands. GitHub redelivers webhooks and
// an edited issue fires again with the same command text; without this a
// single ///review could spawn several agents.
//
// State is in-memory and single-process. It does not survive restarts and
// does not deduplicate across instances.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"homunculus/internal/bootstrap/logging"
)

const (
	// DefaultWindow is how long an identical command is treated as a repeat.
	DefaultWindow = 60 * time.Second
	// DefaultMaxAge bounds entry lifetime; the sweeper drops anything older.
	DefaultMaxAge = 5 * time.Minute
	// DefaultSweepInterval is how often the sweeper runs.
	DefaultSweepInterval = 5 * time.Minute
)

type Guard struct {
	mu      sync.Mutex
	entries map[string]time.Time

	now           func() time.Time
	window        time.Duration
	maxAge        time.Duration
	sweepInterval time.Duration
}

func NewGuard() *Guard {
	return newGuard(time.Now)
}

func newGuard(now func() time.Time) *Guard {
	return &Guard{
		entries:       make(map[string]time.Time),
		now:           now,
		window:        DefaultWindow,
		maxAge:        DefaultMaxAge,
		sweepInterval: DefaultSweepInterval,
	}
}

// ShouldSuppress reports whether key was recorded within the dedup window.
func (g *Guard) ShouldSuppress(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	recorded, ok := g.entries[key]
	if !ok {
		return false
	}
	return g.now().Sub(recorded) < g.window
}

// Record marks key as dispatched at the current time.
func (g *Guard) Record(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = g.now()
}

// Sweep removes entries older than the max age and returns how many were
// dropped.
func (g *Guard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.maxAge)
	removed := 0
	for key, recorded := range g.entries {
		if recorded.Before(cutoff) {
			delete(g.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on a timer until ctx is cancelled.
func (g *Guard) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(g.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := g.Sweep(); removed > 0 {
					logging.Info(ctx, "dedup entries swept",
						slog.String("component", "dedup.guard"),
						slog.Int("removed", removed),
					)
				}
			}
		}
	}()
}

func (g *Guard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
