// Package aggregator runs the periodic snapshot-to-rollup job
// described in spec.md §4.6: every tick it takes a Storage snapshot,
// computes the overview/detailed rollups, and emits the result to a
// registered callback.
package aggregator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// DefaultInterval is the update_delay spec.md §4.6 names as the
// default tick period.
const DefaultInterval = 100 * time.Millisecond

// Callback receives one computed snapshot per tick (or per Reset).
type Callback func(snapshot.Snapshot)

// Aggregator ticks at Interval, snapshotting store and invoking
// Emit — both supplied at construction so the composition root
// decides where the payload goes (bus, metrics, stdout, ...).
type Aggregator struct {
	store    *storage.Storage
	interval time.Duration
	emit     Callback
	log      *zap.Logger
}

// New constructs an Aggregator. interval <= 0 falls back to DefaultInterval.
func New(store *storage.Storage, interval time.Duration, emit Callback, log *zap.Logger) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{store: store, interval: interval, emit: emit, log: log}
}

// Run ticks until ctx is cancelled. Each tick that finds start_time
// unset is silently skipped, per spec.md §4.6 step 2.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Aggregator) tick() {
	snap := a.store.Snapshot()

	payload, ok := snapshot.Build(snap, time.Now(), snapshot.KindTick)
	if !ok {
		return
	}

	if a.emit != nil {
		a.emit(payload)
	}
}
