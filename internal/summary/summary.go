// Package summary logs one human-readable combat-stats line a minute,
// an ops convenience with no functional bearing on the core pipeline.
package summary

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
)

// Logger schedules the periodic line via robfig/cron and keeps the
// latest snapshot it was handed so the cron job always has something
// to report on its own schedule, independent of the aggregator tick
// rate.
type Logger struct {
	log *zap.Logger
	cr  *cron.Cron

	mu     sync.Mutex
	latest *snapshot.Snapshot
}

// New constructs a Logger scheduled on spec "@every 1m".
func New(log *zap.Logger) *Logger {
	l := &Logger{log: log, cr: cron.New()}
	_, _ = l.cr.AddFunc("@every 1m", l.logLatest)
	return l
}

// Observe records the most recent snapshot for the next scheduled log line.
func (l *Logger) Observe(snap snapshot.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := snap
	l.latest = &cp
}

// Start begins the cron scheduler. Call Stop on shutdown.
func (l *Logger) Start() { l.cr.Start() }

// Stop halts the cron scheduler and waits for any running job.
func (l *Logger) Stop() { <-l.cr.Stop().Done() }

func (l *Logger) logLatest() {
	l.mu.Lock()
	snap := l.latest
	l.mu.Unlock()

	if snap == nil || l.log == nil || snap.OverviewStats == nil {
		return
	}

	actorCount := len(snap.ActorList)
	var target uint32
	if snap.LastTarget != nil {
		target = *snap.LastTarget
	}

	l.log.Info(fmt.Sprintf(
		"current target %d, %d actors, %d total damage",
		target, actorCount, snap.OverviewStats.TotalDamage,
	))
}
