// Package control implements the synchronous Reset/Snapshot API
// (spec.md §4.7) and the command-channel consumer loop that drives it
// from the outer transport's command.Command stream.
package control

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/bus"
	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/command"
	"github.com/ZDYoung0519/NOIA2/internal/dispatcher"
	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// archiver is the subset of archive.Archiver's surface Controller
// needs, kept as an interface so control_test.go can stub it without
// importing the archive package (which pulls in the AWS SDK).
type archiver interface {
	Save(ctx context.Context, snap snapshot.Snapshot, at time.Time)
}

// SnapshotTopic is the bus topic the periodic aggregator and the
// Reset-triggered summary both publish on; consumers distinguish the
// two by the payload's Kind field.
const SnapshotTopic = "dps:snapshot"

// Controller owns the components a Reset must touch: Storage, the
// Dispatcher's per-flow Assemblers, and the capture Channel.
type Controller struct {
	store      *storage.Storage
	dispatcher *dispatcher.Dispatcher
	ch         *channel.Channel
	pub        bus.Publisher
	arc        archiver
	log        *zap.Logger
}

// New constructs a Controller. pub may be bus.NoopPublisher{}.
func New(store *storage.Storage, d *dispatcher.Dispatcher, ch *channel.Channel, pub bus.Publisher, log *zap.Logger) *Controller {
	if pub == nil {
		pub = bus.NoopPublisher{}
	}
	return &Controller{store: store, dispatcher: d, ch: ch, pub: pub, log: log}
}

// WithArchiver attaches an archiver so every Reset also persists the
// outgoing summary snapshot (spec.md §4.7). Returns c for chaining.
func (c *Controller) WithArchiver(a archiver) *Controller {
	c.arc = a
	return c
}

// Reset produces one final "summary" snapshot from the current
// Storage, publishes it, archives it if an archiver is attached, then
// clears Storage, every Assembler buffer, and the capture Channel.
// Nickname and main-player identity survive, per storage.Storage.Reset's
// contract.
func (c *Controller) Reset() {
	at := time.Now()
	snap := c.store.Snapshot()
	if payload, ok := snapshot.Build(snap, at, snapshot.KindSummary); ok {
		if err := c.pub.Publish(SnapshotTopic, payload); err != nil && c.log != nil {
			c.log.Warn("failed to publish reset summary", zap.Error(err))
		}
		if c.arc != nil {
			c.arc.Save(context.Background(), payload, at)
		}
	}

	c.store.Reset()
	c.dispatcher.Reset()
	dropped := c.ch.Clear()

	if c.log != nil {
		c.log.Info("reset complete", zap.Int("channel_items_dropped", dropped))
	}
}

// Run consumes cmds until ctx is cancelled or a Quit command arrives,
// at which point it returns nil so the caller can shut the rest of
// the process down.
func (c *Controller) Run(ctx context.Context, cmds <-chan command.Command) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			switch cmd {
			case command.Reset:
				c.Reset()
			case command.Quit:
				return nil
			}
		}
	}
}
