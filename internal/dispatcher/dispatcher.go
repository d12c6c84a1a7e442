// Package dispatcher drains the capture channel, keys each payload to
// a TCP flow, feeds per-flow Assemblers, and wires completed frames
// into the Decoder (spec.md §4.2).
package dispatcher

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ZDYoung0519/NOIA2/internal/assembler"
	"github.com/ZDYoung0519/NOIA2/internal/bus"
	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/decoder"
	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// pollInterval is how long the drain loop sleeps when the channel is
// momentarily empty, since channel.Channel is poll-based by contract
// rather than offering a blocking receive.
const pollInterval = 2 * time.Millisecond

// DamageEventsTopic is the bus topic an accepted damage or DoT tick is
// republished on, in addition to the periodic aggregator snapshot.
const DamageEventsTopic = "dps:data"

// ChannelDropped counts payloads the upstream channel discarded for
// being full or closed (spec.md §7 kind 6). Registered once per
// process; safe to register against a custom registry via
// prometheus.Register if the default registry is undesired.
var ChannelDropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "aion2dps_channel_dropped_total",
	Help: "Payloads dropped by the capture channel due to overrun or closure.",
})

// Dispatcher owns the flow-keyed Assembler set and the single Decoder
// writing into Storage.
type Dispatcher struct {
	ch      *channel.Channel
	store   *storage.Storage
	log     *zap.Logger
	pub     bus.Publisher
	decoder *decoder.Decoder

	mu         sync.Mutex
	assemblers map[string]*assembler.Assembler
	limiters   map[string]*rate.Limiter

	magicLockOnce sync.Once
}

// New constructs a Dispatcher. pub may be bus.NoopPublisher{} if no
// transport is attached.
func New(ch *channel.Channel, store *storage.Storage, log *zap.Logger, pub bus.Publisher, debug bool) *Dispatcher {
	if pub == nil {
		pub = bus.NoopPublisher{}
	}

	d := &Dispatcher{
		ch:         ch,
		store:      store,
		log:        log,
		pub:        pub,
		assemblers: make(map[string]*assembler.Assembler),
		limiters:   make(map[string]*rate.Limiter),
	}

	d.decoder = decoder.New(store, log, debug)
	d.decoder.OnDamage = func(ev storage.DamageEvent) {
		if err := d.pub.Publish(DamageEventsTopic, ev); err != nil && d.log != nil {
			d.log.Warn("failed to publish damage event", zap.Error(err))
		}
	}

	return d
}

// flowKey derives the canonical, direction-independent flow
// identifier from a packet's port pair.
func flowKey(srcPort, dstPort uint16) string {
	lo, hi := srcPort, dstPort
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

// Run drains the channel until ctx is cancelled, dispatching every
// payload per spec.md §4.2's three-way flow-adoption rule.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, ok := d.ch.TryReceive()
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		d.dispatch(payload)
	}
}

func (d *Dispatcher) dispatch(payload channel.Payload) {
	key := flowKey(payload.SrcPort, payload.DstPort)

	d.mu.Lock()
	a, exists := d.assemblers[key]
	if !exists {
		if !bytes.Contains(payload.Data, protocol.Magic) {
			d.mu.Unlock()
			return
		}
		a = assembler.New(d.log, d.makeFrameHandler(key))
		d.assemblers[key] = a
		d.limiters[key] = rate.NewLimiter(rate.Every(time.Second), 1)
		d.mu.Unlock()

		d.magicLockOnce.Do(func() {
			if d.log != nil {
				d.log.Info("magic detected, flow adopted", zap.String("flow", key))
			}
		})
	} else {
		d.mu.Unlock()
	}

	before := a.Overflows
	a.ProcessChunk(payload.Data)
	if a.Overflows > before {
		d.mu.Lock()
		limiter := d.limiters[key]
		d.mu.Unlock()
		if limiter != nil && limiter.Allow() && d.log != nil {
			d.log.Error("assembler buffer overflow", zap.String("flow", key))
		}
	}
}

func (d *Dispatcher) makeFrameHandler(key string) assembler.FrameHandler {
	return func(frame []byte) {
		d.decoder.OnPacketReceived(frame)
	}
}

// Reset clears every per-flow assembler's buffer, used by the Reset
// command path (spec.md §4.7). Flow adoption itself is not undone —
// assemblers are not removed, only emptied.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.assemblers {
		a.Reset()
	}
}

// FlowCount reports how many flows currently have an active Assembler,
// for the metrics thread (spec.md §5).
func (d *Dispatcher) FlowCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.assemblers)
}
