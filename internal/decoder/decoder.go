// Package decoder parses one magic-terminated frame into a typed
// storage.DamageEvent (damage / DoT / nickname / summon), or silently
// discards it, per spec.md §4.4. It is the single writer into
// storage.Storage.
package decoder

import (
	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// Decoder holds the mutable-but-single-writer Storage it feeds and a
// logger used only for the debug-gated dumps of unparsable frames.
type Decoder struct {
	storage *storage.Storage
	log     *zap.Logger
	debug   bool

	// OnDamage, when set, is invoked after every accepted damage event
	// so a caller (the dispatcher) can also emit an incremental
	// "dps:data"-style message without re-deriving the event.
	OnDamage func(storage.DamageEvent)
}

// New constructs a Decoder writing into s.
func New(s *storage.Storage, log *zap.Logger, debug bool) *Decoder {
	return &Decoder{storage: s, log: log, debug: debug}
}

// OnPacketReceived is the top-level frame dispatcher (spec.md §4.4.2).
// frame always ends in the magic delimiter.
func (d *Decoder) OnPacketReceived(frame []byte) {
	lenInfo := protocol.ReadVarint(frame, 0)
	if !lenInfo.Valid() {
		return
	}

	expectedLen := int(lenInfo.Value)
	actualLen := len(frame)

	switch {
	case expectedLen == actualLen:
		d.parsePerfectPacket(frame[:len(frame)-3])
		return

	case expectedLen > actualLen:
		d.parseBrokenLengthPacket(frame, true)
		return

	case expectedLen <= 3:
		d.OnPacketReceived(frame[1:])
		return
	}

	// expectedLen < actualLen: one or more frames are concatenated.
	end := expectedLen - 3
	if end > 0 && end <= actualLen {
		extracted := frame[:end]
		if len(extracted) > 0 && len(extracted) != 3 {
			d.parsePerfectPacket(extracted)
		}
	}

	if end < actualLen {
		d.OnPacketReceived(frame[end:])
	}
}

// parsePerfectPacket runs the four recognizers in order over a frame
// whose trailing magic has already been stripped (spec.md §4.4.3).
func (d *Decoder) parsePerfectPacket(frame []byte) {
	if len(frame) < 3 {
		return
	}

	if d.parsingDamage(frame) {
		return
	}

	if d.parseActorNameBindingRules(frame) || d.parsingNickname(frame) {
		return
	}

	if d.parseSummonPacket(frame) {
		return
	}

	if !d.parseDotPacket(frame) {
		d.debugDump("unparsed frame", frame)
	}
}

func (d *Decoder) debugDump(tag string, frame []byte) {
	if d.debug && d.log != nil {
		d.log.Debug(tag, zap.String("dump", spew.Sdump(frame)))
	}
}
