// Package assembler reconstructs application-layer frames from a
// single TCP flow's byte stream, delimited by the magic suffix
// protocol.Magic, under an adversarial buffer-growth model (spec.md
// §4.3).
package assembler

import (
	"bytes"

	"go.uber.org/zap"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
)

const (
	// WarnBufferSize is the soft threshold past which Assembler logs a
	// warning on every append until either a frame is found or the
	// hard cap is hit.
	WarnBufferSize = 10 * 1024 * 1024
	// MaxBufferSize is the hard cap; exceeding it resets the buffer.
	MaxBufferSize = 20 * 1024 * 1024
	// DesyncThreshold is the buffer size past which "no magic found
	// yet" is treated as desync rather than "still waiting for more
	// data", and the buffer is reset.
	DesyncThreshold = 1024
)

// FrameHandler receives one framed message, ending in protocol.Magic.
type FrameHandler func(frame []byte)

// Assembler buffers one flow's bytes and slices out magic-terminated
// frames as they complete. Not safe for concurrent use — a Dispatcher
// owns one Assembler per flow key and calls it from a single
// goroutine.
type Assembler struct {
	buf []byte

	onFrame FrameHandler
	log     *zap.Logger

	Overflows int
}

// New constructs an Assembler that delivers completed frames to onFrame.
func New(log *zap.Logger, onFrame FrameHandler) *Assembler {
	return &Assembler{onFrame: onFrame, log: log}
}

// Size returns the current buffered byte count, useful for the
// metrics thread (spec.md §5).
func (a *Assembler) Size() int {
	return len(a.buf)
}

// ProcessChunk appends chunk and extracts every complete frame it
// can, in order. Implements spec.md §4.3's contract:
//
//  1. append; warn in (WarnBufferSize, MaxBufferSize]; reset on
//     exceeding MaxBufferSize.
//  2. loop: find magic; no-magic-yet past DesyncThreshold resets;
//     found magic delivers [0,cut) and discards it, then repeats.
func (a *Assembler) ProcessChunk(chunk []byte) {
	a.append(chunk)

	for {
		idx := bytes.Index(a.buf, protocol.Magic)
		if idx == -1 {
			if len(a.buf) > DesyncThreshold {
				a.reset()
			}
			return
		}

		cut := idx + len(protocol.Magic)
		frame := make([]byte, cut)
		copy(frame, a.buf[:cut])

		a.discard(cut)

		if len(frame) > 0 {
			a.onFrame(frame)
		}
	}
}

func (a *Assembler) append(chunk []byte) {
	current := len(a.buf)
	newSize := current + len(chunk)

	if newSize > WarnBufferSize && newSize <= MaxBufferSize && a.log != nil {
		a.log.Warn("assembler buffer nearing limit", zap.Int("bytes", newSize))
	}

	if newSize > MaxBufferSize {
		a.Overflows++
		if a.log != nil {
			a.log.Error("assembler buffer exceeded limit, resetting", zap.Int("bytes", newSize))
		}
		a.reset()
		return
	}

	a.buf = append(a.buf, chunk...)
}

func (a *Assembler) discard(n int) {
	if n >= len(a.buf) {
		a.reset()
		return
	}
	// Copy the remainder down rather than re-slicing so the
	// underlying array doesn't grow unbounded across many small
	// discards of a long-lived flow's buffer.
	remaining := len(a.buf) - n
	copy(a.buf, a.buf[n:])
	a.buf = a.buf[:remaining]
}

// Reset discards all buffered bytes, e.g. on a Reset command
// (spec.md §4.7).
func (a *Assembler) Reset() {
	a.reset()
}

func (a *Assembler) reset() {
	a.buf = a.buf[:0]
}
