package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
)

func TestProcessChunk_ExtractsSingleFrame(t *testing.T) {
	var frames [][]byte
	a := New(nil, func(frame []byte) { frames = append(frames, frame) })

	chunk := append([]byte{0x01, 0x02, 0x03}, protocol.Magic...)
	a.ProcessChunk(chunk)

	require.Len(t, frames, 1)
	assert.Equal(t, chunk, frames[0])
	assert.Equal(t, 0, a.Size())
}

func TestProcessChunk_FrameSplitAcrossChunks(t *testing.T) {
	var frames [][]byte
	a := New(nil, func(frame []byte) { frames = append(frames, frame) })

	a.ProcessChunk([]byte{0x01, 0x02})
	assert.Equal(t, 2, a.Size(), "partial data without magic waits for more")

	a.ProcessChunk(protocol.Magic)
	require.Len(t, frames, 1)
	assert.Equal(t, append([]byte{0x01, 0x02}, protocol.Magic...), frames[0])
}

func TestProcessChunk_MultipleFramesInOneChunk(t *testing.T) {
	var frames [][]byte
	a := New(nil, func(frame []byte) { frames = append(frames, frame) })

	frame1 := append([]byte{0xAA}, protocol.Magic...)
	frame2 := append([]byte{0xBB, 0xCC}, protocol.Magic...)
	a.ProcessChunk(append(append([]byte{}, frame1...), frame2...))

	require.Len(t, frames, 2)
	assert.Equal(t, frame1, frames[0])
	assert.Equal(t, frame2, frames[1])
}

func TestProcessChunk_DesyncResetsPastThreshold(t *testing.T) {
	var frames [][]byte
	a := New(nil, func(frame []byte) { frames = append(frames, frame) })

	a.ProcessChunk(make([]byte, DesyncThreshold+1))
	assert.Equal(t, 0, a.Size(), "buffer resets once it exceeds the desync threshold without magic")
	assert.Empty(t, frames)
}

func TestProcessChunk_HardCapResetsAndCountsOverflow(t *testing.T) {
	var frames [][]byte
	a := New(nil, func(frame []byte) { frames = append(frames, frame) })

	a.ProcessChunk(make([]byte, MaxBufferSize+1))
	assert.Equal(t, 0, a.Size())
	assert.Equal(t, 1, a.Overflows)
}

func TestReset_ClearsBuffer(t *testing.T) {
	a := New(nil, func([]byte) {})
	a.ProcessChunk([]byte{0x01, 0x02, 0x03})
	require.Equal(t, 3, a.Size())

	a.Reset()
	assert.Equal(t, 0, a.Size())
}
