package decoder

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

func newTestDecoder(t *testing.T) (*Decoder, *storage.Storage) {
	t.Helper()
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)
	return New(s, nil, false), s
}

// buildDamageFrame assembles a direct-damage packet body (everything
// up to, but excluding, the trailing magic) per spec.md §4.4.3.
func buildDamageFrame(targetID, actorID, skillCode, damage uint32, switchLow uint32, flagByte byte, eventType uint32) []byte {
	var buf []byte
	buf = append(buf, protocol.EncodeVarint(9999)...) // leading length varint, value unused by the recognizer itself
	buf = append(buf, 0x04, 0x38)
	buf = append(buf, protocol.EncodeVarint(targetID)...)
	buf = append(buf, protocol.EncodeVarint(switchLow)...)
	buf = append(buf, protocol.EncodeVarint(0)...) // flag (unused)
	buf = append(buf, protocol.EncodeVarint(actorID)...)

	skillBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(skillBytes, skillCode)
	buf = append(buf, skillBytes...)
	buf = append(buf, 0x00) // tag byte

	buf = append(buf, protocol.EncodeVarint(eventType)...)

	blockSize := specialBlockSizes[switchLow&0x0F]
	special := make([]byte, blockSize)
	special[0] = flagByte
	buf = append(buf, special...)

	buf = append(buf, protocol.EncodeVarint(0)...) // unknown
	buf = append(buf, protocol.EncodeVarint(damage)...)
	buf = append(buf, protocol.EncodeVarint(1)...) // loop
	return buf
}

func TestParsingDamage_PerfectEvent(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildDamageFrame(100, 200, 11020004, 1000, 4, 0x09 /* BACK|PERFECT */, 1)

	matched := d.parsingDamage(frame)
	assert.True(t, matched)

	snap := s.Snapshot()
	key := storage.Key{TargetID: 100, ActorID: 200, SkillCode: 11020004}
	stats, ok := snap.CombatStats[key]
	require.True(t, ok)
	assert.EqualValues(t, 1000, stats.TotalDamage)
	assert.EqualValues(t, 1, stats.Count)
	assert.EqualValues(t, 1, stats.SpecialCounts[protocol.FlagBack])
	assert.EqualValues(t, 1, stats.SpecialCounts[protocol.FlagPerfect])
	assert.EqualValues(t, 0, stats.SpecialCounts[protocol.FlagCritical])

	assert.Equal(t, "GLADIATOR", snap.ActorClassMap[200])
}

func TestParsingDamage_CriticalFlagDerivedFromType(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildDamageFrame(100, 200, 11020004, 500, 4, 0x00, 3 /* type 3 => critical */)
	require.True(t, d.parsingDamage(frame))

	snap := s.Snapshot()
	key := storage.Key{TargetID: 100, ActorID: 200, SkillCode: 11020004}
	stats := snap.CombatStats[key]
	require.NotNil(t, stats)
	assert.EqualValues(t, 1, stats.SpecialCounts[protocol.FlagCritical])
}

func TestParsingDamage_SelfDamageIsDroppedButRecognized(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildDamageFrame(300, 300, 11020004, 1000, 4, 0, 1)
	matched := d.parsingDamage(frame)

	assert.True(t, matched, "self-damage still satisfies the recognizer so the chain stops")

	snap := s.Snapshot()
	assert.Empty(t, snap.CombatStats, "self-damage must never be recorded")
}

func TestParsingDamage_RejectsNonMatchingHeader(t *testing.T) {
	d, _ := newTestDecoder(t)
	frame := []byte{0x01, 0x99, 0x99, 0x01, 0x02}
	assert.False(t, d.parsingDamage(frame))
}

func buildDotFrame(targetID, actorID, originCode, damage uint32) []byte {
	var buf []byte
	buf = append(buf, protocol.EncodeVarint(9999)...)
	buf = append(buf, 0x05, 0x38)
	buf = append(buf, protocol.EncodeVarint(targetID)...)
	buf = append(buf, 0x00) // skipped byte
	buf = append(buf, protocol.EncodeVarint(actorID)...)
	buf = append(buf, protocol.EncodeVarint(0)...) // unknown

	skillBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(skillBytes, originCode*100)
	buf = append(buf, skillBytes...)

	buf = append(buf, protocol.EncodeVarint(damage)...)
	return buf
}

func TestParseDotPacket_AppendsTick(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildDotFrame(100, 200, 110200, 50)
	matched := d.parseDotPacket(frame)
	assert.True(t, matched)

	snap := s.Snapshot()
	key := storage.Key{TargetID: 100, ActorID: 200, SkillCode: 110200}
	stats, ok := snap.CombatStats[key]
	require.True(t, ok)
	assert.EqualValues(t, 50, stats.TotalDamage)
}

func buildNicknameFrame(playerID uint32, name string) []byte {
	var buf []byte
	buf = append(buf, protocol.EncodeVarint(9999)...)
	buf = append(buf, 0x04, 0x8D)
	for len(buf) < 10 {
		buf = append(buf, 0x00)
	}
	buf = append(buf, protocol.EncodeVarint(playerID)...)
	buf = append(buf, byte(len(name)))
	buf = append(buf, []byte(name)...)
	return buf
}

func TestParsingNickname_BindsSanitizedName(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildNicknameFrame(555, "Hero")
	matched := d.parsingNickname(frame)
	assert.True(t, matched)

	snap := s.Snapshot()
	assert.Equal(t, "Hero", snap.NicknameMap[555])
}

func TestParsingNickname_RejectsDegenerateSingleLetter(t *testing.T) {
	d, s := newTestDecoder(t)

	frame := buildNicknameFrame(555, "A")
	matched := d.parsingNickname(frame)
	assert.False(t, matched)

	snap := s.Snapshot()
	_, ok := snap.NicknameMap[555]
	assert.False(t, ok)
}

func TestOnPacketReceived_ConcatenatedFrames(t *testing.T) {
	d, s := newTestDecoder(t)

	inner1 := buildDamageFrame(100, 200, 11020004, 1000, 4, 0, 1)
	frame1 := append(append([]byte{}, inner1...), protocol.Magic...)
	// rewrite the leading length varint to the true expected length
	frame1 = rewriteLeadingLength(frame1)

	inner2 := buildDamageFrame(100, 201, 11020004, 2000, 4, 0, 1)
	frame2 := append(append([]byte{}, inner2...), protocol.Magic...)
	frame2 = rewriteLeadingLength(frame2)

	combined := append(append([]byte{}, frame1...), frame2...)
	d.OnPacketReceived(combined)

	snap := s.Snapshot()
	assert.Contains(t, snap.CombatStats, storage.Key{TargetID: 100, ActorID: 200, SkillCode: 11020004})
	assert.Contains(t, snap.CombatStats, storage.Key{TargetID: 100, ActorID: 201, SkillCode: 11020004})
}

// rewriteLeadingLength replaces a frame's placeholder leading varint
// (written by buildDamageFrame/buildDotFrame as a fixed throwaway
// value) with the frame's true total length, as the real capture
// stream always carries it.
func rewriteLeadingLength(frame []byte) []byte {
	placeholder := protocol.EncodeVarint(9999)
	rest := frame[len(placeholder):]

	newLen := uint32(0)
	for lenGuess := uint32(1); lenGuess < 1<<20; lenGuess++ {
		candidate := protocol.EncodeVarint(lenGuess)
		if len(candidate)+len(rest) == int(lenGuess) {
			newLen = lenGuess
			break
		}
	}
	return append(protocol.EncodeVarint(newLen), rest...)
}
