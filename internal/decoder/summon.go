package decoder

import (
	"bytes"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
)

// summonKeySentinel is the 8-byte run that separates a summon frame's
// fixed header from its binding trailer.
var summonKeySentinel = bytes.Repeat([]byte{0xFF}, 8)

// summonOpMarker precedes the real actor id by a fixed 11-byte offset
// once the key sentinel has been found.
var summonOpMarker = []byte{0x07, 0x02, 0x06}

// parseSummonPacket recognizes a summon-binding frame: 0x40 0x36,
// a summon_id varint, a 28-byte gap, an optional matched mob-type
// pair, then a sentinel-delimited trailer carrying the summoned
// entity's real actor id.
func (d *Decoder) parseSummonPacket(frame []byte) bool {
	offset := 0
	lenInfo := protocol.ReadVarint(frame, offset)
	if !lenInfo.Valid() {
		return false
	}
	offset += lenInfo.Length

	if offset+2 > len(frame) || frame[offset] != 0x40 || frame[offset+1] != 0x36 {
		return false
	}
	offset += 2

	summonInfo := protocol.ReadVarint(frame, offset)
	if !summonInfo.Valid() {
		return false
	}
	offset += summonInfo.Length + 28

	if offset >= 0 && offset < len(frame) {
		mobInfo := protocol.ReadVarint(frame, offset)
		if mobInfo.Valid() {
			offset += mobInfo.Length
			if offset < len(frame) {
				mobInfo2 := protocol.ReadVarint(frame, offset)
				if mobInfo2.Valid() && mobInfo.Value == mobInfo2.Value {
					d.storage.AppendMob(summonInfo.Value, mobInfo.Value)
				}
			}
		}
	}

	keyIdx := bytes.Index(frame, summonKeySentinel)
	if keyIdx == -1 {
		return false
	}
	after := frame[keyIdx+len(summonKeySentinel):]

	opIdx := bytes.Index(after, summonOpMarker)
	if opIdx == -1 {
		return false
	}

	realOffset := keyIdx + len(summonKeySentinel) + opIdx + 11
	if realOffset+2 > len(frame) {
		return false
	}
	realActorID := uint32(protocol.ParseUint16LE(frame, realOffset))

	d.storage.AppendSummon(realActorID, summonInfo.Value)
	return true
}
