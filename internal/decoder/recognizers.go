package decoder

import (
	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// specialBlockSizes maps the low nibble of the damage switch byte to
// the fixed width of the special-damage block that follows it
// (spec.md §4.4.3).
var specialBlockSizes = map[uint32]int{
	4: 8,
	5: 12,
	6: 10,
	7: 14,
}

// parsingDamage recognizes a direct-damage frame: 0x04 0x38
// target_id switch flag actor_id skill_code(4)+tag type special_block
// unknown damage loop. Returns true whenever the frame matched the
// shape, even if the event itself was dropped as self-damage — a
// match here stops the recognizer chain either way.
func (d *Decoder) parsingDamage(frame []byte) bool {
	if len(frame) == 0 || frame[0] == 0x20 {
		return false
	}

	offset := 0
	lenInfo := protocol.ReadVarint(frame, offset)
	if !lenInfo.Valid() {
		return false
	}
	offset += lenInfo.Length

	if offset+2 > len(frame) || frame[offset] != 0x04 || frame[offset+1] != 0x38 {
		return false
	}
	offset += 2

	targetInfo := protocol.ReadVarint(frame, offset)
	if !targetInfo.Valid() {
		return false
	}
	offset += targetInfo.Length

	switchInfo := protocol.ReadVarint(frame, offset)
	if !switchInfo.Valid() {
		return false
	}
	offset += switchInfo.Length

	flagInfo := protocol.ReadVarint(frame, offset)
	if !flagInfo.Valid() {
		return false
	}
	offset += flagInfo.Length

	actorInfo := protocol.ReadVarint(frame, offset)
	if !actorInfo.Valid() {
		return false
	}
	offset += actorInfo.Length

	if offset+5 > len(frame) {
		return false
	}
	skillCode := protocol.ParseUint32LE(frame, offset)
	offset += 5 // 4-byte skill code + one tag byte

	typeInfo := protocol.ReadVarint(frame, offset)
	if !typeInfo.Valid() {
		return false
	}
	offset += typeInfo.Length
	isCritical := typeInfo.Value == 3

	blockSize, ok := specialBlockSizes[switchInfo.Value&0x0F]
	if !ok {
		return false
	}
	if offset+blockSize > len(frame) {
		return false
	}
	flags := protocol.ParseSpecialFlags(frame[offset])
	offset += blockSize

	unknownInfo := protocol.ReadVarint(frame, offset)
	if !unknownInfo.Valid() {
		return false
	}
	offset += unknownInfo.Length

	damageInfo := protocol.ReadVarint(frame, offset)
	if !damageInfo.Valid() {
		return false
	}
	offset += damageInfo.Length

	loopInfo := protocol.ReadVarint(frame, offset)
	if !loopInfo.Valid() {
		return false
	}

	if isCritical {
		flags[protocol.FlagCritical] = true
	}

	if actorInfo.Value != targetInfo.Value {
		ev := storage.DamageEvent{
			TargetID:  targetInfo.Value,
			ActorID:   actorInfo.Value,
			SkillCode: skillCode,
			Damage:    damageInfo.Value,
			Specials:  flags,
		}
		d.storage.AppendDamage(ev)
		if d.OnDamage != nil {
			d.OnDamage(ev)
		}
	}

	return true
}

// parseDotPacket recognizes a damage-over-time tick: 0x05 0x38
// target_id <skip 1> actor_id unknown skill_code/100(4 bytes LE)
// damage. Returns true on a structural match so recovery can tell a
// successful resync from a dead end.
func (d *Decoder) parseDotPacket(frame []byte) bool {
	offset := 0
	lenInfo := protocol.ReadVarint(frame, offset)
	if !lenInfo.Valid() {
		return false
	}
	offset += lenInfo.Length

	if offset+2 > len(frame) || frame[offset] != 0x05 || frame[offset+1] != 0x38 {
		return false
	}
	offset += 2

	targetInfo := protocol.ReadVarint(frame, offset)
	if !targetInfo.Valid() {
		return false
	}
	offset += targetInfo.Length + 1 // skip one byte

	if offset > len(frame) {
		return false
	}

	actorInfo := protocol.ReadVarint(frame, offset)
	if !actorInfo.Valid() {
		return false
	}
	offset += actorInfo.Length

	unknownInfo := protocol.ReadVarint(frame, offset)
	if !unknownInfo.Valid() {
		return false
	}
	offset += unknownInfo.Length

	if offset+4 > len(frame) {
		return false
	}
	skillCode := protocol.ParseUint32LE(frame, offset) / 100
	offset += 4

	damageInfo := protocol.ReadVarint(frame, offset)
	if !damageInfo.Valid() {
		return false
	}

	if actorInfo.Value != targetInfo.Value {
		ev := storage.DamageEvent{
			IsDot:     true,
			TargetID:  targetInfo.Value,
			ActorID:   actorInfo.Value,
			SkillCode: skillCode,
			Damage:    damageInfo.Value,
			Specials:  map[protocol.Flag]bool{},
		}
		d.storage.AppendDamage(ev)
		if d.OnDamage != nil {
			d.OnDamage(ev)
		}
	}

	return true
}

// parsingNickname recognizes a nickname-broadcast frame: 0x04 0x8D
// after the length varint, a player_id varint at fixed frame offset
// 10, then a length-prefixed name (0 <= length <= 72).
func (d *Decoder) parsingNickname(frame []byte) bool {
	offset := 0
	lenInfo := protocol.ReadVarint(frame, offset)
	if !lenInfo.Valid() {
		return false
	}
	offset += lenInfo.Length

	if offset+2 > len(frame) || frame[offset] != 0x04 || frame[offset+1] != 0x8D {
		return false
	}
	offset = 10

	if offset >= len(frame) {
		return false
	}

	playerInfo := protocol.ReadVarint(frame, offset)
	if !playerInfo.Valid() {
		return false
	}
	offset += playerInfo.Length

	if offset >= len(frame) {
		return false
	}
	nameLen := int(frame[offset])
	if nameLen < 0 || nameLen > 72 || offset+1+nameLen > len(frame) {
		return false
	}

	name := string(frame[offset+1 : offset+1+nameLen])
	sanitized, ok := protocol.SanitizeNickname(name)
	if !ok {
		return false
	}

	d.storage.AppendNickname(playerInfo.Value, sanitized)
	return true
}
