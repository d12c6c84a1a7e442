package decoder

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
)

// parseBrokenLengthPacket handles a frame whose declared length
// exceeds its actual bytes (spec.md §4.4.4). withNicknameScan gates
// the nickname/actor-binding fallback scans, which only run on the
// frame as originally delivered, never on a tail produced by a
// successful resync.
func (d *Decoder) parseBrokenLengthPacket(frame []byte, withNicknameScan bool) {
	if len(frame) >= 4 && frame[2] == 0xFF && frame[3] == 0xFF {
		// Fragmented-prefix sentinel: skip the fixed dead header and
		// resume ordinary dispatch on the remainder.
		if len(frame) > 10 {
			d.OnPacketReceived(frame[10:])
		}
		return
	}

	target, ok := d.storage.GetCurrentTarget()
	if !ok {
		return
	}

	targetBytes := protocol.EncodeVarint(target)
	damageKeyword := append([]byte{0x04, 0x38}, targetBytes...)
	dotKeyword := append([]byte{0x05, 0x38}, targetBytes...)

	damageIdx := bytes.Index(frame, damageKeyword)
	dotIdx := bytes.Index(frame, dotKeyword)

	idx := -1
	var handler func([]byte) bool
	switch {
	case damageIdx != -1 && dotIdx != -1:
		if damageIdx < dotIdx {
			idx, handler = damageIdx, d.parsingDamage
		} else {
			idx, handler = dotIdx, d.parseDotPacket
		}
	case damageIdx != -1:
		idx, handler = damageIdx, d.parsingDamage
	case dotIdx != -1:
		idx, handler = dotIdx, d.parseDotPacket
	}

	processed := false
	if idx != -1 && handler != nil && idx-1 >= 0 {
		lengthInfo := protocol.ReadVarint(frame, idx-1)
		if lengthInfo.Length == 1 {
			start := idx - 1
			end := start + int(lengthInfo.Value) - 3
			if start < end && end <= len(frame) {
				extracted := frame[start:end]
				if handler(extracted) {
					processed = true
					if end < len(frame) {
						d.parseBrokenLengthPacket(frame[end:], false)
					}
				}
			}
		}
	}

	if withNicknameScan && !processed {
		d.parseNicknameFromBrokenLengthPacket(frame)
		d.parseActorNameBindingRules(frame)
	}
}

// parseNicknameFromBrokenLengthPacket scans a resync-failed frame for
// any of three nickname-broadcast shapes anchored on a leading varint
// (player_id), a fixed 2-byte tag, and a length-prefixed name
// (spec.md §4.4.5):
//
//   - pattern A: tag 0x01 0x07
//   - pattern B: tag 0x00 0x07, rejecting any candidate containing the
//     literal `\p`
//   - pattern C: tag 0x39 0x8A — also binds the main-player identity
//     and ends the scan outright on a match
func (d *Decoder) parseNicknameFromBrokenLengthPacket(frame []byte) {
	for o := 0; o < len(frame); o++ {
		v := protocol.ReadVarint(frame, o)
		if !v.Valid() {
			continue
		}
		inner := o + v.Length
		if inner+6 > len(frame) {
			continue
		}

		try := func(b3, b4 byte, rejectSlashP bool) (string, bool) {
			if frame[inner+3] != b3 || frame[inner+4] != b4 {
				return "", false
			}
			nameLen := int(frame[inner+5])
			end := inner + 6 + nameLen
			if nameLen <= 0 || nameLen > 72 || end > len(frame) {
				return "", false
			}
			nameBytes := frame[inner+6 : end]
			if !utf8.Valid(nameBytes) {
				return "", false
			}
			nameStr := string(nameBytes)
			if rejectSlashP && strings.Contains(nameStr, `\p`) {
				return "", false
			}
			return protocol.SanitizeNickname(nameStr)
		}

		if name, ok := try(0x01, 0x07, false); ok {
			d.storage.AppendNickname(v.Value, name)
			continue
		}
		if name, ok := try(0x00, 0x07, true); ok {
			d.storage.AppendNickname(v.Value, name)
			continue
		}
		if name, ok := try(0x39, 0x8A, false); ok {
			d.storage.AppendNickname(v.Value, name)
			d.storage.SetMainPlayer(name)
			return
		}
	}
}
