package decoder

import (
	"unicode/utf8"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
)

// bindAnchorMinActor is the smallest actor id an anchor byte may
// introduce; anchors below this are almost always false positives
// inside an unrelated numeric field (spec.md §4.4.6).
const bindAnchorMinActor = 100

// readUTF8NameAt validates a length-prefixed UTF-8 name candidate
// starting at the byte right after anchorIdx: one length byte in
// [minLen,maxLen], followed by that many bytes of valid, sanitizable
// UTF-8.
func readUTF8NameAt(frame []byte, anchorIdx, minLen, maxLen int) (start, length int, ok bool) {
	lengthIdx := anchorIdx + 1
	if lengthIdx >= len(frame) {
		return 0, 0, false
	}
	l := int(frame[lengthIdx])
	if l < minLen || l > maxLen {
		return 0, 0, false
	}
	start = lengthIdx + 1
	end := start + l
	if end > len(frame) {
		return 0, 0, false
	}
	if !utf8.Valid(frame[start:end]) {
		return 0, 0, false
	}
	return start, l, true
}

// parseActorNameBindingRules scans a frame for a 0x36-anchored actor
// id immediately followed (within the frame, no intervening anchor)
// by a 0x07-anchored 1-16 byte name, and binds the first such pair
// for an actor that doesn't already have a nickname. Returns true on
// a successful bind, which both satisfies parsePerfectPacket's
// recognizer chain and ends the scan.
func (d *Decoder) parseActorNameBindingRules(frame []byte) bool {
	type anchor struct {
		actorID  uint32
		endIndex int
	}

	var last *anchor
	named := map[uint32]bool{}

	for i := 0; i < len(frame); i++ {
		switch frame[i] {
		case 0x36:
			v := protocol.ReadVarint(frame, i+1)
			if v.Valid() && v.Value >= bindAnchorMinActor {
				last = &anchor{actorID: v.Value, endIndex: i + 1 + v.Length}
			} else {
				last = nil
			}

		case 0x07:
			start, length, ok := readUTF8NameAt(frame, i, 1, 16)
			if ok && last != nil && !named[last.actorID] && i-last.endIndex >= 0 {
				if d.registerUTF8Nickname(frame, last.actorID, start, length) {
					named[last.actorID] = true
					last = nil
					return true
				}
			}
		}
	}

	return false
}

// registerUTF8Nickname re-validates and sanitizes a candidate name
// window before binding it, so a caller never needs to trust an
// upstream scan's bounds.
func (d *Decoder) registerUTF8Nickname(frame []byte, actorID uint32, start, length int) bool {
	if d.storage.HasNickname(actorID) {
		return false
	}
	if length < 1 || length > 16 {
		return false
	}
	end := start + length
	if start < 0 || end > len(frame) {
		return false
	}
	if !utf8.Valid(frame[start:end]) {
		return false
	}

	sanitized, ok := protocol.SanitizeNickname(string(frame[start:end]))
	if !ok {
		return false
	}

	d.storage.AppendNickname(actorID, sanitized)
	return true
}
