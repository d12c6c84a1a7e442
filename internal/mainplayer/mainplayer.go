// Package mainplayer identifies the local player's nickname so
// Storage can track "damage dealt by me" (last_target_by_me). The
// window-title polling loop itself is OS automation and out of scope;
// only the detector contract and the pure title-parsing helper are
// implemented here.
package mainplayer

import (
	"context"
	"strings"
)

// Detector calls SetMainPlayer whenever it identifies the local
// player's nickname. A poll loop (spec.md §5: "polls window titles
// every ~10s") is expected to drive it; this package only defines the
// contract an implementation must satisfy.
type Detector interface {
	Run(ctx context.Context, setMainPlayer func(name string)) error
}

// NoopDetector never reports a main player; it exists so a
// composition root on a platform without a real detector still has a
// Detector to wire in.
type NoopDetector struct{}

// Run blocks until ctx is cancelled, never calling setMainPlayer.
func (NoopDetector) Run(ctx context.Context, setMainPlayer func(name string)) error {
	<-ctx.Done()
	return ctx.Err()
}

// titlePatterns are tried in order; the first to match wins
// (WindowTitleDetector.py's two literal prefixes).
var titlePatterns = []string{"AION2 l ", "AION2 | "}

// ExtractFromTitle splits a window title on the first of
// titlePatterns it contains and returns the trailing name, trimmed.
// ok is false if neither pattern is present.
func ExtractFromTitle(title string) (name string, ok bool) {
	for _, pattern := range titlePatterns {
		if idx := strings.Index(title, pattern); idx != -1 {
			trailing := title[idx+len(pattern):]
			trailing = strings.TrimSpace(trailing)
			if trailing == "" {
				return "", false
			}
			return trailing, true
		}
	}
	return "", false
}
