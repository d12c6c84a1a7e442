package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSpecialFlags_BackAndPerfect(t *testing.T) {
	flags := ParseSpecialFlags(0x09) // BACK (0x01) | PERFECT (0x08)
	assert.True(t, flags[FlagBack])
	assert.True(t, flags[FlagPerfect])
	assert.False(t, flags[FlagParry])
	assert.False(t, flags[FlagCritical], "critical is never set by bit-parsing")
}

func TestNewSpecialCounts_EveryFlagZeroed(t *testing.T) {
	counts := NewSpecialCounts()
	assert.Len(t, counts, len(AllFlags))
	for _, f := range AllFlags {
		assert.EqualValues(t, 0, counts[f])
	}
}
