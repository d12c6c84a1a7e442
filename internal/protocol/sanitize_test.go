package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeNickname(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		wantOK   bool
		wantText string
	}{
		{"ordinary name", "Galdric", true, "Galdric"},
		{"trims surrounding whitespace", "  Galdric  ", true, "Galdric"},
		{"truncates at NUL", "Galdric\x00garbage", true, "Galdric"},
		{"strips control characters", "Gal\x01dric", true, "Galdric"},
		{"han characters allowed even if short", "龍", true, "龍"},
		{"all-digit rejected", "12345", false, ""},
		{"lone letter rejected", "A", false, ""},
		{"too short without han rejected", "Ab", false, ""},
		{"empty rejected", "", false, ""},
		{"whitespace-only rejected", "   ", false, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := SanitizeNickname(c.raw)
			assert.Equal(t, c.wantOK, ok)
			if c.wantOK {
				assert.Equal(t, c.wantText, got)
			}
		})
	}
}

func TestSanitizeNickname_Idempotent(t *testing.T) {
	inputs := []string{"Galdric", "  Hero99  ", "龍王"}
	for _, in := range inputs {
		first, ok := SanitizeNickname(in)
		if !ok {
			continue
		}
		second, ok2 := SanitizeNickname(first)
		assert.True(t, ok2)
		assert.Equal(t, first, second)
	}
}
