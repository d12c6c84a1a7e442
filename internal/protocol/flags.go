package protocol

// Flag is one bit of the special-damage bitset, plus the virtual
// CRITICAL flag derived from an event's type field.
type Flag string

// The full flag vocabulary. special_counts in CombatStats always
// covers every one of these, initialized to zero.
const (
	FlagBack        Flag = "BACK"
	FlagUnknown     Flag = "UNKNOWN"
	FlagParry       Flag = "PARRY"
	FlagPerfect     Flag = "PERFECT"
	FlagDouble      Flag = "DOUBLE"
	FlagEndure      Flag = "ENDURE"
	FlagUnknown4    Flag = "UNKNOWN4"
	FlagPowerShard  Flag = "POWER_SHARD"
	FlagCritical    Flag = "CRITICAL"
)

// AllFlags enumerates every flag special_counts must carry a zeroed
// entry for, in a stable order.
var AllFlags = []Flag{
	FlagBack, FlagUnknown, FlagParry, FlagPerfect,
	FlagDouble, FlagEndure, FlagUnknown4, FlagPowerShard,
	FlagCritical,
}

// bitFlags maps each bit of the one-byte special-damage bitset (§3) to
// its flag, in bit order.
var bitFlags = []struct {
	mask byte
	flag Flag
}{
	{0x01, FlagBack},
	{0x02, FlagUnknown},
	{0x04, FlagParry},
	{0x08, FlagPerfect},
	{0x10, FlagDouble},
	{0x20, FlagEndure},
	{0x40, FlagUnknown4},
	{0x80, FlagPowerShard},
}

// ParseSpecialFlags decodes the leading flag byte of a fixed-width
// special block into the set of flags it carries. CRITICAL is never
// set here; it is derived separately from the event's type field.
func ParseSpecialFlags(flagByte byte) map[Flag]bool {
	flags := make(map[Flag]bool, len(bitFlags))
	for _, bf := range bitFlags {
		if flagByte&bf.mask != 0 {
			flags[bf.flag] = true
		}
	}
	return flags
}

// NewSpecialCounts returns a special_counts map with every flag
// present and initialized to zero, per spec.md §3.
func NewSpecialCounts() map[Flag]uint64 {
	counts := make(map[Flag]uint64, len(AllFlags))
	for _, f := range AllFlags {
		counts[f] = 0
	}
	return counts
}
