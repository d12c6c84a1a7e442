// Package snapshot builds the externally-facing Snapshot payload from
// a storage.Snapshot, computing the overview and detailed-skill
// rollups spec.md §4.6 describes. Both the periodic Aggregator and
// the synchronous Reset/Snapshot API (spec.md §4.7) share this
// builder so the two payload shapes never drift apart.
package snapshot

import (
	"time"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

// Kind distinguishes a periodic tick from the one-shot "summary"
// emitted by a reset.
type Kind string

const (
	KindTick    Kind = "tick"
	KindSummary Kind = "summary"
)

// RollupStats is one aggregated (total_damage, count, special_counts)
// bucket, the common shape every rollup level shares.
type RollupStats struct {
	TotalDamage   uint64                   `json:"total_damage"`
	Count         uint64                   `json:"count"`
	SpecialCounts map[protocol.Flag]uint64 `json:"special_counts"`
}

func newRollup() *RollupStats {
	return &RollupStats{SpecialCounts: protocol.NewSpecialCounts()}
}

func (r *RollupStats) add(s *storage.Stats) {
	r.TotalDamage += s.TotalDamage
	r.Count += s.Count
	for flag, v := range s.SpecialCounts {
		r.SpecialCounts[flag] += v
	}
}

// Snapshot is the complete externally-facing payload, spec.md §6.
type Snapshot struct {
	Kind Kind `json:"kind"`

	MainPlayer     string  `json:"main_player"`
	LastTarget     *uint32 `json:"last_target"`
	LastTargetByMe *uint32 `json:"last_target_by_me"`

	TargetList []uint32 `json:"target_list"`
	ActorList  []uint32 `json:"actor_list"`

	TargetStartTime time.Time `json:"target_start_time"`
	TargetLastTime  time.Time `json:"target_last_time"`

	NicknameMap     map[uint32]string           `json:"nickname_map"`
	ActorClassMap   map[uint32]string           `json:"actor_class_map"`
	MobCode         map[uint32]uint32           `json:"mob_code"`
	SummonCode      map[uint32]uint32           `json:"summon_code"`
	ActorSkillSlots map[uint32]map[uint32][]int `json:"actor_skill_slots"`
	ParsedSkillCode map[uint32]uint32           `json:"parsed_skill_code"`

	DurationSeconds    float64 `json:"duration"`
	RunningTimeSeconds float64 `json:"running_time"`

	OverviewStats               *RollupStats                       `json:"overview_stats"`
	OverviewStatsByTarget       map[uint32]*RollupStats             `json:"overview_stats_by_target"`
	OverviewStatsByTargetPlayer map[uint32]map[uint32]*RollupStats  `json:"overview_stats_by_target_player"`
	OverviewStatsByPlayer       map[uint32]*RollupStats             `json:"overview_stats_by_player"`

	DetailedSkillsStatsByTargetPlayer map[uint32]map[uint32]map[uint32]*RollupStats `json:"detailed_skills_stats_by_target_player"`
	DetailedSkillsStatsByActor        map[uint32]map[uint32]*RollupStats            `json:"detailed_skills_stats_by_actor"`
}

// epsilon is the small positive duration added to running_time so
// downstream DPS = total_damage / running_time never divides by zero
// (spec.md §4.6 step 5).
const epsilon = 10 * time.Millisecond

// Build computes the full Snapshot from a storage.Snapshot. now is
// injected by the caller (the real capture clock), never derived
// internally, so the computation stays deterministic and testable.
// ok is false when start_time is unset, per spec.md §4.6 step 2 — the
// caller should skip emission entirely in that case.
func Build(snap storage.Snapshot, now time.Time, kind Kind) (Snapshot, bool) {
	if !snap.HasStartTime {
		return Snapshot{}, false
	}

	out := Snapshot{
		Kind:            kind,
		MainPlayer:      snap.MainPlayer,
		LastTarget:      snap.LastTarget,
		LastTargetByMe:  snap.LastTargetByMe,
		TargetList:      snap.TargetList,
		ActorList:       snap.ActorList,
		TargetStartTime: snap.StartTime,
		TargetLastTime:  snap.LastDamageTime,
		NicknameMap:     snap.NicknameMap,
		ActorClassMap:   snap.ActorClassMap,
		MobCode:         snap.MobMap,
		SummonCode:      snap.SummonMap,
		ActorSkillSlots: snap.ActorSkillSlots,
		ParsedSkillCode: snap.ParsedSkillCode,

		OverviewStats:               newRollup(),
		OverviewStatsByTarget:       make(map[uint32]*RollupStats),
		OverviewStatsByTargetPlayer: make(map[uint32]map[uint32]*RollupStats),
		OverviewStatsByPlayer:       make(map[uint32]*RollupStats),

		DetailedSkillsStatsByTargetPlayer: make(map[uint32]map[uint32]map[uint32]*RollupStats),
		DetailedSkillsStatsByActor:        make(map[uint32]map[uint32]*RollupStats),
	}

	out.DurationSeconds = now.Sub(snap.StartTime).Seconds()
	if snap.HasLastDamage {
		out.RunningTimeSeconds = snap.LastDamageTime.Sub(snap.StartTime).Seconds() + epsilon.Seconds()
	} else {
		out.RunningTimeSeconds = epsilon.Seconds()
	}

	for key, stats := range snap.CombatStats {
		out.OverviewStats.add(stats)

		byTarget, ok := out.OverviewStatsByTarget[key.TargetID]
		if !ok {
			byTarget = newRollup()
			out.OverviewStatsByTarget[key.TargetID] = byTarget
		}
		byTarget.add(stats)

		byPlayer, ok := out.OverviewStatsByPlayer[key.ActorID]
		if !ok {
			byPlayer = newRollup()
			out.OverviewStatsByPlayer[key.ActorID] = byPlayer
		}
		byPlayer.add(stats)

		byTP := out.OverviewStatsByTargetPlayer[key.TargetID]
		if byTP == nil {
			byTP = make(map[uint32]*RollupStats)
			out.OverviewStatsByTargetPlayer[key.TargetID] = byTP
		}
		tpEntry, ok := byTP[key.ActorID]
		if !ok {
			tpEntry = newRollup()
			byTP[key.ActorID] = tpEntry
		}
		tpEntry.add(stats)

		detailedTP := out.DetailedSkillsStatsByTargetPlayer[key.TargetID]
		if detailedTP == nil {
			detailedTP = make(map[uint32]map[uint32]*RollupStats)
			out.DetailedSkillsStatsByTargetPlayer[key.TargetID] = detailedTP
		}
		detailedByActor := detailedTP[key.ActorID]
		if detailedByActor == nil {
			detailedByActor = make(map[uint32]*RollupStats)
			detailedTP[key.ActorID] = detailedByActor
		}
		perSkill := newRollup()
		perSkill.add(stats)
		detailedByActor[key.SkillCode] = perSkill

		detailedActor := out.DetailedSkillsStatsByActor[key.ActorID]
		if detailedActor == nil {
			detailedActor = make(map[uint32]*RollupStats)
			out.DetailedSkillsStatsByActor[key.ActorID] = detailedActor
		}
		bySkill, ok := detailedActor[key.SkillCode]
		if !ok {
			bySkill = newRollup()
			detailedActor[key.SkillCode] = bySkill
		}
		bySkill.add(stats)
	}

	return out, true
}
