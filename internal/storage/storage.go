// Package storage holds the single authoritative in-memory model of
// the fight: rosters, nickname/mob/summon maps, per-key combat
// rollups, and timestamps. One writer (the dispatcher, synchronously
// via the decoder), any number of readers taking a locked snapshot.
package storage

import (
	"sync"
	"time"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
)

// Key identifies one (target, actor, skill) combat-stats bucket.
type Key struct {
	TargetID  uint32
	ActorID   uint32
	SkillCode uint32
}

// Stats is one CombatStats bucket: total damage, hit count, and a
// per-flag hit counter that always carries every flag (zeroed).
type Stats struct {
	TotalDamage   uint64
	Count         uint64
	SpecialCounts map[protocol.Flag]uint64
}

func newStats() *Stats {
	return &Stats{SpecialCounts: protocol.NewSpecialCounts()}
}

func (s *Stats) clone() *Stats {
	cp := &Stats{TotalDamage: s.TotalDamage, Count: s.Count, SpecialCounts: make(map[protocol.Flag]uint64, len(s.SpecialCounts))}
	for f, v := range s.SpecialCounts {
		cp.SpecialCounts[f] = v
	}
	return cp
}

// DamageEvent is the typed output of the decoder: one accepted
// damage or DoT tick, ready to be folded into Storage.
type DamageEvent struct {
	IsDot     bool
	TargetID  uint32
	ActorID   uint32
	SkillCode uint32
	Damage    uint32
	Specials  map[protocol.Flag]bool
}

// Storage is the fight model described by spec.md §3/§4.5. The zero
// value is not usable; construct with New.
type Storage struct {
	mu sync.Mutex

	catalog *skillcode.Catalog

	combatStats map[Key]*Stats
	actorList   []uint32
	targetList  []uint32
	seenActor   map[uint32]bool
	seenTarget  map[uint32]bool

	nicknameMap map[uint32]string
	mobMap      map[uint32]uint32
	summonMap   map[uint32]uint32

	mainPlayer       string
	lastTarget       *uint32
	lastTargetByMe   *uint32

	actorClassMap   map[uint32]string
	actorSkillSlots map[uint32]map[uint32][]int

	parsedSkillCode map[uint32]uint32
	failedSkillCode map[uint32]bool

	startTime       time.Time
	lastDamageTime  time.Time
	hasStartTime    bool
	hasLastDamage   bool
}

// New constructs an empty Storage backed by the given skill-code
// catalog (may be nil, in which case only the built-in class table
// is effectively unavailable too — callers should always pass a
// loaded catalog, even an empty one from skillcode.Load("")).
func New(catalog *skillcode.Catalog) *Storage {
	return &Storage{
		catalog:         catalog,
		combatStats:     make(map[Key]*Stats),
		seenActor:       make(map[uint32]bool),
		seenTarget:      make(map[uint32]bool),
		nicknameMap:     make(map[uint32]string),
		mobMap:          make(map[uint32]uint32),
		summonMap:       make(map[uint32]uint32),
		actorClassMap:   make(map[uint32]string),
		actorSkillSlots: make(map[uint32]map[uint32][]int),
		parsedSkillCode: make(map[uint32]uint32),
		failedSkillCode: make(map[uint32]bool),
	}
}

// AppendDamage folds one decoded damage event into the model. It is
// the single write path that mutates combat_stats, rosters and
// timestamps. actor_id == target_id events must never reach here —
// that invariant is enforced by the decoder, not re-checked.
func (s *Storage) AppendDamage(ev DamageEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.hasStartTime {
		s.startTime = now
		s.hasStartTime = true
	}
	s.lastDamageTime = now
	s.hasLastDamage = true

	target := ev.TargetID
	s.lastTarget = &target

	if name, ok := s.nicknameMap[ev.ActorID]; ok && s.mainPlayer != "" && name == s.mainPlayer {
		s.lastTargetByMe = &target
	}

	key := Key{TargetID: ev.TargetID, ActorID: ev.ActorID, SkillCode: ev.SkillCode}
	stats, ok := s.combatStats[key]
	if !ok {
		stats = newStats()
		s.combatStats[key] = stats
	}
	stats.TotalDamage += uint64(ev.Damage)
	stats.Count++
	for flag, set := range ev.Specials {
		if set {
			stats.SpecialCounts[flag]++
		}
	}

	if !s.seenActor[ev.ActorID] {
		s.seenActor[ev.ActorID] = true
		s.actorList = append(s.actorList, ev.ActorID)
	}
	if !s.seenTarget[ev.TargetID] {
		s.seenTarget[ev.TargetID] = true
		s.targetList = append(s.targetList, ev.TargetID)
	}

	s.inferSkill(ev.ActorID, ev.SkillCode)
}

// inferSkill derives the original skill code, its specialty slots and
// the actor's class, recording a failure entry when the catalog
// cannot resolve a class for the inferred origin (spec.md §7 kind 7).
// Caller must hold s.mu.
func (s *Storage) inferSkill(actorID, skillCode uint32) {
	origin := skillcode.OriginCode(skillCode)

	if _, ok := s.parsedSkillCode[skillCode]; !ok {
		s.parsedSkillCode[skillCode] = origin
	}

	slots := skillcode.SpecialtySlots(skillCode)
	if s.actorSkillSlots[actorID] == nil {
		s.actorSkillSlots[actorID] = make(map[uint32][]int)
	}
	s.actorSkillSlots[actorID][origin] = slots

	if s.catalog != nil {
		if class, ok := s.catalog.ClassForOrigin(origin); ok {
			s.actorClassMap[actorID] = class
			return
		}
	}
	s.failedSkillCode[skillCode] = true
}

// AppendNickname binds actor_id -> name. First-write-wins semantics
// are not enforced here (the decoder callers already decide when a
// rebind is appropriate); this simply replaces the map entry, which
// is what "later writes replace" means operationally.
func (s *Storage) AppendNickname(actorID uint32, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nicknameMap[actorID] = name
}

// HasNickname reports whether actor_id already has a bound nickname.
func (s *Storage) HasNickname(actorID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nicknameMap[actorID]
	return ok
}

// SetMainPlayer overrides the main-player identity.
func (s *Storage) SetMainPlayer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mainPlayer = name
}

// AppendMob records instance_id -> type_code.
func (s *Storage) AppendMob(instanceID, typeCode uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mobMap[instanceID] = typeCode
}

// AppendSummon records summoned_entity_id -> summoner_id.
func (s *Storage) AppendSummon(summonedID, summonerID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summonMap[summonedID] = summonerID
}

// GetCurrentTarget returns _last_target, or (0, false) if unset.
func (s *Storage) GetCurrentTarget() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastTarget == nil {
		return 0, false
	}
	return *s.lastTarget, true
}

// Snapshot is a deep copy of every mutable collection in Storage plus
// its timestamps, safe to read without the lock after it is returned.
type Snapshot struct {
	MainPlayer     string
	LastTarget     *uint32
	LastTargetByMe *uint32

	TargetList []uint32
	ActorList  []uint32

	NicknameMap     map[uint32]string
	MobMap          map[uint32]uint32
	SummonMap       map[uint32]uint32
	ActorClassMap   map[uint32]string
	ActorSkillSlots map[uint32]map[uint32][]int
	ParsedSkillCode map[uint32]uint32
	FailedSkillCode map[uint32]bool

	CombatStats map[Key]*Stats

	StartTime      time.Time
	LastDamageTime time.Time
	HasStartTime   bool
	HasLastDamage  bool
}

// Snapshot takes a consistent, deep copy of Storage's state under the
// lock. Callers must do all further processing on the copy, outside
// the lock.
func (s *Storage) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		MainPlayer:      s.mainPlayer,
		TargetList:      append([]uint32(nil), s.targetList...),
		ActorList:       append([]uint32(nil), s.actorList...),
		NicknameMap:     cloneUint32String(s.nicknameMap),
		MobMap:          cloneUint32Uint32(s.mobMap),
		SummonMap:       cloneUint32Uint32(s.summonMap),
		ActorClassMap:   cloneUint32String(s.actorClassMap),
		ParsedSkillCode: cloneUint32Uint32(s.parsedSkillCode),
		FailedSkillCode: make(map[uint32]bool, len(s.failedSkillCode)),
		CombatStats:     make(map[Key]*Stats, len(s.combatStats)),
		StartTime:       s.startTime,
		LastDamageTime:  s.lastDamageTime,
		HasStartTime:    s.hasStartTime,
		HasLastDamage:   s.hasLastDamage,
	}

	if s.lastTarget != nil {
		v := *s.lastTarget
		snap.LastTarget = &v
	}
	if s.lastTargetByMe != nil {
		v := *s.lastTargetByMe
		snap.LastTargetByMe = &v
	}

	for k, v := range s.failedSkillCode {
		snap.FailedSkillCode[k] = v
	}

	snap.ActorSkillSlots = make(map[uint32]map[uint32][]int, len(s.actorSkillSlots))
	for actor, slotsByOrigin := range s.actorSkillSlots {
		cp := make(map[uint32][]int, len(slotsByOrigin))
		for origin, slots := range slotsByOrigin {
			cp[origin] = append([]int(nil), slots...)
		}
		snap.ActorSkillSlots[actor] = cp
	}

	for k, v := range s.combatStats {
		snap.CombatStats[k] = v.clone()
	}

	return snap
}

// Reset clears combat_stats, rosters and timestamps. Nickname, mob
// and summon maps — and the main-player identity — survive a reset:
// they are discovery-bound, not per-fight (spec.md §4.5, §9).
func (s *Storage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.combatStats = make(map[Key]*Stats)
	s.actorList = nil
	s.targetList = nil
	s.seenActor = make(map[uint32]bool)
	s.seenTarget = make(map[uint32]bool)
	s.actorClassMap = make(map[uint32]string)
	s.actorSkillSlots = make(map[uint32]map[uint32][]int)
	s.parsedSkillCode = make(map[uint32]uint32)
	s.failedSkillCode = make(map[uint32]bool)
	s.lastTarget = nil
	s.lastTargetByMe = nil
	s.hasStartTime = false
	s.hasLastDamage = false
	s.startTime = time.Time{}
	s.lastDamageTime = time.Time{}
}

func cloneUint32String(m map[uint32]string) map[uint32]string {
	cp := make(map[uint32]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneUint32Uint32(m map[uint32]uint32) map[uint32]uint32 {
	cp := make(map[uint32]uint32, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
