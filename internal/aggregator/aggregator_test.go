package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

func TestTick_SkipsUntilStartTimeSet(t *testing.T) {
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)

	var got *snapshot.Snapshot
	a := New(s, time.Millisecond, func(snap snapshot.Snapshot) { got = &snap }, nil)

	a.tick()
	assert.Nil(t, got, "no damage has ever been recorded, so start_time is unset")

	s.AppendDamage(storage.DamageEvent{
		TargetID: 100, ActorID: 200, SkillCode: 11020004, Damage: 500,
		Specials: map[protocol.Flag]bool{},
	})

	a.tick()
	require.NotNil(t, got)
	assert.EqualValues(t, 500, got.OverviewStats.TotalDamage)
	assert.EqualValues(t, 500, got.OverviewStatsByTargetPlayer[100][200].TotalDamage)
	assert.EqualValues(t, 500, got.DetailedSkillsStatsByActor[200][11020004].TotalDamage)
	assert.Greater(t, got.RunningTimeSeconds, 0.0)
}
