package control

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZDYoung0519/NOIA2/internal/bus"
	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/dispatcher"
	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
	"github.com/ZDYoung0519/NOIA2/internal/snapshot"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

type stubArchiver struct {
	saved []snapshot.Snapshot
}

func (s *stubArchiver) Save(_ context.Context, snap snapshot.Snapshot, _ time.Time) {
	s.saved = append(s.saved, snap)
}

func TestReset_PublishesSummaryAndPreservesIdentity(t *testing.T) {
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)
	s.SetMainPlayer("Hero")
	s.AppendNickname(200, "Hero")
	s.AppendDamage(storage.DamageEvent{
		TargetID: 100, ActorID: 200, SkillCode: 11020004, Damage: 750,
		Specials: map[protocol.Flag]bool{},
	})

	ch := channel.New(0)
	ch.TrySend(channel.Payload{SrcPort: 1, DstPort: 2, Data: []byte{0x01}})

	d := dispatcher.New(ch, s, nil, nil, false)
	pub := bus.NewChannelPublisher()
	sub := pub.Subscribe(4)

	c := New(s, d, ch, pub, nil)
	c.Reset()

	msg := <-sub
	assert.Equal(t, SnapshotTopic, msg.Topic)

	snap := s.Snapshot()
	assert.Empty(t, snap.CombatStats, "combat stats must be cleared by reset")
	assert.Equal(t, "Hero", snap.MainPlayer, "main player identity survives reset")
	assert.Equal(t, "Hero", snap.NicknameMap[200], "nicknames survive reset")
	assert.Equal(t, 0, ch.Size(), "channel must be cleared by reset")
}

func TestReset_SavesToAttachedArchiver(t *testing.T) {
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)
	s.AppendDamage(storage.DamageEvent{
		TargetID: 1, ActorID: 2, SkillCode: 11020004, Damage: 10,
		Specials: map[protocol.Flag]bool{},
	})

	ch := channel.New(0)
	d := dispatcher.New(ch, s, nil, nil, false)
	arc := &stubArchiver{}

	c := New(s, d, ch, nil, nil).WithArchiver(arc)
	c.Reset()

	require.Len(t, arc.saved, 1)
	assert.EqualValues(t, 10, arc.saved[0].OverviewStats.TotalDamage)
}
