package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZDYoung0519/NOIA2/internal/channel"
	"github.com/ZDYoung0519/NOIA2/internal/protocol"
	"github.com/ZDYoung0519/NOIA2/internal/skillcode"
	"github.com/ZDYoung0519/NOIA2/internal/storage"
)

func TestFlowKey_DirectionIndependent(t *testing.T) {
	assert.Equal(t, flowKey(100, 200), flowKey(200, 100))
	assert.Equal(t, "100-200", flowKey(100, 200))
}

func TestDispatch_DiscardsUntilMagicSeen(t *testing.T) {
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)
	ch := channel.New(0)
	d := New(ch, s, nil, nil, false)

	d.dispatch(channel.Payload{SrcPort: 1, DstPort: 2, Data: []byte{0x01, 0x02, 0x03}})
	assert.Equal(t, 0, d.FlowCount(), "no assembler should be created without a magic sighting")

	withMagic := append([]byte{0x01, 0x02}, protocol.Magic...)
	d.dispatch(channel.Payload{SrcPort: 1, DstPort: 2, Data: withMagic})
	assert.Equal(t, 1, d.FlowCount(), "a flow is adopted once its payload carries the magic sequence")
}

func TestDispatch_FeedsExistingAssemblerEvenWithoutMagic(t *testing.T) {
	catalog, err := skillcode.Load("")
	require.NoError(t, err)
	s := storage.New(catalog)
	ch := channel.New(0)
	d := New(ch, s, nil, nil, false)

	withMagic := append([]byte{0x01}, protocol.Magic...)
	d.dispatch(channel.Payload{SrcPort: 1, DstPort: 2, Data: withMagic})
	require.Equal(t, 1, d.FlowCount())

	d.dispatch(channel.Payload{SrcPort: 1, DstPort: 2, Data: []byte{0x99, 0x99}})
	assert.Equal(t, 1, d.FlowCount(), "subsequent non-magic chunks on an adopted flow are still fed, not discarded")
}
