package wasmmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/alexhholmes/pod"
	"github.com/alexhholmes/pod/errors"
)

// memoryWASM is a minimal WASM module with 1 page of memory exported as "memory"
var memoryWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 page, no max
	0x07, 0x0a, 0x01, // export section: 10 bytes, 1 export
	0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, // name: "memory" (6 bytes + string)
	0x02, 0x00, // kind: memory, index 0
}

type guestPoint struct {
	X, Y int32
	Tag  uint64
}

func (guestPoint) PlainOldData() {}

func instantiate(t *testing.T) api.Module {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, memoryWASM)
	require.NoError(t, err)
	return mod
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil))

	_, err := FromModule(nil, "")
	assert.Error(t, err)
}

func TestFromModule(t *testing.T) {
	mod := instantiate(t)

	mem, err := FromModule(mod, "memory")
	require.NoError(t, err)
	assert.Equal(t, uint32(65536), mem.Size())

	_, err = FromModule(mod, "heap")
	assert.ErrorIs(t, err, errors.New(errors.PhaseView, errors.KindInvalidInput).Build())
}

func TestView_SharesGuestMemory(t *testing.T) {
	mod := instantiate(t)
	mem, err := FromModule(mod, "")
	require.NoError(t, err)

	v, err := mem.View(1024, 64)
	require.NoError(t, err)
	pod.Write(v, 8, guestPoint{X: 1, Y: -2, Tag: 77})

	// Visible through wazero's own accessors
	tag, ok := mod.Memory().ReadUint64Le(1024 + 16)
	require.True(t, ok)
	assert.Equal(t, uint64(77), tag)

	p := pod.Get[guestPoint](v, 8)
	assert.Equal(t, int32(-2), p.Y)

	ro, err := mem.ReadOnlyView(1024, 64)
	require.NoError(t, err)
	assert.Error(t, pod.TryWrite(ro, 0, uint32(1)))
}

func TestLoadStore(t *testing.T) {
	mod := instantiate(t)
	mem := Wrap(mod.Memory())

	require.NoError(t, Store(mem, 256, guestPoint{X: 3, Y: 4, Tag: 5}))
	got, err := Load[guestPoint](mem, 256)
	require.NoError(t, err)
	assert.Equal(t, guestPoint{X: 3, Y: 4, Tag: 5}, got)

	require.True(t, mod.Memory().WriteUint32Le(512, 0xabcd))
	n, err := Load[uint32](mem, 512)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xabcd), n)
}

func TestOutOfBounds(t *testing.T) {
	mod := instantiate(t)
	mem := Wrap(mod.Memory())

	_, err := mem.View(65530, 16)
	assert.ErrorIs(t, err, errors.New(errors.PhaseView, errors.KindOutOfBounds).Build())

	_, err = Load[uint64](mem, 65532)
	assert.Error(t, err)
	assert.Error(t, Store(mem, 65535, uint32(1)))

	_, err = Load[string](mem, 0)
	assert.Error(t, err, "string is not POD")
}
