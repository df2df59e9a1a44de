package pod

import (
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/pod/errors"
)

func viewErr(kind errors.Kind) error {
	return errors.New(errors.PhaseView, kind).Build()
}

func TestSlice_FourByteRegion(t *testing.T) {
	v := NewView(alignedBytes(4))

	s := Slice[uint16](v, 0, 2)
	assert.Len(t, s, 2)

	assert.Panics(t, func() { Slice[uint16](v, 0, 3) })
	_, err := TrySlice[uint16](v, 0, 3)
	assert.ErrorIs(t, err, viewErr(errors.KindOutOfBounds))
}

func TestWriteThenGet(t *testing.T) {
	v := NewView(alignedBytes(32))

	Write(v, 8, uint64(0xdeadbeefcafe))
	assert.Equal(t, uint64(0xdeadbeefcafe), *Get[uint64](v, 8))
	assert.Equal(t, uint64(0xdeadbeefcafe), Read[uint64](v, 8))

	m := Mixed{A: 3, B: 4, C: 5}
	Write(v, 16, m)
	got := Get[Mixed](v, 16)
	assert.True(t, Equal(&m, got))

	// GetMut aliases the region
	GetMut[Mixed](v, 16).C = 9
	assert.Equal(t, uint16(9), Read[Mixed](v, 16).C)
}

func TestView_OutOfBounds(t *testing.T) {
	v := NewView(alignedBytes(16))

	tests := []struct {
		name string
		fn   func() error
	}{
		{"get past end", func() error { _, err := TryGet[uint32](v, 16); return err }},
		{"get straddles end", func() error { _, err := TryGet[uint64](v, 12); return err }},
		{"negative offset", func() error { _, err := TryGet[uint8](v, -1); return err }},
		{"read past end", func() error { _, err := TryRead[uint32](v, 13); return err }},
		{"write past end", func() error { return TryWrite(v, 14, uint32(1)) }},
		{"write slice past end", func() error { return TryWriteSlice(v, 10, []uint16{1, 2, 3, 4}) }},
		{"read into past end", func() error { return TryReadInto(v, 0, make([]uint64, 3)) }},
		{"slice past end", func() error { _, err := TrySlice[uint32](v, 8, 3); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), viewErr(errors.KindOutOfBounds))
		})
	}

	assert.Panics(t, func() { Get[uint32](v, 16) })
	assert.Panics(t, func() { Write(v, 15, uint16(1)) })
}

func TestView_Alignment(t *testing.T) {
	v := NewView(alignedBytes(16))

	_, err := TryGet[uint32](v, 2)
	assert.ErrorIs(t, err, viewErr(errors.KindMisaligned))
	_, err = TrySlice[uint16](v, 1, 2)
	assert.ErrorIs(t, err, viewErr(errors.KindMisaligned))

	// Copies do not need alignment
	require.NoError(t, TryWrite(v, 1, uint32(0x01020304)))
	got, err := TryRead[uint32](v, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), got)
}

func TestView_Overflow(t *testing.T) {
	v := NewView(alignedBytes(16))

	_, err := TrySlice[uint64](v, 0, math.MaxInt/4)
	assert.ErrorIs(t, err, viewErr(errors.KindOverflow))

	_, err = TrySlice[uint64](v, 0, -1)
	assert.ErrorIs(t, err, viewErr(errors.KindInvalidInput))

	empty, err := TrySlice[uint64](v, 16, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestView_ReadOnly(t *testing.T) {
	buf := alignedBytes(8)
	buf[0] = 42
	v := NewReadOnlyView(buf)
	assert.True(t, v.IsReadOnly())

	assert.Equal(t, uint8(42), *Get[uint8](v, 0))
	assert.Equal(t, uint8(42), Read[uint8](v, 0))

	assert.ErrorIs(t, TryWrite(v, 0, uint8(1)), viewErr(errors.KindReadOnly))
	assert.ErrorIs(t, TryWriteSlice(v, 0, []uint8{1}), viewErr(errors.KindReadOnly))
	_, err := TryGetMut[uint8](v, 0)
	assert.ErrorIs(t, err, viewErr(errors.KindReadOnly))
	_, err = TrySliceMut[uint8](v, 0, 1)
	assert.ErrorIs(t, err, viewErr(errors.KindReadOnly))

	// Bytes hands out a copy
	v.Bytes()[0] = 0
	assert.Equal(t, byte(42), buf[0])

	mv := NewView(buf)
	assert.False(t, mv.IsReadOnly())
	assert.True(t, mv.ReadOnly().IsReadOnly())
	assert.Panics(t, func() { Write(mv.ReadOnly(), 0, uint8(1)) })
}

func TestView_Index(t *testing.T) {
	v := NewView(alignedBytes(16))
	sub := v.Index(4, 12)
	assert.Equal(t, 8, sub.Len())

	Write(sub, 0, uint32(9))
	assert.Equal(t, uint32(9), Read[uint32](v, 4))

	// The sub-view is bounded
	_, err := TryRead[uint32](sub, 6)
	assert.ErrorIs(t, err, viewErr(errors.KindOutOfBounds))

	_, err = v.TryIndex(8, 20)
	assert.ErrorIs(t, err, viewErr(errors.KindOutOfBounds))
	assert.Panics(t, func() { v.Index(6, 2) })
}

func TestReadIntoWriteSlice(t *testing.T) {
	v := NewView(alignedBytes(16))

	WriteSlice(v, 1, []uint16{1, 2, 3})
	dst := make([]uint16, 3)
	ReadInto(v, 1, dst)
	assert.Equal(t, []uint16{1, 2, 3}, dst)

	SliceMut[uint8](v, 0, 16)[15] = 7
	assert.Equal(t, uint8(7), Slice[uint8](v, 0, 16)[15])
}

func TestTailLen(t *testing.T) {
	v := NewView(alignedBytes(16))
	assert.Equal(t, 4, TailLen[uint32](v, 0))
	assert.Equal(t, 3, TailLen[uint32](v, 2))
	assert.Equal(t, 0, TailLen[uint32](v, 16))
	assert.Equal(t, 0, TailLen[uint32](v, 20))
	assert.Equal(t, 0, TailLen[struct{}](v, 0))
}

func TestTryTailLen(t *testing.T) {
	v := NewView(alignedBytes(16))

	n, err := TryTailLen[uint64](v, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = TryTailLen[WithBool](v, 0)
	assert.ErrorIs(t, err, viewErr(errors.KindNotPOD))
	assert.Zero(t, n)
	assert.Panics(t, func() { TailLen[WithBool](v, 0) })
}

func TestView_NotPOD(t *testing.T) {
	v := NewView(alignedBytes(16))

	_, err := TryGet[WithBool](v, 0)
	assert.ErrorIs(t, err, viewErr(errors.KindNotPOD))
	assert.Panics(t, func() { Write(v, 0, WithString{}) })
}

type localHeader struct {
	Kind uint16
	Len  uint16
}

func TestRegistryView(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(reflect.TypeFor[localHeader]())
	require.NoError(t, err)

	buf := alignedBytes(8)
	Write(r.View(buf), 4, localHeader{Kind: 1, Len: 2})
	assert.Equal(t, uint16(2), Get[localHeader](r.ReadOnlyView(buf), 4).Len)

	// The default registry never saw localHeader
	_, err = TryGet[localHeader](NewView(buf), 4)
	assert.ErrorIs(t, err, viewErr(errors.KindNotPOD))
}
