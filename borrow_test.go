package pod

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/pod/errors"
)

func TestBorrow_Exclusive(t *testing.T) {
	v := NewView(alignedBytes(16))
	b := BorrowAt[uint32](v, 4)
	*b.Value() = 11

	// Overlapping access fails through every accessor
	_, err := TryRead[uint32](v, 4)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))
	_, err = TryGet[uint16](v, 6)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))
	assert.ErrorIs(t, TryWrite(v, 7, uint8(1)), viewErr(errors.KindAliased))
	_, err = TrySlice[uint8](v, 0, 16)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))
	_, err = TryBorrow[uint64](v, 0)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))

	// Derived views see the borrow
	_, err = TryRead[uint8](v.Index(6, 10), 0)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))
	_, err = TryRead[uint32](v.ReadOnly(), 4)
	assert.ErrorIs(t, err, viewErr(errors.KindAliased))

	// Disjoint ranges stay usable
	assert.Equal(t, uint32(0), Read[uint32](v, 0))
	Write(v, 8, uint32(5))
	other := BorrowAt[uint32](v, 12)
	other.Release()

	b.Release()
	assert.Equal(t, uint32(11), Read[uint32](v, 4))
	assert.Panics(t, func() { b.Value() })

	// Releasing twice is harmless
	b.Release()
}

func TestBorrow_IndependentViews(t *testing.T) {
	buf := alignedBytes(16)
	first := NewView(buf)
	b := BorrowAt[uint32](first, 4)
	defer b.Release()

	tests := []struct {
		name   string
		view   *View
		offset int
		detail string
	}{
		{name: "same buffer", view: NewView(buf), offset: 4, detail: "access [4, 6) overlaps exclusive borrow [4, 8)"},
		{name: "other registry", view: NewRegistry().View(buf), offset: 6, detail: "access [6, 8) overlaps exclusive borrow [4, 8)"},
		{name: "sub-slice", view: NewView(buf[4:]), offset: 0, detail: "access [0, 2) overlaps exclusive borrow [0, 4)"},
		{name: "sub-slice inside borrow", view: NewView(buf[6:]), offset: 0, detail: "access [0, 2) overlaps exclusive borrow [-2, 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TryGetMut[uint16](tt.view, tt.offset)
			require.ErrorIs(t, err, viewErr(errors.KindAliased))
			assert.Contains(t, err.Error(), tt.detail)

			_, err = TryBorrow[uint16](tt.view, tt.offset)
			assert.ErrorIs(t, err, viewErr(errors.KindAliased))
		})
	}

	// Bytes outside the borrow stay reachable from every view
	second := NewView(buf)
	Write(second, 8, uint32(3))
	assert.Equal(t, uint32(3), Read[uint32](first, 8))

	b.Release()
	p, err := TryGetMut[uint32](second, 4)
	require.NoError(t, err)
	*p = 9
	assert.Equal(t, uint32(9), Read[uint32](first, 4))
}

func TestBorrowSlice(t *testing.T) {
	v := NewView(alignedBytes(32))
	b := BorrowSlice[uint64](v, 8, 2)
	require.Equal(t, 2, b.Len())
	b.Slice()[1] = 99

	assert.Panics(t, func() { Read[uint64](v, 16) })
	b.Release()
	assert.Equal(t, uint64(99), Read[uint64](v, 16))

	_, err := TryBorrowSlice[uint64](NewReadOnlyView(alignedBytes(8)), 0, 1)
	assert.ErrorIs(t, err, viewErr(errors.KindReadOnly))

	_, err = TryBorrowSlice[uint64](v, 0, 5)
	assert.ErrorIs(t, err, viewErr(errors.KindOutOfBounds))

	empty := BorrowSlice[uint64](v, 0, 0)
	assert.Nil(t, empty.Value())
	assert.Equal(t, uint64(0), Read[uint64](v, 0), "empty borrows hold nothing")
	empty.Release()
}

func TestBorrow_Concurrent(t *testing.T) {
	const workers = 8
	v := NewView(alignedBytes(workers * 8))

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range 100 {
				b := BorrowAt[uint64](v, i*8)
				*b.Value() += uint64(n)
				b.Release()
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		assert.Equal(t, uint64(4950), Read[uint64](v, i*8))
	}
}
