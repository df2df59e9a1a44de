package pod

import (
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/alexhholmes/pod/errors"
)

// ledger records the live exclusive borrows of the process by absolute
// address, so every view over the same memory observes them regardless of
// which view or registry created it.
type ledger struct {
	mu   sync.Mutex
	live atomic.Int32 // len(held), read without the lock on the fast path
	held []hold
	next uint64
}

type hold struct {
	id         uint64
	start, end uintptr
	typeName   string
	pin        unsafe.Pointer // keeps the borrowed memory alive until release
}

var borrows ledger

// check fails when [start, end) overlaps a live borrow. offset is the
// position of start inside the accessing view, used to report the conflict.
func (l *ledger) check(typeName string, start, end uintptr, offset int) *errors.Error {
	if l.live.Load() == 0 || start == end {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.overlapLocked(typeName, start, end, offset)
}

func (l *ledger) overlapLocked(typeName string, start, end uintptr, offset int) *errors.Error {
	for _, h := range l.held {
		if start < h.end && h.start < end {
			// Relative to the accessing view; may be negative
			held := offset + int(h.start-start)
			return errors.Aliased(typeName, offset, offset+int(end-start), held, held+int(h.end-h.start))
		}
	}
	return nil
}

// acquire records an exclusive borrow of [start, end)
func (l *ledger) acquire(typeName string, start, end uintptr, offset int, pin unsafe.Pointer) (uint64, *errors.Error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.overlapLocked(typeName, start, end, offset); err != nil {
		return 0, err
	}
	l.next++
	if start < end {
		l.held = append(l.held, hold{id: l.next, start: start, end: end, typeName: typeName, pin: pin})
		l.live.Store(int32(len(l.held)))
	}
	return l.next, nil
}

func (l *ledger) release(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = slices.DeleteFunc(l.held, func(h hold) bool { return h.id == id })
	l.live.Store(int32(len(l.held)))
}

// Borrow is a tracked exclusive reference into a view. While it is live,
// every access to an overlapping byte range through any view fails with
// an aliased error. Release ends the borrow; the reference must not be used
// afterwards.
type Borrow[T any] struct {
	elems    []T
	id       uint64
	released atomic.Bool
}

// Value returns the borrowed element, or the first one of a slice borrow
func (b *Borrow[T]) Value() *T {
	b.mustLive()
	if len(b.elems) == 0 {
		return nil
	}
	return &b.elems[0]
}

// Slice returns the borrowed elements
func (b *Borrow[T]) Slice() []T {
	b.mustLive()
	return b.elems
}

// Len returns the number of borrowed elements
func (b *Borrow[T]) Len() int {
	return len(b.elems)
}

// Release ends the borrow. Releasing twice is a no-op.
func (b *Borrow[T]) Release() {
	if b.released.Swap(true) {
		return
	}
	borrows.release(b.id)
	b.elems = nil
}

func (b *Borrow[T]) mustLive() {
	if b.released.Load() {
		panic(errors.New(errors.PhaseView, errors.KindInvalidInput).
			Type(typeName[T]()).
			Detail("borrow used after release").
			Build())
	}
}

// TryBorrow takes an exclusive borrow of the T at offset
func TryBorrow[T any](v *View, offset int) (*Borrow[T], error) {
	return TryBorrowSlice[T](v, offset, 1)
}

// BorrowAt is like TryBorrow but panics when the access is invalid
func BorrowAt[T any](v *View, offset int) *Borrow[T] {
	b, err := TryBorrow[T](v, offset)
	if err != nil {
		panic(err)
	}
	return b
}

// TryBorrowSlice takes an exclusive borrow of count consecutive T values
func TryBorrowSlice[T any](v *View, offset, count int) (*Borrow[T], error) {
	elems, start, end, err := sliceAt[T](v, offset, count, true)
	if err != nil {
		return nil, err
	}
	id, aerr := borrows.acquire(typeName[T](), start, end, offset, unsafe.Pointer(unsafe.SliceData(elems)))
	if aerr != nil {
		return nil, aerr
	}
	return &Borrow[T]{elems: elems, id: id}, nil
}

// BorrowSlice is like TryBorrowSlice but panics when the access is invalid
func BorrowSlice[T any](v *View, offset, count int) *Borrow[T] {
	b, err := TryBorrowSlice[T](v, offset, count)
	if err != nil {
		panic(err)
	}
	return b
}
