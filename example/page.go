package example

import (
	"cmp"
	"slices"
	"unsafe"

	"github.com/alexhholmes/pod"
	"github.com/alexhholmes/pod/errors"
)

const (
	// PageSize is the size of every page buffer
	PageSize = 4096

	// LeafMagic identifies a formatted leaf page
	LeafMagic = 0x4641454c // "LEAF"

	leafVersion    = 1
	elementsOffset = int(unsafe.Sizeof(LeafHeader{}))
	elementSize    = int(unsafe.Sizeof(LeafElement{}))
	footerOffset   = PageSize - int(unsafe.Sizeof(LeafFooter{}))

	// LeafCapacity is the number of elements a leaf page holds
	LeafCapacity = (footerOffset - elementsOffset) / elementSize
)

// AllocatePage returns a zeroed page buffer aligned for every leaf type
func AllocatePage() []byte {
	return pod.SliceBytes(make([]uint64, PageSize/8))
}

// LeafPage is a B-tree leaf stored in place inside a page buffer:
//
//	[0, 16)      LeafHeader
//	[16, 4088)   LeafElement array sorted by key, Header.NumKeys in use
//	[4088, 4096) LeafFooter
//
// Nothing is copied when a page is opened; every accessor reads or writes
// the buffer directly.
type LeafPage struct {
	view *pod.View
}

// InitLeafPage formats buf as an empty leaf page
func InitLeafPage(buf []byte) (*LeafPage, error) {
	if len(buf) != PageSize {
		return nil, errors.LengthMismatch(errors.PhaseView, "LeafPage", len(buf), PageSize)
	}
	clear(buf)

	v := pod.NewView(buf)
	if _, err := pod.TryGet[LeafHeader](v, 0); err != nil {
		return nil, err
	}
	if err := pod.TryWrite(v, footerOffset, LeafFooter{Magic: LeafMagic, Version: leafVersion}); err != nil {
		return nil, err
	}
	return &LeafPage{view: v}, nil
}

// OpenLeafPage parses a formatted leaf page. A read-only page rejects
// every mutation.
func OpenLeafPage(buf []byte, readOnly bool) (*LeafPage, error) {
	if len(buf) != PageSize {
		return nil, errors.LengthMismatch(errors.PhaseView, "LeafPage", len(buf), PageSize)
	}

	v := pod.NewView(buf)
	if readOnly {
		v = pod.NewReadOnlyView(buf)
	}

	footer, err := pod.TryRead[LeafFooter](v, footerOffset)
	if err != nil {
		return nil, err
	}
	if footer.Magic != LeafMagic || footer.Version != leafVersion {
		return nil, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Type("LeafPage").
			Detail("not a leaf page (magic %#x, version %d)", footer.Magic, footer.Version).
			Build()
	}

	h, err := pod.TryGet[LeafHeader](v, 0)
	if err != nil {
		return nil, err
	}
	if int(h.NumKeys) > LeafCapacity {
		return nil, errors.New(errors.PhaseView, errors.KindOutOfBounds).
			Type("LeafPage").
			Path("NumKeys").
			Detail("%d keys exceed the capacity of %d", h.NumKeys, LeafCapacity).
			Value(h.NumKeys).
			Build()
	}
	return &LeafPage{view: v}, nil
}

// Header returns the page header. It must not be modified on a read-only page.
func (p *LeafPage) Header() *LeafHeader {
	return pod.Get[LeafHeader](p.view, 0)
}

// Len returns the number of elements in use
func (p *LeafPage) Len() int {
	return int(p.Header().NumKeys)
}

// Elements returns the elements in use, aliasing the page
func (p *LeafPage) Elements() []LeafElement {
	return pod.Slice[LeafElement](p.view, elementsOffset, p.Len())
}

// Element returns a copy of element i
func (p *LeafPage) Element(i int) (LeafElement, error) {
	if i < 0 || i >= p.Len() {
		return LeafElement{}, errors.OutOfBounds(errors.PhaseView, "LeafElement", i, 1, p.Len())
	}
	return pod.TryRead[LeafElement](p.view, elementsOffset+i*elementSize)
}

// Search returns the position of key and whether it is present
func (p *LeafPage) Search(key uint32) (int, bool) {
	return slices.BinarySearchFunc(p.Elements(), key, compareKey)
}

// Insert adds e in key order, replacing an element with the same key
func (p *LeafPage) Insert(e LeafElement) error {
	n := p.Len()
	count := min(n+1, LeafCapacity)

	b, err := pod.TryBorrowSlice[LeafElement](p.view, elementsOffset, count)
	if err != nil {
		return err
	}
	defer b.Release()

	elems := b.Slice()
	i, found := slices.BinarySearchFunc(elems[:n], e.Key, compareKey)
	if found {
		elems[i] = e
		return nil
	}
	if n == LeafCapacity {
		return errors.New(errors.PhaseView, errors.KindOutOfBounds).
			Type("LeafPage").
			Detail("page is full (%d elements)", LeafCapacity).
			Value(e.Key).
			Build()
	}

	copy(elems[i+1:], elems[i:n])
	elems[i] = e

	h, err := pod.TryGetMut[LeafHeader](p.view, 0)
	if err != nil {
		return err
	}
	h.NumKeys++
	return nil
}

// SetSiblings records the neighbouring leaf pages
func (p *LeafPage) SetSiblings(prev, next uint32) error {
	h, err := pod.TryGetMut[LeafHeader](p.view, 0)
	if err != nil {
		return err
	}
	h.PrevPage, h.NextPage = prev, next
	return nil
}

// Bytes returns the page buffer. A read-only page returns a copy.
func (p *LeafPage) Bytes() []byte {
	return p.view.Bytes()
}

func compareKey(e LeafElement, key uint32) int {
	return cmp.Compare(e.Key, key)
}
