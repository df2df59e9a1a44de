package testdata

import "unsafe"

const KeySize = 16

type PageID uint64

// @pod
type LeafElement struct {
	Key    [KeySize]byte `pod:"@0"`
	Offset uint16        `pod:"@16"`
	Length uint16        `pod:"@18"`
}

// LeafHeader starts every leaf page.
//
// @pod repr=packed size=16
type LeafHeader struct {
	NumKeys  uint16 `pod:"@0"`
	Flags    uint16 `pod:"@2"`
	NextPage uint32 `pod:"@4"`
	Parent   PageID `pod:"@8"`
}

// No annotation - should be skipped
type IgnoredType struct {
	Field uint32
}

// @pod
type Raw struct {
	Addr unsafe.Pointer
	Next *Raw
}
