package example

// @pod
type LeafElement struct {
	Key    uint32 `pod:"@0"`
	Offset uint32 `pod:"@4"`
}

// @pod size=16
type LeafHeader struct {
	NumKeys  uint16 `pod:"@0"`
	Flags    uint16 `pod:"@2"`
	NextPage uint32 `pod:"@4"`
	PrevPage uint32 `pod:"@8"`
	Reserved uint32 `pod:"@12"`
}

// @pod repr=packed size=8
type LeafFooter struct {
	Magic   uint32
	Version uint32
}
