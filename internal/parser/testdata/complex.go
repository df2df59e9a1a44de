package testdata

import "os"

// @pod
type Session struct {
	ID     uint64
	Name   string
	Active bool
	Tags   map[string]uint32
	File   *os.File
	Handle Handle
	Ext    struct {
		A, B uint16
	}
}

type Handle uint32

func (h Handle) Close() error { return nil }

// @pod
type Closable struct {
	Value uint32
}

func (c *Closable) Finalize() {}

// @pod repr=weird
type BadAnnotation struct {
	Value uint32
}

// @pod
type BadTag struct {
	Value uint32 `pod:"@x"`
}
