// Package pod marks types as plain old data and gives bounds-checked typed
// access to raw byte buffers.
//
// A type is plain old data (POD) when every byte sequence of its size, at
// its alignment, is a legal value of the type and the type needs no
// finalization. Fixed-width numbers and arrays of POD types are POD by
// definition. Struct types become POD through derivation: the registry runs
// the structural checks of the validator against the type's reflected
// layout and memoizes the result.
//
// Types request derivation either explicitly:
//
//	pod.MustRegister[LeafHeader](pod.Packed())
//
// or by implementing Marker, in which case derivation happens lazily on
// first use. The podgen tool emits both, together with compile-time size and
// offset assertions.
//
// A View wraps a byte region and reads and writes POD values at byte offsets:
//
//	v := pod.NewView(page)
//	hdr := pod.Get[LeafHeader](v, 0)
//	pod.Write(v, 16, elem)
//	keys := pod.Slice[uint32](v, 64, int(hdr.NumKeys))
//
// Out-of-bounds, misaligned or overflowing accesses are contract violations
// and panic with an *errors.Error. Every panicking accessor has a Try twin
// returning the error instead.
//
// # Relaxed pointer mode
//
// Pointer fields are rejected unless a type is registered with
// RelaxedPointers. In that mode an address is treated as an ordinary word:
// values produced from bytes carry no provenance, and the garbage collector
// does not scan byte buffers, so nothing keeps the referenced memory alive.
// Zeroed still works because nil is the all-zero pattern.
package pod
