package pod

import (
	"reflect"
	"unsafe"

	"github.com/alexhholmes/pod/errors"
)

// mustLayout returns T's layout or panics with the rejection
func mustLayout[T any](phase errors.Phase) *Layout {
	l, err := tryLayout[T](phase)
	if err != nil {
		panic(err)
	}
	return l
}

func tryLayout[T any](phase errors.Phase) (*Layout, *errors.Error) {
	return layoutIn[T](Default(), phase)
}

func layoutIn[T any](r *Registry, phase errors.Phase) (*Layout, *errors.Error) {
	t := reflect.TypeFor[T]()
	l, err := r.Layout(t)
	if err != nil {
		return nil, errors.NotPOD(phase, t.String(), err)
	}
	return l, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// Zeroed returns the all-zero value of T. It panics if T is not POD.
func Zeroed[T any]() T {
	mustLayout[T](errors.PhaseCast)
	var v T
	return v
}

// Bytes returns the bytes backing *p. The slice aliases p; writes through
// it change the value.
func Bytes[T any](p *T) []byte {
	l := mustLayout[T](errors.PhaseCast)
	if p == nil {
		panic(errors.NilPointer(errors.PhaseCast, typeName[T]()))
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), l.Size)
}

// SliceBytes returns the bytes backing s
func SliceBytes[T any](s []T) []byte {
	l := mustLayout[T](errors.PhaseCast)
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*l.Size)
}

// TryFromBytes reinterprets b as a *T sharing b's memory. b must be exactly
// the size of T and aligned for T.
func TryFromBytes[T any](b []byte) (*T, error) {
	l, err := tryLayout[T](errors.PhaseCast)
	if err != nil {
		return nil, err
	}
	if len(b) != l.Size {
		return nil, errors.LengthMismatch(errors.PhaseCast, l.Name, len(b), l.Size)
	}
	if l.Size == 0 {
		return new(T), nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(b))
	if uintptr(ptr)%uintptr(l.Align) != 0 {
		return nil, errors.MisalignedAddress(errors.PhaseCast, l.Name, uintptr(ptr), uintptr(l.Align))
	}
	return (*T)(ptr), nil
}

// FromBytes is like TryFromBytes but panics on a length or alignment mismatch
func FromBytes[T any](b []byte) *T {
	p, err := TryFromBytes[T](b)
	if err != nil {
		panic(err)
	}
	return p
}

// TryCastSlice reinterprets b as a []T. len(b) must be a multiple of the
// size of T and b must be aligned for T.
func TryCastSlice[T any](b []byte) ([]T, error) {
	l, err := tryLayout[T](errors.PhaseCast)
	if err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return nil, errors.New(errors.PhaseCast, errors.KindUnsupported).
			Type(l.Name).
			Detail("cannot cast bytes to a slice of a zero-sized type").
			Build()
	}
	if len(b)%l.Size != 0 {
		return nil, errors.LengthMismatch(errors.PhaseCast, l.Name, len(b), len(b)/l.Size*l.Size)
	}
	if len(b) == 0 {
		return nil, nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(b))
	if uintptr(ptr)%uintptr(l.Align) != 0 {
		return nil, errors.MisalignedAddress(errors.PhaseCast, l.Name, uintptr(ptr), uintptr(l.Align))
	}
	return unsafe.Slice((*T)(ptr), len(b)/l.Size), nil
}

// CastSlice is like TryCastSlice but panics on a length or alignment mismatch.
// It turns static byte tables into typed arrays:
//
//	//go:embed glyphs.bin
//	var glyphData []byte
//	var glyphs = pod.CastSlice[Glyph](glyphData)
func CastSlice[T any](b []byte) []T {
	s, err := TryCastSlice[T](b)
	if err != nil {
		panic(err)
	}
	return s
}

// TryTransmute copies the bytes of v into a value of U. Both types must be
// POD and of the same size.
func TryTransmute[U, T any](v T) (U, error) {
	var u U
	lt, err := tryLayout[T](errors.PhaseCast)
	if err != nil {
		return u, err
	}
	lu, err := tryLayout[U](errors.PhaseCast)
	if err != nil {
		return u, err
	}
	if lt.Size != lu.Size {
		return u, errors.LengthMismatch(errors.PhaseCast, lu.Name, lt.Size, lu.Size)
	}
	if lt.Size > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&u)), lu.Size), unsafe.Slice((*byte)(unsafe.Pointer(&v)), lt.Size))
	}
	return u, nil
}

// Transmute is like TryTransmute but panics when the sizes differ
func Transmute[U, T any](v T) U {
	u, err := TryTransmute[U](v)
	if err != nil {
		panic(err)
	}
	return u
}

// Equal compares *a and *b byte for byte, skipping padding
func Equal[T any](a, b *T) bool {
	l := mustLayout[T](errors.PhaseCast)
	if a == nil || b == nil {
		return a == b
	}
	ab, bb := Bytes(a), Bytes(b)

	start := 0
	for _, pad := range l.Padding {
		if string(ab[start:pad.Start]) != string(bb[start:pad.Start]) {
			return false
		}
		start = pad.End
	}
	return string(ab[start:]) == string(bb[start:])
}
