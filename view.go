package pod

import (
	"math"
	"slices"
	"unsafe"

	"github.com/alexhholmes/pod/errors"
)

// View is a non-owning, bounds-checked accessor over a byte region. It
// must not outlive the region. Typed accessors are package functions
// because Go methods cannot take type parameters:
//
//	v := pod.NewView(buf)
//	pod.Write(v, 0, uint32(7))
//	n := pod.Read[uint32](v, 0)
//
// Get and Slice return references into the region. On a read-only view
// those references must only be read.
type View struct {
	buf      []byte
	readOnly bool
	registry *Registry
}

// View creates a mutable view over buf whose accessors consult r
func (r *Registry) View(buf []byte) *View {
	return &View{buf: buf, registry: r}
}

// ReadOnlyView creates a read-only view over buf whose accessors consult r
func (r *Registry) ReadOnlyView(buf []byte) *View {
	v := r.View(buf)
	v.readOnly = true
	return v
}

// NewView creates a mutable view over buf
func NewView(buf []byte) *View {
	return Default().View(buf)
}

// NewReadOnlyView creates a view over buf that rejects every mutating access
func NewReadOnlyView(buf []byte) *View {
	return Default().ReadOnlyView(buf)
}

// ViewOf creates a mutable view over the bytes of *p
func ViewOf[T any](p *T) *View {
	return NewView(Bytes(p))
}

// Len returns the length of the region in bytes
func (v *View) Len() int {
	return len(v.buf)
}

// IsReadOnly reports whether mutating accessors are rejected
func (v *View) IsReadOnly() bool {
	return v.readOnly
}

// Bytes returns the region. A read-only view returns a copy. The result is
// not tracked by the borrow ledger.
func (v *View) Bytes() []byte {
	if v.readOnly {
		return slices.Clone(v.buf)
	}
	return v.buf
}

// ReadOnly returns a read-only view of the same region
func (v *View) ReadOnly() *View {
	cp := *v
	cp.readOnly = true
	return &cp
}

// TryIndex returns the sub-view [start, end) with the parent's mutability
func (v *View) TryIndex(start, end int) (*View, error) {
	if start < 0 || end < start || end > len(v.buf) {
		return nil, errors.New(errors.PhaseView, errors.KindOutOfBounds).
			Detail("range [%d, %d) outside region of %d bytes", start, end, len(v.buf)).
			Value(start).
			Build()
	}
	cp := *v
	cp.buf = v.buf[start:end:end]
	return &cp, nil
}

// Index is like TryIndex but panics when the range is invalid
func (v *View) Index(start, end int) *View {
	sub, err := v.TryIndex(start, end)
	if err != nil {
		panic(err)
	}
	return sub
}

// access validates size bytes at offset and returns their address range
func (v *View) access(typeName string, offset, size, align int, mutable bool) (uintptr, uintptr, *errors.Error) {
	if mutable && v.readOnly {
		return 0, 0, errors.ReadOnly(typeName, offset)
	}
	if offset < 0 || size < 0 || offset > len(v.buf) || size > len(v.buf)-offset {
		return 0, 0, errors.OutOfBounds(errors.PhaseView, typeName, offset, size, len(v.buf))
	}
	start := uintptr(unsafe.Pointer(unsafe.SliceData(v.buf))) + uintptr(offset)
	end := start + uintptr(size)
	if align > 1 && size > 0 && start%uintptr(align) != 0 {
		return 0, 0, errors.Misaligned(errors.PhaseView, typeName, offset, uintptr(align))
	}
	if err := borrows.check(typeName, start, end, offset); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (v *View) ptr(offset int) unsafe.Pointer {
	return unsafe.Pointer(&v.buf[offset])
}

// byteLen returns count*size, failing on negative counts and overflow
func byteLen(typeName string, count, size int) (int, *errors.Error) {
	if count < 0 {
		return 0, errors.New(errors.PhaseView, errors.KindInvalidInput).
			Type(typeName).
			Detail("negative element count %d", count).
			Value(count).
			Build()
	}
	if size > 0 && count > math.MaxInt/size {
		return 0, errors.Overflow(errors.PhaseView, typeName, count, size)
	}
	return count * size, nil
}

func get[T any](v *View, offset int, mutable bool) (*T, *errors.Error) {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return nil, err
	}
	if _, _, err := v.access(l.Name, offset, l.Size, l.Align, mutable); err != nil {
		return nil, err
	}
	if l.Size == 0 {
		return new(T), nil
	}
	return (*T)(v.ptr(offset)), nil
}

// TryGet returns a reference to the T at offset. offset must be aligned
// for T and the value must lie inside the region.
func TryGet[T any](v *View, offset int) (*T, error) {
	p, err := get[T](v, offset, false)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get is like TryGet but panics when the access is invalid
func Get[T any](v *View, offset int) *T {
	p, err := get[T](v, offset, false)
	if err != nil {
		panic(err)
	}
	return p
}

// TryGetMut is like TryGet but requires a mutable view. The reference is
// not tracked; use BorrowAt when exclusivity must be enforced.
func TryGetMut[T any](v *View, offset int) (*T, error) {
	p, err := get[T](v, offset, true)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetMut is like TryGetMut but panics when the access is invalid
func GetMut[T any](v *View, offset int) *T {
	p, err := get[T](v, offset, true)
	if err != nil {
		panic(err)
	}
	return p
}

// TryRead copies the T at offset out of the region. offset need not be aligned.
func TryRead[T any](v *View, offset int) (T, error) {
	var out T
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return out, err
	}
	if _, _, err := v.access(l.Name, offset, l.Size, 1, false); err != nil {
		return out, err
	}
	if l.Size > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&out)), l.Size), v.buf[offset:offset+l.Size])
	}
	return out, nil
}

// Read is like TryRead but panics when the access is invalid
func Read[T any](v *View, offset int) T {
	out, err := TryRead[T](v, offset)
	if err != nil {
		panic(err)
	}
	return out
}

// TryReadInto copies len(dst) consecutive T values starting at offset into
// dst. offset need not be aligned.
func TryReadInto[T any](v *View, offset int, dst []T) error {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return err
	}
	n, err := byteLen(l.Name, len(dst), l.Size)
	if err != nil {
		return err
	}
	if _, _, err := v.access(l.Name, offset, n, 1, false); err != nil {
		return err
	}
	if n > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(dst))), n), v.buf[offset:offset+n])
	}
	return nil
}

// ReadInto is like TryReadInto but panics when the access is invalid
func ReadInto[T any](v *View, offset int, dst []T) {
	if err := TryReadInto(v, offset, dst); err != nil {
		panic(err)
	}
}

// TryWrite copies val into the region at offset. The view must be mutable;
// offset need not be aligned and no reference escapes.
func TryWrite[T any](v *View, offset int, val T) error {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return err
	}
	if _, _, err := v.access(l.Name, offset, l.Size, 1, true); err != nil {
		return err
	}
	if l.Size > 0 {
		copy(v.buf[offset:offset+l.Size], unsafe.Slice((*byte)(unsafe.Pointer(&val)), l.Size))
	}
	return nil
}

// Write is like TryWrite but panics when the access is invalid
func Write[T any](v *View, offset int, val T) {
	if err := TryWrite(v, offset, val); err != nil {
		panic(err)
	}
}

// TryWriteSlice copies every element of src into the region starting at offset
func TryWriteSlice[T any](v *View, offset int, src []T) error {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return err
	}
	n, err := byteLen(l.Name, len(src), l.Size)
	if err != nil {
		return err
	}
	if _, _, err := v.access(l.Name, offset, n, 1, true); err != nil {
		return err
	}
	if n > 0 {
		copy(v.buf[offset:offset+n], unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(src))), n))
	}
	return nil
}

// WriteSlice is like TryWriteSlice but panics when the access is invalid
func WriteSlice[T any](v *View, offset int, src []T) {
	if err := TryWriteSlice(v, offset, src); err != nil {
		panic(err)
	}
}

// sliceAt validates count aligned T values at offset and returns them with
// their address range
func sliceAt[T any](v *View, offset, count int, mutable bool) ([]T, uintptr, uintptr, *errors.Error) {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return nil, 0, 0, err
	}
	n, err := byteLen(l.Name, count, l.Size)
	if err != nil {
		return nil, 0, 0, err
	}
	start, end, err := v.access(l.Name, offset, n, l.Align, mutable)
	if err != nil {
		return nil, 0, 0, err
	}
	if n == 0 {
		return make([]T, count), start, end, nil
	}
	return unsafe.Slice((*T)(v.ptr(offset)), count), start, end, nil
}

// TrySlice returns count consecutive T values starting at offset
func TrySlice[T any](v *View, offset, count int) ([]T, error) {
	s, _, _, err := sliceAt[T](v, offset, count, false)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Slice is like TrySlice but panics when the access is invalid
func Slice[T any](v *View, offset, count int) []T {
	s, _, _, err := sliceAt[T](v, offset, count, false)
	if err != nil {
		panic(err)
	}
	return s
}

// TrySliceMut is like TrySlice but requires a mutable view
func TrySliceMut[T any](v *View, offset, count int) ([]T, error) {
	s, _, _, err := sliceAt[T](v, offset, count, true)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SliceMut is like TrySliceMut but panics when the access is invalid
func SliceMut[T any](v *View, offset, count int) []T {
	s, _, _, err := sliceAt[T](v, offset, count, true)
	if err != nil {
		panic(err)
	}
	return s
}

// TryTailLen returns how many whole T values fit between offset and the
// end of the region
func TryTailLen[T any](v *View, offset int) (int, error) {
	l, err := layoutIn[T](v.registry, errors.PhaseView)
	if err != nil {
		return 0, err
	}
	if l.Size == 0 || offset < 0 || offset > len(v.buf) {
		return 0, nil
	}
	return (len(v.buf) - offset) / l.Size, nil
}

// TailLen is like TryTailLen but panics when T is not POD
func TailLen[T any](v *View, offset int) int {
	n, err := TryTailLen[T](v, offset)
	if err != nil {
		panic(err)
	}
	return n
}
