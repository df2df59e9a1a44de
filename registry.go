package pod

import (
	"io"
	"reflect"
	"sync"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alexhholmes/pod/errors"
	"github.com/alexhholmes/pod/internal/analyzer"
)

// Marker is implemented by types that request POD derivation. The method
// carries no behavior; podgen emits it for every accepted type.
type Marker interface {
	PlainOldData()
}

// Layout is the validated layout descriptor of a POD type
type Layout = analyzer.Layout

var (
	markerType = reflect.TypeFor[Marker]()
	closerType = reflect.TypeFor[io.Closer]()
)

// Option configures a registration
type Option func(*options)

type options struct {
	repr    analyzer.Repr
	relaxed bool
}

func defaultOptions() options {
	return options{repr: analyzer.ReprC}
}

// derivation is the state of one top-level derivation. Nested Marker
// types are derived lazily under its pointer mode, and their failures are
// kept so the outer rejection names the rule that actually failed.
type derivation struct {
	options
	causes []error
	seen   map[reflect.Type]bool
}

// RelaxedPointers accepts pointer and unsafe.Pointer fields as raw
// addresses. Values reinterpreted from bytes carry no provenance and the
// garbage collector does not trace addresses stored in byte buffers.
func RelaxedPointers() Option {
	return func(o *options) { o.relaxed = true }
}

// Packed requires the type to have no implicit padding
func Packed() Option {
	return func(o *options) { o.repr = analyzer.ReprPacked }
}

// Registry maps Go types to validated layouts. Lookups are memoized; a
// type's layout never changes once derived.
type Registry struct {
	mu      sync.RWMutex
	layouts map[reflect.Type]*Layout
	failed  map[reflect.Type]error
	names   map[string]reflect.Type
	types   *analyzer.TypeRegistry
	arch    analyzer.Arch
}

// NewRegistry creates an empty registry for the running architecture
func NewRegistry() *Registry {
	return &Registry{
		layouts: make(map[reflect.Type]*Layout),
		failed:  make(map[reflect.Type]error),
		names:   make(map[string]reflect.Type),
		types:   analyzer.NewTypeRegistry(),
		arch:    analyzer.Arch{PtrSize: int(unsafe.Sizeof(uintptr(0)))},
	}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package-level functions
func Default() *Registry {
	return defaultRegistry
}

// Register derives t with opts and records the layout. Registering an
// already known type validates it again under the new options and keeps
// the existing layout when that fails.
func (r *Registry) Register(t reflect.Type, opts ...Option) (*Layout, error) {
	if t == nil {
		return nil, errors.InvalidInput(errors.PhaseValidate, "type is nil")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.failed, t)
	return r.deriveLocked(t, o)
}

// Layout returns the layout of t, deriving it on first use when t is a
// basic type, an array, an anonymous struct, or implements Marker
func (r *Registry) Layout(t reflect.Type) (*Layout, error) {
	if t == nil {
		return nil, errors.InvalidInput(errors.PhaseValidate, "type is nil")
	}

	r.mu.RLock()
	l, ok := r.layouts[t]
	err := r.failed[t]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(t, false)
}

// IsPOD reports whether t carries the POD capability
func (r *Registry) IsPOD(t reflect.Type) bool {
	_, err := r.Layout(t)
	return err == nil
}

// resolveLocked returns the layout of t, deriving it lazily. A failure
// cached by a strict derivation is retried when relaxed is set.
func (r *Registry) resolveLocked(t reflect.Type, relaxed bool) (*Layout, error) {
	if l, ok := r.layouts[t]; ok {
		return l, nil
	}
	if err, ok := r.failed[t]; ok && !relaxed {
		return nil, err
	}
	if t.Kind() == reflect.Struct && t.Name() != "" && !implementsMarker(t) {
		// Not cached: an explicit Register may still follow
		return nil, errors.NotPOD(errors.PhaseValidate, t.String(), nil)
	}

	o := defaultOptions()
	o.relaxed = relaxed
	l, err := r.deriveLocked(t, o)
	if err != nil {
		r.failed[t] = err
		return nil, err
	}
	delete(r.failed, t)
	return l, nil
}

func (r *Registry) deriveLocked(t reflect.Type, o options) (*Layout, error) {
	name := t.String()
	if prev, ok := r.names[name]; ok && prev != t {
		return nil, errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Type(name).
			Detail("another type is already registered as %s (%s)", name, prev.PkgPath()).
			Build()
	}

	d := &derivation{options: o, seen: make(map[reflect.Type]bool)}
	decl := &analyzer.Decl{Name: name, Repr: o.repr}
	if t.Kind() == reflect.Struct {
		decl.Fields = r.fieldsLocked(t, d)
		decl.Finalizer = t.Name() != "" && hasFinalizer(t)
	} else {
		decl.Repr = analyzer.ReprC
		decl.Fields = []analyzer.FieldDecl{{Name: "value", Type: r.exprLocked(t, d), Offset: -1}}
	}

	a, err := analyzer.Analyze(decl, r.types, analyzer.Options{Arch: r.arch, AllowPointers: o.relaxed})
	if err != nil {
		Logger().Debug("pod derivation rejected",
			zap.String("type", name),
			zap.Int("violations", len(a.Diagnostics)),
			zap.Int("nested_failures", len(d.causes)),
			zap.Error(err))
		return nil, multierr.Combine(append([]error{err}, d.causes...)...)
	}

	l := a.Layout
	if t.Kind() != reflect.Struct {
		l.Fields = nil
	}
	if err := crossCheck(t, l); err != nil {
		return nil, err
	}

	r.types.Register(l)
	r.layouts[t] = l
	r.names[name] = t

	Logger().Debug("pod type registered",
		zap.String("type", name),
		zap.Int("size", l.Size),
		zap.Int("align", l.Align),
		zap.Int("padding", l.PaddingBytes()),
		zap.Bool("pointers", l.HasPointers))
	return l, nil
}

func (r *Registry) fieldsLocked(t reflect.Type, d *derivation) []analyzer.FieldDecl {
	fields := make([]analyzer.FieldDecl, t.NumField())
	for i := range fields {
		f := t.Field(i)
		fields[i] = analyzer.FieldDecl{Name: f.Name, Type: r.exprLocked(f.Type, d), Offset: -1}
	}
	return fields
}

// exprLocked describes t for the validator. Named struct types that
// implement Marker are derived on the way so aggregates compose bottom-up.
func (r *Registry) exprLocked(t reflect.Type, d *derivation) *analyzer.TypeExpr {
	var e *analyzer.TypeExpr
	switch t.Kind() {
	case reflect.Bool:
		e = analyzer.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		e = analyzer.Basic(t.Kind().String())
	case reflect.Array:
		e = analyzer.Array(t.Len(), r.exprLocked(t.Elem(), d))
	case reflect.Pointer:
		e = analyzer.Pointer(analyzer.Opaque(t.Elem().String()))
	case reflect.UnsafePointer:
		e = analyzer.Pointer(nil)
	case reflect.Struct:
		if t.Name() == "" {
			e = analyzer.Struct(r.fieldsLocked(t, d)...)
		} else {
			// A failed derivation leaves the name unregistered, which the
			// validator reports as field-not-pod; the nested cause is kept
			_, err := r.resolveLocked(t, d.relaxed)
			if err != nil && implementsMarker(t) && !d.seen[t] {
				d.causes = append(d.causes, err)
			}
			d.seen[t] = true
			e = analyzer.Named(t.String())
		}
	default:
		e = analyzer.Opaque(t.String())
	}

	if t.Name() != "" && hasFinalizer(t) {
		e.Finalizer = true
	}
	return e
}

// crossCheck compares the derived layout with the one the compiler chose
func crossCheck(t reflect.Type, l *Layout) error {
	mismatch := func(what string, derived, actual int) error {
		return errors.New(errors.PhaseValidate, errors.KindUnsupported).
			Type(t.String()).
			Detail("derived %s %d, compiler uses %d", what, derived, actual).
			Build()
	}

	if l.Size != int(t.Size()) {
		return mismatch("size", l.Size, int(t.Size()))
	}
	if l.Align != t.Align() {
		return mismatch("alignment", l.Align, t.Align())
	}
	if t.Kind() == reflect.Struct {
		for i, f := range l.Fields {
			if actual := int(t.Field(i).Offset); f.Offset != actual {
				return mismatch("offset of "+f.Name, f.Offset, actual)
			}
		}
	}
	return nil
}

func implementsMarker(t reflect.Type) bool {
	return t.Implements(markerType) || reflect.PointerTo(t).Implements(markerType)
}

// hasFinalizer reports whether t declares Finalize() or Close() error
func hasFinalizer(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	if _, ok := pt.MethodByName("Finalize"); ok {
		return true
	}
	return pt.Implements(closerType)
}

// Register derives T in the default registry
func Register[T any](opts ...Option) (*Layout, error) {
	return Default().Register(reflect.TypeFor[T](), opts...)
}

// MustRegister is like Register but panics when T is rejected. It is meant
// for init functions, typically the ones podgen emits.
func MustRegister[T any](opts ...Option) *Layout {
	l, err := Register[T](opts...)
	if err != nil {
		panic(err)
	}
	return l
}

// LayoutOf returns the layout of T from the default registry
func LayoutOf[T any]() (*Layout, error) {
	return Default().Layout(reflect.TypeFor[T]())
}

// IsPOD reports whether T carries the POD capability in the default registry
func IsPOD[T any]() bool {
	return Default().IsPOD(reflect.TypeFor[T]())
}
