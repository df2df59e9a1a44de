package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/alexhholmes/pod/errors"
)

// Repr is the declared layout mode of a composite type
type Repr int

const (
	ReprUnspecified Repr = iota // implementation-defined, always rejected
	ReprC                       // declaration order with natural alignment padding
	ReprPacked                  // declaration order, implicit padding forbidden
)

func (r Repr) String() string {
	switch r {
	case ReprC:
		return "c"
	case ReprPacked:
		return "packed"
	default:
		return "unspecified"
	}
}

// FieldDecl is one declared field of a candidate type
type FieldDecl struct {
	Name   string
	Type   *TypeExpr
	Offset int // asserted byte offset, -1 if none
}

// Decl is the static declaration of a candidate type
type Decl struct {
	Name      string
	Repr      Repr
	Fields    []FieldDecl
	Finalizer bool // the type itself declares a finalizer
	Size      int  // declared size, 0 if none
}

// Options controls validation
type Options struct {
	Arch Arch
	// AllowPointers accepts pointer fields as raw addresses. Values read
	// back through such fields carry no provenance or liveness guarantee.
	AllowPointers bool
}

// FieldLayout is the computed placement of one field
type FieldLayout struct {
	Name   string
	Type   string
	Offset int
	Size   int
	Align  int
}

// Span is a half-open byte range [Start, End)
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("[%d, %d)", s.Start, s.End) }

// Layout is the validated layout descriptor of a POD type
type Layout struct {
	Name        string
	Size        int
	Align       int
	Fields      []FieldLayout
	Padding     []Span // bytes excluded from value comparison
	HasPointers bool   // only possible in relaxed pointer mode
}

// Field returns the placement of the named top-level field
func (l *Layout) Field(name string) (FieldLayout, bool) {
	for _, f := range l.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldLayout{}, false
}

// Span returns the byte range occupied by the named top-level field
func (l *Layout) Span(name string) (Span, bool) {
	f, ok := l.Field(name)
	if !ok {
		return Span{}, false
	}
	return Span{Start: f.Offset, End: f.Offset + f.Size}, true
}

// PaddingBytes returns the total number of padding bytes
func (l *Layout) PaddingBytes() int {
	n := 0
	for _, s := range l.Padding {
		n += s.Len()
	}
	return n
}

// Analysis is the outcome of validating one declaration
type Analysis struct {
	TypeName    string
	Layout      *Layout // nil unless valid
	Diagnostics []*errors.Error
}

// IsValid returns true if the declaration passed every rule
func (a *Analysis) IsValid() bool {
	return len(a.Diagnostics) == 0
}

// Err combines all diagnostics into one error, nil when valid
func (a *Analysis) Err() error {
	var err error
	for _, d := range a.Diagnostics {
		err = multierr.Append(err, d)
	}
	return err
}

// Analyze validates decl and computes its layout. Every rule is evaluated
// for every field so the caller sees all violations at once.
func Analyze(decl *Decl, registry *TypeRegistry, opts Options) (*Analysis, error) {
	if decl == nil {
		return nil, errors.InvalidInput(errors.PhaseValidate, "declaration is nil")
	}
	if registry == nil {
		registry = NewTypeRegistry()
	}

	c := &checker{decl: decl, registry: registry, opts: opts}
	a := &Analysis{TypeName: decl.Name}

	// Phase 1: declaration-level rules
	if decl.Repr == ReprUnspecified {
		c.report(errors.KindLayoutMode, nil,
			"layout mode must be declared as repr=c or repr=packed")
	}
	if decl.Finalizer {
		c.report(errors.KindFinalizer, nil, "type declares a finalizer method")
	}

	// Phase 2: field rules and placement
	sl := c.layoutStruct(decl.Fields, nil)

	// Phase 3: layout assertions, only meaningful when every field is sized
	if sl.sized {
		c.checkAssertions(sl)
	}

	a.Diagnostics = c.diags
	if !a.IsValid() {
		return a, a.Err()
	}

	a.Layout = &Layout{
		Name:        decl.Name,
		Size:        sl.size,
		Align:       sl.align,
		Fields:      sl.fields,
		Padding:     sl.padding,
		HasPointers: sl.pointers,
	}
	return a, nil
}

// Derive analyzes decl and, when it passes, registers the layout so later
// declarations may use it as a field type
func Derive(decl *Decl, registry *TypeRegistry, opts Options) (*Layout, error) {
	a, err := Analyze(decl, registry, opts)
	if err != nil {
		return nil, err
	}
	registry.Register(a.Layout)
	return a.Layout, nil
}

// maxPaddingSpans bounds the padding spans recorded for one array
const maxPaddingSpans = 1 << 20

type checker struct {
	decl     *Decl
	registry *TypeRegistry
	opts     Options
	diags    []*errors.Error
}

func (c *checker) report(kind errors.Kind, path []string, format string, args ...any) {
	b := errors.New(errors.PhaseValidate, kind).Type(c.decl.Name).Detail(format, args...)
	if len(path) > 0 {
		b.Path(append([]string(nil), path...)...)
	}
	c.diags = append(c.diags, b.Build())
}

// placement is the computed shape of a type expression
type placement struct {
	size     int
	align    int
	padding  []Span
	pointers bool
	sized    bool // false when a rule failed and the size is unknown
}

type structLayout struct {
	placement
	fields   []FieldLayout
	implicit []Span // alignment gaps only, excluding blank fields
}

func (c *checker) layoutStruct(fields []FieldDecl, path []string) structLayout {
	sl := structLayout{placement: placement{align: 1, sized: true}}
	offset := 0

	for i, f := range fields {
		fpath := append(append([]string(nil), path...), f.Name)
		p := c.place(f.Type, fpath)
		if !p.sized {
			sl.sized = false
			continue
		}
		sl.pointers = sl.pointers || p.pointers

		aligned := alignUp(offset, p.align)
		if limit := c.opts.Arch.MaxSize(); p.size > limit-aligned {
			c.report(errors.KindOverflow, fpath,
				"%d bytes at offset %d exceed the %d-byte object limit", p.size, aligned, limit)
			sl.sized = false
			continue
		}
		if aligned > offset {
			gap := Span{Start: offset, End: aligned}
			sl.padding = addSpan(sl.padding, gap)
			sl.implicit = addSpan(sl.implicit, gap)
		}
		if f.Name == "_" {
			// Blank fields are explicit padding: Go's == ignores them too
			sl.padding = addSpan(sl.padding, Span{Start: aligned, End: aligned + p.size})
		} else {
			for _, s := range p.padding {
				sl.padding = addSpan(sl.padding, Span{Start: aligned + s.Start, End: aligned + s.End})
			}
		}

		sl.fields = append(sl.fields, FieldLayout{
			Name:   f.Name,
			Type:   f.Type.String(),
			Offset: aligned,
			Size:   p.size,
			Align:  p.align,
		})
		offset = aligned + p.size
		sl.align = max(sl.align, p.align)

		// gc pads a trailing zero-sized field so its address stays inside the object
		if i == len(fields)-1 && p.size == 0 && offset > 0 {
			gap := Span{Start: offset, End: offset + 1}
			sl.padding = addSpan(sl.padding, gap)
			sl.implicit = addSpan(sl.implicit, gap)
			offset++
		}
	}

	end := alignUp(offset, sl.align)
	if limit := c.opts.Arch.MaxSize(); sl.sized && end > limit {
		c.report(errors.KindOverflow, path, "size %d exceeds the %d-byte object limit", end, limit)
		sl.sized = false
	}
	if end > offset {
		gap := Span{Start: offset, End: end}
		sl.padding = addSpan(sl.padding, gap)
		sl.implicit = addSpan(sl.implicit, gap)
	}
	sl.size = end
	return sl
}

func (c *checker) place(t *TypeExpr, path []string) placement {
	if t == nil {
		c.report(errors.KindImplLayout, path, "missing field type")
		return placement{}
	}

	t = c.registry.Resolve(t)
	if t.Finalizer {
		c.report(errors.KindFinalizer, path, "field type %s declares a finalizer method", t)
	}

	switch t.Kind {
	case BasicType:
		size, align, ok := c.opts.Arch.SizeOf(t.Name)
		if !ok {
			return c.placeNamed(Named(t.Name), path)
		}
		return placement{size: size, align: align, sized: true}

	case BoolType:
		c.report(errors.KindBitPattern, path, "bool only admits the bit patterns 0 and 1")
		return placement{size: 1, align: 1, sized: true}

	case PointerType:
		if !c.opts.AllowPointers {
			c.report(errors.KindPointer, path,
				"pointer field %s requires relaxed pointer mode", t)
		}
		ps := c.opts.Arch.ptrSize()
		return placement{size: ps, align: ps, pointers: true, sized: true}

	case ArrayType:
		if t.Len < 0 {
			c.report(errors.KindImplLayout, path, "array length %d is negative", t.Len)
			return placement{}
		}
		elem := c.place(t.Elem, path)
		if !elem.sized {
			return placement{}
		}
		if limit := c.opts.Arch.MaxSize(); t.Len > 0 && elem.size > limit/t.Len {
			c.report(errors.KindOverflow, path,
				"%d elements of %d bytes exceed the %d-byte object limit", t.Len, elem.size, limit)
			return placement{}
		}
		if n := len(elem.padding) * t.Len; n > maxPaddingSpans {
			c.report(errors.KindUnsupported, path,
				"array repeats element padding %d times, at most %d padding spans are tracked", n, maxPaddingSpans)
			return placement{}
		}
		p := placement{
			size:     elem.size * t.Len,
			align:    elem.align,
			pointers: elem.pointers && t.Len > 0,
			sized:    true,
		}
		if elem.size > 0 {
			for i := 0; i < t.Len && len(elem.padding) > 0; i++ {
				base := i * elem.size
				for _, s := range elem.padding {
					p.padding = addSpan(p.padding, Span{Start: base + s.Start, End: base + s.End})
				}
			}
		}
		return p

	case StructType:
		sl := c.layoutStruct(t.Fields, path)
		return sl.placement

	case NamedType:
		return c.placeNamed(t, path)

	case UnresolvedType:
		c.report(errors.KindUnsupported, path,
			"array length of %s is not a constant that can be evaluated here", t)
		return placement{}

	default:
		c.report(errors.KindImplLayout, path,
			"%s has a runtime-chosen representation", t)
		return placement{}
	}
}

func (c *checker) placeNamed(t *TypeExpr, path []string) placement {
	l, ok := c.registry.Lookup(t.Name)
	if !ok {
		if t.Name == c.decl.Name {
			c.report(errors.KindNotPOD, path, "recursive aggregate %s cannot contain itself", t.Name)
		} else {
			c.report(errors.KindNotPOD, path, "type %s does not carry the POD marker", t.Name)
		}
		return placement{}
	}
	if l.HasPointers && !c.opts.AllowPointers {
		c.report(errors.KindPointer, path,
			"type %s carries pointer fields and requires relaxed pointer mode", t.Name)
	}
	return placement{
		size:     l.Size,
		align:    l.Align,
		padding:  l.Padding,
		pointers: l.HasPointers,
		sized:    true,
	}
}

func (c *checker) checkAssertions(sl structLayout) {
	if c.decl.Repr == ReprPacked && len(sl.implicit) > 0 {
		spans := make([]string, len(sl.implicit))
		for i, s := range sl.implicit {
			spans[i] = s.String()
		}
		c.report(errors.KindPackedPadding, nil,
			"packed layout has implicit padding at %s", strings.Join(spans, ", "))
	}

	for i, f := range c.decl.Fields {
		if f.Offset < 0 || i >= len(sl.fields) {
			continue
		}
		if got := sl.fields[i].Offset; got != f.Offset {
			c.report(errors.KindOffsetMismatch, []string{f.Name},
				"declared at offset %d, laid out at %d", f.Offset, got)
		}
	}

	if c.decl.Size > 0 && c.decl.Size != sl.size {
		c.report(errors.KindSizeMismatch, nil,
			"declared size %d, laid out size %d", c.decl.Size, sl.size)
	}
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// addSpan appends s, merging it with the previous span when they touch
func addSpan(spans []Span, s Span) []Span {
	if s.Len() <= 0 {
		return spans
	}
	if n := len(spans); n > 0 && spans[n-1].End >= s.Start && spans[n-1].Start <= s.Start {
		if s.End > spans[n-1].End {
			spans[n-1].End = s.End
		}
		return spans
	}
	spans = append(spans, s)
	if n := len(spans); n > 1 && spans[n-2].Start > s.Start {
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	}
	return spans
}
