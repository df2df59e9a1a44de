package analyzer

import (
	"fmt"
	"math"
	"strings"
)

// TypeKind classifies a field type expression for the validator
type TypeKind int

const (
	BasicType   TypeKind = iota // fixed-width number: uint32, float64, uintptr...
	BoolType                    // bool: only 0 and 1 are legal bit patterns
	ArrayType                   // [N]T
	PointerType                 // *T, unsafe.Pointer
	NamedType                   // declared type, resolved through the registry
	StructType                  // anonymous struct literal type
	OpaqueType                  // slices, maps, strings, interfaces, chans, funcs
	UnresolvedType              // array whose length could not be evaluated
)

// TypeExpr is a language-neutral description of a field type. The parser
// builds it from Go source and the pod registry builds it from reflection.
type TypeExpr struct {
	Kind      TypeKind
	Name      string      // basic or named type name; source text for opaque types
	Len       int         // ArrayType
	Elem      *TypeExpr   // ArrayType, PointerType
	Fields    []FieldDecl // StructType
	Finalizer bool        // NamedType declares a finalizer method
}

func Basic(name string) *TypeExpr { return &TypeExpr{Kind: BasicType, Name: name} }

func Bool() *TypeExpr { return &TypeExpr{Kind: BoolType, Name: "bool"} }

func Array(n int, elem *TypeExpr) *TypeExpr { return &TypeExpr{Kind: ArrayType, Len: n, Elem: elem} }

func Pointer(elem *TypeExpr) *TypeExpr { return &TypeExpr{Kind: PointerType, Elem: elem} }

func Named(name string) *TypeExpr { return &TypeExpr{Kind: NamedType, Name: name} }

func Opaque(text string) *TypeExpr { return &TypeExpr{Kind: OpaqueType, Name: text} }

func Unresolved(text string) *TypeExpr { return &TypeExpr{Kind: UnresolvedType, Name: text} }

func Struct(fields ...FieldDecl) *TypeExpr { return &TypeExpr{Kind: StructType, Fields: fields} }

// String renders the expression the way it would appear in Go source
func (t *TypeExpr) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case ArrayType:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem)
	case PointerType:
		if t.Elem == nil {
			return "unsafe.Pointer"
		}
		return "*" + t.Elem.String()
	case StructType:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, f.Name+" "+f.Type.String())
		}
		return "struct{" + strings.Join(parts, "; ") + "}"
	default:
		return t.Name
	}
}

// Arch describes the target word size used to lay out platform-sized types
type Arch struct {
	PtrSize int
}

var (
	Arch64 = Arch{PtrSize: 8}
	Arch32 = Arch{PtrSize: 4}
)

// maxAlign caps the alignment of 8-byte values, matching gc on 32-bit targets
func (a Arch) maxAlign() int {
	if a.PtrSize == 0 {
		return 8
	}
	return a.PtrSize
}

func (a Arch) ptrSize() int {
	if a.PtrSize == 0 {
		return 8
	}
	return a.PtrSize
}

// MaxSize returns the largest object size accepted for the target. It
// stays below half of the host's int range so that offset arithmetic on
// two accepted sizes cannot wrap.
func (a Arch) MaxSize() int {
	if a.ptrSize() == 4 {
		return min(math.MaxInt>>1, math.MaxInt32)
	}
	return math.MaxInt >> 1
}

// SizeOf returns the size and alignment in bytes of a basic Go type.
// ok is false for names that are not fixed-width numbers.
func (a Arch) SizeOf(name string) (size, align int, ok bool) {
	switch name {
	case "uint8", "int8", "byte":
		return 1, 1, true
	case "uint16", "int16":
		return 2, 2, true
	case "uint32", "int32", "float32", "rune":
		return 4, 4, true
	case "uint64", "int64", "float64":
		return 8, min(8, a.maxAlign()), true
	case "complex64":
		return 8, 4, true
	case "complex128":
		return 16, min(8, a.maxAlign()), true
	case "int", "uint", "uintptr":
		return a.ptrSize(), a.ptrSize(), true
	}
	return 0, 0, false
}

// IsBasic reports whether name is a fixed-width number type
func IsBasic(name string) bool {
	_, _, ok := Arch64.SizeOf(name)
	return ok
}

// TypeRegistry tracks the layouts of types that already carry the POD
// marker, plus named aliases of basic types (e.g. type PageID uint64).
type TypeRegistry struct {
	types   map[string]*Layout   // type name → validated layout
	aliases map[string]*TypeExpr // alias → underlying type
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types:   make(map[string]*Layout),
		aliases: make(map[string]*TypeExpr),
	}
}

// Register adds a validated layout under its name
func (r *TypeRegistry) Register(l *Layout) {
	r.types[l.Name] = l
}

// RegisterAlias adds a named type whose underlying type is a plain expression
func (r *TypeRegistry) RegisterAlias(alias string, underlying *TypeExpr) {
	r.aliases[alias] = underlying
}

// Lookup returns the layout of a registered type
func (r *TypeRegistry) Lookup(name string) (*Layout, bool) {
	l, ok := r.types[name]
	return l, ok
}

// Resolve follows aliases for named types and returns the original
// expression when it is not an alias
func (r *TypeRegistry) Resolve(t *TypeExpr) *TypeExpr {
	seen := 0
	for t != nil && t.Kind == NamedType {
		underlying, ok := r.aliases[t.Name]
		if !ok || seen > len(r.aliases) {
			break
		}
		finalizer := t.Finalizer
		t = underlying
		if finalizer && !t.Finalizer {
			cp := *t
			cp.Finalizer = true
			t = &cp
		}
		seen++
	}
	return t
}
