package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexhholmes/pod/errors"
	"github.com/alexhholmes/pod/internal/analyzer"
)

func findType(t *testing.T, f *File, name string) *TypeDecl {
	t.Helper()
	for _, td := range f.Types {
		if td.Decl.Name == name {
			return td
		}
	}
	t.Fatalf("type %s not found in %s", name, f)
	return nil
}

func TestParseFile_Simple(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "simple.go"))
	require.NoError(t, err)

	assert.Equal(t, "testdata", f.Package)
	assert.Empty(t, f.Errors)
	require.Len(t, f.Types, 3, "IgnoredType has no annotation")

	// Check LeafElement
	elem := findType(t, f, "LeafElement")
	assert.Equal(t, analyzer.ReprC, elem.Decl.Repr)
	assert.Zero(t, elem.Decl.Size)
	require.Len(t, elem.Decl.Fields, 3)

	key := elem.Decl.Fields[0]
	assert.Equal(t, "Key", key.Name)
	assert.Equal(t, 0, key.Offset)
	assert.Equal(t, analyzer.ArrayType, key.Type.Kind)
	assert.Equal(t, 16, key.Type.Len, "array length resolved through KeySize")
	assert.Equal(t, "[16]byte", key.Type.String())

	assert.Equal(t, 16, elem.Decl.Fields[1].Offset)
	assert.Equal(t, 18, elem.Decl.Fields[2].Offset)

	// Check LeafHeader
	header := findType(t, f, "LeafHeader")
	assert.Equal(t, analyzer.ReprPacked, header.Decl.Repr)
	assert.Equal(t, 16, header.Decl.Size)
	assert.Equal(t, analyzer.NamedType, header.Decl.Fields[3].Type.Kind)
	assert.Equal(t, "PageID", header.Decl.Fields[3].Type.Name)
	assert.Positive(t, header.Pos.Line)

	// Check Raw
	raw := findType(t, f, "Raw")
	assert.Equal(t, "unsafe.Pointer", raw.Decl.Fields[0].Type.String())
	assert.Equal(t, "*Raw", raw.Decl.Fields[1].Type.String())

	require.Contains(t, f.Aliases, "PageID")
	assert.Equal(t, analyzer.BasicType, f.Aliases["PageID"].Kind)
	assert.Contains(t, f.String(), "LeafElement, LeafHeader, Raw")
}

func TestParseFile_Complex(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "complex.go"))
	require.NoError(t, err)

	require.Len(t, f.Types, 3)
	require.Len(t, f.Errors, 2, "bad annotation and bad tag")
	assert.Equal(t, "BadAnnotation", f.Errors[0].Type)
	assert.Equal(t, "BadTag", f.Errors[1].Type)
	assert.Equal(t, []string{"Value"}, f.Errors[1].Path)
	for _, e := range f.Errors {
		assert.ErrorIs(t, e, errors.New(errors.PhaseParse, errors.KindInvalidInput).Build())
	}

	session := findType(t, f, "Session")
	fields := session.Decl.Fields
	require.Len(t, fields, 7)
	assert.Equal(t, analyzer.OpaqueType, fields[1].Type.Kind)
	assert.Equal(t, analyzer.BoolType, fields[2].Type.Kind)
	assert.Equal(t, analyzer.OpaqueType, fields[3].Type.Kind)
	assert.Equal(t, "*os.File", fields[4].Type.String())
	assert.True(t, fields[5].Type.Finalizer, "Handle declares Close")
	assert.Equal(t, analyzer.StructType, fields[6].Type.Kind)
	assert.Len(t, fields[6].Type.Fields, 2)

	assert.True(t, findType(t, f, "Closable").Decl.Finalizer)
	assert.False(t, session.Decl.Finalizer)

	// The malformed tag leaves the field unasserted
	assert.Equal(t, -1, findType(t, f, "BadTag").Decl.Fields[0].Offset)
}

func TestParseSource_Derive(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "simple.go"))
	require.NoError(t, err)

	registry := analyzer.NewTypeRegistry()
	for name, expr := range f.Aliases {
		registry.RegisterAlias(name, expr)
	}
	opts := analyzer.Options{Arch: analyzer.Arch64}

	elem, err := analyzer.Derive(findType(t, f, "LeafElement").Decl, registry, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, elem.Size)
	assert.Equal(t, 2, elem.Align)

	header, err := analyzer.Derive(findType(t, f, "LeafHeader").Decl, registry, opts)
	require.NoError(t, err)
	assert.Equal(t, 16, header.Size)
	assert.Empty(t, header.Padding)

	_, err = analyzer.Derive(findType(t, f, "Raw").Decl, registry, opts)
	assert.Error(t, err, "pointers need relaxed mode")
}

func TestParseSource_Complex_Rejected(t *testing.T) {
	f, err := ParseFile(filepath.Join("testdata", "complex.go"))
	require.NoError(t, err)

	registry := analyzer.NewTypeRegistry()
	for name, expr := range f.Aliases {
		registry.RegisterAlias(name, expr)
	}

	a, err := analyzer.Analyze(findType(t, f, "Session").Decl, registry, analyzer.Options{Arch: analyzer.Arch64})
	require.Error(t, err)

	kinds := make(map[errors.Kind][]string)
	for _, d := range a.Diagnostics {
		kinds[d.Kind] = append(kinds[d.Kind], d.Path[0])
	}
	assert.ElementsMatch(t, []string{"Name", "Tags"}, kinds[errors.KindImplLayout])
	assert.Equal(t, []string{"Active"}, kinds[errors.KindBitPattern])
	assert.Equal(t, []string{"File"}, kinds[errors.KindPointer])
	assert.Equal(t, []string{"Handle"}, kinds[errors.KindFinalizer])
}

func TestParseSource_Inline(t *testing.T) {
	src := `package inline

// @pod
type Point struct {
	X, Y int32
}

type (
	// @pod repr=packed
	Pair struct {
		A uint8
		B uint8
	}

	Other struct{ Z int }
)

// @pod
type Box[T any] struct {
	V T
}
`
	f, err := ParseSource("inline.go", src)
	require.NoError(t, err)
	require.Len(t, f.Types, 2, "generic types are skipped")

	point := findType(t, f, "Point")
	require.Len(t, point.Decl.Fields, 2)
	assert.Equal(t, "X", point.Decl.Fields[0].Name)
	assert.Equal(t, "Y", point.Decl.Fields[1].Name)

	pair := findType(t, f, "Pair")
	assert.Equal(t, analyzer.ReprPacked, pair.Decl.Repr)
}

func TestParseSource_SyntaxError(t *testing.T) {
	_, err := ParseSource("broken.go", "package broken\ntype X struct {")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.PhaseParse, errors.KindInvalidInput).Build())
}

func TestParseSource_ConstantArrayLengths(t *testing.T) {
	src := `package pages

import "example.com/external"

const (
	PageSize = 4 * 1024
	slotBits = 3
	Slots    = 1 << slotBits
)

const (
	KindA = iota
	KindB
	KindC
)

// @pod
type Page struct {
	Data  [PageSize - 8]byte
	Slots [Slots]uint16
	Kinds [KindC + 1]uint8
	Huge  [2305843009213693952]uint64
	Ext   [external.Size]byte
}
`
	f, err := ParseSource("pages.go", src)
	require.NoError(t, err)

	fields := findType(t, f, "Page").Decl.Fields
	require.Len(t, fields, 5)
	assert.Equal(t, analyzer.Array(4088, analyzer.Basic("byte")), fields[0].Type)
	assert.Equal(t, analyzer.Array(8, analyzer.Basic("uint16")), fields[1].Type)
	assert.Equal(t, analyzer.Array(3, analyzer.Basic("uint8")), fields[2].Type)
	assert.Equal(t, analyzer.Array(1<<61, analyzer.Basic("uint64")), fields[3].Type)
	assert.Equal(t, analyzer.UnresolvedType, fields[4].Type.Kind)

	a, err := analyzer.Analyze(findType(t, f, "Page").Decl, nil, analyzer.Options{Arch: analyzer.Arch64})
	require.Error(t, err)
	byField := make(map[string]errors.Kind)
	for _, d := range a.Diagnostics {
		byField[d.Path[0]] = d.Kind
	}
	assert.Equal(t, map[string]errors.Kind{
		"Huge": errors.KindOverflow,
		"Ext":  errors.KindUnsupported,
	}, byField)
}

func TestParseSource_FinalizerSignatures(t *testing.T) {
	src := `package handles

type Closer uint32

func (Closer) Close() error { return nil }

type Shutter uint32

func (*Shutter) Close() {}

type Ender uint32

func (Ender) Finalize(force bool) {}

// @pod
type Handles struct {
	C Closer
	S Shutter
	E Ender
}
`
	f, err := ParseSource("handles.go", src)
	require.NoError(t, err)

	fields := findType(t, f, "Handles").Decl.Fields
	assert.True(t, fields[0].Type.Finalizer, "Close() error")
	assert.False(t, fields[1].Type.Finalizer, "Close() without error result")
	assert.True(t, fields[2].Type.Finalizer, "Finalize with any signature")
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestParseDir_SharesDeclarations(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"record.go": `package store

const Width = 2 * 4

// @pod
type Record struct {
	Data [Width]byte
	Hdr  Header
}
`,
		"header.go": `package store

// @pod
type Header struct {
	N uint32
}

func (*Header) Close() error { return nil }
`,
		"header_test.go": "package store_test\n",
		"gen.go":         "//go:build ignore\n\npackage main\n",
	})

	files, err := ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2, "tests and ignored files are skipped")

	byName := make(map[string]*File)
	for _, f := range files {
		assert.Equal(t, "store", f.Package)
		byName[filepath.Base(f.Path)] = f
	}
	require.Contains(t, byName, "record.go")
	require.Contains(t, byName, "header.go")

	rec := findType(t, byName["record.go"], "Record")
	assert.Equal(t, 8, rec.Decl.Fields[0].Type.Len, "constant from the package resolves")
	assert.True(t, rec.Decl.Fields[1].Type.Finalizer, "method from another file is seen")
	assert.True(t, findType(t, byName["header.go"], "Header").Decl.Finalizer)

	// The named file comes first and other packages in the directory are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tool.go"), []byte("package tool\n"), 0o644))
	files, err = ParsePackageOf(filepath.Join(dir, "record.go"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "record.go"), files[0].Path)

	_, err = ParseDir(dir)
	assert.ErrorIs(t, err, errors.New(errors.PhaseParse, errors.KindInvalidInput).Build())

	_, err = ParseFiles()
	assert.ErrorIs(t, err, errors.New(errors.PhaseParse, errors.KindInvalidInput).Build())
}
