package parser

import (
	"fmt"
	"go/ast"
	"go/build"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/alexhholmes/pod/errors"
	"github.com/alexhholmes/pod/internal/analyzer"
)

// TypeDecl is an annotated struct ready for validation
type TypeDecl struct {
	Anno *TypeAnnotation
	Decl *analyzer.Decl
	Pos  token.Position
}

// File holds everything extracted from one Go source file
type File struct {
	Path    string
	Package string
	Types   []*TypeDecl
	Aliases map[string]*analyzer.TypeExpr // named non-struct types declared in the file
	Errors  []*errors.Error               // malformed annotations and tags
}

// isFinalizer reports whether fn is Finalize with any signature or an
// io.Closer style Close() error
func isFinalizer(fn *ast.FuncDecl) bool {
	switch fn.Name.Name {
	case "Finalize":
		return true
	case "Close":
		if fn.Type.Params.NumFields() != 0 || fn.Type.Results.NumFields() != 1 {
			return false
		}
		ident, ok := fn.Type.Results.List[0].Type.(*ast.Ident)
		return ok && ident.Name == "error"
	default:
		return false
	}
}

// ParseFile parses a Go source file and extracts types with @pod annotations
func ParseFile(filename string) (*File, error) {
	return ParseSource(filename, nil)
}

// ParseSource parses src (or filename when src is nil) and extracts types
// with @pod annotations
func ParseSource(filename string, src any) (*File, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "parse "+filename)
	}
	return extract(fset, []string{filename}, []*ast.File{file})[0], nil
}

// ParseFiles parses the files of one package together. Constants, named
// types and finalizer methods declared in any of them are visible to the
// others. Every file must declare the same package.
func ParseFiles(filenames ...string) ([]*File, error) {
	if len(filenames) == 0 {
		return nil, errors.InvalidInput(errors.PhaseParse, "no Go files to parse")
	}
	fset := token.NewFileSet()
	files := make([]*ast.File, 0, len(filenames))
	for _, name := range filenames {
		file, err := parser.ParseFile(fset, name, nil, parser.ParseComments)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "parse "+name)
		}
		if len(files) > 0 && file.Name.Name != files[0].Name.Name {
			return nil, errors.New(errors.PhaseParse, errors.KindInvalidInput).
				Detail("%s declares package %s, %s declares package %s",
					name, file.Name.Name, filenames[0], files[0].Name.Name).
				Build()
		}
		files = append(files, file)
	}
	return extract(fset, filenames, files), nil
}

// ParseDir parses the buildable non-test Go files of dir as one package
func ParseDir(dir string) ([]*File, error) {
	names, err := packageFiles(dir)
	if err != nil {
		return nil, err
	}
	return ParseFiles(names...)
}

// ParsePackageOf parses filename together with the buildable non-test files
// of the same package in its directory. The first File is filename's.
func ParsePackageOf(filename string) ([]*File, error) {
	target, err := parser.ParseFile(token.NewFileSet(), filename, nil, parser.PackageClauseOnly)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "parse "+filename)
	}
	siblings, err := packageFiles(filepath.Dir(filename))
	if err != nil {
		return nil, err
	}

	names := []string{filename}
	for _, name := range siblings {
		if filepath.Base(name) == filepath.Base(filename) {
			continue
		}
		f, err := parser.ParseFile(token.NewFileSet(), name, nil, parser.PackageClauseOnly)
		if err != nil || f.Name.Name != target.Name.Name {
			continue
		}
		names = append(names, name)
	}
	return ParseFiles(names...)
}

// packageFiles lists the .go files of dir that the default build context
// would compile, excluding tests
func packageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidInput, err, "read "+dir)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		if ok, err := build.Default.MatchFile(dir, name); err != nil || !ok {
			continue
		}
		names = append(names, filepath.Join(dir, name))
	}
	return names, nil
}

// extract pulls annotated types out of files that form one package
func extract(fset *token.FileSet, paths []string, files []*ast.File) []*File {
	finalizers := make(map[string]bool)
	for _, file := range files {
		maps.Copy(finalizers, collectFinalizers(file))
	}
	consts := evalConsts(fset, files)

	out := make([]*File, len(files))
	for i, file := range files {
		x := &extractor{
			fset:       fset,
			finalizers: finalizers,
			consts:     consts,
			out: &File{
				Path:    paths[i],
				Package: file.Name.Name,
				Aliases: make(map[string]*analyzer.TypeExpr),
			},
		}
		x.extractTypes(file)
		out[i] = x.out
	}
	return out
}

type extractor struct {
	fset       *token.FileSet
	finalizers map[string]bool
	consts     *types.Info
	out        *File
}

// collectFinalizers returns the receiver type names that declare a finalizer method
func collectFinalizers(file *ast.File) map[string]bool {
	names := make(map[string]bool)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
			continue
		}
		if !isFinalizer(fn) {
			continue
		}
		if name := receiverName(fn.Recv.List[0].Type); name != "" {
			names[name] = true
		}
	}
	return names
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	default:
		return ""
	}
}

// evalConsts type-checks files on their own so constant expressions such as
// array lengths can be evaluated. Imports are not resolved; errors caused
// by that are ignored and only the expressions that still evaluate count.
func evalConsts(fset *token.FileSet, files []*ast.File) *types.Info {
	info := &types.Info{Types: make(map[ast.Expr]types.TypeAndValue)}
	conf := types.Config{
		Importer: importerFunc(func(path string) (*types.Package, error) {
			return nil, fmt.Errorf("package %s is not loaded", path)
		}),
		Error: func(error) {},
	}
	_, _ = conf.Check(files[0].Name.Name, fset, files, info)
	return info
}

type importerFunc func(path string) (*types.Package, error)

func (f importerFunc) Import(path string) (*types.Package, error) { return f(path) }

func (x *extractor) extractTypes(file *ast.File) {
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)
			if typeSpec.TypeParams != nil {
				continue // Generic types have no single layout
			}

			structType, ok := typeSpec.Type.(*ast.StructType)
			if !ok {
				// Named non-struct type: usable as a field through the alias table
				x.out.Aliases[typeSpec.Name.Name] = x.typeExpr(typeSpec.Type)
				continue
			}

			// Extract @pod annotation from the spec's doc, or the declaration's
			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}
			anno, err := extractAnnotation(doc)
			if err != nil {
				x.out.Errors = append(x.out.Errors, errors.New(errors.PhaseParse, errors.KindInvalidInput).
					Type(typeSpec.Name.Name).
					Detail("%s: %v", x.fset.Position(typeSpec.Pos()), err).
					Build())
				continue
			}
			if anno == nil {
				continue // No @pod, skip this type
			}

			name := typeSpec.Name.Name
			x.out.Types = append(x.out.Types, &TypeDecl{
				Anno: anno,
				Decl: &analyzer.Decl{
					Name:      name,
					Repr:      anno.Repr,
					Fields:    x.extractFields(name, structType, true),
					Finalizer: x.finalizers[name],
					Size:      anno.Size,
				},
				Pos: x.fset.Position(typeSpec.Pos()),
			})
		}
	}
}

func extractAnnotation(doc *ast.CommentGroup) (*TypeAnnotation, error) {
	if doc == nil {
		return nil, nil
	}

	// Extract comment text lines
	var lines []string
	for _, comment := range doc.List {
		lines = append(lines, CleanComment(comment.Text))
	}

	anno, found, err := FindAnnotation(lines)
	if !found {
		return nil, nil
	}
	return anno, err
}

func (x *extractor) extractFields(typeName string, structType *ast.StructType, tags bool) []analyzer.FieldDecl {
	var fields []analyzer.FieldDecl

	for _, field := range structType.Fields.List {
		offset := -1
		if tags && field.Tag != nil {
			tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
			if podTag, ok := tag.Lookup("pod"); ok {
				parsed, err := ParseTag(podTag)
				if err != nil {
					x.out.Errors = append(x.out.Errors, errors.New(errors.PhaseParse, errors.KindInvalidInput).
						Type(typeName).
						Path(fieldNames(field)...).
						Detail("%s: %v", x.fset.Position(field.Pos()), err).
						Build())
				} else {
					offset = parsed.Offset
				}
			}
		}

		expr := x.typeExpr(field.Type)
		names := fieldNames(field)
		for i, name := range names {
			f := analyzer.FieldDecl{Name: name, Type: expr, Offset: -1}
			if i == 0 {
				f.Offset = offset
			}
			fields = append(fields, f)
		}
	}

	return fields
}

// fieldNames returns the declared names, or the type name for embedded fields
func fieldNames(field *ast.Field) []string {
	if len(field.Names) == 0 {
		name := types.ExprString(field.Type)
		name = strings.TrimPrefix(name, "*")
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		return []string{name}
	}
	names := make([]string, len(field.Names))
	for i, n := range field.Names {
		names[i] = n.Name
	}
	return names
}

// typeExpr converts an AST type expression to the validator's model
func (x *extractor) typeExpr(expr ast.Expr) *analyzer.TypeExpr {
	switch t := expr.(type) {
	case *ast.Ident:
		switch {
		case t.Name == "bool":
			return analyzer.Bool()
		case analyzer.IsBasic(t.Name):
			return analyzer.Basic(t.Name)
		case t.Name == "string" || t.Name == "error" || t.Name == "any":
			return analyzer.Opaque(t.Name)
		default:
			named := analyzer.Named(t.Name)
			named.Finalizer = x.finalizers[t.Name]
			return named
		}

	case *ast.ParenExpr:
		return x.typeExpr(t.X)

	case *ast.ArrayType:
		if t.Len == nil {
			return analyzer.Opaque(types.ExprString(t))
		}
		n, ok := x.arrayLen(t.Len)
		if !ok {
			return analyzer.Unresolved(types.ExprString(t))
		}
		return analyzer.Array(n, x.typeExpr(t.Elt))

	case *ast.StarExpr:
		return analyzer.Pointer(x.typeExpr(t.X))

	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok && pkg.Name == "unsafe" && t.Sel.Name == "Pointer" {
			return analyzer.Pointer(nil)
		}
		// Types from other packages are unknown unless registered
		return analyzer.Named(types.ExprString(t))

	case *ast.StructType:
		return analyzer.Struct(x.extractFields("", t, false)...)

	case *ast.IndexExpr, *ast.IndexListExpr:
		return analyzer.Named(types.ExprString(t))

	default:
		// map, chan, func, interface
		return analyzer.Opaque(types.ExprString(expr))
	}
}

func (x *extractor) arrayLen(expr ast.Expr) (int, bool) {
	if tv, ok := x.consts.Types[expr]; ok && tv.Value != nil {
		if v := constant.ToInt(tv.Value); v.Kind() == constant.Int {
			n, exact := constant.Int64Val(v)
			return int(n), exact && n >= 0 && int64(int(n)) == n
		}
		return 0, false
	}

	// The checker records nothing for lengths it rejects outright
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT {
			return 0, false
		}
		n, err := strconv.ParseInt(e.Value, 0, 64)
		if err != nil || n < 0 || int64(int(n)) != n {
			return 0, false
		}
		return int(n), true
	case *ast.ParenExpr:
		return x.arrayLen(e.X)
	default:
		return 0, false
	}
}

// String summarizes a parsed file for diagnostics
func (f *File) String() string {
	names := make([]string, len(f.Types))
	for i, t := range f.Types {
		names[i] = t.Decl.Name
	}
	return fmt.Sprintf("%s (package %s): %s", f.Path, f.Package, strings.Join(names, ", "))
}
