package codegen

import (
	"fmt"
	"go/format"
	"strings"

	"github.com/alexhholmes/pod/errors"
	"github.com/alexhholmes/pod/internal/analyzer"
)

const (
	header    = "// Code generated by podgen. DO NOT EDIT.\n"
	importPod = "github.com/alexhholmes/pod"
)

// Generator emits the marker implementation for one accepted type
type Generator struct {
	decl    *analyzer.Decl
	layout  *analyzer.Layout
	relaxed bool // register in relaxed pointer mode
}

// NewGenerator creates a new code generator
func NewGenerator(accepted *Accepted, relaxed bool) *Generator {
	return &Generator{
		decl:    accepted.Decl,
		layout:  accepted.Layout,
		relaxed: relaxed && accepted.Layout.HasPointers,
	}
}

// Generate returns the generated code for this type (without package header/imports)
func (g *Generator) Generate() (string, error) {
	if g.decl == nil || g.layout == nil {
		return "", errors.InvalidInput(errors.PhaseGenerate, "generator has no accepted type")
	}

	var out strings.Builder
	out.WriteString(g.generateMarker())
	out.WriteString("\n")
	out.WriteString(g.generateAssertions())
	out.WriteString("\n")
	out.WriteString(g.generateOffsets())
	out.WriteString("\n")
	out.WriteString(g.generateZero())
	out.WriteString("\n")
	if !g.hasField("Bytes") {
		out.WriteString(g.generateBytes())
		out.WriteString("\n")
	}
	out.WriteString(g.generateFromBytes())
	return out.String(), nil
}

// Register returns the registration statement run from the file's init
func (g *Generator) Register() string {
	var opts []string
	if g.decl.Repr == analyzer.ReprPacked {
		opts = append(opts, "pod.Packed()")
	}
	if g.relaxed {
		opts = append(opts, "pod.RelaxedPointers()")
	}
	return fmt.Sprintf("pod.MustRegister[%s](%s)", g.decl.Name, strings.Join(opts, ", "))
}

func (g *Generator) hasField(name string) bool {
	for _, f := range g.decl.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// generateMarker generates the PlainOldData tag method
func (g *Generator) generateMarker() string {
	var code strings.Builder
	name := g.decl.Name

	code.WriteString(fmt.Sprintf("// PlainOldData marks %s as valid for every bit pattern of its %d bytes.\n", name, g.layout.Size))
	code.WriteString(fmt.Sprintf("func (%s) PlainOldData() {}\n", name))
	return code.String()
}

// generateAssertions pins size, alignment and field offsets at compile time.
// A negative constant array length does not compile, so each value is
// checked from both sides.
func (g *Generator) generateAssertions() string {
	var code strings.Builder
	name := g.decl.Name
	zero := name + "{}"

	code.WriteString(fmt.Sprintf("// Layout assertions for %s\n", name))
	code.WriteString("var (\n")
	code.WriteString(pinned(g.layout.Size, fmt.Sprintf("unsafe.Sizeof(%s)", zero)))
	code.WriteString(pinned(g.layout.Align, fmt.Sprintf("unsafe.Alignof(%s)", zero)))
	for _, f := range g.layout.Fields {
		if f.Name == "_" {
			continue
		}
		code.WriteString(pinned(f.Offset, fmt.Sprintf("unsafe.Offsetof(%s.%s)", zero, f.Name)))
	}
	code.WriteString(")\n")
	return code.String()
}

func pinned(want int, expr string) string {
	return fmt.Sprintf("\t_ [%d - %s]struct{}\n\t_ [%s - %d]struct{}\n", want, expr, expr, want)
}

// generateOffsets generates a struct value holding every field offset
func (g *Generator) generateOffsets() string {
	var code strings.Builder
	name := g.decl.Name

	code.WriteString(fmt.Sprintf("// %sOffsets holds the byte offset of each %s field\n", name, name))
	code.WriteString(fmt.Sprintf("var %sOffsets = struct {\n", name))
	for _, f := range g.layout.Fields {
		if f.Name == "_" {
			continue
		}
		code.WriteString(fmt.Sprintf("\t%s uintptr\n", f.Name))
	}
	code.WriteString("}{\n")
	for _, f := range g.layout.Fields {
		if f.Name == "_" {
			continue
		}
		code.WriteString(fmt.Sprintf("\t%s: %d,\n", f.Name, f.Offset))
	}
	code.WriteString("}\n")
	return code.String()
}

// generateZero generates the all-zero constructor
func (g *Generator) generateZero() string {
	var code strings.Builder
	name := g.decl.Name

	code.WriteString(fmt.Sprintf("// Zero%s returns a %s with every byte set to zero\n", name, name))
	code.WriteString(fmt.Sprintf("func Zero%s() %s {\n", name, name))
	code.WriteString(fmt.Sprintf("\treturn pod.Zeroed[%s]()\n", name))
	code.WriteString("}\n")
	return code.String()
}

// generateBytes generates the byte reinterpretation accessor
func (g *Generator) generateBytes() string {
	var code strings.Builder
	name := g.decl.Name

	code.WriteString(fmt.Sprintf("// Bytes returns the %d bytes backing p, sharing its memory\n", g.layout.Size))
	code.WriteString(fmt.Sprintf("func (p *%s) Bytes() []byte {\n", name))
	code.WriteString("\treturn pod.Bytes(p)\n")
	code.WriteString("}\n")
	return code.String()
}

// generateFromBytes generates the checked reinterpretation of a byte slice
func (g *Generator) generateFromBytes() string {
	var code strings.Builder
	name := g.decl.Name

	code.WriteString(fmt.Sprintf("// %sFromBytes reinterprets b as a %s. b must be exactly %d bytes\n", name, name, g.layout.Size))
	code.WriteString(fmt.Sprintf("// and %d-byte aligned.\n", g.layout.Align))
	code.WriteString(fmt.Sprintf("func %sFromBytes(b []byte) (*%s, error) {\n", name, name))
	code.WriteString(fmt.Sprintf("\treturn pod.TryFromBytes[%s](b)\n", name))
	code.WriteString("}\n")
	return code.String()
}

// GenerateFile renders the complete generated file for plan, formatted
func GenerateFile(plan *Plan) ([]byte, error) {
	if len(plan.Accepted) == 0 {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Detail("%s: no accepted types to generate", plan.Source).
			Build()
	}

	var out strings.Builder
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(fmt.Sprintf("package %s\n\n", plan.Package))
	out.WriteString("import (\n")
	out.WriteString("\t\"unsafe\"\n\n")
	out.WriteString(fmt.Sprintf("\t%q\n", importPod))
	out.WriteString(")\n\n")

	var registrations []string
	for _, accepted := range plan.Accepted {
		g := NewGenerator(accepted, plan.Options.RelaxedPointers)
		code, err := g.Generate()
		if err != nil {
			return nil, err
		}
		out.WriteString(code)
		out.WriteString("\n")
		registrations = append(registrations, g.Register())
	}

	// Dependencies register first; Accepted is in derivation order
	out.WriteString("func init() {\n")
	for _, r := range registrations {
		out.WriteString("\t" + r + "\n")
	}
	out.WriteString("}\n")

	src, err := format.Source([]byte(out.String()))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidInput, err,
			"format generated code for "+plan.Source)
	}
	return src, nil
}
