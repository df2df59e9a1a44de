package codegen

import (
	"go.uber.org/multierr"

	"github.com/alexhholmes/pod/errors"
	"github.com/alexhholmes/pod/internal/analyzer"
	"github.com/alexhholmes/pod/internal/parser"
)

// Options controls derivation for a generated file
type Options struct {
	Arch            analyzer.Arch
	RelaxedPointers bool
}

// Accepted is a declaration that passed validation
type Accepted struct {
	Decl   *analyzer.Decl
	Layout *analyzer.Layout
}

// Plan is the outcome of validating every annotated type of one file.
// Accepted types are ordered so that field types declared in the same file
// come before the aggregates that contain them.
type Plan struct {
	Package  string
	Source   string
	Options  Options
	Accepted []*Accepted
	Rejected []*analyzer.Analysis
	Errors   []*errors.Error // annotation and tag errors from the parser
}

// NewPlan derives every annotated type in file. Types may reference each
// other in any declaration order; derivation repeats until no further type
// can be accepted, and whatever remains is rejected with full diagnostics.
func NewPlan(file *parser.File, opts Options) *Plan {
	return NewPackagePlan([]*parser.File{file}, opts)[0]
}

// NewPackagePlan derives the annotated types of every file of one package
// against a shared registry, so a field may use a type declared in any of
// them. It returns one plan per file, in the order of files.
func NewPackagePlan(files []*parser.File, opts Options) []*Plan {
	registry := analyzer.NewTypeRegistry()
	for _, file := range files {
		for name, expr := range file.Aliases {
			registry.RegisterAlias(name, expr)
		}
	}
	aopts := analyzer.Options{Arch: opts.Arch, AllowPointers: opts.RelaxedPointers}

	plans := make([]*Plan, len(files))
	type entry struct {
		td   *parser.TypeDecl
		plan *Plan
	}
	var pending []entry
	for i, file := range files {
		plans[i] = &Plan{
			Package: file.Package,
			Source:  file.Path,
			Options: opts,
			Errors:  file.Errors,
		}
		for _, td := range file.Types {
			pending = append(pending, entry{td: td, plan: plans[i]})
		}
	}

	for progress := true; progress && len(pending) > 0; {
		progress = false
		var next []entry
		for _, e := range pending {
			layout, err := analyzer.Derive(e.td.Decl, registry, aopts)
			if err != nil {
				next = append(next, e)
				continue
			}
			e.plan.Accepted = append(e.plan.Accepted, &Accepted{Decl: e.td.Decl, Layout: layout})
			progress = true
		}
		pending = next
	}

	for _, e := range pending {
		a, _ := analyzer.Analyze(e.td.Decl, registry, aopts)
		e.plan.Rejected = append(e.plan.Rejected, a)
	}
	return plans
}

// Err combines parse errors and every rejection diagnostic
func (p *Plan) Err() error {
	var err error
	for _, e := range p.Errors {
		err = multierr.Append(err, e)
	}
	for _, a := range p.Rejected {
		err = multierr.Append(err, a.Err())
	}
	return err
}

// Lookup returns the accepted entry for name
func (p *Plan) Lookup(name string) (*Accepted, bool) {
	for _, a := range p.Accepted {
		if a.Decl.Name == name {
			return a, true
		}
	}
	return nil, false
}
