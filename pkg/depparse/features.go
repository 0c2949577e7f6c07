package depparse

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/beamline/pkg/descriptor"
	"github.com/leapstack-labs/beamline/pkg/feature"
)

type (
	// Feature is a feature over parse configurations.
	Feature = feature.Feature[*Configuration]
	// Compiler compiles descriptors into parse configuration features.
	Compiler = feature.Compiler[*Configuration]
)

// addressed applies get to the token index produced by Address. An absent
// address makes the result absent.
type addressed[T any] struct {
	feature.Base[*Configuration]
	feature.Kinded[T]
	Address feature.Typed[*Configuration, int]
	get     func(cfg *Configuration, env *feature.Environment, index int) (feature.Result[T], error)
}

// Compute evaluates the address and reads the property.
func (f *addressed[T]) Compute(cfg *Configuration, env *feature.Environment) (feature.Result[T], error) {
	r, err := feature.Check(f.Address, cfg, env)
	if err != nil {
		return feature.Absent[T](), err
	}
	i, ok := r.Get()
	if !ok {
		return feature.Absent[T](), nil
	}
	return f.get(cfg, env, i)
}

// global reads a property of the whole configuration.
type global[T any] struct {
	feature.Base[*Configuration]
	feature.Kinded[T]
	get func(cfg *Configuration) T
}

// Compute reads the property.
func (f *global[T]) Compute(cfg *Configuration, _ *feature.Environment) (feature.Result[T], error) {
	return feature.Some(f.get(cfg)), nil
}

// distance is the absolute difference between two token indices.
type distance struct {
	feature.Base[*Configuration]
	feature.Kinded[int]
	From, To feature.Typed[*Configuration, int]
}

// Compute evaluates both addresses.
func (f *distance) Compute(cfg *Configuration, env *feature.Environment) (feature.Result[int], error) {
	a, err := feature.Check(f.From, cfg, env)
	if err != nil || !a.Present() {
		return feature.Absent[int](), err
	}
	b, err := feature.Check(f.To, cfg, env)
	if err != nil || !b.Present() {
		return feature.Absent[int](), err
	}
	d := a.Value() - b.Value()
	if d < 0 {
		d = -d
	}
	return feature.Some(d), nil
}

func present[T any](v T, ok bool) (feature.Result[T], error) {
	if !ok {
		return feature.Absent[T](), nil
	}
	return feature.Some(v), nil
}

func wordProperty(get func(tok Token) string) func(*Configuration, *feature.Environment, int) (feature.Result[string], error) {
	return func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[string], error) {
		tok, ok := cfg.Token(i)
		if !ok {
			return feature.Absent[string](), nil
		}
		v := get(tok)
		return present(v, v != "")
	}
}

func registerAddressed[T any](r *feature.Registry[*Configuration], name string, get func(*Configuration, *feature.Environment, int) (feature.Result[T], error)) {
	r.Register(name, 1, func(desc string, args []Feature) (Feature, error) {
		addr, err := feature.AsInt(args[0])
		if err != nil {
			return nil, err
		}
		return &addressed[T]{Base: feature.NewBase(desc, args[0]), Address: addr, get: get}, nil
	})
}

func registerGlobal[T any](r *feature.Registry[*Configuration], name string, get func(*Configuration) T) {
	r.Register(name, 0, func(desc string, _ []Feature) (Feature, error) {
		return &global[T]{Base: feature.NewBase[*Configuration](desc), get: get}, nil
	})
}

// NewRegistry returns a registry with the generic functions and the parse
// configuration features:
//
//	Stack(i), Buffer(i)          index of the i-th stack / buffer element
//	Head(a), LeftDep(a), RightDep(a)
//	Word(a), PosTag(a), Lemma(a), DepLabel(a)
//	Distance(a, b), DependentCount(a), IsPunctuation(a)
//	StackSize(), BufferSize()
//
// Addresses are token indices; a missing position is absent.
func NewRegistry() *feature.Registry[*Configuration] {
	r := feature.NewRegistry[*Configuration]()

	registerAddressed(r, "Stack", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		return present(cfg.Stack(i))
	})
	registerAddressed(r, "Buffer", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		return present(cfg.Buffer(i))
	})
	registerAddressed(r, "Head", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		return present(cfg.Governor(i))
	})
	registerAddressed(r, "LeftDep", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		deps := cfg.Dependents(i)
		return present(firstOr(deps), len(deps) > 0 && deps[0] < i)
	})
	registerAddressed(r, "RightDep", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		deps := cfg.Dependents(i)
		return present(lastOr(deps), len(deps) > 0 && deps[len(deps)-1] > i)
	})

	registerAddressed(r, "Word", wordProperty(func(t Token) string { return t.Form }))
	registerAddressed(r, "PosTag", wordProperty(func(t Token) string { return t.PosTag }))
	registerAddressed(r, "DepLabel", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[string], error) {
		return present(cfg.Label(i))
	})
	registerAddressed(r, "Lemma", func(cfg *Configuration, env *feature.Environment, i int) (feature.Result[string], error) {
		tok, ok := cfg.Token(i)
		if !ok || tok.IsRoot() {
			return feature.Absent[string](), nil
		}
		if tok.Lemma != "" {
			return feature.Some(tok.Lemma), nil
		}
		lex, err := env.Lexicon()
		if err != nil {
			return feature.Absent[string](), err
		}
		return present(lex.Lemma(tok.Form))
	})
	registerAddressed(r, "DependentCount", func(cfg *Configuration, _ *feature.Environment, i int) (feature.Result[int], error) {
		if _, ok := cfg.Token(i); !ok {
			return feature.Absent[int](), nil
		}
		return feature.Some(len(cfg.Dependents(i))), nil
	})
	registerAddressed(r, "IsPunctuation", func(cfg *Configuration, env *feature.Environment, i int) (feature.Result[bool], error) {
		tok, ok := cfg.Token(i)
		if !ok {
			return feature.Absent[bool](), nil
		}
		rules, err := env.Rules()
		if err != nil {
			return feature.Absent[bool](), err
		}
		return feature.Some(rules.IsPunctuation(tok.PosTag)), nil
	})

	r.Register("Distance", 2, func(desc string, args []Feature) (Feature, error) {
		from, err := feature.AsInt(args[0])
		if err != nil {
			return nil, err
		}
		to, err := feature.AsInt(args[1])
		if err != nil {
			return nil, err
		}
		return &distance{Base: feature.NewBase(desc, args...), From: from, To: to}, nil
	})

	registerGlobal(r, "StackSize", (*Configuration).StackSize)
	registerGlobal(r, "BufferSize", (*Configuration).BufferSize)

	return r
}

// NewCompiler returns a compiler over a fresh NewRegistry.
func NewCompiler(logger *slog.Logger) *Compiler {
	return feature.NewCompiler(NewRegistry(), logger)
}

// CompileFile parses and compiles a descriptor file.
func CompileFile(r io.Reader, logger *slog.Logger) ([]Feature, error) {
	ds, err := descriptor.ParseAll(r)
	if err != nil {
		return nil, err
	}
	return NewCompiler(logger).CompileAll(ds)
}

func firstOr(s []int) int {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

func lastOr(s []int) int {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
