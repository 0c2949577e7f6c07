package feature

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Variadic is the arity of functions accepting any number of arguments
// above their minimum.
const Variadic = -1

// BuildFunc constructs a feature from compiled arguments. It returns an
// error when an argument has the wrong kind.
type BuildFunc[C Context] func(name string, args []Feature[C]) (Feature[C], error)

type entry[C Context] struct {
	arity   int
	minArgs int
	build   BuildFunc[C]
}

// UnknownFunctionError is returned when no function matches a call.
type UnknownFunctionError struct {
	Name    string
	Arity   int
	Arities []string // arities available under Name, empty when unknown
}

func (e *UnknownFunctionError) Error() string {
	if len(e.Arities) == 0 {
		return fmt.Sprintf("unknown function %s", e.Name)
	}
	return fmt.Sprintf("function %s does not take %d arguments (accepts %s)", e.Name, e.Arity, strings.Join(e.Arities, ", "))
}

// Registry maps function names and arities to feature constructors. It is
// filled once at start-up and read concurrently afterwards.
type Registry[C Context] struct {
	mu    sync.RWMutex
	funcs map[string][]entry[C]
}

// NewRegistry creates a registry holding the built-in functions.
func NewRegistry[C Context]() *Registry[C] {
	r := &Registry[C]{funcs: make(map[string][]entry[C])}
	registerBuiltins(r)
	return r
}

// Register adds a function with a fixed arity. Registering the same name
// and arity twice replaces the previous constructor.
func (r *Registry[C]) Register(name string, arity int, build BuildFunc[C]) {
	r.add(name, entry[C]{arity: arity, build: build})
}

// RegisterVariadic adds a function accepting minArgs or more arguments.
func (r *Registry[C]) RegisterVariadic(name string, minArgs int, build BuildFunc[C]) {
	r.add(name, entry[C]{arity: Variadic, minArgs: minArgs, build: build})
}

func (r *Registry[C]) add(name string, e entry[C]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.funcs[name]
	for i := range entries {
		if entries[i].arity == e.arity {
			entries[i] = e
			return
		}
	}
	r.funcs[name] = append(entries, e)
}

// Has reports whether any function is registered under name.
func (r *Registry[C]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Lookup returns the constructor for name called with arity arguments.
func (r *Registry[C]) Lookup(name string, arity int) (BuildFunc[C], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, ok := r.funcs[name]
	if !ok {
		return nil, &UnknownFunctionError{Name: name, Arity: arity}
	}

	var variadic *entry[C]
	arities := make([]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.arity == arity {
			return e.build, nil
		}
		if e.arity == Variadic {
			if arity >= e.minArgs {
				variadic = e
			}
			arities = append(arities, strconv.Itoa(e.minArgs)+"+")
			continue
		}
		arities = append(arities, strconv.Itoa(e.arity))
	}
	if variadic != nil {
		return variadic.build, nil
	}
	sort.Strings(arities)
	return nil, &UnknownFunctionError{Name: name, Arity: arity, Arities: arities}
}

// Names returns the registered function names in sorted order.
func (r *Registry[C]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func registerBuiltins[C Context](r *Registry[C]) {
	r.Register("NullIf", 2, buildNullIf[C])
	r.Register("IfThenElse", 3, buildIfThenElse[C])
	r.Register("IsNull", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		return NewIsNull(name, args[0]), nil
	})
	r.Register("Not", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		b, err := AsBool(args[0])
		if err != nil {
			return nil, err
		}
		return NewNot(name, b), nil
	})
	r.Register("OnlyTrue", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		b, err := AsBool(args[0])
		if err != nil {
			return nil, err
		}
		return NewOnlyTrue(name, b), nil
	})
	r.RegisterVariadic("And", 2, func(name string, args []Feature[C]) (Feature[C], error) {
		ops, err := convertAll(args, AsBool[C])
		if err != nil {
			return nil, err
		}
		return NewAnd(name, ops...), nil
	})
	r.RegisterVariadic("Or", 2, func(name string, args []Feature[C]) (Feature[C], error) {
		ops, err := convertAll(args, AsBool[C])
		if err != nil {
			return nil, err
		}
		return NewOr(name, ops...), nil
	})
	r.RegisterVariadic("Concat", 2, func(name string, args []Feature[C]) (Feature[C], error) {
		ops, err := convertAll(args, AsString[C])
		if err != nil {
			return nil, err
		}
		return NewConcat(name, ops...), nil
	})
	r.Register("ToString", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		return NewToString(name, args[0]), nil
	})
	r.Register("Lower", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		s, err := AsString(args[0])
		if err != nil {
			return nil, err
		}
		return NewLower(name, s), nil
	})
	r.Register("Round", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		d, err := AsDouble(args[0])
		if err != nil {
			return nil, err
		}
		return NewRound(name, d), nil
	})
	r.Register("Inverse", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		d, err := AsDouble(args[0])
		if err != nil {
			return nil, err
		}
		return NewInverse(name, d), nil
	})
	r.Register("Abs", 1, func(name string, args []Feature[C]) (Feature[C], error) {
		if i, ok := args[0].(Typed[C, int]); ok {
			return NewAbs(name, i), nil
		}
		d, err := AsDouble(args[0])
		if err != nil {
			return nil, err
		}
		return NewAbs(name, d), nil
	})
	r.Register("Min", 2, numericPair(NewMin[C, int], NewMin[C, float64]))
	r.Register("Max", 2, numericPair(NewMax[C, int], NewMax[C, float64]))
	r.Register("LessThan", 2, numericPair(NewLessThan[C, int], NewLessThan[C, float64]))
	r.Register("GreaterThan", 2, numericPair(NewGreaterThan[C, int], NewGreaterThan[C, float64]))
}

func convertAll[C Context, T any](args []Feature[C], conv func(Feature[C]) (Typed[C, T], error)) ([]Typed[C, T], error) {
	out := make([]Typed[C, T], len(args))
	for i, a := range args {
		t, err := conv(a)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// numericPair builds an integer variant when both arguments are integers
// and a double variant otherwise.
func numericPair[C Context, I, D Feature[C]](
	ints func(string, Typed[C, int], Typed[C, int]) I,
	doubles func(string, Typed[C, float64], Typed[C, float64]) D,
) BuildFunc[C] {
	return func(name string, args []Feature[C]) (Feature[C], error) {
		a, aok := args[0].(Typed[C, int])
		b, bok := args[1].(Typed[C, int])
		if aok && bok {
			return ints(name, a, b), nil
		}
		x, err := AsDouble(args[0])
		if err != nil {
			return nil, err
		}
		y, err := AsDouble(args[1])
		if err != nil {
			return nil, err
		}
		return doubles(name, x, y), nil
	}
}

func buildNullIf[C Context](name string, args []Feature[C]) (Feature[C], error) {
	cond, err := AsBool(args[0])
	if err != nil {
		return nil, err
	}
	switch v := args[1].(type) {
	case Typed[C, bool]:
		return NewNullIf(name, cond, v), nil
	case Typed[C, int]:
		return NewNullIf(name, cond, v), nil
	case Typed[C, float64]:
		return NewNullIf(name, cond, v), nil
	case Typed[C, string]:
		return NewNullIf(name, cond, v), nil
	}
	return nil, fmt.Errorf("%s has no typed evaluation", args[1].Name())
}

func buildIfThenElse[C Context](name string, args []Feature[C]) (Feature[C], error) {
	cond, err := AsBool(args[0])
	if err != nil {
		return nil, err
	}
	then, els := args[1], args[2]
	if then.Kind() != els.Kind() {
		if !then.Kind().IsNumeric() || !els.Kind().IsNumeric() {
			return nil, fmt.Errorf("branches %s and %s have different kinds %s and %s",
				then.Name(), els.Name(), then.Kind(), els.Kind())
		}
		x, _ := AsDouble(then)
		y, _ := AsDouble(els)
		return NewIfThenElse(name, cond, x, y), nil
	}
	switch t := then.(type) {
	case Typed[C, bool]:
		return NewIfThenElse(name, cond, t, els.(Typed[C, bool])), nil
	case Typed[C, int]:
		return NewIfThenElse(name, cond, t, els.(Typed[C, int])), nil
	case Typed[C, float64]:
		return NewIfThenElse(name, cond, t, els.(Typed[C, float64])), nil
	case Typed[C, string]:
		return NewIfThenElse(name, cond, t, els.(Typed[C, string])), nil
	}
	return nil, fmt.Errorf("%s has no typed evaluation", then.Name())
}
