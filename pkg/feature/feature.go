// Package feature compiles feature descriptors into typed, evaluable trees
// and evaluates them against task-specific contexts.
//
// A feature produces a Result that is either a present value or absent.
// Absence means "not applicable to this context" and is propagated by
// composite features; it is never an error. Errors are reserved for broken
// runtime state, such as a session lacking the resources a feature needs.
//
// Features are immutable and may be shared between goroutines. All
// per-call state lives in an Environment.
package feature

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// Kind is the result type of a feature.
type Kind int

// Kind constants.
const (
	KindBoolean Kind = iota
	KindInteger
	KindDouble
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether k is integer or double.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindDouble
}

// Result is the outcome of evaluating a feature.
type Result[T any] struct {
	value   T
	present bool
}

// Some returns a present result.
func Some[T any](v T) Result[T] {
	return Result[T]{value: v, present: true}
}

// Absent returns an absent result.
func Absent[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.present
}

// Present reports whether the result holds a value.
func (r Result[T]) Present() bool {
	return r.present
}

// Value returns the value, or the zero value when absent.
func (r Result[T]) Value() T {
	return r.value
}

func (r Result[T]) String() string {
	if !r.present {
		return "<absent>"
	}
	return fmt.Sprint(r.value)
}

// Context is the object a feature is evaluated against. ContextID must be
// stable for the lifetime of the object and unique among the contexts
// evaluated with the same Environment.
type Context interface {
	ContextID() uint64
}

// Feature is the untyped view of a feature node.
type Feature[C Context] interface {
	ID() uint64
	Name() string
	Kind() Kind
	Operands() []Feature[C]
}

// Typed is a feature producing values of type T. Compute performs the raw,
// uncached evaluation; callers use Check.
type Typed[C Context, T any] interface {
	Feature[C]
	Compute(ctx C, env *Environment) (Result[T], error)
}

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}

// Base holds the identity shared by all feature implementations. Feature
// types defined outside this package embed it via NewBase.
type Base[C Context] struct {
	id       uint64
	name     string
	operands []Feature[C]
}

// NewBase assigns a fresh feature id.
func NewBase[C Context](name string, operands ...Feature[C]) Base[C] {
	return Base[C]{id: nextID(), name: name, operands: operands}
}

// ID returns the feature id used as cache key.
func (b *Base[C]) ID() uint64 { return b.id }

// Name returns the descriptor text the feature was built from.
func (b *Base[C]) Name() string { return b.name }

// Operands returns the direct sub-features.
func (b *Base[C]) Operands() []Feature[C] { return b.operands }

// Kinded supplies the Kind method for a result type.
type Kinded[T any] struct{}

// Kind returns the kind matching T.
func (Kinded[T]) Kind() Kind {
	return kindOf[T]()
}

func kindOf[T any]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return KindBoolean
	case int:
		return KindInteger
	case float64:
		return KindDouble
	default:
		return KindString
	}
}

// Check evaluates f against ctx, consulting the environment cache first.
// Absent results are cached like present ones.
func Check[C Context, T any](f Typed[C, T], ctx C, env *Environment) (Result[T], error) {
	if env == nil || env.cache == nil {
		return f.Compute(ctx, env)
	}

	key := cacheKey{feature: f.ID(), context: ctx.ContextID()}
	if v, ok := env.cache[key]; ok {
		env.hits++
		return v.(Result[T]), nil
	}
	env.misses++

	r, err := f.Compute(ctx, env)
	if err != nil {
		return Absent[T](), err
	}
	env.cache[key] = r
	return r, nil
}

// Evaluate evaluates a feature of any kind and boxes its value.
func Evaluate[C Context](f Feature[C], ctx C, env *Environment) (Result[any], error) {
	switch t := f.(type) {
	case Typed[C, bool]:
		return box(Check(t, ctx, env))
	case Typed[C, int]:
		return box(Check(t, ctx, env))
	case Typed[C, float64]:
		return box(Check(t, ctx, env))
	case Typed[C, string]:
		return box(Check(t, ctx, env))
	}
	return Absent[any](), fmt.Errorf("feature %s has no typed evaluation", f.Name())
}

func box[T any](r Result[T], err error) (Result[any], error) {
	if err != nil {
		return Absent[any](), err
	}
	if !r.present {
		return Absent[any](), nil
	}
	return Some[any](r.value), nil
}

// FormatValue renders a feature value the way string conversions do.
func FormatValue(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}

// Named gives a named descriptor's name to the feature compiled from its
// body.
type Named[C Context, T any] struct {
	Base[C]
	Kinded[T]
	Inner Typed[C, T]
}

// NewNamed wraps inner under name.
func NewNamed[C Context, T any](name string, inner Typed[C, T]) *Named[C, T] {
	return &Named[C, T]{Base: NewBase[C](name, inner), Inner: inner}
}

// Compute delegates to the wrapped feature.
func (n *Named[C, T]) Compute(ctx C, env *Environment) (Result[T], error) {
	return Check(n.Inner, ctx, env)
}

// Unwrapped returns the wrapped feature.
func (n *Named[C, T]) Unwrapped() Feature[C] {
	return n.Inner
}

// Unwrap returns the feature underneath any naming wrappers.
func Unwrap[C Context](f Feature[C]) Feature[C] {
	for {
		w, ok := f.(interface{ Unwrapped() Feature[C] })
		if !ok {
			return f
		}
		f = w.Unwrapped()
	}
}

func nameNamed[C Context](name string, f Feature[C]) (Feature[C], error) {
	switch t := f.(type) {
	case Typed[C, bool]:
		return NewNamed(name, t), nil
	case Typed[C, int]:
		return NewNamed(name, t), nil
	case Typed[C, float64]:
		return NewNamed(name, t), nil
	case Typed[C, string]:
		return NewNamed(name, t), nil
	}
	return nil, fmt.Errorf("feature %s has no typed evaluation", f.Name())
}
