package feature

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// unary applies fn to a single present operand.
type unary[C Context, T any, R any] struct {
	Base[C]
	Kinded[R]
	Operand Typed[C, T]
	apply   func(v T, env *Environment) (Result[R], error)
}

func newUnary[C Context, T, R any](name string, f Typed[C, T], apply func(T, *Environment) (Result[R], error)) unary[C, T, R] {
	return unary[C, T, R]{Base: NewBase[C](name, f), Operand: f, apply: apply}
}

// Compute evaluates the operand and applies the function.
func (u *unary[C, T, R]) Compute(ctx C, env *Environment) (Result[R], error) {
	r, err := Check(u.Operand, ctx, env)
	if err != nil || !r.present {
		return Absent[R](), err
	}
	return u.apply(r.value, env)
}

// Not negates a boolean.
type Not[C Context] struct{ unary[C, bool, bool] }

// NewNot builds Not(f).
func NewNot[C Context](name string, f Typed[C, bool]) *Not[C] {
	return &Not[C]{newUnary(name, f, func(v bool, _ *Environment) (Result[bool], error) {
		return Some(!v), nil
	})}
}

// OnlyTrue returns true when the operand is true and is absent otherwise.
type OnlyTrue[C Context] struct{ unary[C, bool, bool] }

// NewOnlyTrue builds OnlyTrue(f).
func NewOnlyTrue[C Context](name string, f Typed[C, bool]) *OnlyTrue[C] {
	return &OnlyTrue[C]{newUnary(name, f, func(v bool, _ *Environment) (Result[bool], error) {
		if !v {
			return Absent[bool](), nil
		}
		return Some(true), nil
	})}
}

// Round rounds a double to the nearest integer, halves away from zero.
type Round[C Context] struct{ unary[C, float64, int] }

// NewRound builds Round(f).
func NewRound[C Context](name string, f Typed[C, float64]) *Round[C] {
	return &Round[C]{newUnary(name, f, func(v float64, _ *Environment) (Result[int], error) {
		return Some(int(math.Round(v))), nil
	})}
}

// Inverse returns 1/x. Zero is absent.
type Inverse[C Context] struct{ unary[C, float64, float64] }

// NewInverse builds Inverse(f).
func NewInverse[C Context](name string, f Typed[C, float64]) *Inverse[C] {
	return &Inverse[C]{newUnary(name, f, func(v float64, _ *Environment) (Result[float64], error) {
		if v == 0 {
			return Absent[float64](), nil
		}
		return Some(1 / v), nil
	})}
}

// Abs returns the absolute value.
type Abs[C Context, T number] struct{ unary[C, T, T] }

// NewAbs builds Abs(f).
func NewAbs[C Context, T number](name string, f Typed[C, T]) *Abs[C, T] {
	return &Abs[C, T]{newUnary(name, f, func(v T, _ *Environment) (Result[T], error) {
		if v < 0 {
			return Some(-v), nil
		}
		return Some(v), nil
	})}
}

// Lower lower-cases a string using the session locale.
type Lower[C Context] struct{ unary[C, string, string] }

// NewLower builds Lower(f).
func NewLower[C Context](name string, f Typed[C, string]) *Lower[C] {
	return &Lower[C]{newUnary(name, f, func(v string, env *Environment) (Result[string], error) {
		tag, err := env.Locale()
		if err != nil {
			return Absent[string](), err
		}
		return Some(cases.Lower(tag).String(v)), nil
	})}
}

// ToString renders any feature as a string.
type ToString[C Context] struct {
	Base[C]
	Kinded[string]
	Operand Feature[C]
}

// NewToString builds ToString(f).
func NewToString[C Context](name string, f Feature[C]) *ToString[C] {
	return &ToString[C]{Base: NewBase[C](name, f), Operand: f}
}

// Compute formats the operand value.
func (f *ToString[C]) Compute(ctx C, env *Environment) (Result[string], error) {
	r, err := Evaluate(f.Operand, ctx, env)
	if err != nil || !r.present {
		return Absent[string](), err
	}
	return Some(FormatValue(r.value)), nil
}

// IsNull is true when its operand is absent. It is the only feature that
// turns absence into a value.
type IsNull[C Context] struct {
	Base[C]
	Kinded[bool]
	Operand Feature[C]
}

// NewIsNull builds IsNull(f).
func NewIsNull[C Context](name string, f Feature[C]) *IsNull[C] {
	return &IsNull[C]{Base: NewBase[C](name, f), Operand: f}
}

// Compute evaluates the operand and reports its absence.
func (f *IsNull[C]) Compute(ctx C, env *Environment) (Result[bool], error) {
	r, err := Evaluate(f.Operand, ctx, env)
	if err != nil {
		return Absent[bool](), err
	}
	return Some(!r.present), nil
}

// NullIf is absent when the condition holds and the value otherwise.
type NullIf[C Context, T any] struct {
	Base[C]
	Kinded[T]
	Condition Typed[C, bool]
	Value     Typed[C, T]
}

// NewNullIf builds NullIf(cond, value).
func NewNullIf[C Context, T any](name string, cond Typed[C, bool], value Typed[C, T]) *NullIf[C, T] {
	return &NullIf[C, T]{Base: NewBase[C](name, cond, value), Condition: cond, Value: value}
}

// Compute evaluates the condition and, when false, the value.
func (f *NullIf[C, T]) Compute(ctx C, env *Environment) (Result[T], error) {
	c, err := Check(f.Condition, ctx, env)
	if err != nil || !c.present || c.value {
		return Absent[T](), err
	}
	return Check(f.Value, ctx, env)
}

// IfThenElse selects between two features. Only the selected branch is
// evaluated.
type IfThenElse[C Context, T any] struct {
	Base[C]
	Kinded[T]
	Condition Typed[C, bool]
	Then      Typed[C, T]
	Else      Typed[C, T]
}

// NewIfThenElse builds IfThenElse(cond, then, else).
func NewIfThenElse[C Context, T any](name string, cond Typed[C, bool], then, els Typed[C, T]) *IfThenElse[C, T] {
	return &IfThenElse[C, T]{Base: NewBase[C](name, cond, then, els), Condition: cond, Then: then, Else: els}
}

// Compute evaluates the condition then one branch.
func (f *IfThenElse[C, T]) Compute(ctx C, env *Environment) (Result[T], error) {
	c, err := Check(f.Condition, ctx, env)
	if err != nil || !c.present {
		return Absent[T](), err
	}
	if c.value {
		return Check(f.Then, ctx, env)
	}
	return Check(f.Else, ctx, env)
}

// logical folds boolean operands left to right. Evaluation stops at the
// first absent operand or at the first operand equal to stop.
type logical[C Context] struct {
	Base[C]
	Kinded[bool]
	Conditions []Typed[C, bool]
	stop       bool
}

// Compute folds the operands.
func (f *logical[C]) Compute(ctx C, env *Environment) (Result[bool], error) {
	for _, op := range f.Conditions {
		r, err := Check(op, ctx, env)
		if err != nil || !r.present {
			return Absent[bool](), err
		}
		if r.value == f.stop {
			return Some(f.stop), nil
		}
	}
	return Some(!f.stop), nil
}

// And is true when every operand is true.
type And[C Context] struct{ logical[C] }

// Or is true when any operand is true.
type Or[C Context] struct{ logical[C] }

// NewAnd builds And(ops...).
func NewAnd[C Context](name string, ops ...Typed[C, bool]) *And[C] {
	return &And[C]{logical[C]{Base: NewBase(name, boolOperands(ops)...), Conditions: ops, stop: false}}
}

// NewOr builds Or(ops...).
func NewOr[C Context](name string, ops ...Typed[C, bool]) *Or[C] {
	return &Or[C]{logical[C]{Base: NewBase(name, boolOperands(ops)...), Conditions: ops, stop: true}}
}

func boolOperands[C Context](ops []Typed[C, bool]) []Feature[C] {
	out := make([]Feature[C], len(ops))
	for i, op := range ops {
		out[i] = op
	}
	return out
}

// Concat joins string operands. Any absent operand makes the result absent.
type Concat[C Context] struct {
	Base[C]
	Kinded[string]
	Parts []Typed[C, string]
}

// NewConcat builds Concat(parts...).
func NewConcat[C Context](name string, parts ...Typed[C, string]) *Concat[C] {
	ops := make([]Feature[C], len(parts))
	for i, p := range parts {
		ops[i] = p
	}
	return &Concat[C]{Base: NewBase(name, ops...), Parts: parts}
}

// Compute concatenates the parts.
func (f *Concat[C]) Compute(ctx C, env *Environment) (Result[string], error) {
	var b strings.Builder
	for _, p := range f.Parts {
		r, err := Check(p, ctx, env)
		if err != nil || !r.present {
			return Absent[string](), err
		}
		b.WriteString(r.value)
	}
	return Some(b.String()), nil
}

// Min returns the smaller operand.
type Min[C Context, T number] struct{ binary[C, T, T] }

// Max returns the larger operand.
type Max[C Context, T number] struct{ binary[C, T, T] }

// LessThan compares two numbers.
type LessThan[C Context, T number] struct{ binary[C, T, bool] }

// GreaterThan compares two numbers.
type GreaterThan[C Context, T number] struct{ binary[C, T, bool] }

// NewMin builds Min(a, b).
func NewMin[C Context, T number](name string, a, b Typed[C, T]) *Min[C, T] {
	return &Min[C, T]{newBinary(name, a, b, func(x, y T) (T, bool) { return min(x, y), true })}
}

// NewMax builds Max(a, b).
func NewMax[C Context, T number](name string, a, b Typed[C, T]) *Max[C, T] {
	return &Max[C, T]{newBinary(name, a, b, func(x, y T) (T, bool) { return max(x, y), true })}
}

// NewLessThan builds LessThan(a, b).
func NewLessThan[C Context, T number](name string, a, b Typed[C, T]) *LessThan[C, T] {
	return &LessThan[C, T]{newBinary(name, a, b, func(x, y T) (bool, bool) { return x < y, true })}
}

// NewGreaterThan builds GreaterThan(a, b).
func NewGreaterThan[C Context, T number](name string, a, b Typed[C, T]) *GreaterThan[C, T] {
	return &GreaterThan[C, T]{newBinary(name, a, b, func(x, y T) (bool, bool) { return x > y, true })}
}
