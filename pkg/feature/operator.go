package feature

import (
	"fmt"
)

type number interface {
	int | float64
}

// binary is a two-operand operator. Operands are evaluated left to right
// and an absent operand makes the result absent.
type binary[C Context, T any, R any] struct {
	Base[C]
	Kinded[R]
	Operand1 Typed[C, T]
	Operand2 Typed[C, T]
	apply    func(a, b T) (R, bool)
}

func newBinary[C Context, T, R any](name string, a, b Typed[C, T], apply func(a, b T) (R, bool)) binary[C, T, R] {
	return binary[C, T, R]{Base: NewBase[C](name, a, b), Operand1: a, Operand2: b, apply: apply}
}

// Compute evaluates both operands and applies the operator.
func (o *binary[C, T, R]) Compute(ctx C, env *Environment) (Result[R], error) {
	a, err := Check(o.Operand1, ctx, env)
	if err != nil || !a.present {
		return Absent[R](), err
	}
	b, err := Check(o.Operand2, ctx, env)
	if err != nil || !b.present {
		return Absent[R](), err
	}
	v, ok := o.apply(a.value, b.value)
	if !ok {
		return Absent[R](), nil
	}
	return Some(v), nil
}

func add[T number](a, b T) (T, bool)      { return a + b, true }
func subtract[T number](a, b T) (T, bool) { return a - b, true }
func multiply[T number](a, b T) (T, bool) { return a * b, true }

// PlusInteger adds two integers.
type PlusInteger[C Context] struct{ binary[C, int, int] }

// MinusInteger subtracts two integers.
type MinusInteger[C Context] struct{ binary[C, int, int] }

// MultiplyInteger multiplies two integers.
type MultiplyInteger[C Context] struct{ binary[C, int, int] }

// Plus adds two doubles.
type Plus[C Context] struct{ binary[C, float64, float64] }

// Minus subtracts two doubles.
type Minus[C Context] struct{ binary[C, float64, float64] }

// Multiply multiplies two doubles.
type Multiply[C Context] struct{ binary[C, float64, float64] }

// Divide divides two doubles. Division by zero is absent.
type Divide[C Context] struct{ binary[C, float64, float64] }

// Equals compares two operands of the same type.
type Equals[C Context, T comparable] struct{ binary[C, T, bool] }

// NewPlusInteger builds a+b over integers.
func NewPlusInteger[C Context](name string, a, b Typed[C, int]) *PlusInteger[C] {
	return &PlusInteger[C]{newBinary(name, a, b, add[int])}
}

// NewMinusInteger builds a-b over integers.
func NewMinusInteger[C Context](name string, a, b Typed[C, int]) *MinusInteger[C] {
	return &MinusInteger[C]{newBinary(name, a, b, subtract[int])}
}

// NewMultiplyInteger builds a*b over integers.
func NewMultiplyInteger[C Context](name string, a, b Typed[C, int]) *MultiplyInteger[C] {
	return &MultiplyInteger[C]{newBinary(name, a, b, multiply[int])}
}

// NewPlus builds a+b over doubles.
func NewPlus[C Context](name string, a, b Typed[C, float64]) *Plus[C] {
	return &Plus[C]{newBinary(name, a, b, add[float64])}
}

// NewMinus builds a-b over doubles.
func NewMinus[C Context](name string, a, b Typed[C, float64]) *Minus[C] {
	return &Minus[C]{newBinary(name, a, b, subtract[float64])}
}

// NewMultiply builds a*b over doubles.
func NewMultiply[C Context](name string, a, b Typed[C, float64]) *Multiply[C] {
	return &Multiply[C]{newBinary(name, a, b, multiply[float64])}
}

// NewDivide builds a/b over doubles.
func NewDivide[C Context](name string, a, b Typed[C, float64]) *Divide[C] {
	return &Divide[C]{newBinary(name, a, b, func(x, y float64) (float64, bool) {
		if y == 0 {
			return 0, false
		}
		return x / y, true
	})}
}

// NewEquals builds a==b.
func NewEquals[C Context, T comparable](name string, a, b Typed[C, T]) *Equals[C, T] {
	return &Equals[C, T]{newBinary(name, a, b, func(x, y T) (bool, bool) { return x == y, true })}
}

// IntegerToDouble promotes an integer feature to a double.
type IntegerToDouble[C Context] struct {
	Base[C]
	Kinded[float64]
	Operand Typed[C, int]
}

// NewIntegerToDouble wraps f.
func NewIntegerToDouble[C Context](f Typed[C, int]) *IntegerToDouble[C] {
	return &IntegerToDouble[C]{Base: NewBase[C](f.Name(), f), Operand: f}
}

// Compute converts the operand.
func (f *IntegerToDouble[C]) Compute(ctx C, env *Environment) (Result[float64], error) {
	r, err := Check(f.Operand, ctx, env)
	if err != nil || !r.present {
		return Absent[float64](), err
	}
	return Some(float64(r.value)), nil
}

// AsBool returns f as a boolean feature.
func AsBool[C Context](f Feature[C]) (Typed[C, bool], error) {
	if t, ok := f.(Typed[C, bool]); ok {
		return t, nil
	}
	return nil, kindMismatch(f, KindBoolean)
}

// AsInt returns f as an integer feature.
func AsInt[C Context](f Feature[C]) (Typed[C, int], error) {
	if t, ok := f.(Typed[C, int]); ok {
		return t, nil
	}
	return nil, kindMismatch(f, KindInteger)
}

// AsString returns f as a string feature.
func AsString[C Context](f Feature[C]) (Typed[C, string], error) {
	if t, ok := f.(Typed[C, string]); ok {
		return t, nil
	}
	return nil, kindMismatch(f, KindString)
}

// AsDouble returns f as a double feature, promoting integers.
func AsDouble[C Context](f Feature[C]) (Typed[C, float64], error) {
	switch t := f.(type) {
	case Typed[C, float64]:
		return t, nil
	case Typed[C, int]:
		return NewIntegerToDouble(t), nil
	}
	return nil, kindMismatch(f, KindDouble)
}

func kindMismatch[C Context](f Feature[C], want Kind) error {
	return fmt.Errorf("%s is %s, expected %s", f.Name(), f.Kind(), want)
}

// NewOperator builds the feature for a binary operator. Integer operands
// give integer arithmetic; mixing integer and double promotes the integer.
// Division always yields a double.
func NewOperator[C Context](op, name string, a, b Feature[C]) (Feature[C], error) {
	bothInt := a.Kind() == KindInteger && b.Kind() == KindInteger
	bothNumeric := a.Kind().IsNumeric() && b.Kind().IsNumeric()

	switch op {
	case "+", "-", "*":
		if !bothNumeric {
			return nil, fmt.Errorf("operator %s is not defined for %s and %s", op, a.Kind(), b.Kind())
		}
		if bothInt {
			x, y := a.(Typed[C, int]), b.(Typed[C, int])
			switch op {
			case "+":
				return NewPlusInteger(name, x, y), nil
			case "-":
				return NewMinusInteger(name, x, y), nil
			default:
				return NewMultiplyInteger(name, x, y), nil
			}
		}
		x, _ := AsDouble(a)
		y, _ := AsDouble(b)
		switch op {
		case "+":
			return NewPlus(name, x, y), nil
		case "-":
			return NewMinus(name, x, y), nil
		default:
			return NewMultiply(name, x, y), nil
		}

	case "/":
		if !bothNumeric {
			return nil, fmt.Errorf("operator / is not defined for %s and %s", a.Kind(), b.Kind())
		}
		x, _ := AsDouble(a)
		y, _ := AsDouble(b)
		return NewDivide(name, x, y), nil

	case "==":
		if bothNumeric && !bothInt {
			x, _ := AsDouble(a)
			y, _ := AsDouble(b)
			return NewEquals(name, x, y), nil
		}
		if a.Kind() != b.Kind() {
			return nil, fmt.Errorf("cannot compare %s with %s", a.Kind(), b.Kind())
		}
		switch x := a.(type) {
		case Typed[C, int]:
			return NewEquals(name, x, b.(Typed[C, int])), nil
		case Typed[C, bool]:
			return NewEquals(name, x, b.(Typed[C, bool])), nil
		case Typed[C, string]:
			return NewEquals(name, x, b.(Typed[C, string])), nil
		}
	}
	return nil, fmt.Errorf("unknown operator %s", op)
}
