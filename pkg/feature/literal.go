package feature

import (
	"strconv"
	"strings"
)

// IntegerLiteral is a constant integer.
type IntegerLiteral[C Context] struct {
	Base[C]
	Kinded[int]
	Literal int
}

// NewIntegerLiteral creates an integer constant.
func NewIntegerLiteral[C Context](v int) *IntegerLiteral[C] {
	return &IntegerLiteral[C]{Base: NewBase[C](strconv.Itoa(v)), Literal: v}
}

// Compute returns the literal.
func (f *IntegerLiteral[C]) Compute(C, *Environment) (Result[int], error) {
	return Some(f.Literal), nil
}

// DoubleLiteral is a constant double.
type DoubleLiteral[C Context] struct {
	Base[C]
	Kinded[float64]
	Literal float64
}

// NewDoubleLiteral creates a double constant.
func NewDoubleLiteral[C Context](v float64) *DoubleLiteral[C] {
	name := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(name, ".") {
		name += ".0"
	}
	return &DoubleLiteral[C]{Base: NewBase[C](name), Literal: v}
}

// Compute returns the literal.
func (f *DoubleLiteral[C]) Compute(C, *Environment) (Result[float64], error) {
	return Some(f.Literal), nil
}

// BooleanLiteral is a constant boolean.
type BooleanLiteral[C Context] struct {
	Base[C]
	Kinded[bool]
	Literal bool
}

// NewBooleanLiteral creates a boolean constant.
func NewBooleanLiteral[C Context](v bool) *BooleanLiteral[C] {
	return &BooleanLiteral[C]{Base: NewBase[C](strconv.FormatBool(v)), Literal: v}
}

// Compute returns the literal.
func (f *BooleanLiteral[C]) Compute(C, *Environment) (Result[bool], error) {
	return Some(f.Literal), nil
}

// StringLiteral is a constant string.
type StringLiteral[C Context] struct {
	Base[C]
	Kinded[string]
	Literal string
}

// NewStringLiteral creates a string constant.
func NewStringLiteral[C Context](v string) *StringLiteral[C] {
	return &StringLiteral[C]{Base: NewBase[C](strconv.Quote(v)), Literal: v}
}

// Compute returns the literal.
func (f *StringLiteral[C]) Compute(C, *Environment) (Result[string], error) {
	return Some(f.Literal), nil
}
