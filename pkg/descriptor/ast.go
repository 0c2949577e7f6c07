// Package descriptor parses textual feature descriptors into call trees.
//
// A descriptor is either an expression, or a named definition of the form
// Name<TAB>Body or Name(X,Y)<TAB>Body. Named definitions with a parameter
// list are macros: later descriptors may call them by name and the
// arguments are substituted for the parameters.
//
// # Grammar
//
//	line           → [ name [ "(" [ ident { "," ident } ] ")" ] TAB ] expr
//	expr           → equality
//	equality       → additive { "==" additive }
//	additive       → multiplicative { ( "+" | "-" ) multiplicative }
//	multiplicative → unary { ( "*" | "/" ) unary }
//	unary          → "-" unary | primary
//	primary        → INT | DOUBLE | STRING | true | false
//	               | IDENT [ "(" [ expr { "," expr } ] ")" ]
//	               | "(" expr ")"
package descriptor

import (
	"strconv"
	"strings"
)

// Kind identifies the type of a descriptor node.
type Kind int

// Kind constants for descriptor nodes.
const (
	KindCall Kind = iota
	KindOperator
	KindInt
	KindDouble
	KindBool
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindOperator:
		return "operator"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Descriptor is a parsed feature descriptor node. Descriptors are immutable
// once parsed; Substitute returns new trees.
type Descriptor struct {
	Kind Kind
	Pos  Position

	// Function name for calls, operator symbol ("+", "-", "*", "/", "==")
	// for operators.
	Name string
	Args []*Descriptor

	// Parens is true when a call was written with explicit parentheses,
	// e.g. Name() as opposed to Name.
	Parens bool

	Int    int
	Double float64
	Bool   bool
	Str    string

	// Named-definition metadata, only set on the root of a line.
	DefName   string
	Params    []string
	HasParams bool // definition written as Name(...)
	Source    string
}

// IsNamed reports whether the descriptor is a named definition.
func (d *Descriptor) IsNamed() bool {
	return d.DefName != ""
}

// IsMacro reports whether the descriptor defines a macro (a named definition
// written with a parameter list, possibly empty).
func (d *Descriptor) IsMacro() bool {
	return d.DefName != "" && d.HasParams
}

// Body returns a copy of the expression part of d without definition metadata.
func (d *Descriptor) Body() *Descriptor {
	c := *d
	c.DefName = ""
	c.Params = nil
	c.HasParams = false
	return &c
}

// Substitute returns a copy of d with every zero-argument call whose name is
// a key of bindings replaced by the bound descriptor.
func (d *Descriptor) Substitute(bindings map[string]*Descriptor) *Descriptor {
	if d.Kind == KindCall && len(d.Args) == 0 && !d.Parens {
		if b, ok := bindings[d.Name]; ok {
			return b
		}
	}
	if len(d.Args) == 0 {
		return d
	}
	c := *d
	c.Args = make([]*Descriptor, len(d.Args))
	for i, a := range d.Args {
		c.Args[i] = a.Substitute(bindings)
	}
	return &c
}

// String renders the canonical text of the expression.
func (d *Descriptor) String() string {
	var b strings.Builder
	d.write(&b, false)
	return b.String()
}

func (d *Descriptor) write(b *strings.Builder, nested bool) {
	switch d.Kind {
	case KindInt:
		b.WriteString(strconv.Itoa(d.Int))
	case KindDouble:
		s := strconv.FormatFloat(d.Double, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		b.WriteString(s)
	case KindBool:
		b.WriteString(strconv.FormatBool(d.Bool))
	case KindString:
		b.WriteString(strconv.Quote(d.Str))
	case KindOperator:
		if nested {
			b.WriteByte('(')
		}
		d.Args[0].write(b, true)
		b.WriteString(d.Name)
		d.Args[1].write(b, true)
		if nested {
			b.WriteByte(')')
		}
	case KindCall:
		b.WriteString(d.Name)
		if d.Parens || len(d.Args) > 0 {
			b.WriteByte('(')
			for i, a := range d.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.write(b, false)
			}
			b.WriteByte(')')
		}
	}
}
