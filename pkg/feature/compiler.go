package feature

import (
	"errors"
	"log/slog"

	"github.com/leapstack-labs/beamline/pkg/descriptor"
)

// errIncomplete marks a reference to a parameterised macro without
// arguments. The descriptor is a partial definition and yields no features.
var errIncomplete = errors.New("macro referenced without arguments")

type macro struct {
	params []string
	body   *descriptor.Descriptor
}

// Compiler turns descriptors into features. Macros and named features
// defined by earlier descriptors are visible to later ones. Identical
// sub-expressions compile to the same feature so that their results are
// cached once per context.
//
// A Compiler is not safe for concurrent use; the features it returns are.
type Compiler[C Context] struct {
	registry *Registry[C]
	logger   *slog.Logger
	macros   map[string]macro
	named    map[string]Feature[C]
	interned map[string]Feature[C]
	// expanding holds the macros on the current expansion path.
	expanding map[string]bool
}

// NewCompiler creates a compiler resolving calls against registry.
func NewCompiler[C Context](registry *Registry[C], logger *slog.Logger) *Compiler[C] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compiler[C]{
		registry:  registry,
		logger:    logger,
		macros:    make(map[string]macro),
		named:     make(map[string]Feature[C]),
		interned:  make(map[string]Feature[C]),
		expanding: make(map[string]bool),
	}
}

// Compile compiles one descriptor. A macro definition registers the macro
// and yields no features. A named feature yields one feature carrying the
// definition name. An expression referencing a parameterised macro without
// arguments yields no features.
func (c *Compiler[C]) Compile(d *descriptor.Descriptor) ([]Feature[C], error) {
	if d.IsNamed() {
		return c.define(d)
	}

	f, err := c.compile(d, d.Source)
	if errors.Is(err, errIncomplete) {
		c.logger.Debug("descriptor yields no features", slog.String("descriptor", d.Source))
		return []Feature[C]{}, nil
	}
	if err != nil {
		return nil, err
	}
	// macro calls and named references compile to their expansion
	if name := d.String(); f.Name() != name {
		if f, err = nameNamed(name, f); err != nil {
			return nil, descriptor.NewSyntaxError(d.Source, d.Pos, "%v", err)
		}
	}
	return []Feature[C]{f}, nil
}

// CompileText parses and compiles one descriptor line.
func (c *Compiler[C]) CompileText(text string) ([]Feature[C], error) {
	d, err := descriptor.Parse(text)
	if err != nil {
		return nil, err
	}
	return c.Compile(d)
}

// CompileAll compiles descriptors in order and concatenates their
// features.
func (c *Compiler[C]) CompileAll(ds []*descriptor.Descriptor) ([]Feature[C], error) {
	var out []Feature[C]
	for _, d := range ds {
		fs, err := c.Compile(d)
		if err != nil {
			return nil, err
		}
		out = append(out, fs...)
	}
	return out, nil
}

func (c *Compiler[C]) define(d *descriptor.Descriptor) ([]Feature[C], error) {
	name := d.DefName
	if c.isDefined(name) {
		return nil, descriptor.NewSyntaxError(d.Source, d.Pos, "%s is already defined", name)
	}

	if d.IsMacro() {
		c.macros[name] = macro{params: d.Params, body: d.Body()}
		c.logger.Debug("registered macro",
			slog.String("name", name),
			slog.Int("params", len(d.Params)))
		return []Feature[C]{}, nil
	}

	body, err := c.compile(d.Body(), d.Source)
	if errors.Is(err, errIncomplete) {
		return []Feature[C]{}, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := nameNamed(name, body)
	if err != nil {
		return nil, descriptor.NewSyntaxError(d.Source, d.Pos, "%v", err)
	}
	c.named[name] = f
	return []Feature[C]{f}, nil
}

func (c *Compiler[C]) isDefined(name string) bool {
	if _, ok := c.macros[name]; ok {
		return true
	}
	if _, ok := c.named[name]; ok {
		return true
	}
	return c.registry.Has(name)
}

func (c *Compiler[C]) compile(d *descriptor.Descriptor, text string) (Feature[C], error) {
	key := d.String()
	if f, ok := c.interned[key]; ok {
		return f, nil
	}

	f, err := c.build(d, text)
	if err != nil {
		return nil, err
	}
	c.interned[key] = f
	return f, nil
}

func (c *Compiler[C]) build(d *descriptor.Descriptor, text string) (Feature[C], error) {
	name := d.String()

	switch d.Kind {
	case descriptor.KindInt:
		return NewIntegerLiteral[C](d.Int), nil
	case descriptor.KindDouble:
		return NewDoubleLiteral[C](d.Double), nil
	case descriptor.KindBool:
		return NewBooleanLiteral[C](d.Bool), nil
	case descriptor.KindString:
		return NewStringLiteral[C](d.Str), nil

	case descriptor.KindOperator:
		a, err := c.compile(d.Args[0], text)
		if err != nil {
			return nil, err
		}
		b, err := c.compile(d.Args[1], text)
		if err != nil {
			return nil, err
		}
		f, err := NewOperator(d.Name, name, a, b)
		if err != nil {
			return nil, descriptor.NewSyntaxError(text, d.Pos, "%v", err)
		}
		return f, nil

	case descriptor.KindCall:
		return c.buildCall(d, text)
	}
	return nil, descriptor.NewSyntaxError(text, d.Pos, "unsupported descriptor %s", d.Kind)
}

func (c *Compiler[C]) buildCall(d *descriptor.Descriptor, text string) (Feature[C], error) {
	if m, ok := c.macros[d.Name]; ok {
		return c.expand(d, m, text)
	}

	if f, ok := c.named[d.Name]; ok {
		if len(d.Args) > 0 {
			return nil, descriptor.NewSyntaxError(text, d.Pos, "%s takes no arguments, got %d", d.Name, len(d.Args))
		}
		return Unwrap(f), nil
	}

	build, err := c.registry.Lookup(d.Name, len(d.Args))
	if err != nil {
		return nil, descriptor.NewSyntaxError(text, d.Pos, "%v", err)
	}

	args := make([]Feature[C], len(d.Args))
	for i, a := range d.Args {
		args[i], err = c.compile(a, text)
		if err != nil {
			return nil, err
		}
	}

	f, err := build(d.String(), args)
	if err != nil {
		return nil, descriptor.NewSyntaxError(text, d.Pos, "%s: %v", d.Name, err)
	}
	return f, nil
}

func (c *Compiler[C]) expand(call *descriptor.Descriptor, m macro, text string) (Feature[C], error) {
	params := m.params

	switch {
	case len(params) > 0 && len(call.Args) == 0:
		return nil, errIncomplete
	case len(params) != len(call.Args):
		return nil, descriptor.NewSyntaxError(text, call.Pos,
			"macro %s expects %d arguments, got %d", call.Name, len(params), len(call.Args))
	}

	if c.expanding[call.Name] {
		return nil, descriptor.NewSyntaxError(text, call.Pos, "macro %s is recursive", call.Name)
	}
	c.expanding[call.Name] = true
	defer delete(c.expanding, call.Name)

	bindings := make(map[string]*descriptor.Descriptor, len(params))
	for i, p := range params {
		bindings[p] = call.Args[i]
	}
	return c.compile(m.body.Substitute(bindings), text)
}
