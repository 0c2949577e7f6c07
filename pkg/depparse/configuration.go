package depparse

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/leapstack-labs/beamline/pkg/transition"
)

var lastContextID atomic.Uint64

// Configuration is an immutable parse state: a stack, the remaining buffer,
// the arcs built so far and the decisions that produced it. Each
// configuration carries a unique context id used by the feature cache.
type Configuration struct {
	id        uint64
	sentence  *Sentence
	stack     []int // top is the last element
	next      int   // first buffer index
	arcs      []Arc
	governors []int // governor per token, -1 when ungoverned
	labels    []string
	history   []transition.Decision
}

// NewConfiguration returns the initial configuration for s: the root on
// the stack and every word in the buffer.
func NewConfiguration(s *Sentence) *Configuration {
	governors := make([]int, s.Len()+1)
	for i := range governors {
		governors[i] = -1
	}
	return &Configuration{
		id:        lastContextID.Add(1),
		sentence:  s,
		stack:     []int{0},
		next:      1,
		governors: governors,
		labels:    make([]string, s.Len()+1),
	}
}

// clone copies the configuration under a fresh id.
func (c *Configuration) clone() *Configuration {
	return &Configuration{
		id:        lastContextID.Add(1),
		sentence:  c.sentence,
		stack:     slices.Clone(c.stack),
		next:      c.next,
		arcs:      slices.Clone(c.arcs),
		governors: slices.Clone(c.governors),
		labels:    slices.Clone(c.labels),
		history:   slices.Clone(c.history),
	}
}

// ContextID implements feature.Context.
func (c *Configuration) ContextID() uint64 {
	return c.id
}

// Sentence returns the sentence being parsed.
func (c *Configuration) Sentence() *Sentence {
	return c.sentence
}

// Token returns the token at index i.
func (c *Configuration) Token(i int) (Token, bool) {
	return c.sentence.Token(i)
}

// Stack returns the token index i positions below the stack top.
func (c *Configuration) Stack(i int) (int, bool) {
	if i < 0 || i >= len(c.stack) {
		return 0, false
	}
	return c.stack[len(c.stack)-1-i], true
}

// Buffer returns the token index i positions after the buffer front.
func (c *Configuration) Buffer(i int) (int, bool) {
	idx := c.next + i
	if i < 0 || idx > c.sentence.Len() {
		return 0, false
	}
	return idx, true
}

// StackSize returns the number of stack elements, root included.
func (c *Configuration) StackSize() int {
	return len(c.stack)
}

// BufferSize returns the number of tokens left in the buffer.
func (c *Configuration) BufferSize() int {
	return c.sentence.Len() - c.next + 1
}

// Governor returns the governor of token i.
func (c *Configuration) Governor(i int) (int, bool) {
	if i <= 0 || i >= len(c.governors) || c.governors[i] < 0 {
		return 0, false
	}
	return c.governors[i], true
}

// Label returns the label of the arc governing token i.
func (c *Configuration) Label(i int) (string, bool) {
	if _, ok := c.Governor(i); !ok {
		return "", false
	}
	return c.labels[i], true
}

// Dependents returns the dependents of token i in sentence order.
func (c *Configuration) Dependents(i int) []int {
	var deps []int
	for d, g := range c.governors {
		if g == i && d != 0 {
			deps = append(deps, d)
		}
	}
	return deps
}

// Arcs returns the arcs in creation order.
func (c *Configuration) Arcs() []Arc {
	return slices.Clone(c.arcs)
}

// Ungoverned returns the word indices that have no governor.
func (c *Configuration) Ungoverned() []int {
	var out []int
	for i := 1; i < len(c.governors); i++ {
		if c.governors[i] < 0 {
			out = append(out, i)
		}
	}
	return out
}

// History returns the decisions applied since the initial configuration.
func (c *Configuration) History() []transition.Decision {
	return slices.Clone(c.history)
}

// dominates reports whether a is an ancestor of b.
func (c *Configuration) dominates(a, b int) bool {
	for g, ok := c.Governor(b); ok; g, ok = c.Governor(g) {
		if g == a {
			return true
		}
	}
	return false
}

func (c *Configuration) addArc(arc Arc) {
	c.arcs = append(c.arcs, arc)
	c.governors[arc.Dependent] = arc.Governor
	c.labels[arc.Dependent] = arc.Label
}

// TransitionSequence renders the decisions that produced c.
func TransitionSequence(c *Configuration) string {
	codes := make([]string, len(c.history))
	for i, d := range c.history {
		codes[i] = d.Code()
	}
	return strings.Join(codes, " ")
}
