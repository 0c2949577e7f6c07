package depparse

import (
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/beamline/pkg/transition"
)

// Transition names of the arc-eager system.
const (
	Shift    = "Shift"
	Reduce   = "Reduce"
	LeftArc  = "LeftArc"
	RightArc = "RightArc"
)

// ErrNoLabels is returned when building a transition system without
// dependency labels.
var ErrNoLabels = errors.New("no dependency labels")

// ArcEager is the arc-eager transition system. Reduce is also legal for
// an ungoverned stack top once the buffer is exhausted, so that every
// configuration can reach a terminal one.
type ArcEager struct {
	labels []string
}

// NewArcEager creates the system over the given labels.
func NewArcEager(labels []string) (*ArcEager, error) {
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	return &ArcEager{labels: slices.Clone(labels)}, nil
}

// Name implements transition.System.
func (s *ArcEager) Name() string {
	return "arc-eager"
}

// Labels returns the dependency labels.
func (s *ArcEager) Labels() []string {
	return slices.Clone(s.labels)
}

// LegalDecisions returns Shift, Reduce, then LeftArc and RightArc for each
// label in label order, keeping only the legal ones.
func (s *ArcEager) LegalDecisions(cfg *Configuration) []transition.Decision {
	var out []transition.Decision
	if s.canShift(cfg) {
		out = append(out, transition.Decision{Transition: Shift})
	}
	if s.canReduce(cfg) {
		out = append(out, transition.Decision{Transition: Reduce})
	}
	if s.canLeftArc(cfg) {
		for _, l := range s.labels {
			out = append(out, transition.Decision{Transition: LeftArc, Label: l})
		}
	}
	if s.canRightArc(cfg) {
		for _, l := range s.labels {
			out = append(out, transition.Decision{Transition: RightArc, Label: l})
		}
	}
	return out
}

func (s *ArcEager) canShift(cfg *Configuration) bool {
	return cfg.BufferSize() > 0
}

func (s *ArcEager) canReduce(cfg *Configuration) bool {
	top, _ := cfg.Stack(0)
	if top == 0 {
		return false
	}
	_, governed := cfg.Governor(top)
	return governed || cfg.BufferSize() == 0
}

func (s *ArcEager) canLeftArc(cfg *Configuration) bool {
	if cfg.BufferSize() == 0 {
		return false
	}
	top, _ := cfg.Stack(0)
	if top == 0 {
		return false
	}
	_, governed := cfg.Governor(top)
	return !governed
}

func (s *ArcEager) canRightArc(cfg *Configuration) bool {
	return cfg.BufferSize() > 0
}

// Apply implements transition.System.
func (s *ArcEager) Apply(cfg *Configuration, d transition.Decision) (*Configuration, error) {
	var legal bool
	switch d.Transition {
	case Shift:
		legal = d.Label == "" && s.canShift(cfg)
	case Reduce:
		legal = d.Label == "" && s.canReduce(cfg)
	case LeftArc:
		legal = slices.Contains(s.labels, d.Label) && s.canLeftArc(cfg)
	case RightArc:
		legal = slices.Contains(s.labels, d.Label) && s.canRightArc(cfg)
	default:
		return nil, &transition.IllegalDecisionError{Decision: d, Reason: "unknown transition"}
	}
	if !legal {
		return nil, &transition.IllegalDecisionError{Decision: d, Reason: "not legal in " + s.describe(cfg)}
	}

	next := cfg.clone()
	top := next.stack[len(next.stack)-1]
	front := next.next

	switch d.Transition {
	case Shift:
		next.stack = append(next.stack, front)
		next.next++
	case Reduce:
		next.stack = next.stack[:len(next.stack)-1]
	case LeftArc:
		next.addArc(Arc{Governor: front, Dependent: top, Label: d.Label})
		next.stack = next.stack[:len(next.stack)-1]
	case RightArc:
		next.addArc(Arc{Governor: top, Dependent: front, Label: d.Label})
		next.stack = append(next.stack, front)
		next.next++
	}
	next.history = append(next.history, d)
	return next, nil
}

// IsTerminal reports whether the buffer is empty and only the root is left
// on the stack.
func (s *ArcEager) IsTerminal(cfg *Configuration) bool {
	return cfg.BufferSize() == 0 && cfg.StackSize() == 1
}

func (s *ArcEager) describe(cfg *Configuration) string {
	top, _ := cfg.Stack(0)
	front, ok := cfg.Buffer(0)
	if !ok {
		return fmt.Sprintf("configuration with empty buffer and stack top %d", top)
	}
	return fmt.Sprintf("configuration with stack top %d and buffer front %d", top, front)
}
