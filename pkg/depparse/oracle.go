package depparse

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/beamline/pkg/transition"
)

// ErrNonProjective is returned by Oracle for gold trees the arc-eager
// system cannot build.
var ErrNonProjective = errors.New("gold tree is not projective")

// Oracle derives the arc-eager decision sequence that builds the gold arcs
// for s. Every word must have exactly one gold arc.
func Oracle(sys *ArcEager, s *Sentence, gold []Arc) ([]transition.Decision, error) {
	heads := make(map[int]Arc, len(gold))
	for _, a := range gold {
		if a.Dependent < 1 || a.Dependent > s.Len() {
			return nil, fmt.Errorf("gold arc %s: dependent out of range", a)
		}
		if _, dup := heads[a.Dependent]; dup {
			return nil, fmt.Errorf("gold arc %s: token %d has two governors", a, a.Dependent)
		}
		heads[a.Dependent] = a
	}
	if len(heads) != s.Len() {
		return nil, fmt.Errorf("gold arcs cover %d of %d tokens", len(heads), s.Len())
	}

	goldHead := func(i int) int {
		if a, ok := heads[i]; ok {
			return a.Governor
		}
		return -1
	}

	cfg := NewConfiguration(s)
	for !sys.IsTerminal(cfg) {
		top, _ := cfg.Stack(0)
		front, hasFront := cfg.Buffer(0)
		_, topGoverned := cfg.Governor(top)

		var d transition.Decision
		switch {
		case hasFront && top != 0 && goldHead(top) == front:
			d = transition.Decision{Transition: LeftArc, Label: heads[top].Label}
		case hasFront && goldHead(front) == top:
			d = transition.Decision{Transition: RightArc, Label: heads[front].Label}
		case !hasFront:
			d = transition.Decision{Transition: Reduce}
		case topGoverned && pendingBelow(cfg, front, goldHead):
			d = transition.Decision{Transition: Reduce}
		default:
			d = transition.Decision{Transition: Shift}
		}

		next, err := sys.Apply(cfg, d)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNonProjective, err)
		}
		cfg = next
	}

	for _, a := range cfg.Arcs() {
		if g := heads[a.Dependent]; g.Governor != a.Governor || g.Label != a.Label {
			return nil, ErrNonProjective
		}
	}
	if len(cfg.Arcs()) != s.Len() {
		return nil, ErrNonProjective
	}
	return cfg.History(), nil
}

// pendingBelow reports whether the buffer front has a gold arc with a
// stack element below the top.
func pendingBelow(cfg *Configuration, front int, goldHead func(int) int) bool {
	for i := 1; i < cfg.StackSize(); i++ {
		k, _ := cfg.Stack(i)
		if goldHead(front) == k || (k != 0 && goldHead(k) == front) {
			return true
		}
	}
	return false
}

// Verify replays decisions from the initial configuration of s and checks
// that they reach a terminal configuration holding exactly the gold arcs.
func Verify(sys *ArcEager, s *Sentence, gold []Arc, decisions []transition.Decision) error {
	final, err := transition.Run[*Configuration](sys, NewConfiguration(s), decisions)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !sys.IsTerminal(final) {
		return fmt.Errorf("replay stopped after %d decisions before a terminal configuration", len(decisions))
	}

	want := make(map[int]Arc, len(gold))
	for _, a := range gold {
		want[a.Dependent] = a
	}
	arcs := final.Arcs()
	for _, a := range arcs {
		g, ok := want[a.Dependent]
		if !ok || g.Governor != a.Governor || g.Label != a.Label {
			return fmt.Errorf("replay built %s, not in gold", a)
		}
	}
	if len(arcs) != len(want) {
		return fmt.Errorf("replay built %d of %d gold arcs", len(arcs), len(want))
	}
	return nil
}
