// Package transition defines the contract between a task-specific
// transition system and the beam search decoder.
//
// A transition system enumerates the decisions that are legal in a
// configuration and applies one of them, producing a new configuration.
// Configurations are immutable: Apply never modifies its input, so many
// hypotheses may share a parent.
package transition

import (
	"fmt"
	"strings"
)

// Decision is one outcome a classifier can choose. Transition names the
// move (e.g. "Shift"), Label optionally parameterises it.
type Decision struct {
	Transition string
	Label      string
}

// Code returns the decision code used to key classifier scores, e.g.
// "Shift" or "LeftArc[det]".
func (d Decision) Code() string {
	if d.Label == "" {
		return d.Transition
	}
	return d.Transition + "[" + d.Label + "]"
}

func (d Decision) String() string {
	return d.Code()
}

// ParseDecision parses a decision code.
func ParseDecision(code string) (Decision, error) {
	open := strings.IndexByte(code, '[')
	if open < 0 {
		if code == "" || strings.ContainsAny(code, "]") {
			return Decision{}, fmt.Errorf("invalid decision code %q", code)
		}
		return Decision{Transition: code}, nil
	}
	if open == 0 || !strings.HasSuffix(code, "]") || open == len(code)-2 {
		return Decision{}, fmt.Errorf("invalid decision code %q", code)
	}
	return Decision{Transition: code[:open], Label: code[open+1 : len(code)-1]}, nil
}

// ScoredDecision pairs a decision with its classifier score.
type ScoredDecision struct {
	Decision Decision
	Score    float64
}

// System is a transition system over configurations of type C.
type System[C any] interface {
	// Name identifies the system in logs and journals.
	Name() string

	// LegalDecisions returns the decisions applicable to cfg in a fixed,
	// deterministic order. A non-terminal configuration has at least one.
	LegalDecisions(cfg C) []Decision

	// Apply returns the configuration reached by applying d to cfg.
	Apply(cfg C, d Decision) (C, error)

	// IsTerminal reports whether cfg is a complete analysis.
	IsTerminal(cfg C) bool
}

// IllegalDecisionError is returned by Apply for a decision that is not
// legal in the configuration.
type IllegalDecisionError struct {
	Decision Decision
	Reason   string
}

func (e *IllegalDecisionError) Error() string {
	return fmt.Sprintf("illegal decision %s: %s", e.Decision.Code(), e.Reason)
}

// Run applies decisions in order starting from cfg.
func Run[C any](sys System[C], cfg C, decisions []Decision) (C, error) {
	for i, d := range decisions {
		next, err := sys.Apply(cfg, d)
		if err != nil {
			return cfg, fmt.Errorf("decision %d: %w", i, err)
		}
		cfg = next
	}
	return cfg, nil
}
