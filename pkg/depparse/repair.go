package depparse

import (
	"errors"

	"github.com/leapstack-labs/beamline/pkg/feature"
	"github.com/leapstack-labs/beamline/pkg/session"
)

// RepairComment marks arcs added by Repair.
const RepairComment = "repair"

// ErrNoPunctuationLabel is returned when the session has no label for
// repaired attachments.
var ErrNoPunctuationLabel = errors.New("no punctuation label")

// Repair attaches every ungoverned word so the analysis forms a tree. Each
// word is attached, with the session punctuation label, to the nearest
// preceding word that is not punctuation and not one of its own
// descendants, or to the root when there is none. Descendants are skipped
// because attaching a word below itself would close a cycle. The
// configuration is returned unchanged when every word is governed.
func Repair(cfg *Configuration, sess *session.Session) (*Configuration, error) {
	rules, err := sess.Rules()
	if err != nil {
		return nil, &feature.ConfigurationError{Resource: "linguistic rules", Err: err}
	}
	label := sess.PunctuationLabel()
	if label == "" {
		return nil, &feature.ConfigurationError{Resource: "punctuation label", Err: ErrNoPunctuationLabel}
	}

	ungoverned := cfg.Ungoverned()
	if len(ungoverned) == 0 {
		return cfg, nil
	}

	next := cfg.clone()
	for _, i := range ungoverned {
		governor := 0
		for j := i - 1; j >= 1; j-- {
			tok, _ := next.Token(j)
			if rules.IsPunctuation(tok.PosTag) || next.dominates(i, j) {
				continue
			}
			governor = j
			break
		}
		next.addArc(Arc{Governor: governor, Dependent: i, Label: label, Comment: RepairComment})
	}
	return next, nil
}
