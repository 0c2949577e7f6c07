// Package depparse is the dependency-parsing instantiation of the
// transition framework: parse configurations, the arc-eager transition
// system, a repair pass for incomplete analyses, a static oracle and the
// features that read parse configurations.
package depparse

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// RootForm is the form and tag of the artificial root token.
const RootForm = "[ROOT]"

// Token is one word of a sentence. Index 0 is the artificial root.
type Token struct {
	Index  int    `json:"index"`
	Form   string `json:"form"`
	PosTag string `json:"pos,omitempty"`
	Lemma  string `json:"lemma,omitempty"`
}

// IsRoot reports whether t is the artificial root.
func (t Token) IsRoot() bool {
	return t.Index == 0
}

// Sentence is a tokenised, tagged sentence preceded by the root token.
type Sentence struct {
	tokens []Token
}

// NewSentence builds a sentence from words, assigning indices from 1.
func NewSentence(words ...Token) *Sentence {
	tokens := make([]Token, 0, len(words)+1)
	tokens = append(tokens, Token{Index: 0, Form: RootForm, PosTag: RootForm})
	for i, w := range words {
		w.Index = i + 1
		tokens = append(tokens, w)
	}
	return &Sentence{tokens: tokens}
}

// Len returns the number of words, excluding the root.
func (s *Sentence) Len() int {
	return len(s.tokens) - 1
}

// Token returns the token at index i.
func (s *Sentence) Token(i int) (Token, bool) {
	if i < 0 || i >= len(s.tokens) {
		return Token{}, false
	}
	return s.tokens[i], true
}

// Words returns the tokens excluding the root.
func (s *Sentence) Words() []Token {
	out := make([]Token, len(s.tokens)-1)
	copy(out, s.tokens[1:])
	return out
}

func (s *Sentence) String() string {
	forms := make([]string, 0, s.Len())
	for _, t := range s.tokens[1:] {
		forms = append(forms, t.Form)
	}
	return strings.Join(forms, " ")
}

// Arc is a labelled dependency from Governor to Dependent.
type Arc struct {
	Governor  int    `json:"governor"`
	Dependent int    `json:"dependent"`
	Label     string `json:"label"`
	Comment   string `json:"comment,omitempty"`
}

func (a Arc) String() string {
	return fmt.Sprintf("%s(%d, %d)", a.Label, a.Governor, a.Dependent)
}

// ErrEmptySentence is returned when an input sentence has no tokens.
var ErrEmptySentence = errors.New("sentence has no tokens")

// InputToken is the serialised form of a token, optionally carrying a
// gold governor and label.
type InputToken struct {
	Form   string `yaml:"form" json:"form"`
	PosTag string `yaml:"pos" json:"pos"`
	Lemma  string `yaml:"lemma,omitempty" json:"lemma,omitempty"`
	Head   *int   `yaml:"head,omitempty" json:"head,omitempty"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
}

// InputSentence is the serialised form of a sentence.
type InputSentence struct {
	Tokens []InputToken `yaml:"tokens" json:"tokens"`
}

// Sentence converts the input to a Sentence.
func (in InputSentence) Sentence() (*Sentence, error) {
	if len(in.Tokens) == 0 {
		return nil, ErrEmptySentence
	}
	words := make([]Token, len(in.Tokens))
	for i, t := range in.Tokens {
		if t.Form == "" {
			return nil, fmt.Errorf("token %d has no form", i+1)
		}
		words[i] = Token{Form: t.Form, PosTag: t.PosTag, Lemma: t.Lemma}
	}
	return NewSentence(words...), nil
}

// Gold returns the gold arcs of the input. Every token must carry a head.
func (in InputSentence) Gold() ([]Arc, error) {
	arcs := make([]Arc, 0, len(in.Tokens))
	for i, t := range in.Tokens {
		if t.Head == nil {
			return nil, fmt.Errorf("token %d (%s) has no gold head", i+1, t.Form)
		}
		if *t.Head < 0 || *t.Head > len(in.Tokens) || *t.Head == i+1 {
			return nil, fmt.Errorf("token %d (%s) has invalid head %d", i+1, t.Form, *t.Head)
		}
		arcs = append(arcs, Arc{Governor: *t.Head, Dependent: i + 1, Label: t.Label})
	}
	return arcs, nil
}

// ReadSentences decodes a YAML (or JSON) list of sentences.
func ReadSentences(r io.Reader) ([]InputSentence, error) {
	var out []InputSentence
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode sentences: %w", err)
	}
	return out, nil
}
