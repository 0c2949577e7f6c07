// Package session holds the read-only, language-specific data shared by
// every decoding call: locale, tag set, lexicon, linguistic rules and the
// dependency label set.
//
// A Session is built once at start-up and never mutated afterwards, so it
// may be shared by concurrent decoding calls without locking.
package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Sentinel errors returned by accessors when a resource was not provided.
var (
	ErrNoSession = errors.New("no session available")
	ErrNoRules   = errors.New("no linguistic rules set")
	ErrNoTagSet  = errors.New("no tag set")
	ErrNoLexicon = errors.New("no lexicon")
	ErrNoLocale  = errors.New("no locale")
)

// TagSet is a named set of part-of-speech tags.
type TagSet struct {
	Name string
	Tags []string
}

// Contains reports whether tag belongs to the tag set.
func (ts *TagSet) Contains(tag string) bool {
	return slices.Contains(ts.Tags, tag)
}

// Lexicon maps word forms to lemmas.
type Lexicon map[string]string

// Lemma returns the lemma registered for form.
func (l Lexicon) Lemma(form string) (string, bool) {
	lemma, ok := l[form]
	return lemma, ok
}

// Rules are the linguistic rules consulted by features and repair passes.
type Rules struct {
	PunctuationTags []string
	ClosedClassTags []string
}

// IsPunctuation reports whether tag marks punctuation.
func (r *Rules) IsPunctuation(tag string) bool {
	return slices.Contains(r.PunctuationTags, tag)
}

// IsClosedClass reports whether tag marks a closed-class word.
func (r *Rules) IsClosedClass(tag string) bool {
	return slices.Contains(r.ClosedClassTags, tag)
}

// Session is the immutable shared data of a processing session.
type Session struct {
	locale           language.Tag
	hasLocale        bool
	tagSet           *TagSet
	lexicon          Lexicon
	rules            *Rules
	labels           []string
	punctuationLabel string
}

// Option configures a Session under construction.
type Option func(*Session)

// WithLocale sets the session locale.
func WithLocale(tag language.Tag) Option {
	return func(s *Session) {
		s.locale = tag
		s.hasLocale = true
	}
}

// WithTagSet sets the tag set.
func WithTagSet(ts *TagSet) Option {
	return func(s *Session) { s.tagSet = ts }
}

// WithLexicon sets the lexicon.
func WithLexicon(l Lexicon) Option {
	return func(s *Session) { s.lexicon = l }
}

// WithRules sets the linguistic rules.
func WithRules(r *Rules) Option {
	return func(s *Session) { s.rules = r }
}

// WithLabels sets the dependency labels and the label used when attaching
// tokens that have no explicit relation.
func WithLabels(labels []string, punctuationLabel string) Option {
	return func(s *Session) {
		s.labels = labels
		s.punctuationLabel = punctuationLabel
	}
}

// New builds a session. Slices and maps passed in are copied.
func New(opts ...Option) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.tagSet != nil {
		ts := *s.tagSet
		ts.Tags = slices.Clone(ts.Tags)
		s.tagSet = &ts
	}
	if s.rules != nil {
		r := *s.rules
		r.PunctuationTags = slices.Clone(r.PunctuationTags)
		r.ClosedClassTags = slices.Clone(r.ClosedClassTags)
		s.rules = &r
	}
	if s.lexicon != nil {
		lex := make(Lexicon, len(s.lexicon))
		for k, v := range s.lexicon {
			lex[k] = v
		}
		s.lexicon = lex
	}
	s.labels = slices.Clone(s.labels)
	return s
}

// Locale returns the session locale.
func (s *Session) Locale() (language.Tag, error) {
	if s == nil {
		return language.Und, ErrNoSession
	}
	if !s.hasLocale {
		return language.Und, ErrNoLocale
	}
	return s.locale, nil
}

// TagSet returns the tag set.
func (s *Session) TagSet() (*TagSet, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if s.tagSet == nil {
		return nil, ErrNoTagSet
	}
	return s.tagSet, nil
}

// Lexicon returns the lexicon.
func (s *Session) Lexicon() (Lexicon, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if s.lexicon == nil {
		return nil, ErrNoLexicon
	}
	return s.lexicon, nil
}

// Rules returns the linguistic rules.
func (s *Session) Rules() (*Rules, error) {
	if s == nil {
		return nil, ErrNoSession
	}
	if s.rules == nil {
		return nil, ErrNoRules
	}
	return s.rules, nil
}

// Labels returns a copy of the dependency label set.
func (s *Session) Labels() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.labels)
}

// PunctuationLabel returns the fallback label for ungoverned tokens.
func (s *Session) PunctuationLabel() string {
	if s == nil {
		return ""
	}
	return s.punctuationLabel
}

// resourceFile is the YAML layout of a language resource description.
type resourceFile struct {
	Locale           string            `yaml:"locale"`
	TagSet           string            `yaml:"tagset"`
	Tags             []string          `yaml:"tags"`
	PunctuationTags  []string          `yaml:"punctuation_tags"`
	ClosedClassTags  []string          `yaml:"closed_class_tags"`
	Labels           []string          `yaml:"labels"`
	PunctuationLabel string            `yaml:"punctuation_label"`
	Lexicon          map[string]string `yaml:"lexicon"`
}

// Parse reads a YAML resource description and builds a session.
func Parse(r io.Reader) (*Session, error) {
	var rf resourceFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	var opts []Option
	if rf.Locale != "" {
		tag, err := language.Parse(rf.Locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", rf.Locale, err)
		}
		opts = append(opts, WithLocale(tag))
	}
	if len(rf.Tags) > 0 {
		opts = append(opts, WithTagSet(&TagSet{Name: rf.TagSet, Tags: rf.Tags}))
	}
	if len(rf.PunctuationTags) > 0 || len(rf.ClosedClassTags) > 0 {
		opts = append(opts, WithRules(&Rules{
			PunctuationTags: rf.PunctuationTags,
			ClosedClassTags: rf.ClosedClassTags,
		}))
	}
	if rf.Lexicon != nil {
		opts = append(opts, WithLexicon(rf.Lexicon))
	}
	if rf.PunctuationLabel != "" && !slices.Contains(rf.Labels, rf.PunctuationLabel) {
		return nil, fmt.Errorf("punctuation label %q is not one of the labels %v", rf.PunctuationLabel, rf.Labels)
	}
	opts = append(opts, WithLabels(rf.Labels, rf.PunctuationLabel))

	return New(opts...), nil
}

// Load reads a YAML resource description from path.
func Load(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resources: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
