package session_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/beamline/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frenchResources = `
locale: fr
tagset: ftb
tags: [DET, NC, V, P, PONCT, CLS]
punctuation_tags: [PONCT]
closed_class_tags: [DET, P, CLS]
labels: [det, suj, obj, mod, ponct, root]
punctuation_label: ponct
lexicon:
  mangeait: manger
  les: le
`

func TestParse(t *testing.T) {
	s, err := session.Parse(strings.NewReader(frenchResources))
	require.NoError(t, err)

	locale, err := s.Locale()
	require.NoError(t, err)
	assert.Equal(t, "fr", locale.String())

	ts, err := s.TagSet()
	require.NoError(t, err)
	assert.Equal(t, "ftb", ts.Name)
	assert.True(t, ts.Contains("NC"))
	assert.False(t, ts.Contains("NOUN"))

	rules, err := s.Rules()
	require.NoError(t, err)
	assert.True(t, rules.IsPunctuation("PONCT"))
	assert.True(t, rules.IsClosedClass("DET"))
	assert.False(t, rules.IsClosedClass("NC"))

	lex, err := s.Lexicon()
	require.NoError(t, err)
	lemma, ok := lex.Lemma("mangeait")
	assert.True(t, ok)
	assert.Equal(t, "manger", lemma)

	assert.Equal(t, "ponct", s.PunctuationLabel())
	assert.Contains(t, s.Labels(), "obj")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{name: "unknown field", input: "colour: blue\n", msg: "failed to decode resources"},
		{name: "bad locale", input: "locale: '!!'\n", msg: "invalid locale"},
		{name: "punctuation label outside labels", input: "labels: [det]\npunctuation_label: ponct\n", msg: "punctuation label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := session.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestMissingResources(t *testing.T) {
	s := session.New()

	_, err := s.Rules()
	assert.ErrorIs(t, err, session.ErrNoRules)
	_, err = s.TagSet()
	assert.ErrorIs(t, err, session.ErrNoTagSet)
	_, err = s.Lexicon()
	assert.ErrorIs(t, err, session.ErrNoLexicon)
	_, err = s.Locale()
	assert.ErrorIs(t, err, session.ErrNoLocale)

	var nilSession *session.Session
	_, err = nilSession.Rules()
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Empty(t, nilSession.PunctuationLabel())
}

func TestNew_CopiesInputs(t *testing.T) {
	labels := []string{"det", "ponct"}
	rules := &session.Rules{PunctuationTags: []string{"PONCT"}}
	s := session.New(session.WithLabels(labels, "ponct"), session.WithRules(rules))

	labels[0] = "changed"
	rules.PunctuationTags[0] = "changed"

	assert.Equal(t, []string{"det", "ponct"}, s.Labels())
	got, err := s.Rules()
	require.NoError(t, err)
	assert.True(t, got.IsPunctuation("PONCT"))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(frenchResources), 0o644))

	s, err := session.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ponct", s.PunctuationLabel())

	_, err = session.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
