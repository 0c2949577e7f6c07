package depparse_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/leapstack-labs/beamline/pkg/feature"
	"github.com/leapstack-labs/beamline/pkg/session"
	"github.com/leapstack-labs/beamline/pkg/transition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"det", "suj", "root", "ponct"}

func sentence() *depparse.Sentence {
	return depparse.NewSentence(
		depparse.Token{Form: "Le", PosTag: "DET"},
		depparse.Token{Form: "chat", PosTag: "NC"},
		depparse.Token{Form: "dort", PosTag: "V", Lemma: "dormir"},
		depparse.Token{Form: ".", PosTag: "PONCT"},
	)
}

func gold() []depparse.Arc {
	return []depparse.Arc{
		{Governor: 2, Dependent: 1, Label: "det"},
		{Governor: 3, Dependent: 2, Label: "suj"},
		{Governor: 0, Dependent: 3, Label: "root"},
		{Governor: 3, Dependent: 4, Label: "ponct"},
	}
}

func frenchSession() *session.Session {
	return session.New(
		session.WithRules(&session.Rules{PunctuationTags: []string{"PONCT"}}),
		session.WithLexicon(session.Lexicon{"chat": "chat"}),
		session.WithLabels(labels, "ponct"),
	)
}

func newSystem(t *testing.T) *depparse.ArcEager {
	t.Helper()
	sys, err := depparse.NewArcEager(labels)
	require.NoError(t, err)
	return sys
}

func decisions(t *testing.T, codes ...string) []transition.Decision {
	t.Helper()
	out := make([]transition.Decision, len(codes))
	for i, c := range codes {
		d, err := transition.ParseDecision(c)
		require.NoError(t, err)
		out[i] = d
	}
	return out
}

func codes(ds []transition.Decision) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Code()
	}
	return out
}

func TestNewArcEager_RequiresLabels(t *testing.T) {
	_, err := depparse.NewArcEager(nil)
	assert.ErrorIs(t, err, depparse.ErrNoLabels)
}

func TestArcEager_LegalDecisions(t *testing.T) {
	sys := newSystem(t)
	s := sentence()

	tests := []struct {
		name    string
		history []string
		want    []string
	}{
		{
			name: "initial",
			want: []string{"Shift", "RightArc[det]", "RightArc[suj]", "RightArc[root]", "RightArc[ponct]"},
		},
		{
			name:    "ungoverned word on stack",
			history: []string{"Shift"},
			want: []string{
				"Shift",
				"LeftArc[det]", "LeftArc[suj]", "LeftArc[root]", "LeftArc[ponct]",
				"RightArc[det]", "RightArc[suj]", "RightArc[root]", "RightArc[ponct]",
			},
		},
		{
			name:    "governed word on stack",
			history: []string{"RightArc[root]"},
			want:    []string{"Shift", "Reduce", "RightArc[det]", "RightArc[suj]", "RightArc[root]", "RightArc[ponct]"},
		},
		{
			name:    "exhausted buffer",
			history: []string{"Shift", "Shift", "Shift", "Shift"},
			want:    []string{"Reduce"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(s), decisions(t, tt.history...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, codes(sys.LegalDecisions(cfg)))
		})
	}
}

func TestArcEager_Apply(t *testing.T) {
	sys := newSystem(t)
	initial := depparse.NewConfiguration(sentence())

	next, err := sys.Apply(initial, transition.Decision{Transition: depparse.Shift})
	require.NoError(t, err)

	// the input configuration is untouched
	assert.Equal(t, 1, initial.StackSize())
	assert.Equal(t, 4, initial.BufferSize())
	assert.Empty(t, initial.History())
	assert.NotEqual(t, initial.ContextID(), next.ContextID())

	top, ok := next.Stack(0)
	require.True(t, ok)
	assert.Equal(t, 1, top)
	assert.Equal(t, 3, next.BufferSize())

	next, err = sys.Apply(next, transition.Decision{Transition: depparse.LeftArc, Label: "det"})
	require.NoError(t, err)
	gov, ok := next.Governor(1)
	require.True(t, ok)
	assert.Equal(t, 2, gov)
	label, _ := next.Label(1)
	assert.Equal(t, "det", label)
	assert.Equal(t, "Shift LeftArc[det]", depparse.TransitionSequence(next))
}

func TestArcEager_ApplyIllegal(t *testing.T) {
	sys := newSystem(t)
	initial := depparse.NewConfiguration(sentence())

	tests := []transition.Decision{
		{Transition: depparse.Reduce},
		{Transition: depparse.LeftArc, Label: "det"},
		{Transition: depparse.RightArc, Label: "nope"},
		{Transition: "Swap"},
	}
	for _, d := range tests {
		t.Run(d.Code(), func(t *testing.T) {
			_, err := sys.Apply(initial, d)
			var illegal *transition.IllegalDecisionError
			require.ErrorAs(t, err, &illegal)
			assert.Equal(t, d, illegal.Decision)
		})
	}
}

func TestOracle(t *testing.T) {
	sys := newSystem(t)
	s := sentence()

	ds, err := depparse.Oracle(sys, s, gold())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Shift", "LeftArc[det]", "Shift", "LeftArc[suj]",
		"RightArc[root]", "RightArc[ponct]", "Reduce", "Reduce",
	}, codes(ds))

	final, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(s), ds)
	require.NoError(t, err)
	assert.True(t, sys.IsTerminal(final))
	assert.ElementsMatch(t, gold(), final.Arcs())
	assert.NoError(t, depparse.Verify(sys, s, gold(), ds))
}

func TestVerify(t *testing.T) {
	sys := newSystem(t)
	s := sentence()
	ds, err := depparse.Oracle(sys, s, gold())
	require.NoError(t, err)

	tests := []struct {
		name      string
		gold      []depparse.Arc
		decisions []transition.Decision
		wantErr   string
	}{
		{
			name:      "stops before terminal",
			gold:      gold(),
			decisions: ds[:len(ds)-1],
			wantErr:   "before a terminal configuration",
		},
		{
			name:      "illegal decision",
			gold:      gold(),
			decisions: decisions(t, "Reduce"),
			wantErr:   "replay: decision 0",
		},
		{
			name: "label differs from gold",
			gold: []depparse.Arc{
				{Governor: 2, Dependent: 1, Label: "obj"},
				{Governor: 3, Dependent: 2, Label: "suj"},
				{Governor: 0, Dependent: 3, Label: "root"},
				{Governor: 3, Dependent: 4, Label: "ponct"},
			},
			decisions: ds,
			wantErr:   "not in gold",
		},
		{
			name:      "gold has extra arcs",
			gold:      append(gold(), depparse.Arc{Governor: 3, Dependent: 5, Label: "obj"}),
			decisions: ds,
			wantErr:   "built 4 of 5 gold arcs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := depparse.Verify(sys, s, tt.gold, tt.decisions)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOracle_Errors(t *testing.T) {
	sys := newSystem(t)
	s := sentence()

	crossing := []depparse.Arc{
		{Governor: 3, Dependent: 1, Label: "det"},
		{Governor: 0, Dependent: 2, Label: "root"},
		{Governor: 2, Dependent: 3, Label: "suj"},
		{Governor: 1, Dependent: 4, Label: "ponct"},
	}
	_, err := depparse.Oracle(sys, s, crossing)
	assert.ErrorIs(t, err, depparse.ErrNonProjective)

	_, err = depparse.Oracle(sys, s, gold()[:3])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cover 3 of 4")

	dup := append(gold(), depparse.Arc{Governor: 0, Dependent: 1, Label: "root"})
	_, err = depparse.Oracle(sys, s, dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two governors")
}

func TestRepair(t *testing.T) {
	sys := newSystem(t)
	sess := frenchSession()

	t.Run("attaches to previous non punctuation word", func(t *testing.T) {
		cfg, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(sentence()),
			decisions(t, "Shift", "Shift", "Shift", "Shift"))
		require.NoError(t, err)

		repaired, err := depparse.Repair(cfg, sess)
		require.NoError(t, err)
		assert.Empty(t, repaired.Ungoverned())
		assert.Len(t, cfg.Ungoverned(), 4, "input untouched")

		assert.Equal(t, []depparse.Arc{
			{Governor: 0, Dependent: 1, Label: "ponct", Comment: "repair"},
			{Governor: 1, Dependent: 2, Label: "ponct", Comment: "repair"},
			{Governor: 2, Dependent: 3, Label: "ponct", Comment: "repair"},
			{Governor: 3, Dependent: 4, Label: "ponct", Comment: "repair"},
		}, repaired.Arcs())
	})

	t.Run("skips punctuation and descendants", func(t *testing.T) {
		s := depparse.NewSentence(
			depparse.Token{Form: "Oui", PosTag: "ADV"},
			depparse.Token{Form: ",", PosTag: "PONCT"},
			depparse.Token{Form: "le", PosTag: "DET"},
			depparse.Token{Form: "chat", PosTag: "NC"},
		)
		cfg, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(s),
			decisions(t, "Shift", "Shift", "Shift", "LeftArc[det]", "Shift"))
		require.NoError(t, err)

		repaired, err := depparse.Repair(cfg, sess)
		require.NoError(t, err)

		govs := map[int]int{}
		for _, a := range repaired.Arcs() {
			govs[a.Dependent] = a.Governor
		}
		assert.Equal(t, 0, govs[1])
		assert.Equal(t, 1, govs[2])
		assert.Equal(t, 4, govs[3])
		// "le" is a dependent of "chat", "," is punctuation
		assert.Equal(t, 1, govs[4])
	})

	t.Run("complete analysis is returned as is", func(t *testing.T) {
		ds, err := depparse.Oracle(sys, sentence(), gold())
		require.NoError(t, err)
		cfg, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(sentence()), ds)
		require.NoError(t, err)

		repaired, err := depparse.Repair(cfg, sess)
		require.NoError(t, err)
		assert.Same(t, cfg, repaired)
	})

	t.Run("missing rules", func(t *testing.T) {
		_, err := depparse.Repair(depparse.NewConfiguration(sentence()), session.New())
		require.Error(t, err)
		assert.True(t, feature.IsConfigurationError(err))
		assert.ErrorIs(t, err, session.ErrNoRules)
	})
}

func TestFeatures(t *testing.T) {
	sys := newSystem(t)
	cfg, err := transition.Run[*depparse.Configuration](sys, depparse.NewConfiguration(sentence()),
		decisions(t, "Shift", "LeftArc[det]", "Shift"))
	require.NoError(t, err)

	tests := []struct {
		text string
		want any // nil means absent
	}{
		{"Word(Stack(0))", "chat"},
		{"Word(Stack(1))", depparse.RootForm},
		{"PosTag(Buffer(0))", "V"},
		{"Word(Buffer(5))", nil},
		{"Head(Stack(0))", nil},
		{"LeftDep(Stack(0))", 1},
		{"Word(LeftDep(Stack(0)))", "Le"},
		{"DepLabel(LeftDep(Stack(0)))", "det"},
		{"RightDep(Stack(0))", nil},
		{"Distance(Stack(0),Buffer(0))", 1},
		{"DependentCount(Stack(0))", 1},
		{"IsPunctuation(Buffer(1))", true},
		{"IsPunctuation(Buffer(0))", false},
		{"StackSize()", 2},
		{"BufferSize()", 2},
		{"Lemma(Stack(0))", "chat"},
		{"Lemma(Buffer(0))", "dormir"},
		{"Lemma(Buffer(1))", nil},
		{`Concat(PosTag(Stack(0)),"_",PosTag(Buffer(0)))`, "NC_V"},
		{"IsNull(Head(Stack(0)))", true},
	}

	c := depparse.NewCompiler(nil)
	env := feature.NewEnvironment(frenchSession())
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			fs, err := c.CompileText(tt.text)
			require.NoError(t, err)
			require.Len(t, fs, 1)

			r, err := feature.Evaluate(fs[0], cfg, env)
			require.NoError(t, err)
			v, ok := r.Get()
			if tt.want == nil {
				assert.False(t, ok, "expected absent, got %v", v)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestFeatures_ConfigurationErrors(t *testing.T) {
	c := depparse.NewCompiler(nil)
	cfg := depparse.NewConfiguration(sentence())

	for _, text := range []string{"IsPunctuation(Buffer(0))", "Lemma(Buffer(1))"} {
		t.Run(text, func(t *testing.T) {
			fs, err := c.CompileText(text)
			require.NoError(t, err)
			_, err = feature.Evaluate(fs[0], cfg, feature.NewEnvironment(session.New()))
			require.Error(t, err)
			assert.True(t, feature.IsConfigurationError(err))
		})
	}
}

func TestCompileFile(t *testing.T) {
	input := strings.Join([]string{
		"# arc-eager features",
		"Pair(X,Y)\tConcat(PosTag(X),\"_\",PosTag(Y))",
		"Pair(Stack(0),Buffer(0))",
		"Pair",
		"Top\tWord(Stack(0))",
	}, "\n")

	fs, err := depparse.CompileFile(strings.NewReader(input), nil)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "Pair(Stack(0),Buffer(0))", fs[0].Name())
	assert.Equal(t, "Top", fs[1].Name())
}

func TestReadSentences(t *testing.T) {
	input := `
- tokens:
    - {form: Le, pos: DET, head: 2, label: det}
    - {form: chat, pos: NC, head: 3, label: suj}
    - {form: dort, pos: V, lemma: dormir, head: 0, label: root}
- tokens:
    - {form: Oui, pos: ADV}
`
	in, err := depparse.ReadSentences(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, in, 2)

	s, err := in[0].Sentence()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "Le chat dort", s.String())
	tok, _ := s.Token(3)
	assert.Equal(t, "dormir", tok.Lemma)

	arcs, err := in[0].Gold()
	require.NoError(t, err)
	assert.Equal(t, depparse.Arc{Governor: 0, Dependent: 3, Label: "root"}, arcs[2])

	_, err = in[1].Gold()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no gold head")

	_, err = depparse.InputSentence{}.Sentence()
	assert.ErrorIs(t, err, depparse.ErrEmptySentence)

	_, err = depparse.ReadSentences(strings.NewReader("- colour: red\n"))
	require.Error(t, err)
}
