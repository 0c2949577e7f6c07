package descriptor_test

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/beamline/pkg/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Literals(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind descriptor.Kind
	}{
		{name: "integer", text: "23", kind: descriptor.KindInt},
		{name: "double", text: "23.2", kind: descriptor.KindDouble},
		{name: "true", text: "true", kind: descriptor.KindBool},
		{name: "false", text: "false", kind: descriptor.KindBool},
		{name: "double quoted", text: `"ponct"`, kind: descriptor.KindString},
		{name: "single quoted", text: `'ponct'`, kind: descriptor.KindString},
		{name: "bare call", text: "Word", kind: descriptor.KindCall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := descriptor.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind)
		})
	}
}

func TestParse_IntegerAndDoubleAreLexicallyDistinct(t *testing.T) {
	d, err := descriptor.Parse("23-12")
	require.NoError(t, err)
	require.Equal(t, descriptor.KindOperator, d.Kind)
	assert.Equal(t, "-", d.Name)
	assert.Equal(t, descriptor.KindInt, d.Args[0].Kind)
	assert.Equal(t, 23, d.Args[0].Int)
	assert.Equal(t, descriptor.KindInt, d.Args[1].Kind)
	assert.Equal(t, 12, d.Args[1].Int)

	d, err = descriptor.Parse("23.2-12")
	require.NoError(t, err)
	assert.Equal(t, descriptor.KindDouble, d.Args[0].Kind)
	assert.InDelta(t, 23.2, d.Args[0].Double, 1e-9)
	assert.Equal(t, descriptor.KindInt, d.Args[1].Kind)
}

func TestParse_Precedence(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"1+2*3", "1+(2*3)"},
		{"1*2+3", "(1*2)+3"},
		{"1-2-3", "(1-2)-3"},
		{"8/4/2", "(8/4)/2"},
		{"1+2==3", "(1+2)==3"},
		{"(1+2)*3", "(1+2)*3"},
		{"-3*2", "-3*2"},
		{"2--3", "2--3"},
		{"-Stack(0)", "0-Stack(0)"},
		{`Concat(Word(Stack(0)),"_",PosTag(Buffer(0)))`, `Concat(Word(Stack(0)),"_",PosTag(Buffer(0)))`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d, err := descriptor.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestParse_Calls(t *testing.T) {
	d, err := descriptor.Parse("TestArgs(2-1,TestNoArgs())==4")
	require.NoError(t, err)
	require.Equal(t, "==", d.Name)

	call := d.Args[0]
	assert.Equal(t, descriptor.KindCall, call.Kind)
	assert.Equal(t, "TestArgs", call.Name)
	require.Len(t, call.Args, 2)
	assert.Equal(t, "-", call.Args[0].Name)
	assert.Equal(t, "TestNoArgs", call.Args[1].Name)
	assert.True(t, call.Args[1].Parens)
	assert.Empty(t, call.Args[1].Args)

	bare, err := descriptor.Parse("TestNoArgs")
	require.NoError(t, err)
	assert.False(t, bare.Parens)
}

func TestParse_NamedDefinitions(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		defName   string
		params    []string
		hasParams bool
		body      string
	}{
		{
			name:      "macro with parameters",
			text:      "TestArgs(X,Y)\tX+Y",
			defName:   "TestArgs",
			params:    []string{"X", "Y"},
			hasParams: true,
			body:      "X+Y",
		},
		{
			name:    "named feature",
			text:    "TestNoArgs\t1+2",
			defName: "TestNoArgs",
			body:    "1+2",
		},
		{
			name:      "zero argument macro",
			text:      "TestZeroArgs()\t3+4",
			defName:   "TestZeroArgs",
			hasParams: true,
			body:      "3+4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := descriptor.Parse(tt.text)
			require.NoError(t, err)
			assert.True(t, d.IsNamed())
			assert.Equal(t, tt.defName, d.DefName)
			assert.Equal(t, tt.params, d.Params)
			assert.Equal(t, tt.hasParams, d.HasParams)
			assert.Equal(t, tt.hasParams, d.IsMacro())
			assert.Equal(t, tt.body, d.Body().String())
			assert.Equal(t, tt.text, d.Source)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		msg  string
	}{
		{name: "empty", text: "", msg: "empty expression"},
		{name: "dangling operator", text: "1+", msg: "unexpected token EOF"},
		{name: "unclosed call", text: "Word(Stack(0)", msg: "expected )"},
		{name: "single equals", text: "1=1", msg: "unexpected ILLEGAL"},
		{name: "trailing tokens", text: "1 2", msg: "after end of expression"},
		{name: "unterminated string", text: `"abc`, msg: "unterminated string literal"},
		{name: "non identifier parameter", text: "Bad(1)\t1", msg: "macro parameter must be an identifier"},
		{name: "duplicate parameter", text: "Bad(X,X)\tX", msg: "duplicate macro parameter"},
		{name: "empty body", text: "Name\t", msg: "empty expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := descriptor.Parse(tt.text)
			require.Error(t, err)
			assert.True(t, descriptor.IsSyntaxError(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParseAll(t *testing.T) {
	input := strings.Join([]string{
		"# parser features",
		"",
		"TestArgs(X,Y)\tX+Y",
		"TestArgs(1,2)",
		"  PosTag(Stack(0))",
	}, "\n")

	ds, err := descriptor.ParseAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds, 3)
	assert.Equal(t, "TestArgs", ds[0].DefName)
	assert.Equal(t, "TestArgs(1,2)", ds[1].String())
	assert.Equal(t, "PosTag(Stack(0))", ds[2].String())
}

func TestParseAll_ReportsLine(t *testing.T) {
	_, err := descriptor.ParseAll(strings.NewReader("1+2\n\n3*\n"))
	require.Error(t, err)

	var lineErr *descriptor.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 3, lineErr.Line)
	assert.True(t, descriptor.IsSyntaxError(err))
	assert.Contains(t, err.Error(), `"3*"`)
}

func TestSubstitute(t *testing.T) {
	def, err := descriptor.Parse("TestArgs(X,Y)\tX+Y*X")
	require.NoError(t, err)
	one, err := descriptor.Parse("2-1")
	require.NoError(t, err)
	two, err := descriptor.Parse("Word(Stack(0))")
	require.NoError(t, err)

	got := def.Body().Substitute(map[string]*descriptor.Descriptor{"X": one, "Y": two})
	assert.Equal(t, "(2-1)+(Word(Stack(0))*(2-1))", got.String())
	// the definition itself is untouched
	assert.Equal(t, "X+(Y*X)", def.Body().String())
}
