// Package testutil provides fixtures for CLI tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/beamline/internal/cli/output"
)

// Project file contents written by SetupTestProject.
const (
	ConfigYAML = `beam_width: 2
features: features.txt
model: model.yaml
resources: resources.yaml
journal_path: journal.db
workers: 2
`

	FeaturesText = `# parser features
Top	PosTag(Stack(0))
Next	PosTag(Buffer(0))
Word(Buffer(0))
Pair	Concat(Top, "_", Next)
StackSize()
`

	ModelYAML = `name: toy
bias:
  Shift: 0.5
weights:
  "Pair|DET_NC":
    LeftArc[det]: 3
  "Pair|NC_V":
    LeftArc[suj]: 3
  "Pair|[ROOT]_V":
    RightArc[root]: 3
  "Pair|V_PONCT":
    RightArc[ponct]: 3
`

	ResourcesYAML = `locale: fr
tagset: toy
tags: [DET, NC, V, PONCT]
punctuation_tags: [PONCT]
labels: [det, suj, root, ponct]
punctuation_label: ponct
lexicon:
  dort: dormir
`

	SentencesYAML = `- tokens:
    - {form: Le, pos: DET, head: 2, label: det}
    - {form: chat, pos: NC, head: 3, label: suj}
    - {form: dort, pos: V, head: 0, label: root}
    - {form: ".", pos: PONCT, head: 3, label: ponct}
- tokens:
    - {form: Il, pos: NC, head: 2, label: suj}
    - {form: dort, pos: V, head: 0, label: root}
`
)

// SetupTestProject writes a complete project into a temporary directory
// and returns its path.
func SetupTestProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"beamline.yaml":  ConfigYAML,
		"features.txt":   FeaturesText,
		"model.yaml":     ModelYAML,
		"resources.yaml": ResourcesYAML,
		"sentences.yaml": SentencesYAML,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

// TestRenderer wraps a Renderer with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a renderer writing to buffers.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
