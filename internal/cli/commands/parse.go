package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/internal/journal"
	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/internal/pipeline"
	"github.com/leapstack-labs/beamline/pkg/beam"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	Trace     bool
	NoJournal bool
}

// SentenceJSON is the JSON form of one parsed sentence.
type SentenceJSON struct {
	Index     int            `json:"index"`
	Sentence  string         `json:"sentence"`
	Arcs      []depparse.Arc `json:"arcs,omitempty"`
	Decisions string         `json:"decisions,omitempty"`
	Score     float64        `json:"score"`
	Steps     int            `json:"steps"`
	Partial   bool           `json:"partial"`
	Error     string         `json:"error,omitempty"`
	Trace     []beam.Step    `json:"trace,omitempty"`
}

// ParseJSON is the JSON output of the parse command.
type ParseJSON struct {
	RunID     string         `json:"run_id,omitempty"`
	Sentences []SentenceJSON `json:"sentences"`
	Partial   int            `json:"partial"`
	Failed    int            `json:"failed"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <sentences.yaml|->",
		Short: "Parse sentences with the beam decoder",
		Long: `Decode every sentence of the input file and print the dependency arcs
of the best analysis. Use "-" to read from standard input.

Each run is recorded in the journal unless --no-journal is set.`,
		Example: `  beamline parse sentences.yaml
  beamline parse --beam-width 4 --propagate-beam sentences.yaml
  cat sentences.yaml | beamline parse - -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "Print the decoding trace (implies --include-details)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "Do not record the run in the journal")

	return cmd
}

func runParse(cmd *cobra.Command, input string, opts *ParseOptions) error {
	c := NewCommandContext(cmd)
	if opts.Trace {
		c.Cfg.IncludeDetails = true
	}

	in, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	sentences, err := toSentences(in)
	if err != nil {
		return err
	}

	var store *journal.Store
	if !opts.NoJournal {
		if store, err = c.Journal(); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	p, err := c.Pipeline(store, metrics.New())
	if err != nil {
		return err
	}

	summary, runErr := p.Run(cmd.Context(), "parse", sentences)
	if summary == nil {
		return runErr
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		if err := c.Renderer.JSON(parseJSON(summary, opts.Trace)); err != nil {
			return err
		}
	} else {
		renderParse(c.Renderer, summary, opts.Trace)
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d sentences failed", summary.Failed, len(summary.Results))
	}
	return nil
}

func toSentences(in []depparse.InputSentence) ([]*depparse.Sentence, error) {
	out := make([]*depparse.Sentence, len(in))
	var errs []error
	for i, s := range in {
		sent, err := s.Sentence()
		if err != nil {
			errs = append(errs, fmt.Errorf("sentence %d: %w", i, err))
			continue
		}
		out[i] = sent
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func parseJSON(s *pipeline.Summary, trace bool) ParseJSON {
	out := ParseJSON{
		RunID:     s.RunID,
		Sentences: make([]SentenceJSON, 0, len(s.Results)),
		Partial:   s.Partial,
		Failed:    s.Failed,
		ElapsedMS: s.Elapsed.Milliseconds(),
	}
	for _, res := range s.Results {
		sj := SentenceJSON{Index: res.Index, Sentence: res.Sentence.String()}
		if res.Err != nil {
			sj.Error = res.Err.Error()
		} else {
			sj.Arcs = res.Parse.Arcs()
			sj.Decisions = depparse.TransitionSequence(res.Outcome.Best.Config)
			sj.Score = res.Outcome.Best.Score
			sj.Steps = res.Outcome.Steps
			sj.Partial = res.Outcome.Partial
			if trace {
				sj.Trace = res.Outcome.Trace
			}
		}
		out.Sentences = append(out.Sentences, sj)
	}
	return out
}

func renderParse(r *output.Renderer, s *pipeline.Summary, trace bool) {
	styles := r.Styles()
	for _, res := range s.Results {
		r.Header(2, fmt.Sprintf("#%d %s", res.Index, res.Sentence))
		if res.Err != nil {
			r.Println(styles.Error.Render("error: " + res.Err.Error()))
			r.Println("")
			continue
		}

		renderArcs(r, res.Sentence, res.Parse)
		r.Muted(fmt.Sprintf("score %.4f, %d steps", res.Outcome.Best.Score, res.Outcome.Steps))
		if res.Outcome.Partial {
			r.Warning(fmt.Sprintf("sentence %d: analysis time exceeded, result is partial", res.Index))
		}
		if trace {
			beam.RenderTrace(r.Out(), res.Outcome.Trace)
		}
		r.Println("")
	}

	summary := []string{fmt.Sprintf("%d sentences", len(s.Results))}
	if s.Partial > 0 {
		summary = append(summary, fmt.Sprintf("%d partial", s.Partial))
	}
	if s.Failed > 0 {
		summary = append(summary, fmt.Sprintf("%d failed", s.Failed))
	}
	line := strings.Join(summary, ", ") + fmt.Sprintf(" in %s", s.Elapsed.Round(time.Millisecond))
	if s.Failed > 0 {
		r.Println(styles.Error.Render(line))
	} else {
		r.Success(line)
	}
	if s.RunID != "" {
		r.Muted("run " + s.RunID)
	}
}

func renderArcs(r *output.Renderer, s *depparse.Sentence, cfg *depparse.Configuration) {
	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Form", "Tag", "Head", "Label"})
	for i, tok := range s.Words() {
		idx := i + 1
		head, label := "_", "_"
		if g, ok := cfg.Governor(idx); ok {
			head = fmt.Sprint(g)
		}
		if l, ok := cfg.Label(idx); ok {
			label = l
		}
		t.AppendRow(table.Row{idx, tok.Form, tok.PosTag, head, label})
	}
	t.Render()
}
