package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/spf13/cobra"
)

// OracleJSON is the JSON form of one oracle sequence.
type OracleJSON struct {
	Index     int      `json:"index"`
	Sentence  string   `json:"sentence"`
	Decisions []string `json:"decisions,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// NewOracleCommand creates the oracle command.
func NewOracleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "oracle <gold.yaml|->",
		Short: "Derive gold transition sequences from annotated sentences",
		Long: `Compute the arc-eager decision sequence that rebuilds each gold tree.
Every token of the input must carry a head and a label. Non-projective
trees cannot be derived and are reported as such.`,
		Example: `  beamline oracle gold.yaml
  beamline oracle gold.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOracle(cmd, args[0])
		},
	}
}

func runOracle(cmd *cobra.Command, input string) error {
	c := NewCommandContext(cmd)

	in, err := readInput(cmd, input)
	if err != nil {
		return err
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	sys, err := depparse.NewArcEager(sess.Labels())
	if err != nil {
		return fmt.Errorf("%w\nHint: list dependency labels in the resources file", err)
	}

	results := make([]OracleJSON, len(in))
	failed, nonProjective := 0, 0
	for i, s := range in {
		results[i] = OracleJSON{Index: i}
		decisions, err := derive(sys, s, &results[i])
		if err != nil {
			failed++
			if errors.Is(err, depparse.ErrNonProjective) {
				nonProjective++
			}
			results[i].Error = err.Error()
			c.Logger.Debug("oracle failed", "index", i, "error", err)
			continue
		}
		results[i].Decisions = decisions
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		if err := c.Renderer.JSON(results); err != nil {
			return err
		}
	} else {
		renderOracle(c.Renderer, results, nonProjective)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sentences have no oracle sequence", failed, len(in))
	}
	return nil
}

func derive(sys *depparse.ArcEager, in depparse.InputSentence, out *OracleJSON) ([]string, error) {
	s, err := in.Sentence()
	if err != nil {
		return nil, err
	}
	out.Sentence = s.String()
	gold, err := in.Gold()
	if err != nil {
		return nil, err
	}
	decisions, err := depparse.Oracle(sys, s, gold)
	if err != nil {
		return nil, err
	}
	if err := depparse.Verify(sys, s, gold, decisions); err != nil {
		return nil, err
	}
	codes := make([]string, len(decisions))
	for i, d := range decisions {
		codes[i] = d.Code()
	}
	return codes, nil
}

func renderOracle(r *output.Renderer, results []OracleJSON, nonProjective int) {
	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Sentence", "Decisions"})
	for _, res := range results {
		decisions := r.Styles().Error.Render(res.Error)
		if res.Error == "" {
			decisions = strings.Join(res.Decisions, " ")
		}
		t.AppendRow(table.Row{res.Index, res.Sentence, decisions})
	}
	t.Render()

	if nonProjective > 0 {
		r.Warning(fmt.Sprintf("%d non-projective sentences skipped", nonProjective))
	}
}
