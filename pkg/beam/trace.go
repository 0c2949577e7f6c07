package beam

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Step is one candidate considered during a generation.
type Step struct {
	Generation int     `json:"generation"`
	Rank       int     `json:"rank"`
	ParentRank int     `json:"parent_rank"`
	Decision   string  `json:"decision,omitempty"` // empty for a carried terminal
	Score      float64 `json:"score"`
	Total      float64 `json:"total"`
	Terminal   bool    `json:"terminal"`
	Kept       bool    `json:"kept"`
}

func (d *Decoder[C]) trace(generation int, candidates []candidate[C], kept int) []Step {
	steps := make([]Step, len(candidates))
	for i, c := range candidates {
		steps[i] = Step{
			Generation: generation,
			Rank:       i,
			ParentRank: c.parentRank,
			Decision:   c.decision,
			Score:      c.score,
			Total:      c.hyp.Score,
			Terminal:   c.hyp.Terminal,
			Kept:       i < kept,
		}
		d.logger.Debug("candidate",
			"generation", generation,
			"rank", i,
			"parent", c.parentRank,
			"decision", c.decision,
			"score", c.score,
			"total", c.hyp.Score,
			"kept", i < kept)
	}
	return steps
}

// RenderTrace writes the trace as a table.
func RenderTrace(w io.Writer, trace []Step) {
	if len(trace) == 0 {
		_, _ = fmt.Fprintln(w, "(no trace)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Gen", "Rank", "Parent", "Decision", "Score", "Total", "Kept"})

	for _, s := range trace {
		decision := s.Decision
		if decision == "" {
			decision = "(terminal)"
		}
		kept := ""
		if s.Kept {
			kept = "✓"
		}
		t.AppendRow(table.Row{
			s.Generation,
			s.Rank,
			s.ParentRank,
			decision,
			strconv.FormatFloat(s.Score, 'f', 4, 64),
			strconv.FormatFloat(s.Total, 'f', 4, 64),
			kept,
		})
	}
	t.Render()
}
