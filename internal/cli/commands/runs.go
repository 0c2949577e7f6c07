package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/internal/journal"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command and its subcommands.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled parse runs",
		Long:  `List the most recent runs recorded in the journal, newest first.`,
		Example: `  beamline runs
  beamline runs --limit 5 -o json
  beamline runs show <run-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunsList(NewCommandContext(cmd), cmd, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-sentence results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(NewCommandContext(cmd), cmd, args[0])
		},
	})

	return cmd
}

func runRunsList(c *CommandContext, cmd *cobra.Command, limit int) error {
	store, err := c.Journal()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(runs)
	}
	if len(runs) == 0 {
		c.Renderer.Muted("no runs recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.Renderer.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Command", "Status", "Started", "Sentences", "Partial", "Failed"})
	for _, r := range runs {
		t.AppendRow(table.Row{r.ID, r.Command, r.Status, r.StartedAt.Local().Format(time.DateTime), r.Sentences, r.Partial, r.Failed})
	}
	t.Render()
	return nil
}

func runRunsShow(c *CommandContext, cmd *cobra.Command, id string) error {
	store, err := c.Journal()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	results, err := store.Results(cmd.Context(), id)
	if err != nil {
		return err
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(struct {
			Run     *journal.Run      `json:"run"`
			Results []*journal.Result `json:"results"`
		}{run, results})
	}

	c.Renderer.Header(1, fmt.Sprintf("Run %s (%s)", run.ID, run.Status))
	if run.Error != "" {
		c.Renderer.Warning(run.Error)
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.Renderer.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Sentence", "Score", "Steps", "Result"})
	for _, r := range results {
		status := r.Decisions
		switch {
		case r.Error != "":
			status = c.Renderer.Styles().Error.Render(r.Error)
		case r.Partial:
			status = c.Renderer.Styles().Warning.Render("partial: ") + r.Decisions
		}
		t.AppendRow(table.Row{r.Index, r.Sentence, fmt.Sprintf("%.4f", r.Score), r.Steps, status})
	}
	t.Render()
	return nil
}
