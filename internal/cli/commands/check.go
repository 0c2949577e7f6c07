package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/spf13/cobra"
)

// FeatureInfo is the JSON form of a compiled feature.
type FeatureInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Compile the feature file and list its features",
		Long: `Compile the configured feature file and print each top-level feature
with its value kind. Macro definitions are checked but not listed.`,
		Example: `  beamline check
  beamline check --features features.txt -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(NewCommandContext(cmd))
		},
	}
}

func runCheck(c *CommandContext) error {
	features, err := c.Features()
	if err != nil {
		return err
	}

	infos := make([]FeatureInfo, len(features))
	for i, f := range features {
		infos[i] = FeatureInfo{Name: f.Name(), Kind: f.Kind().String()}
	}

	if c.Renderer.EffectiveMode() == output.ModeJSON {
		return c.Renderer.JSON(infos)
	}
	renderFeatures(c.Renderer, c.Cfg.Features, features)
	return nil
}

func renderFeatures(r *output.Renderer, path string, features []depparse.Feature) {
	r.Header(1, path)

	t := table.NewWriter()
	t.SetOutputMirror(r.Out())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "Kind"})
	for i, f := range features {
		t.AppendRow(table.Row{i + 1, f.Name(), f.Kind()})
	}
	t.Render()

	r.Success(fmt.Sprintf("%d features compiled", len(features)))
}
