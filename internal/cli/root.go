// Package cli provides the command-line interface for beamline.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/beamline/internal/cli/commands"
	"github.com/leapstack-labs/beamline/internal/cli/config"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "beamline",
		Short: "beamline - beam-search transition parser",
		Long: `beamline decodes sentences into dependency trees with a beam search over
arc-eager transitions. Decisions are scored by a classifier reading features
compiled from a descriptor file.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			loaded, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			mode, err := output.ParseMode(loaded.Output)
			if err != nil {
				return err
			}
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			logger := newLogger(cmd, loaded.Verbose)

			ctx := config.WithConfig(cmd.Context(), loaded.Config)
			ctx = config.WithLogger(ctx, logger)
			ctx = output.WithRenderer(ctx, renderer)
			cmd.SetContext(ctx)

			if loaded.File != "" {
				logger.Debug("using config file", "path", loaded.File)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|json)")

	pf.Int("beam-width", config.DefaultBeamWidth, "Number of hypotheses kept per step")
	pf.Bool("propagate-beam", false, "Report every surviving hypothesis, not only the best")
	pf.Int("top-n", 0, "Decisions expanded per hypothesis (0 for all)")
	pf.Float64("max-analysis-time", config.DefaultMaxAnalysisTime, "Seconds per sentence before a partial result is returned (0 for unbounded)")
	pf.Bool("include-details", false, "Record a trace of every candidate")
	pf.Bool("disable-cache", false, "Evaluate features without the per-step cache")

	pf.String("features", "", "Feature descriptor file")
	pf.String("model", "", "Linear model file (uniform scores when empty)")
	pf.String("resources", "", "Language resources file")
	pf.String("journal", "", "Path to the run journal database")

	pf.Int("workers", 0, "Sentences decoded in parallel (0 for GOMAXPROCS)")
	pf.Bool("stop-on-error", true, "Abort the batch on the first failing sentence")
	pf.Bool("repair", true, "Attach tokens left ungoverned by the best analysis")
	pf.Int("start-sentence", 0, "Skip this many input sentences")
	pf.Int("max-sentences", 0, "Maximum number of sentences to decode (0 for all)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	for _, name := range []string{"features", "model", "resources", "journal"} {
		_ = rootCmd.MarkPersistentFlagFilename(name)
	}

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewOracleCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewRunsCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for beamline.

To load completions:

Bash:
  $ source <(beamline completion bash)

Zsh:
  $ beamline completion zsh > "${fpath[1]}/_beamline"

Fish:
  $ beamline completion fish | source

PowerShell:
  PS> beamline completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
