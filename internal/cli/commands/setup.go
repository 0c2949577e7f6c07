package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/beamline/internal/cli/config"
	"github.com/leapstack-labs/beamline/internal/cli/output"
	"github.com/leapstack-labs/beamline/internal/journal"
	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/internal/pipeline"
	"github.com/leapstack-labs/beamline/pkg/beam"
	"github.com/leapstack-labs/beamline/pkg/classifier"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/leapstack-labs/beamline/pkg/session"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext builds the context from the values the root command
// stored on cmd's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return &CommandContext{
		Cfg:      config.GetConfig(ctx),
		Logger:   config.GetLogger(ctx),
		Renderer: output.FromContext(ctx),
	}
}

// Session loads the language resources, or returns an empty session when
// none are configured.
func (c *CommandContext) Session() (*session.Session, error) {
	if c.Cfg.Resources == "" {
		return session.New(), nil
	}
	return session.Load(c.Cfg.Resources)
}

// Features compiles the configured feature file.
func (c *CommandContext) Features() ([]depparse.Feature, error) {
	if c.Cfg.Features == "" {
		return nil, fmt.Errorf("no feature file configured\nHint: set features in %s or pass --features", config.DefaultConfigFile)
	}
	f, err := os.Open(c.Cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to open features: %w", err)
	}
	defer func() { _ = f.Close() }()

	features, err := depparse.CompileFile(f, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Cfg.Features, err)
	}
	return features, nil
}

// Classifier loads the configured model, falling back to uniform scores.
func (c *CommandContext) Classifier() (classifier.Classifier, error) {
	if c.Cfg.Model == "" {
		c.Logger.Warn("no model configured, using uniform scores")
		return classifier.Uniform(), nil
	}
	m, err := classifier.LoadLinearModel(c.Cfg.Model)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Pipeline builds a decoding pipeline from the current files.
func (c *CommandContext) Pipeline(store *journal.Store, m *metrics.Metrics) (*pipeline.Pipeline, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	sys, err := depparse.NewArcEager(sess.Labels())
	if err != nil {
		return nil, fmt.Errorf("%w\nHint: list dependency labels in the resources file", err)
	}
	features, err := c.Features()
	if err != nil {
		return nil, err
	}
	cls, err := c.Classifier()
	if err != nil {
		return nil, err
	}
	decoder, err := beam.New[*depparse.Configuration](sys, features, cls, sess, c.Cfg.BeamOptions(c.Logger))
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Config{
		Decoder:       decoder,
		Session:       sess,
		Workers:       c.Cfg.Workers,
		StopOnError:   c.Cfg.StopOnError,
		StartSentence: c.Cfg.StartSentence,
		MaxSentences:  c.Cfg.MaxSentences,
		Repair:        c.Cfg.Repair,
		Journal:       store,
		Metrics:       m,
		Logger:        c.Logger,
	})
}

// Journal opens the run journal, creating its directory.
func (c *CommandContext) Journal() (*journal.Store, error) {
	path := c.Cfg.JournalPath
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	return journal.Open(path, c.Logger)
}

// readInput reads sentences from path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]depparse.InputSentence, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	in, err := depparse.ReadSentences(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}
