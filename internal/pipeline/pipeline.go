// Package pipeline drives the dependency parser over batches of sentences.
//
// Each sentence is an independent decode call; calls run in parallel on a
// bounded worker group and results are reported in input order. With
// StopOnError the first failing sentence cancels the batch, otherwise the
// failure is recorded on its result and the batch continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/leapstack-labs/beamline/internal/journal"
	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/pkg/beam"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/leapstack-labs/beamline/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Config holds pipeline dependencies and batch settings.
type Config struct {
	// Decoder runs the beam search (required).
	Decoder *beam.Decoder[*depparse.Configuration]
	// Session supplies the punctuation rules for the repair pass.
	Session *session.Session
	// Workers bounds parallel decode calls; 0 uses GOMAXPROCS.
	Workers int
	// StopOnError aborts the batch on the first failing sentence.
	StopOnError bool
	// StartSentence skips that many input sentences.
	StartSentence int
	// MaxSentences limits the number of sentences decoded; 0 is unlimited.
	MaxSentences int
	// Repair attaches tokens left ungoverned by the best hypothesis.
	Repair bool
	// Journal records runs and results (optional).
	Journal *journal.Store
	// Metrics records decode statistics (optional).
	Metrics *metrics.Metrics
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result is the outcome of one sentence.
type Result struct {
	// Index is the sentence position in the input, before StartSentence is
	// applied.
	Index    int
	Sentence *depparse.Sentence
	Outcome  *beam.Outcome[*depparse.Configuration]
	// Parse is the best configuration, repaired when Repair is set.
	Parse *depparse.Configuration
	Err   error
}

// Summary describes a batch run.
type Summary struct {
	RunID   string
	Results []*Result
	Partial int
	Failed  int
	Elapsed time.Duration
}

// Pipeline decodes sentences. It is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	system string
	logger *slog.Logger
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if cfg.Workers < 0 || cfg.StartSentence < 0 || cfg.MaxSentences < 0 {
		return nil, errors.New("workers, start sentence and max sentences must not be negative")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, system: cfg.Decoder.System(), logger: logger}, nil
}

// Parse decodes a single sentence.
func (p *Pipeline) Parse(s *depparse.Sentence) *Result {
	start := time.Now()
	res := &Result{Sentence: s}

	out, err := p.cfg.Decoder.Decode(depparse.NewConfiguration(s))
	if err == nil {
		res.Outcome = out
		res.Parse = out.Best.Config
		if p.cfg.Repair {
			res.Parse, err = depparse.Repair(out.Best.Config, p.cfg.Session)
		}
	}
	res.Err = err

	steps, hits, misses, partial := 0, 0, 0, false
	if out != nil {
		steps, hits, misses, partial = out.Steps, out.CacheHits, out.CacheMisses, out.Partial
	}
	p.cfg.Metrics.ObserveDecode(p.system, time.Since(start), steps, hits, misses, partial, err)
	return res
}

// Run decodes a batch. The returned summary holds results in input order
// for every sentence that was attempted. The error is non-nil only when
// StopOnError aborted the batch, the context was cancelled, or the journal
// failed.
func (p *Pipeline) Run(ctx context.Context, command string, sentences []*depparse.Sentence) (*Summary, error) {
	start := time.Now()
	selected := p.window(sentences)

	var run *journal.Run
	if p.cfg.Journal != nil {
		var err error
		if run, err = p.cfg.Journal.CreateRun(ctx, command); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for i, s := range selected {
		index := p.cfg.StartSentence + i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := p.Parse(s)
			res.Index = index
			results[i] = res

			if res.Err != nil {
				p.logger.Warn("sentence failed", "index", index, "error", res.Err)
				if p.cfg.StopOnError {
					return fmt.Errorf("sentence %d: %w", index, res.Err)
				}
			} else if res.Outcome.Partial {
				p.logger.Info("partial result, analysis time exceeded", "index", index, "steps", res.Outcome.Steps)
			}
			return nil
		})
	}
	runErr := g.Wait()

	summary := &Summary{Elapsed: time.Since(start)}
	for _, res := range results {
		if res == nil {
			continue
		}
		summary.Results = append(summary.Results, res)
		switch {
		case res.Err != nil:
			summary.Failed++
		case res.Outcome.Partial:
			summary.Partial++
		}
	}

	if run != nil {
		summary.RunID = run.ID
		if err := p.journal(ctx, run, summary.Results, runErr); err != nil {
			return summary, errors.Join(runErr, err)
		}
	}

	p.logger.Info("batch finished",
		"sentences", len(summary.Results),
		"partial", summary.Partial,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed)
	return summary, runErr
}

func (p *Pipeline) window(sentences []*depparse.Sentence) []*depparse.Sentence {
	if p.cfg.StartSentence >= len(sentences) {
		return nil
	}
	out := sentences[p.cfg.StartSentence:]
	if p.cfg.MaxSentences > 0 && p.cfg.MaxSentences < len(out) {
		out = out[:p.cfg.MaxSentences]
	}
	return out
}

func (p *Pipeline) journal(ctx context.Context, run *journal.Run, results []*Result, runErr error) error {
	// record even when ctx was cancelled
	ctx = context.WithoutCancel(ctx)

	for _, res := range results {
		entry := &journal.Result{
			RunID:    run.ID,
			Index:    res.Index,
			Sentence: res.Sentence.String(),
		}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			entry.Decisions = depparse.TransitionSequence(res.Outcome.Best.Config)
			entry.Score = res.Outcome.Best.Score
			entry.Steps = res.Outcome.Steps
			entry.Partial = res.Outcome.Partial
		}
		if err := p.cfg.Journal.RecordResult(ctx, entry); err != nil {
			return err
		}
	}

	status, msg := journal.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = journal.RunStatusFailed, runErr.Error()
	}
	return p.cfg.Journal.CompleteRun(ctx, run.ID, status, msg)
}
