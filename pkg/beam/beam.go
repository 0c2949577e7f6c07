// Package beam implements beam search decoding over a transition system.
//
// A decode call starts from one hypothesis and repeatedly expands every
// non-terminal hypothesis with each legal decision, scoring the decision
// with a classifier over the hypothesis's feature vector. Candidates are
// ranked by cumulative score and the best BeamWidth survive. Decoding is
// deterministic for a pure classifier: ties keep the order in which
// candidates were generated (parent beam rank, then decision order).
//
// Cancellation is deadline based only. When MaxAnalysisTime elapses the
// decoder stops at the next generation boundary and returns the best
// hypothesis found so far, flagged partial. This is not an error.
package beam

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/leapstack-labs/beamline/pkg/classifier"
	"github.com/leapstack-labs/beamline/pkg/feature"
	"github.com/leapstack-labs/beamline/pkg/session"
	"github.com/leapstack-labs/beamline/pkg/transition"
)

// ErrNoSolution is returned when the beam empties with no terminal
// hypothesis.
var ErrNoSolution = errors.New("no solution: beam emptied without a terminal hypothesis")

// ErrNoScores is wrapped in a ConfigurationError when the classifier
// scores none of a hypothesis's legal decisions.
var ErrNoScores = errors.New("classifier scored none of the legal decisions")

// Options holds decoder settings.
type Options struct {
	// BeamWidth is the number of hypotheses kept per generation (>= 1).
	BeamWidth int
	// PropagateBeam exposes the final beam downstream instead of the best
	// hypothesis only.
	PropagateBeam bool
	// TopN limits the propagated beam; 0 propagates the whole beam.
	TopN int
	// MaxAnalysisTime bounds one decode call; 0 is unbounded.
	MaxAnalysisTime time.Duration
	// IncludeDetails records a per-candidate trace on the outcome and logs
	// it at debug level.
	IncludeDetails bool
	// DisableCache turns off the feature result cache.
	DisableCache bool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Now is the clock used for the deadline (optional, uses time.Now).
	Now func() time.Time
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.BeamWidth < 1 {
		return fmt.Errorf("beam width must be at least 1, got %d", o.BeamWidth)
	}
	if o.TopN < 0 {
		return fmt.Errorf("top_n must not be negative, got %d", o.TopN)
	}
	if o.MaxAnalysisTime < 0 {
		return fmt.Errorf("max analysis time must not be negative, got %s", o.MaxAnalysisTime)
	}
	return nil
}

// Hypothesis is one decoding path.
type Hypothesis[C any] struct {
	Config    C
	Score     float64
	Decisions []transition.Decision
	Terminal  bool
}

// Outcome is the result of a decode call.
type Outcome[C any] struct {
	// Beam is the final beam, best first.
	Beam []*Hypothesis[C]
	// Best is the best-scoring hypothesis. It is non-terminal only when
	// Partial is set.
	Best *Hypothesis[C]
	// Partial is set when the deadline stopped decoding.
	Partial bool
	// Steps is the number of generations expanded.
	Steps int
	// Trace lists every candidate when details are included.
	Trace []Step

	CacheHits   int
	CacheMisses int

	propagate bool
	topN      int
}

// Propagated returns the hypotheses handed to the next stage: the beam, or
// its first TopN, when propagating, otherwise only the best hypothesis.
func (o *Outcome[C]) Propagated() []*Hypothesis[C] {
	if !o.propagate {
		return []*Hypothesis[C]{o.Best}
	}
	if o.topN > 0 && o.topN < len(o.Beam) {
		return o.Beam[:o.topN]
	}
	return o.Beam
}

// Decoder runs beam search for one transition system, feature set and
// classifier. A Decoder holds no per-call state and may be used by
// concurrent Decode calls.
type Decoder[C feature.Context] struct {
	system     transition.System[C]
	features   []feature.Feature[C]
	classifier classifier.Classifier
	session    *session.Session
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a decoder.
func New[C feature.Context](
	system transition.System[C],
	features []feature.Feature[C],
	cls classifier.Classifier,
	sess *session.Session,
	opts Options,
) (*Decoder[C], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if system == nil {
		return nil, errors.New("transition system is required")
	}
	if cls == nil {
		return nil, errors.New("classifier is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Decoder[C]{
		system:     system,
		features:   slices.Clone(features),
		classifier: cls,
		session:    sess,
		opts:       opts,
		logger:     logger,
		now:        now,
	}, nil
}

// Options returns the decoder options.
func (d *Decoder[C]) Options() Options {
	return d.opts
}

// System returns the name of the transition system.
func (d *Decoder[C]) System() string {
	return d.system.Name()
}

type candidate[C any] struct {
	hyp        *Hypothesis[C]
	parentRank int
	decision   string // empty for carried terminals
	score      float64
}

// Decode runs beam search from initial.
func (d *Decoder[C]) Decode(initial C) (*Outcome[C], error) {
	var deadline time.Time
	if d.opts.MaxAnalysisTime > 0 {
		deadline = d.now().Add(d.opts.MaxAnalysisTime)
	}

	var envOpts []feature.EnvOption
	if d.opts.DisableCache {
		envOpts = append(envOpts, feature.WithoutCache())
	}
	env := feature.NewEnvironment(d.session, append(envOpts, feature.WithLogger(d.logger))...)

	out := &Outcome[C]{propagate: d.opts.PropagateBeam, topN: d.opts.TopN}
	beam := []*Hypothesis[C]{{
		Config:   initial,
		Terminal: d.system.IsTerminal(initial),
	}}

	for hasNonTerminal(beam) {
		if !deadline.IsZero() && !d.now().Before(deadline) {
			out.Partial = true
			d.logger.Debug("deadline reached, returning partial result",
				"system", d.system.Name(),
				"generation", out.Steps)
			break
		}
		out.Steps++

		candidates, err := d.expand(beam, env)
		if err != nil {
			return nil, err
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].hyp.Score > candidates[j].hyp.Score
		})
		kept := min(len(candidates), d.opts.BeamWidth)

		if d.opts.IncludeDetails {
			out.Trace = append(out.Trace, d.trace(out.Steps, candidates, kept)...)
		}

		beam = make([]*Hypothesis[C], kept)
		for i := range kept {
			beam[i] = candidates[i].hyp
		}
		if len(beam) == 0 {
			return nil, ErrNoSolution
		}
	}

	out.Beam = beam
	out.Best = beam[0]
	out.CacheHits, out.CacheMisses = env.CacheStats()

	d.logger.Debug("decode finished",
		"system", d.system.Name(),
		"generations", out.Steps,
		"partial", out.Partial,
		"score", out.Best.Score)
	return out, nil
}

// expand builds the next generation's candidates in beam-rank then
// decision order. Terminal hypotheses are carried over unchanged.
func (d *Decoder[C]) expand(beam []*Hypothesis[C], env *feature.Environment) ([]candidate[C], error) {
	var candidates []candidate[C]
	for rank, h := range beam {
		if h.Terminal {
			candidates = append(candidates, candidate[C]{hyp: h, parentRank: rank})
			continue
		}

		decisions := d.system.LegalDecisions(h.Config)
		if len(decisions) == 0 {
			d.logger.Debug("dropping hypothesis without legal decisions", "rank", rank)
			continue
		}

		vec, err := feature.BuildVector(d.features, h.Config, env)
		if err != nil {
			return nil, err
		}
		scores, err := d.classifier.Score(vec, decisions)
		if err != nil {
			return nil, fmt.Errorf("classifier failed: %w", err)
		}

		scored := 0
		for _, dec := range decisions {
			code := dec.Code()
			s, ok := scores[code]
			if !ok {
				continue
			}
			scored++

			next, err := d.system.Apply(h.Config, dec)
			if err != nil {
				return nil, fmt.Errorf("applying %s: %w", code, err)
			}
			candidates = append(candidates, candidate[C]{
				hyp: &Hypothesis[C]{
					Config:    next,
					Score:     h.Score + s,
					Decisions: append(slices.Clone(h.Decisions), dec),
					Terminal:  d.system.IsTerminal(next),
				},
				parentRank: rank,
				decision:   code,
				score:      s,
			})
		}
		if scored == 0 {
			return nil, &feature.ConfigurationError{Resource: "classifier scores", Err: ErrNoScores}
		}
	}
	return candidates, nil
}

func hasNonTerminal[C any](beam []*Hypothesis[C]) bool {
	for _, h := range beam {
		if !h.Terminal {
			return true
		}
	}
	return false
}
