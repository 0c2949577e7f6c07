// Package classifier defines how the decoder obtains decision scores and
// provides a linear scoring model loaded from YAML.
package classifier

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/leapstack-labs/beamline/pkg/feature"
	"github.com/leapstack-labs/beamline/pkg/transition"
	"gopkg.in/yaml.v3"
)

// Classifier scores candidate decisions given a feature vector. Scores are
// keyed by decision code and are added to hypothesis scores, so they are
// typically log-probabilities. Implementations must be pure: the same
// input always yields the same scores, and concurrent calls are allowed.
type Classifier interface {
	Score(vec feature.Vector, decisions []transition.Decision) (map[string]float64, error)
}

// Func adapts a function to the Classifier interface.
type Func func(vec feature.Vector, decisions []transition.Decision) (map[string]float64, error)

// Score calls f.
func (f Func) Score(vec feature.Vector, decisions []transition.Decision) (map[string]float64, error) {
	return f(vec, decisions)
}

// Uniform gives every decision the same log-probability.
func Uniform() Classifier {
	return Func(func(_ feature.Vector, decisions []transition.Decision) (map[string]float64, error) {
		scores := make(map[string]float64, len(decisions))
		if len(decisions) == 0 {
			return scores, nil
		}
		p := -math.Log(float64(len(decisions)))
		for _, d := range decisions {
			scores[d.Code()] = p
		}
		return scores, nil
	})
}

// LinearModel scores decisions with per-feature weights and a bias per
// decision, normalised with a log-softmax over the requested decisions.
type LinearModel struct {
	Name string `yaml:"name"`
	// Weights maps feature entry names to decision codes to weights.
	Weights map[string]map[string]float64 `yaml:"weights"`
	Bias    map[string]float64            `yaml:"bias"`
}

// Score implements Classifier.
func (m *LinearModel) Score(vec feature.Vector, decisions []transition.Decision) (map[string]float64, error) {
	scores := make(map[string]float64, len(decisions))
	if len(decisions) == 0 {
		return scores, nil
	}

	raw := make([]float64, len(decisions))
	for i, d := range decisions {
		code := d.Code()
		s := m.Bias[code]
		for _, e := range vec {
			s += m.Weights[e.Name][code] * e.Value
		}
		raw[i] = s
	}

	norm := logSumExp(raw)
	for i, d := range decisions {
		scores[d.Code()] = raw[i] - norm
	}
	return scores, nil
}

func logSumExp(xs []float64) float64 {
	hi := math.Inf(-1)
	for _, x := range xs {
		hi = max(hi, x)
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - hi)
	}
	return hi + math.Log(sum)
}

// ParseLinearModel decodes a model from YAML.
func ParseLinearModel(r io.Reader) (*LinearModel, error) {
	var m LinearModel
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	for code := range m.Bias {
		if _, err := transition.ParseDecision(code); err != nil {
			return nil, fmt.Errorf("bias: %w", err)
		}
	}
	for name, row := range m.Weights {
		for code := range row {
			if _, err := transition.ParseDecision(code); err != nil {
				return nil, fmt.Errorf("weights for %s: %w", name, err)
			}
		}
	}
	return &m, nil
}

// LoadLinearModel reads a model file.
func LoadLinearModel(path string) (*LinearModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	defer func() { _ = f.Close() }()

	m, err := ParseLinearModel(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
