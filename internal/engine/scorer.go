package engine

import "github.com/miradorstack/learnsense/internal/features"

// baseProbability is the intercept of the additive model.
const baseProbability = 0.5

// Scorer is a transparent additive model: 0.5 plus the weighted feature sum,
// clamped to [0,1]. Features without a weight contribute nothing.
type Scorer struct {
	weights map[string]float64
}

// NewScorer creates a scorer over a copy of weights.
func NewScorer(weights map[string]float64) *Scorer {
	copied := make(map[string]float64, len(weights))
	for k, v := range weights {
		copied[k] = v
	}
	return &Scorer{weights: copied}
}

// Score returns the bounded probability for vec.
func (s *Scorer) Score(vec features.Vector) float64 {
	sum := baseProbability
	for _, f := range vec {
		sum += s.weights[f.Name] * f.Value
	}
	return clamp(sum, 0, 1)
}

// Weight returns the weight of a feature, 0 when unknown.
func (s *Scorer) Weight(name string) float64 {
	return s.weights[name]
}

// Weights returns a copy of the weight table.
func (s *Scorer) Weights() map[string]float64 {
	out := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
