package engine

import (
	"math/rand/v2"

	"github.com/miradorstack/learnsense/internal/features"
)

// StrategyJitterEnsemble is the uncertainty method stamped on decisions.
const StrategyJitterEnsemble = "jitter-ensemble"

const (
	// ensembleRuns is the number of jittered rescoring trials.
	ensembleRuns = 8
	// jitterWidth scales the uniform noise: value * (1 + (u-0.5)*jitterWidth).
	jitterWidth = 0.05
)

// RandSource supplies uniform draws in [0,1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// SourceFactory returns a fresh source for one estimate. A new source per call
// keeps the estimator safe for concurrent use.
type SourceFactory func() RandSource

// SeededSource returns a factory whose every source replays the same seed.
func SeededSource(seed int64) SourceFactory {
	return func() RandSource {
		return rand.New(rand.NewPCG(uint64(seed), 0))
	}
}

func randomSource() RandSource {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// UncertaintyEstimator approximates epistemic uncertainty as the variance of
// the scorer's output under small multiplicative input jitter.
type UncertaintyEstimator struct {
	scorer    *Scorer
	runs      int
	newSource SourceFactory
}

// NewUncertaintyEstimator builds an estimator over scorer. A nil factory seeds
// each call randomly.
func NewUncertaintyEstimator(scorer *Scorer, newSource SourceFactory) *UncertaintyEstimator {
	if newSource == nil {
		newSource = randomSource
	}
	return &UncertaintyEstimator{scorer: scorer, runs: ensembleRuns, newSource: newSource}
}

// Strategy names the uncertainty method recorded on each decision.
func (u *UncertaintyEstimator) Strategy() string {
	return StrategyJitterEnsemble
}

// Estimate returns the sample variance of the jittered probabilities.
func (u *UncertaintyEstimator) Estimate(vec features.Vector) float64 {
	src := u.newSource()
	probs := make([]float64, 0, u.runs)
	perturbed := vec.Clone()
	for run := 0; run < u.runs; run++ {
		for i, f := range vec {
			perturbed[i].Value = f.Value * (1 + (src.Float64()-0.5)*jitterWidth)
		}
		probs = append(probs, clamp(u.scorer.Score(perturbed), 0, 1))
	}
	return variance(probs)
}

// variance is the sample (n-1) variance; fewer than two values yield 0.
func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values)-1)
}
