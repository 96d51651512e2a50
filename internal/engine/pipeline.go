package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/learnsense/internal/features"
	"github.com/miradorstack/learnsense/internal/models"
)

// Prediction pairs a decision record with the feature vector it was scored from.
type Prediction struct {
	Record   models.DecisionRecord
	Features features.Vector
}

// Pipeline runs feature engineering, scoring, uncertainty, confidence, the
// subgroup policy and the explanation ranker. It holds no mutable state.
type Pipeline struct {
	logger      *slog.Logger
	version     string
	engineer    *features.Engineer
	scorer      *Scorer
	uncertainty *UncertaintyEstimator
	confidence  *ConfidenceEstimator
	policy      *Policy
	explainer   *Explainer
	now         func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the timestamp and confidence clock.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithSourceFactory makes uncertainty draws reproducible.
func WithSourceFactory(factory SourceFactory) Option {
	return func(p *Pipeline) {
		p.uncertainty = NewUncertaintyEstimator(p.scorer, factory)
	}
}

// NewPipeline wires the scoring components for pack and cfg.
func NewPipeline(logger *slog.Logger, pack *ModelPack, cfg PolicyConfig, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if pack == nil {
		pack = DefaultModelPack()
	}

	scorer := NewScorer(pack.Weights)
	p := &Pipeline{
		logger:      logger,
		version:     pack.Version,
		engineer:    features.NewEngineer(),
		scorer:      scorer,
		uncertainty: NewUncertaintyEstimator(scorer, nil),
		policy:      NewPolicy(cfg, pack.Subgroups),
		explainer:   NewExplainer(DefaultTopFeatures),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.confidence = NewConfidenceEstimator(p.now)
	return p
}

// Predict scores one learner signal. It never fails for numeric input.
func (p *Pipeline) Predict(learnerID string, signal models.LearnerSignal) Prediction {
	vec := p.engineer.Engineer(signal)
	probability := p.scorer.Score(vec)
	uncertainty := p.uncertainty.Estimate(vec)
	confidence := p.confidence.Estimate(signal, probability)
	group := models.SubgroupFor(signal.Demographic)
	action := p.policy.Decide(probability, confidence, uncertainty, group)

	record := models.DecisionRecord{
		ID:                   uuid.NewString(),
		LearnerID:            learnerID,
		ADHDProbability:      probability,
		CalibratedConfidence: confidence,
		EpistemicUncertainty: uncertainty,
		TopFeatures:          p.explainer.Rank(vec, p.scorer.weights),
		RecommendedAction:    action,
		Subgroup:             group,
		ModelVersion:         p.version,
		UncertaintyStrategy:  p.uncertainty.Strategy(),
		Timestamp:            p.now().UTC(),
	}

	p.logger.Debug("prediction scored",
		slog.String("learner_id", learnerID),
		slog.Float64("probability", probability),
		slog.Float64("confidence", confidence),
		slog.Float64("uncertainty", uncertainty),
		slog.String("subgroup", group.String()),
		slog.String("action", string(action)))

	return Prediction{Record: record, Features: vec}
}
