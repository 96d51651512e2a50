package engine

import "github.com/miradorstack/learnsense/internal/models"

// Global policy defaults.
const (
	DefaultHighThreshold        = 0.70
	DefaultMediumThreshold      = 0.40
	DefaultMinConfidence        = 0.60
	DefaultUncertaintyThreshold = 0.05
)

// Thresholds is the (high, medium) probability band pair for a group.
type Thresholds struct {
	High   float64
	Medium float64
}

// PolicyConfig holds the global gate values and the default band pair.
type PolicyConfig struct {
	MinConfidence        float64
	UncertaintyThreshold float64
	Default              Thresholds
}

// DefaultPolicyConfig returns the stock gate and band values.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		MinConfidence:        DefaultMinConfidence,
		UncertaintyThreshold: DefaultUncertaintyThreshold,
		Default:              Thresholds{High: DefaultHighThreshold, Medium: DefaultMediumThreshold},
	}
}

// Policy routes a scored learner to a lesson-delivery action. Per-group band
// pairs come from a lookup table with an explicit fallback to the default.
//
// ActionRecommendEvaluation is part of the action set but no branch produces it.
type Policy struct {
	cfg    PolicyConfig
	groups map[models.SubgroupKey]Thresholds
}

// NewPolicy builds a policy from cfg and optional subgroup overrides.
func NewPolicy(cfg PolicyConfig, overrides []SubgroupThresholds) *Policy {
	if cfg.Default.High == 0 && cfg.Default.Medium == 0 {
		cfg.Default = Thresholds{High: DefaultHighThreshold, Medium: DefaultMediumThreshold}
	}
	groups := make(map[models.SubgroupKey]Thresholds, len(overrides))
	for _, o := range overrides {
		groups[o.Key()] = Thresholds{High: o.High, Medium: o.Medium}
	}
	return &Policy{cfg: cfg, groups: groups}
}

// ThresholdsFor returns the band pair for group, falling back to the default.
func (p *Policy) ThresholdsFor(group models.SubgroupKey) Thresholds {
	if t, ok := p.groups[group]; ok {
		return t
	}
	return p.cfg.Default
}

// Decide applies the gate first, then the probability bands. First match wins.
func (p *Policy) Decide(probability, confidence, uncertainty float64, group models.SubgroupKey) models.Action {
	if confidence < p.cfg.MinConfidence || uncertainty >= p.cfg.UncertaintyThreshold {
		return models.ActionManualReview
	}
	bands := p.ThresholdsFor(group)
	switch {
	case probability >= bands.High:
		return models.ActionVisualAndSpeech
	case probability >= bands.Medium:
		return models.ActionManualReview
	default:
		return models.ActionText
	}
}

// Config exposes the policy's global values.
func (p *Policy) Config() PolicyConfig {
	return p.cfg
}
