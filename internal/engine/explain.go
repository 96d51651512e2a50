package engine

import (
	"math"
	"sort"

	"github.com/miradorstack/learnsense/internal/features"
	"github.com/miradorstack/learnsense/internal/models"
)

// DefaultTopFeatures is the number of features kept in an explanation.
const DefaultTopFeatures = 5

// Explainer ranks features by the magnitude of their exact linear contribution.
type Explainer struct {
	limit int
}

// NewExplainer creates an explainer keeping limit features (default 5).
func NewExplainer(limit int) *Explainer {
	if limit <= 0 {
		limit = DefaultTopFeatures
	}
	return &Explainer{limit: limit}
}

// Rank returns the top features by |value*weight|; ties keep vector order.
func (e *Explainer) Rank(vec features.Vector, weights map[string]float64) []models.FeatureContribution {
	contributions := make([]models.FeatureContribution, 0, len(vec))
	for _, f := range vec {
		c := f.Value * weights[f.Name]
		contributions = append(contributions, models.FeatureContribution{
			Feature:      f.Name,
			Contribution: c,
			Importance:   math.Abs(c),
		})
	}

	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].Importance > contributions[j].Importance
	})

	if len(contributions) > e.limit {
		contributions = contributions[:e.limit]
	}
	return contributions
}
