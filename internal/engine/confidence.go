package engine

import (
	"time"

	"github.com/miradorstack/learnsense/internal/models"
)

// Confidence heuristic constants.
const (
	confidenceBase      = 0.5
	confidenceIncrement = 0.1
	confidenceCap       = 0.95

	minTimeOnTaskSeconds = 300
	minClicks            = 10
	daytimeStartHour     = 8
	daytimeEndHour       = 18
	extremeHigh          = 0.7
	extremeLow           = 0.3
)

// ConfidenceEstimator scores data completeness and estimate extremity.
type ConfidenceEstimator struct {
	now func() time.Time
}

// NewConfidenceEstimator creates an estimator; now defaults to time.Now.
func NewConfidenceEstimator(now func() time.Time) *ConfidenceEstimator {
	if now == nil {
		now = time.Now
	}
	return &ConfidenceEstimator{now: now}
}

// Estimate starts at 0.5 and adds 0.1 per satisfied condition, capped at 0.95.
func (c *ConfidenceEstimator) Estimate(signal models.LearnerSignal, probability float64) float64 {
	hour := c.sessionHour(signal.Contextual)
	conditions := []bool{
		signal.Behavioral.TimeOnTaskSeconds > minTimeOnTaskSeconds,
		signal.Interaction.Clicks > minClicks,
		signal.Questionnaire.InattentionScore > 0,
		signal.Questionnaire.HyperactivityScore > 0,
		hour >= daytimeStartHour && hour <= daytimeEndHour,
		probability > extremeHigh || probability < extremeLow,
	}

	confidence := confidenceBase
	for _, met := range conditions {
		if met {
			confidence += confidenceIncrement
		}
	}
	if confidence > confidenceCap {
		confidence = confidenceCap
	}
	return confidence
}

func (c *ConfidenceEstimator) sessionHour(ctx models.Contextual) int {
	if !ctx.SessionStartedAt.IsZero() {
		return ctx.SessionStartedAt.Hour()
	}
	return c.now().Hour()
}
