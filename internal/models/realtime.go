package models

import "time"

// SignalType enumerates real-time telemetry channels.
type SignalType string

const (
	SignalAttention   SignalType = "attention"
	SignalEngagement  SignalType = "engagement"
	SignalPerformance SignalType = "performance"
	SignalMood        SignalType = "mood"
	SignalActivity    SignalType = "activity"
)

// SignalTypes lists every accepted signal type in reporting order.
var SignalTypes = []SignalType{SignalAttention, SignalEngagement, SignalPerformance, SignalMood, SignalActivity}

// Valid reports whether t is a known signal type.
func (t SignalType) Valid() bool {
	for _, known := range SignalTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PointMetadata carries optional provenance for a data point.
type PointMetadata struct {
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Context    string  `json:"context,omitempty"`
}

// DataPoint is one append-only real-time observation.
type DataPoint struct {
	LearnerID string         `json:"learner_id"`
	Type      SignalType     `json:"data_type"`
	Value     float64        `json:"value"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  *PointMetadata `json:"metadata,omitempty"`
}

// Trend is the split-half direction of a signal over a window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// SignalSummary aggregates one signal type over a window.
type SignalSummary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"count"`
	Trend   Trend   `json:"trend"`
}

// LearnerSummary is the per-type aggregate returned by summary queries.
type LearnerSummary struct {
	LearnerID   string                       `json:"learner_id"`
	WindowHours float64                      `json:"window_hours"`
	Signals     map[SignalType]SignalSummary `json:"signals"`
	Alerts      []string                     `json:"alerts,omitempty"`
	GeneratedAt time.Time                    `json:"generated_at"`
}
