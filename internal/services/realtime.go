package services

import (
	"context"

	"github.com/miradorstack/learnsense/internal/models"
)

// Collector accepts real-time points.
type Collector interface {
	Collect(learnerID string, signalType models.SignalType, value float64, metadata *models.PointMetadata) (models.DataPoint, error)
}

// Aggregator answers real-time queries.
type Aggregator interface {
	Recent(ctx context.Context, q models.RecentQuery) ([]models.DataPoint, error)
	Summary(ctx context.Context, learnerID string, windowHours float64) (models.LearnerSummary, error)
}

// RealtimeService fronts the collector and aggregator for transports.
type RealtimeService struct {
	collector  Collector
	aggregator Aggregator
}

// NewRealtimeService wires a collector and an aggregator.
func NewRealtimeService(collector Collector, aggregator Aggregator) *RealtimeService {
	return &RealtimeService{collector: collector, aggregator: aggregator}
}

// Collect buffers one point; persistence happens on the next flush.
func (s *RealtimeService) Collect(_ context.Context, req models.CollectRequest) (models.DataPoint, error) {
	return s.collector.Collect(req.UserID, req.DataType, req.Value, req.Metadata)
}

// Recent lists recent points for a learner.
func (s *RealtimeService) Recent(ctx context.Context, q models.RecentQuery) ([]models.DataPoint, error) {
	return s.aggregator.Recent(ctx, q)
}

// Summary aggregates a learner's signals over a window.
func (s *RealtimeService) Summary(ctx context.Context, learnerID string, windowHours float64) (models.LearnerSummary, error) {
	return s.aggregator.Summary(ctx, learnerID, windowHours)
}
