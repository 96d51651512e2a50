package store

import (
	"context"
	"fmt"

	"github.com/miradorstack/learnsense/internal/models"
)

// Decision is a stored record together with the feature vector it was scored from.
type Decision struct {
	Record   models.DecisionRecord
	Features map[string]float64
}

// SaveDecision appends a decision record. Records are never updated.
func (s *Store) SaveDecision(ctx context.Context, rec models.DecisionRecord, features map[string]float64) error {
	row, err := toDecisionRow(rec, features)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("save decision: %w", err)
	}
	return nil
}

// ListDecisions returns a learner's decisions, newest first.
func (s *Store) ListDecisions(ctx context.Context, learnerID string, limit int) ([]models.DecisionRecord, error) {
	var rows []decisionRow
	q := s.db.WithContext(ctx).Where("learner_id = ?", learnerID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	out := make([]models.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("decode decision %s: %w", row.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecentDecisions returns decisions across all learners, newest first, with
// their feature vectors.
func (s *Store) RecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	var rows []decisionRow
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}

	out := make([]Decision, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("decode decision %s: %w", row.ID, err)
		}
		feats, err := row.features()
		if err != nil {
			return nil, fmt.Errorf("decode features %s: %w", row.ID, err)
		}
		out = append(out, Decision{Record: rec, Features: feats})
	}
	return out, nil
}
