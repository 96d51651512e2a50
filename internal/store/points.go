package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/miradorstack/learnsense/internal/models"
)

const insertBatchSize = 100

// InsertPoints writes a batch of real-time points in a single transaction.
// Either every point is stored or none is.
func (s *Store) InsertPoints(ctx context.Context, points []models.DataPoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]pointRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, toPointRow(p))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("insert points: %w", err)
	}
	return nil
}

// QueryPoints returns a learner's points at or after since, newest first.
// An empty signalType matches every type.
func (s *Store) QueryPoints(ctx context.Context, learnerID string, signalType models.SignalType, since time.Time) ([]models.DataPoint, error) {
	var rows []pointRow
	q := s.db.WithContext(ctx).
		Where("learner_id = ? AND observed_at >= ?", learnerID, since.UTC()).
		Order("observed_at DESC")
	if signalType != "" {
		q = q.Where("signal_type = ?", string(signalType))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	out := make([]models.DataPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.point())
	}
	return out, nil
}
