package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/utils"
)

// CreateCase inserts a new active-learning case.
func (s *Store) CreateCase(ctx context.Context, c models.ActiveLearningCase) error {
	row := toCaseRow(c)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetCase loads a case by id, returning utils.ErrNotFound when absent.
func (s *Store) GetCase(ctx context.Context, id string) (models.ActiveLearningCase, error) {
	var row caseRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ActiveLearningCase{}, utils.NewAppError("get case", "case not found", utils.ErrNotFound)
	}
	if err != nil {
		return models.ActiveLearningCase{}, fmt.Errorf("get case: %w", err)
	}
	return row.activeLearningCase(), nil
}

// UpdateCase persists a case's transition out of pending. The write only
// applies while the stored row is still pending, so a stale copy can never
// overwrite a closed case: it gets models.ErrInvalidTransition instead.
func (s *Store) UpdateCase(ctx context.Context, c models.ActiveLearningCase) error {
	row := toCaseRow(c)
	changes := map[string]interface{}{
		"status":                row.Status,
		"correction_role":       row.CorrectionRole,
		"correction_label":      row.CorrectionLabel,
		"correction_confidence": row.CorrectionConfidence,
		"labeled_at":            row.LabeledAt,
		"updated_at":            row.UpdatedAt,
	}
	res := s.db.WithContext(ctx).Model(&caseRow{}).
		Where("id = ? AND status = ?", c.ID, string(models.CaseStatusPending)).
		Updates(changes)
	if res.Error != nil {
		return fmt.Errorf("update case: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := s.GetCase(ctx, c.ID)
	if err != nil {
		return err
	}
	return utils.NewAppError("update case", "case is already "+string(current.Status), models.ErrInvalidTransition)
}

// ListCases returns cases, newest first, optionally filtered by status.
func (s *Store) ListCases(ctx context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error) {
	var rows []caseRow
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	out := make([]models.ActiveLearningCase, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.activeLearningCase())
	}
	return out, nil
}

// CaseCounts returns the number of cases per status.
func (s *Store) CaseCounts(ctx context.Context) (map[models.CaseStatus]int, error) {
	var rows []struct {
		Status string
		Total  int
	}
	err := s.db.WithContext(ctx).Model(&caseRow{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	out := make(map[models.CaseStatus]int, len(rows))
	for _, r := range rows {
		out[models.CaseStatus(r.Status)] = r.Total
	}
	return out, nil
}
