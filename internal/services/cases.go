package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/utils"
)

const defaultCaseLimit = 50

// CaseService manages the active-learning review queue.
type CaseService struct {
	logger *slog.Logger
	cases  CaseStore
	now    func() time.Time
}

// NewCaseService constructs the review-queue facade.
func NewCaseService(logger *slog.Logger, cases CaseStore) *CaseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CaseService{logger: logger, cases: cases, now: time.Now}
}

// List returns cases matching filter, newest first.
func (s *CaseService) List(ctx context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error) {
	switch filter.Status {
	case "", models.CaseStatusPending, models.CaseStatusLabeled, models.CaseStatusDismissed:
	default:
		return nil, utils.NewAppError("list cases", "unknown status "+string(filter.Status), utils.ErrInvalidInput)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultCaseLimit
	}
	cases, err := s.cases.ListCases(ctx, filter)
	if err != nil {
		return nil, utils.NewAppError("list cases", "failed to list cases", err)
	}
	return cases, nil
}

// Label records a reviewer's correction on a pending case.
func (s *CaseService) Label(ctx context.Context, id string, req models.LabelRequest) (models.ActiveLearningCase, error) {
	if strings.TrimSpace(req.Role) == "" {
		return models.ActiveLearningCase{}, utils.NewAppError("label case", "role is required", utils.ErrInvalidInput)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return models.ActiveLearningCase{}, utils.NewAppError("label case", "confidence must be within [0,1]", utils.ErrInvalidInput)
	}
	return s.transition(ctx, "label case", id, func(c *models.ActiveLearningCase, now time.Time) error {
		return c.Label(models.HumanCorrection{Role: req.Role, Label: req.Label, Confidence: req.Confidence}, now)
	})
}

// Dismiss closes a pending case without a label.
func (s *CaseService) Dismiss(ctx context.Context, id string) (models.ActiveLearningCase, error) {
	return s.transition(ctx, "dismiss case", id, func(c *models.ActiveLearningCase, now time.Time) error {
		return c.Dismiss(now)
	})
}

func (s *CaseService) transition(ctx context.Context, op, id string, apply func(*models.ActiveLearningCase, time.Time) error) (models.ActiveLearningCase, error) {
	if strings.TrimSpace(id) == "" {
		return models.ActiveLearningCase{}, utils.NewAppError(op, "case id is required", utils.ErrInvalidInput)
	}
	c, err := s.cases.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return models.ActiveLearningCase{}, err
		}
		return models.ActiveLearningCase{}, utils.NewAppError(op, "failed to load case", err)
	}
	if err := apply(&c, s.now().UTC()); err != nil {
		return models.ActiveLearningCase{}, utils.NewAppError(op, "case is already "+string(c.Status), err)
	}
	if err := s.cases.UpdateCase(ctx, c); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) || errors.Is(err, utils.ErrNotFound) {
			return models.ActiveLearningCase{}, err
		}
		return models.ActiveLearningCase{}, utils.NewAppError(op, "failed to update case", err)
	}
	s.logger.Info("active-learning case closed", slog.String("case_id", id), slog.String("status", string(c.Status)))
	return c, nil
}
