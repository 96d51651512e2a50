package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/learnsense/internal/engine"
	"github.com/miradorstack/learnsense/internal/metrics"
	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/personalize"
	"github.com/miradorstack/learnsense/internal/report"
	"github.com/miradorstack/learnsense/internal/repo"
	"github.com/miradorstack/learnsense/internal/utils"
)

// historyDepth is how many earlier decisions feed the report's trend analysis.
const historyDepth = 4

// Predictor scores a learner signal.
type Predictor interface {
	Predict(learnerID string, signal models.LearnerSignal) engine.Prediction
}

// DecisionStore persists decision history.
type DecisionStore interface {
	SaveDecision(ctx context.Context, rec models.DecisionRecord, features map[string]float64) error
	ListDecisions(ctx context.Context, learnerID string, limit int) ([]models.DecisionRecord, error)
}

// CaseStore persists active-learning cases.
type CaseStore interface {
	CreateCase(ctx context.Context, c models.ActiveLearningCase) error
	GetCase(ctx context.Context, id string) (models.ActiveLearningCase, error)
	UpdateCase(ctx context.Context, c models.ActiveLearningCase) error
	ListCases(ctx context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error)
}

// ConsentRegistry verifies consent against an external record.
type ConsentRegistry interface {
	Enabled() bool
	Lookup(ctx context.Context, learnerID string) (repo.ConsentRecord, error)
}

// ReviewCriteria decides which decisions are queued for human correction.
type ReviewCriteria struct {
	BandLow              float64
	BandHigh             float64
	UncertaintyThreshold float64
}

// DefaultReviewCriteria queues mid-band and high-uncertainty decisions.
func DefaultReviewCriteria() ReviewCriteria {
	return ReviewCriteria{BandLow: 0.35, BandHigh: 0.75, UncertaintyThreshold: engine.DefaultUncertaintyThreshold}
}

// Reason returns why rec needs review, and false when it does not.
func (c ReviewCriteria) Reason(rec models.DecisionRecord) (models.CaseReason, bool) {
	if rec.EpistemicUncertainty >= c.UncertaintyThreshold {
		return models.CaseReasonHighUncertainty, true
	}
	if rec.ADHDProbability >= c.BandLow && rec.ADHDProbability <= c.BandHigh {
		return models.CaseReasonAmbiguous, true
	}
	return "", false
}

// PredictionResult is returned by the prediction endpoint.
type PredictionResult struct {
	Prediction models.DecisionRecord      `json:"prediction"`
	Report     report.Report              `json:"report"`
	LessonPlan personalize.Plan           `json:"lesson_plan"`
	Case       *models.ActiveLearningCase `json:"active_learning_case,omitempty"`
}

// PredictionService gates, scores and records learner predictions.
type PredictionService struct {
	logger    *slog.Logger
	predictor Predictor
	decisions DecisionStore
	cases     CaseStore
	consent   ConsentRegistry
	review    ReviewCriteria
	latencies *utils.LatencyWindow
	served    atomic.Int64
	now       func() time.Time
}

// PredictionOption customises a PredictionService.
type PredictionOption func(*PredictionService)

// WithConsentRegistry enables registry verification on top of the inline flag.
func WithConsentRegistry(registry ConsentRegistry) PredictionOption {
	return func(s *PredictionService) { s.consent = registry }
}

// WithReviewCriteria overrides the active-learning thresholds.
func WithReviewCriteria(c ReviewCriteria) PredictionOption {
	return func(s *PredictionService) { s.review = c }
}

// NewPredictionService constructs the prediction facade.
func NewPredictionService(logger *slog.Logger, predictor Predictor, decisions DecisionStore, cases CaseStore, opts ...PredictionOption) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PredictionService{
		logger:    logger,
		predictor: predictor,
		decisions: decisions,
		cases:     cases,
		review:    DefaultReviewCriteria(),
		latencies: utils.NewLatencyWindow(1024),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Predict checks consent, scores the signal, records the decision and queues
// it for review when needed. Nothing is scored or stored when consent is missing.
func (s *PredictionService) Predict(ctx context.Context, req models.PredictionRequest) (PredictionResult, error) {
	if strings.TrimSpace(req.LearnerID) == "" {
		return PredictionResult{}, utils.NewAppError("predict", "learner_id is required", utils.ErrInvalidInput)
	}
	if req.LearnerData == nil {
		return PredictionResult{}, utils.NewAppError("predict", "learner_data is required", utils.ErrInvalidInput)
	}
	if err := s.checkConsent(ctx, req.LearnerID, req.LearnerData.Consent); err != nil {
		metrics.IncConsentRejection()
		s.logger.Info("prediction refused", slog.String("learner_id", req.LearnerID), slog.Any("reason", err))
		return PredictionResult{}, err
	}
	if problems := req.LearnerData.Validate(); len(problems) > 0 {
		return PredictionResult{}, utils.NewAppError("predict", "out of range: "+strings.Join(problems, ", "), utils.ErrInvalidInput)
	}

	start := time.Now()
	prediction := s.predictor.Predict(req.LearnerID, *req.LearnerData)
	rec := prediction.Record

	history, err := s.decisions.ListDecisions(ctx, req.LearnerID, historyDepth)
	if err != nil {
		s.logger.Warn("decision history unavailable", slog.String("learner_id", req.LearnerID), slog.Any("error", err))
		history = nil
	}

	if err := s.decisions.SaveDecision(ctx, rec, prediction.Features.Map()); err != nil {
		metrics.ObservePrediction(time.Since(start), string(rec.RecommendedAction), metrics.OutcomeError)
		s.logger.Error("save decision failed", slog.String("learner_id", req.LearnerID), slog.Any("error", err))
		return PredictionResult{}, utils.NewAppError("predict", "prediction failed", err)
	}

	result := PredictionResult{
		Prediction: rec,
		Report:     report.Build(rec, probabilitiesOldestFirst(history)),
		LessonPlan: personalize.Build(rec, personalize.ProfileFrom(*req.LearnerData), s.now()),
	}
	if c, ok := s.queueForReview(ctx, rec); ok {
		result.Case = &c
	}

	duration := time.Since(start)
	s.latencies.Observe(duration)
	metrics.ObservePrediction(duration, string(rec.RecommendedAction), metrics.OutcomeSuccess)
	if served := s.served.Add(1); served%20 == 0 {
		stats := s.latencies.Snapshot()
		s.logger.Info("prediction latency", slog.Float64("p95_ms", stats.P95Ms), slog.Int("samples", stats.Samples))
	}
	return result, nil
}

func (s *PredictionService) checkConsent(ctx context.Context, learnerID string, inline models.Consent) error {
	if !inline.ConsentGiven {
		return utils.NewAppError("predict", "consent required", utils.ErrConsentRequired)
	}
	if s.consent == nil || !s.consent.Enabled() {
		return nil
	}
	rec, err := s.consent.Lookup(ctx, learnerID)
	if err != nil {
		return utils.NewAppError("predict", "consent could not be verified", fmt.Errorf("%w: %v", utils.ErrConsentRequired, err))
	}
	if !rec.Valid() {
		return utils.NewAppError("predict", "consent revoked or not on record", utils.ErrConsentRequired)
	}
	return nil
}

func (s *PredictionService) queueForReview(ctx context.Context, rec models.DecisionRecord) (models.ActiveLearningCase, bool) {
	reason, ok := s.review.Reason(rec)
	if !ok {
		return models.ActiveLearningCase{}, false
	}
	now := s.now().UTC()
	c := models.ActiveLearningCase{
		ID:                   uuid.NewString(),
		LearnerID:            rec.LearnerID,
		DecisionID:           rec.ID,
		ADHDProbability:      rec.ADHDProbability,
		CalibratedConfidence: rec.CalibratedConfidence,
		EpistemicUncertainty: rec.EpistemicUncertainty,
		Reason:               reason,
		Status:               models.CaseStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	// The decision is already recorded; a lost case is logged, not surfaced.
	if err := s.cases.CreateCase(ctx, c); err != nil {
		s.logger.Error("queue active-learning case failed",
			slog.String("learner_id", rec.LearnerID),
			slog.String("decision_id", rec.ID),
			slog.Any("error", err))
		return models.ActiveLearningCase{}, false
	}
	metrics.IncActiveLearningCase(string(reason))
	return c, true
}

// Decisions returns a learner's decision history, newest first.
func (s *PredictionService) Decisions(ctx context.Context, learnerID string, limit int) ([]models.DecisionRecord, error) {
	if strings.TrimSpace(learnerID) == "" {
		return nil, utils.NewAppError("decisions", "learner id is required", utils.ErrInvalidInput)
	}
	records, err := s.decisions.ListDecisions(ctx, learnerID, limit)
	if err != nil {
		return nil, utils.NewAppError("decisions", "failed to list decisions", err)
	}
	return records, nil
}

// LessonPlan builds a plan from the learner's latest decision.
func (s *PredictionService) LessonPlan(ctx context.Context, learnerID string, profile personalize.Profile) (personalize.Plan, error) {
	records, err := s.Decisions(ctx, learnerID, 1)
	if err != nil {
		return personalize.Plan{}, err
	}
	if len(records) == 0 {
		return personalize.Plan{}, utils.NewAppError("lesson plan", "no decisions for learner", utils.ErrNotFound)
	}
	return personalize.Build(records[0], profile, s.now()), nil
}

// PredictionLatency summarises the latency of recent successful predictions.
func (s *PredictionService) PredictionLatency() utils.LatencyStats {
	return s.latencies.Snapshot()
}

func probabilitiesOldestFirst(history []models.DecisionRecord) []float64 {
	out := make([]float64, len(history))
	for i, rec := range history {
		out[len(history)-1-i] = rec.ADHDProbability
	}
	return out
}
