package api

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/monitor"
	"github.com/miradorstack/learnsense/internal/personalize"
	"github.com/miradorstack/learnsense/internal/services"
	"github.com/miradorstack/learnsense/internal/utils"
)

var fixedTime = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePredictions struct {
	lastRequest models.PredictionRequest
	err         error
}

func (f *fakePredictions) Predict(_ context.Context, req models.PredictionRequest) (services.PredictionResult, error) {
	f.lastRequest = req
	if f.err != nil {
		return services.PredictionResult{}, f.err
	}
	if req.LearnerData == nil || !req.LearnerData.Consent.ConsentGiven {
		return services.PredictionResult{}, utils.NewAppError("predict", "consent required", utils.ErrConsentRequired)
	}
	rec := models.DecisionRecord{
		ID:                "d-1",
		LearnerID:         req.LearnerID,
		ADHDProbability:   0.82,
		RecommendedAction: models.ActionVisualAndSpeech,
		Timestamp:         fixedTime,
	}
	return services.PredictionResult{Prediction: rec}, nil
}

func (f *fakePredictions) Decisions(_ context.Context, learnerID string, limit int) ([]models.DecisionRecord, error) {
	out := make([]models.DecisionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, models.DecisionRecord{LearnerID: learnerID})
	}
	return out, nil
}

func (f *fakePredictions) LessonPlan(_ context.Context, learnerID string, profile personalize.Profile) (personalize.Plan, error) {
	if learnerID == "unknown" {
		return personalize.Plan{}, utils.NewAppError("lesson plan", "no decisions for learner", utils.ErrNotFound)
	}
	return personalize.Plan{LearnerID: learnerID, Format: models.ActionText, Rationale: profile.DeviceType}, nil
}

type fakeCases struct {
	lastFilter models.CaseFilter
}

func (f *fakeCases) List(_ context.Context, filter models.CaseFilter) ([]models.ActiveLearningCase, error) {
	f.lastFilter = filter
	return []models.ActiveLearningCase{{ID: "c-1", Status: models.CaseStatusPending}}, nil
}

func (f *fakeCases) Label(_ context.Context, id string, req models.LabelRequest) (models.ActiveLearningCase, error) {
	if id == "closed" {
		return models.ActiveLearningCase{}, utils.NewAppError("label case", "case is already labeled", models.ErrInvalidTransition)
	}
	return models.ActiveLearningCase{ID: id, Status: models.CaseStatusLabeled, Correction: &models.HumanCorrection{Role: req.Role, Label: req.Label}}, nil
}

func (f *fakeCases) Dismiss(_ context.Context, id string) (models.ActiveLearningCase, error) {
	return models.ActiveLearningCase{ID: id, Status: models.CaseStatusDismissed}, nil
}

type fakeRealtime struct {
	lastQuery models.RecentQuery
}

func (f *fakeRealtime) Collect(_ context.Context, req models.CollectRequest) (models.DataPoint, error) {
	if !req.DataType.Valid() {
		return models.DataPoint{}, utils.NewAppError("collect", "unknown data_type", utils.ErrInvalidInput)
	}
	return models.DataPoint{LearnerID: req.UserID, Type: req.DataType, Value: req.Value, Timestamp: fixedTime}, nil
}

func (f *fakeRealtime) Recent(_ context.Context, q models.RecentQuery) ([]models.DataPoint, error) {
	f.lastQuery = q
	return []models.DataPoint{{LearnerID: q.LearnerID, Type: models.SignalAttention, Value: 0.4, Timestamp: fixedTime}}, nil
}

func (f *fakeRealtime) Summary(_ context.Context, learnerID string, hours float64) (models.LearnerSummary, error) {
	return models.LearnerSummary{
		LearnerID:   learnerID,
		WindowHours: hours,
		Signals:     map[models.SignalType]models.SignalSummary{models.SignalAttention: {Average: 0.2, Count: 3, Trend: models.TrendDown}},
		Alerts:      []string{"low_attention"},
	}, nil
}

type fakeMonitor struct{}

func (fakeMonitor) Report(context.Context) (monitor.Report, error) {
	return monitor.Report{TotalDecisions: 7}, nil
}
