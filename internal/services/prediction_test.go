package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/personalize"
	"github.com/miradorstack/learnsense/internal/repo"
	"github.com/miradorstack/learnsense/internal/utils"
)

func newTestService(record models.DecisionRecord, opts ...PredictionOption) (*PredictionService, *spyPredictor, *memoryDecisions, *memoryCases) {
	predictor := &spyPredictor{record: record}
	decisions := &memoryDecisions{}
	cases := newMemoryCases()
	return NewPredictionService(nil, predictor, decisions, cases, opts...), predictor, decisions, cases
}

func confidentRecord(p float64, action models.Action) models.DecisionRecord {
	return models.DecisionRecord{
		ADHDProbability:      p,
		CalibratedConfidence: 0.9,
		EpistemicUncertainty: 0.01,
		RecommendedAction:    action,
		ModelVersion:         "test",
	}
}

func TestPredictRefusesWithoutConsent(t *testing.T) {
	svc, predictor, decisions, cases := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech))
	signal := consentingSignal()
	signal.Consent.ConsentGiven = false

	_, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: signal})
	if !errors.Is(err, utils.ErrConsentRequired) {
		t.Fatalf("expected consent error, got %v", err)
	}
	if predictor.calls != 0 {
		t.Fatalf("predictor must not run without consent, ran %d times", predictor.calls)
	}
	if len(decisions.records) != 0 || len(cases.cases) != 0 {
		t.Fatalf("nothing should be persisted without consent")
	}
}

func TestPredictRegistryFailsClosed(t *testing.T) {
	revokedAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		registry stubRegistry
	}{
		{"lookup error", stubRegistry{enabled: true, err: errors.New("timeout")}},
		{"unknown learner", stubRegistry{enabled: true, err: repo.ErrConsentUnknown}},
		{"revoked", stubRegistry{enabled: true, record: repo.ConsentRecord{ConsentGiven: true, RevokedAt: &revokedAt}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, predictor, _, _ := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech), WithConsentRegistry(tc.registry))
			_, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()})
			if !errors.Is(err, utils.ErrConsentRequired) {
				t.Fatalf("expected consent error, got %v", err)
			}
			if predictor.calls != 0 {
				t.Fatalf("predictor must not run when registry denies consent")
			}
		})
	}
}

func TestPredictDisabledRegistryTrustsInlineConsent(t *testing.T) {
	svc, predictor, _, _ := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech),
		WithConsentRegistry(stubRegistry{enabled: false, err: errors.New("unused")}))
	if _, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if predictor.calls != 1 {
		t.Fatalf("expected one prediction, got %d", predictor.calls)
	}
}

func TestPredictValidatesRequest(t *testing.T) {
	svc, predictor, _, _ := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech))

	if _, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerData: consentingSignal()}); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing learner id, got %v", err)
	}
	if _, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1"}); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing learner data, got %v", err)
	}

	signal := consentingSignal()
	signal.Behavioral.OnTaskRatio = 1.5
	_, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: signal})
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input for out-of-range ratio, got %v", err)
	}
	if msg := utils.Message(err, ""); msg != "out of range: behavioral.on_task_ratio" {
		t.Fatalf("unexpected message %q", msg)
	}
	if predictor.calls != 0 {
		t.Fatalf("invalid requests must not be scored")
	}
}

func TestPredictRecordsDecisionWithoutCase(t *testing.T) {
	svc, _, decisions, cases := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech))

	result, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decisions.records) != 1 || decisions.records[0].LearnerID != "l-1" {
		t.Fatalf("expected one stored decision, got %+v", decisions.records)
	}
	if result.Case != nil || len(cases.cases) != 0 {
		t.Fatalf("confident high prediction should not be queued")
	}
	if result.Report.RecommendedAction != models.ActionVisualAndSpeech || result.Report.ClinicalDisclaimer == "" {
		t.Fatalf("unexpected report %+v", result.Report)
	}
	if result.Report.TrendAnalysis != nil {
		t.Fatalf("first decision should carry no trend")
	}
	if result.LessonPlan.Format != models.ActionVisualAndSpeech {
		t.Fatalf("expected lesson plan for routed action, got %s", result.LessonPlan.Format)
	}
}

func TestPredictQueuesAmbiguousDecision(t *testing.T) {
	svc, _, _, cases := newTestService(confidentRecord(0.5, models.ActionText))

	result, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-2", LearnerData: consentingSignal()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Case == nil {
		t.Fatalf("expected an active-learning case")
	}
	if result.Case.Reason != models.CaseReasonAmbiguous || result.Case.Status != models.CaseStatusPending {
		t.Fatalf("unexpected case %+v", result.Case)
	}
	if result.Case.DecisionID != result.Prediction.ID {
		t.Fatalf("case must reference the decision")
	}
	if _, ok := cases.cases[result.Case.ID]; !ok {
		t.Fatalf("case was not persisted")
	}
}

func TestPredictQueuesUncertainDecision(t *testing.T) {
	rec := confidentRecord(0.95, models.ActionManualReview)
	rec.EpistemicUncertainty = 0.08
	svc, _, _, _ := newTestService(rec)

	result, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-3", LearnerData: consentingSignal()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Case == nil || result.Case.Reason != models.CaseReasonHighUncertainty {
		t.Fatalf("expected high-uncertainty case, got %+v", result.Case)
	}
}

func TestPredictSaveFailureIsInternal(t *testing.T) {
	svc, _, decisions, _ := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech))
	decisions.saveErr = errStorage

	_, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()})
	if err == nil || !errors.Is(err, errStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if msg := utils.Message(err, ""); msg != "prediction failed" {
		t.Fatalf("expected generic message, got %q", msg)
	}
}

func TestPredictionLatencyCountsSuccessesOnly(t *testing.T) {
	svc, _, decisions, _ := newTestService(confidentRecord(0.9, models.ActionVisualAndSpeech))
	req := models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()}

	for i := 0; i < 3; i++ {
		if _, err := svc.Predict(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	decisions.saveErr = errStorage
	_, _ = svc.Predict(context.Background(), req)

	stats := svc.PredictionLatency()
	if stats.Samples != 3 {
		t.Fatalf("expected 3 latency samples, got %+v", stats)
	}
	if stats.MaxMs < stats.P95Ms || stats.P95Ms < stats.P50Ms {
		t.Fatalf("percentiles out of order: %+v", stats)
	}
}

func TestPredictReportTrendUsesHistory(t *testing.T) {
	svc, predictor, _, _ := newTestService(confidentRecord(0.2, models.ActionText))
	ctx := context.Background()
	for i, p := range []float64{0.2, 0.3, 0.5} {
		predictor.record = confidentRecord(p, models.ActionText)
		predictor.record.ID = string(rune('a' + i))
		if _, err := svc.Predict(ctx, models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	predictor.record = confidentRecord(0.9, models.ActionVisualAndSpeech)
	predictor.record.ID = "d"
	result, err := svc.Predict(ctx, models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trend := result.Report.TrendAnalysis
	if trend == nil || trend.Direction != "increasing" || trend.SessionsAnalyzed != 4 {
		t.Fatalf("expected increasing trend over 4 sessions, got %+v", trend)
	}
}

func TestLessonPlanRequiresDecision(t *testing.T) {
	svc, _, _, _ := newTestService(confidentRecord(0.2, models.ActionText))
	if _, err := svc.LessonPlan(context.Background(), "nobody", personalize.Profile{}); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Predict(context.Background(), models.PredictionRequest{LearnerID: "l-1", LearnerData: consentingSignal()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plan, err := svc.LessonPlan(context.Background(), "l-1", personalize.Profile{Age: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Format != models.ActionText {
		t.Fatalf("expected text plan, got %s", plan.Format)
	}
}

func TestProbabilitiesOldestFirst(t *testing.T) {
	got := probabilitiesOldestFirst([]models.DecisionRecord{{ADHDProbability: 0.3}, {ADHDProbability: 0.2}, {ADHDProbability: 0.1}})
	want := []float64{0.1, 0.2, 0.3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
