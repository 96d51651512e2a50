package monitor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/store"
	"github.com/miradorstack/learnsense/internal/utils"
)

type fakeHistory struct {
	decisions []store.Decision
	counts    map[models.CaseStatus]int
}

func (f *fakeHistory) RecentDecisions(_ context.Context, limit int) ([]store.Decision, error) {
	if limit > 0 && len(f.decisions) > limit {
		return f.decisions[:limit], nil
	}
	return f.decisions, nil
}

func (f *fakeHistory) CaseCounts(context.Context) (map[models.CaseStatus]int, error) {
	return f.counts, nil
}

func rec(sex models.Sex, p float64, action models.Action) models.DecisionRecord {
	return models.DecisionRecord{
		ADHDProbability:   p,
		RecommendedAction: action,
		ModelVersion:      "linear-v1",
		Subgroup:          models.SubgroupKey{AgeBand: models.AgeBand8To12, Sex: sex, Language: models.LanguageEnglish},
	}
}

func TestAuditSubgroupsFlagsGap(t *testing.T) {
	var decisions []models.DecisionRecord
	for i := 0; i < 10; i++ {
		decisions = append(decisions, rec(models.SexMale, 0.6, models.ActionVisualAndSpeech))
		decisions = append(decisions, rec(models.SexFemale, 0.4, models.ActionText))
	}
	decisions = append(decisions, rec(models.SexOther, 0.99, models.ActionManualReview))

	audits := AuditSubgroups(decisions, 10, 0.1)
	if len(audits) != 3 {
		t.Fatalf("expected three categories, got %d", len(audits))
	}
	sex := audits[1]
	if sex.Category != CategorySex || !sex.Concern || math.Abs(sex.Gap-0.2) > 1e-9 {
		t.Fatalf("expected sex gap of 0.2 flagged, got %+v", sex)
	}
	if len(sex.Groups) != 3 || sex.Groups[0].Group != "F" {
		t.Fatalf("expected small groups reported in sorted order, got %+v", sex.Groups)
	}
	if sex.Groups[1].VisualRate != 1 {
		t.Fatalf("unexpected visual rate %+v", sex.Groups[1])
	}

	age := audits[0]
	if age.Concern || age.Gap != 0 {
		t.Fatalf("single age band cannot have a gap, got %+v", age)
	}
}

func TestDetectDrift(t *testing.T) {
	reference := []map[string]float64{{"a": 1, "b": 5}, {"a": 2, "b": 5}, {"a": 3, "b": 5}}
	current := []map[string]float64{{"a": 1, "b": 5}, {"a": 2, "b": 5}, {"a": 3, "b": 5}}

	same := DetectDrift(reference, current, 0.1)
	if same.Detected || same.MaxScore != 0 {
		t.Fatalf("expected no drift for identical windows, got %+v", same)
	}

	shifted := []map[string]float64{{"a": 2, "b": 5}, {"a": 3, "b": 5}, {"a": 4, "b": 5}}
	drift := DetectDrift(reference, shifted, 0.1)
	if !drift.Detected || len(drift.FeaturesWithDrift) != 1 || drift.FeaturesWithDrift[0] != "a" {
		t.Fatalf("expected drift on a only, got %+v", drift)
	}
	if math.Abs(drift.MaxScore-1) > 1e-6 {
		t.Fatalf("expected mean shift of one std, got %v", drift.MaxScore)
	}

	if empty := DetectDrift(nil, shifted, 0.1); empty.Detected || len(empty.Features) != 0 {
		t.Fatalf("expected empty report without reference, got %+v", empty)
	}
}

func TestMonitorReport(t *testing.T) {
	var decisions []store.Decision
	// newest first: the newer half has higher fidget rates
	for i := 0; i < 20; i++ {
		fidget := 1.0
		if i < 10 {
			fidget = 3.0
		}
		decisions = append(decisions, store.Decision{
			Record:   rec(models.SexFemale, 0.3, models.ActionText),
			Features: map[string]float64{"fidget_rate": fidget + float64(i%2)},
		})
	}
	history := &fakeHistory{
		decisions: decisions,
		counts:    map[models.CaseStatus]int{models.CaseStatusPending: 3, models.CaseStatusLabeled: 5},
	}
	m := NewMonitor(nil, history, history, Config{})
	m.now = func() time.Time { return time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC) }

	report, err := m.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.TotalDecisions != 20 || report.Backlog.Pending != 3 || report.Backlog.LabelRate != 0.25 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if !report.Drift.Detected {
		t.Fatalf("expected drift between halves, got %+v", report.Drift)
	}
	if report.Drift.Features[0].ReferenceMean != 1.5 || report.Drift.Features[0].CurrentMean != 3.5 {
		t.Fatalf("reference must be the older half, got %+v", report.Drift.Features[0])
	}
	if report.Formats.MostCommon != models.ActionText {
		t.Fatalf("unexpected format stats %+v", report.Formats)
	}
	if !report.Retrain.Recommended || len(report.ModelVersions) != 1 {
		t.Fatalf("expected drift-driven retrain recommendation, got %+v", report.Retrain)
	}
}

type fixedLatency utils.LatencyStats

func (f fixedLatency) PredictionLatency() utils.LatencyStats { return utils.LatencyStats(f) }

func TestReportIncludesLatencyWhenWired(t *testing.T) {
	history := &fakeHistory{counts: map[models.CaseStatus]int{}}

	bare, err := NewMonitor(nil, history, history, Config{}).Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if bare.Latency != nil {
		t.Fatalf("expected no latency without a source, got %+v", bare.Latency)
	}

	src := fixedLatency{Samples: 40, P50Ms: 3, P95Ms: 12, MaxMs: 20}
	wired, err := NewMonitor(nil, history, history, Config{}, WithLatencySource(src)).Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if wired.Latency == nil || wired.Latency.Samples != 40 || wired.Latency.P95Ms != 12 {
		t.Fatalf("unexpected latency %+v", wired.Latency)
	}
}
