// Package monitor audits recent decisions for subgroup disparities, feature
// drift and active-learning backlog.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/personalize"
	"github.com/miradorstack/learnsense/internal/store"
	"github.com/miradorstack/learnsense/internal/utils"
)

// Defaults for monitoring thresholds.
const (
	DefaultWindow         = 1000
	DefaultDriftThreshold = 0.1
	DefaultFairnessGap    = 0.1
	DefaultMinGroupSize   = 10
	DefaultMinLabels      = 100
)

// DecisionSource lists recent decisions with their feature vectors, newest first.
type DecisionSource interface {
	RecentDecisions(ctx context.Context, limit int) ([]store.Decision, error)
}

// CaseCounter reports active-learning cases per status.
type CaseCounter interface {
	CaseCounts(ctx context.Context) (map[models.CaseStatus]int, error)
}

// LatencySource reports serving latency for recent predictions.
type LatencySource interface {
	PredictionLatency() utils.LatencyStats
}

// Config tunes the monitor.
type Config struct {
	Window         int
	DriftThreshold float64
	FairnessGap    float64
	MinGroupSize   int
	MinLabels      int
}

// Backlog reports the state of the active-learning queue.
type Backlog struct {
	Pending   int     `json:"pending"`
	Labeled   int     `json:"labeled"`
	Dismissed int     `json:"dismissed"`
	LabelRate float64 `json:"label_rate"`
}

// Retrain recommends whether the weight pack should be revisited.
type Retrain struct {
	Recommended bool     `json:"should_retrain"`
	Reasons     []string `json:"reasons"`
}

// Report is the monitoring snapshot served to operators.
type Report struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	TotalDecisions int                     `json:"total_decisions"`
	ModelVersions  []string                `json:"model_versions"`
	Subgroups      []CategoryAudit         `json:"subgroups"`
	Drift          DriftReport             `json:"drift"`
	Formats        personalize.FormatStats `json:"formats"`
	Backlog        Backlog                 `json:"active_learning"`
	Retrain        Retrain                 `json:"retrain_recommendation"`
	Latency        *utils.LatencyStats     `json:"prediction_latency,omitempty"`
}

// Monitor builds monitoring reports from stored history.
type Monitor struct {
	logger    *slog.Logger
	decisions DecisionSource
	cases     CaseCounter
	cfg       Config
	latency   LatencySource
	now       func() time.Time
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithLatencySource adds serving latency to every report.
func WithLatencySource(src LatencySource) Option {
	return func(m *Monitor) { m.latency = src }
}

// NewMonitor constructs a Monitor; zero config values take the defaults.
func NewMonitor(logger *slog.Logger, decisions DecisionSource, cases CaseCounter, cfg Config, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.DriftThreshold <= 0 {
		cfg.DriftThreshold = DefaultDriftThreshold
	}
	if cfg.FairnessGap <= 0 {
		cfg.FairnessGap = DefaultFairnessGap
	}
	if cfg.MinGroupSize <= 0 {
		cfg.MinGroupSize = DefaultMinGroupSize
	}
	if cfg.MinLabels <= 0 {
		cfg.MinLabels = DefaultMinLabels
	}
	m := &Monitor{logger: logger, decisions: decisions, cases: cases, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Report audits the most recent decisions. The older half of the window is the
// drift reference, the newer half the current sample.
func (m *Monitor) Report(ctx context.Context) (Report, error) {
	recent, err := m.decisions.RecentDecisions(ctx, m.cfg.Window)
	if err != nil {
		return Report{}, fmt.Errorf("load decisions: %w", err)
	}
	counts, err := m.cases.CaseCounts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count cases: %w", err)
	}

	// oldest first
	records := make([]models.DecisionRecord, len(recent))
	vectors := make([]map[string]float64, len(recent))
	formats := make([]models.Action, len(recent))
	versions := make([]string, 0, 2)
	seenVersion := map[string]bool{}
	for i, d := range recent {
		j := len(recent) - 1 - i
		records[j] = d.Record
		vectors[j] = d.Features
		formats[j] = d.Record.RecommendedAction
		if !seenVersion[d.Record.ModelVersion] {
			seenVersion[d.Record.ModelVersion] = true
			versions = append(versions, d.Record.ModelVersion)
		}
	}

	half := len(vectors) / 2
	report := Report{
		GeneratedAt:    m.now().UTC(),
		TotalDecisions: len(records),
		ModelVersions:  versions,
		Subgroups:      AuditSubgroups(records, m.cfg.MinGroupSize, m.cfg.FairnessGap),
		Drift:          DetectDrift(vectors[:half], vectors[half:], m.cfg.DriftThreshold),
		Formats:        personalize.Statistics(formats),
		Backlog:        backlogFrom(counts, len(records)),
	}
	report.Retrain = m.retrain(report)
	if m.latency != nil {
		stats := m.latency.PredictionLatency()
		report.Latency = &stats
	}

	m.logger.Debug("monitoring report built",
		slog.Int("decisions", report.TotalDecisions),
		slog.Bool("drift", report.Drift.Detected),
		slog.Int("pending_cases", report.Backlog.Pending))
	return report, nil
}

func backlogFrom(counts map[models.CaseStatus]int, decisions int) Backlog {
	b := Backlog{
		Pending:   counts[models.CaseStatusPending],
		Labeled:   counts[models.CaseStatusLabeled],
		Dismissed: counts[models.CaseStatusDismissed],
	}
	if decisions > 0 {
		b.LabelRate = float64(b.Labeled) / float64(decisions)
	}
	return b
}

func (m *Monitor) retrain(r Report) Retrain {
	var reasons []string
	if r.Drift.Detected {
		reasons = append(reasons, "Significant data drift detected")
	}
	for _, audit := range r.Subgroups {
		if audit.Concern {
			reasons = append(reasons, fmt.Sprintf("Subgroup probability gap in %s: %.3f > %.2f", audit.Category, audit.Gap, m.cfg.FairnessGap))
		}
	}
	if r.Backlog.Labeled >= m.cfg.MinLabels {
		reasons = append(reasons, fmt.Sprintf("Sufficient new labels available: %d samples", r.Backlog.Labeled))
	}
	return Retrain{Recommended: len(reasons) > 0, Reasons: reasons}
}
