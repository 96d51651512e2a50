package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/miradorstack/learnsense/internal/cache"
	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/utils"
)

// Query defaults and alert thresholds.
const (
	DefaultRecentWindow  = 60 * time.Minute
	DefaultSummaryWindow = 24 * time.Hour

	trendThreshold = 0.1
	summaryLockTTL = 10 * time.Second

	LowAttentionThreshold    = 0.3
	LowEngagementThreshold   = 0.4
	HighDistractionThreshold = 0.7
)

// Alert names attached to learner summaries.
const (
	AlertLowAttention    = "low_attention"
	AlertLowEngagement   = "low_engagement"
	AlertHighDistraction = "high_distraction"
)

// Source reads stored points for a learner, newest first.
type Source interface {
	QueryPoints(ctx context.Context, learnerID string, signalType models.SignalType, since time.Time) ([]models.DataPoint, error)
}

// Aggregator answers recent-point and summary queries over stored points.
type Aggregator struct {
	logger *slog.Logger
	source Source
	cache  cache.Provider
	ttl    time.Duration
	now    func() time.Time
}

// NewAggregator creates an aggregator. Summaries are cached for ttl when a
// cache provider is supplied.
func NewAggregator(logger *slog.Logger, source Source, cacheProvider cache.Provider, ttl time.Duration) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &Aggregator{logger: logger, source: source, cache: cacheProvider, ttl: ttl, now: time.Now}
}

// Recent returns a learner's points inside the query window, newest first.
func (a *Aggregator) Recent(ctx context.Context, q models.RecentQuery) ([]models.DataPoint, error) {
	if q.LearnerID == "" {
		return nil, utils.NewAppError("recent", "user_id is required", utils.ErrInvalidInput)
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, utils.NewAppError("recent", "unknown data_type "+string(q.Type), utils.ErrInvalidInput)
	}
	window := DefaultRecentWindow
	if q.WindowMinutes > 0 {
		window = time.Duration(q.WindowMinutes * float64(time.Minute))
	}

	points, err := a.source.QueryPoints(ctx, q.LearnerID, q.Type, a.now().Add(-window))
	if err != nil {
		return nil, utils.NewAppError("recent", "query failed", err)
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.After(points[j].Timestamp)
	})
	return points, nil
}

// Summary aggregates each signal type over the last windowHours.
func (a *Aggregator) Summary(ctx context.Context, learnerID string, windowHours float64) (models.LearnerSummary, error) {
	if learnerID == "" {
		return models.LearnerSummary{}, utils.NewAppError("summary", "user_id is required", utils.ErrInvalidInput)
	}
	window := DefaultSummaryWindow
	if windowHours > 0 {
		window = time.Duration(windowHours * float64(time.Hour))
	}
	hours := window.Hours()

	if cached, ok := a.cached(ctx, learnerID, hours); ok {
		return cached, nil
	}

	points, err := a.source.QueryPoints(ctx, learnerID, "", a.now().Add(-window))
	if err != nil {
		return models.LearnerSummary{}, utils.NewAppError("summary", "query failed", err)
	}

	summary := Summarize(learnerID, points)
	summary.WindowHours = hours
	summary.GeneratedAt = a.now().UTC()

	if a.ttl > 0 {
		a.store(ctx, summary)
	}
	return summary, nil
}

// store writes the summary only while holding the rebuild lock, so a replica
// that lost the race does not overwrite the winner's entry.
func (a *Aggregator) store(ctx context.Context, summary models.LearnerSummary) {
	id := summary.LearnerID
	lock, ok, err := cache.TryLock(ctx, a.cache, summaryLockKey(id), summaryLockTTL)
	if err != nil {
		a.logger.Warn("summary rebuild lock failed", slog.String("learner_id", id), slog.Any("error", err))
		return
	}
	if !ok {
		a.logger.Debug("summary rebuild already in progress", slog.String("learner_id", id))
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			a.logger.Warn("summary rebuild unlock failed", slog.String("learner_id", id), slog.Any("error", err))
		}
	}()

	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, summaryCacheKey(id), data, a.ttl); err != nil {
		a.logger.Warn("summary cache write failed", slog.String("learner_id", id), slog.Any("error", err))
	}
}

// Invalidate drops cached summaries for the given learners.
func (a *Aggregator) Invalidate(ctx context.Context, learnerIDs []string) {
	for _, id := range learnerIDs {
		if err := a.cache.Del(ctx, summaryCacheKey(id)); err != nil {
			a.logger.Warn("summary cache invalidation failed", slog.String("learner_id", id), slog.Any("error", err))
		}
	}
}

func (a *Aggregator) cached(ctx context.Context, learnerID string, hours float64) (models.LearnerSummary, bool) {
	data, err := a.cache.Get(ctx, summaryCacheKey(learnerID))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			a.logger.Warn("summary cache read failed", slog.String("learner_id", learnerID), slog.Any("error", err))
		}
		return models.LearnerSummary{}, false
	}
	var summary models.LearnerSummary
	if err := json.Unmarshal(data, &summary); err != nil || summary.WindowHours != hours {
		return models.LearnerSummary{}, false
	}
	return summary, true
}

// Summarize groups points by type and computes the per-type aggregate and alerts.
func Summarize(learnerID string, points []models.DataPoint) models.LearnerSummary {
	ordered := append([]models.DataPoint(nil), points...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	byType := make(map[models.SignalType][]float64)
	for _, p := range ordered {
		byType[p.Type] = append(byType[p.Type], p.Value)
	}

	signals := make(map[models.SignalType]models.SignalSummary, len(byType))
	for t, values := range byType {
		signals[t] = summarizeValues(values)
	}
	return models.LearnerSummary{
		LearnerID: learnerID,
		Signals:   signals,
		Alerts:    alertsFor(signals),
	}
}

func summarizeValues(values []float64) models.SignalSummary {
	s := models.SignalSummary{Count: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Average = sum / float64(len(values))
	s.Trend = TrendOf(values)
	return s
}

// TrendOf compares the mean of the second half of chronologically ordered
// values against the first half.
func TrendOf(values []float64) models.Trend {
	if len(values) < 2 {
		return models.TrendStable
	}
	mid := len(values) / 2
	diff := mean(values[mid:]) - mean(values[:mid])
	switch {
	case diff > trendThreshold:
		return models.TrendUp
	case diff < -trendThreshold:
		return models.TrendDown
	default:
		return models.TrendStable
	}
}

func alertsFor(signals map[models.SignalType]models.SignalSummary) []string {
	var alerts []string
	if s, ok := signals[models.SignalAttention]; ok && s.Average < LowAttentionThreshold {
		alerts = append(alerts, AlertLowAttention)
	}
	if s, ok := signals[models.SignalEngagement]; ok && s.Average < LowEngagementThreshold {
		alerts = append(alerts, AlertLowEngagement)
	}
	if s, ok := signals[models.SignalActivity]; ok && s.Average > HighDistractionThreshold {
		alerts = append(alerts, AlertHighDistraction)
	}
	return alerts
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func summaryCacheKey(learnerID string) string {
	return cache.Key("summary", learnerID)
}

func summaryLockKey(learnerID string) string {
	return cache.Key("summary-lock", learnerID)
}
