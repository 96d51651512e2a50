package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miradorstack/learnsense/internal/cache"
	"github.com/miradorstack/learnsense/internal/models"
)

type fakeSource struct {
	points  []models.DataPoint
	queries int
	since   time.Time
}

func (s *fakeSource) QueryPoints(_ context.Context, learnerID string, t models.SignalType, since time.Time) ([]models.DataPoint, error) {
	s.queries++
	s.since = since
	var out []models.DataPoint
	for _, p := range s.points {
		if p.LearnerID == learnerID && (t == "" || p.Type == t) && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[key]; ok {
		return false, nil
	}
	m.store[key] = value
	return true, nil
}

func (m *memoryCache) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

func (m *memoryCache) Close() error { return nil }

var now = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

func series(learner string, t models.SignalType, values ...float64) []models.DataPoint {
	out := make([]models.DataPoint, 0, len(values))
	for i, v := range values {
		out = append(out, models.DataPoint{
			LearnerID: learner,
			Type:      t,
			Value:     v,
			Timestamp: now.Add(-time.Duration(len(values)-i) * time.Minute),
		})
	}
	return out
}

func TestTrendOf(t *testing.T) {
	up := []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.65, 0.65, 0.65, 0.65, 0.65}
	if got := TrendOf(up); got != models.TrendUp {
		t.Fatalf("expected up for +0.15 split-half difference, got %s", got)
	}
	flat := []float64{0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4, 0.4}
	if got := TrendOf(flat); got != models.TrendStable {
		t.Fatalf("expected stable for flat series, got %s", got)
	}
	down := []float64{0.9, 0.9, 0.5, 0.5}
	if got := TrendOf(down); got != models.TrendDown {
		t.Fatalf("expected down, got %s", got)
	}
	if got := TrendOf([]float64{0.9}); got != models.TrendStable {
		t.Fatalf("single value should be stable, got %s", got)
	}
	small := []float64{0.5, 0.5, 0.58, 0.58}
	if got := TrendOf(small); got != models.TrendStable {
		t.Fatalf("difference under threshold should be stable, got %s", got)
	}
}

func TestSummarizeAggregatesAndAlerts(t *testing.T) {
	points := append(series("l1", models.SignalAttention, 0.1, 0.2, 0.3),
		series("l1", models.SignalActivity, 0.8, 0.9)...)
	points = append(points, series("l1", models.SignalEngagement, 0.6)...)

	summary := Summarize("l1", points)
	att := summary.Signals[models.SignalAttention]
	if att.Count != 3 || att.Min != 0.1 || att.Max != 0.3 || att.Average < 0.199 || att.Average > 0.201 {
		t.Fatalf("unexpected attention summary %+v", att)
	}
	if att.Trend != models.TrendUp {
		t.Fatalf("expected rising attention, got %s", att.Trend)
	}
	if len(summary.Alerts) != 2 || summary.Alerts[0] != AlertLowAttention || summary.Alerts[1] != AlertHighDistraction {
		t.Fatalf("unexpected alerts %v", summary.Alerts)
	}
}

func TestRecentNewestFirstWithinWindow(t *testing.T) {
	src := &fakeSource{points: series("l1", models.SignalMood, 0.1, 0.2, 0.3, 0.4)}
	agg := NewAggregator(quietLogger(), src, nil, 0)
	agg.now = func() time.Time { return now }

	got, err := agg.Recent(context.Background(), models.RecentQuery{LearnerID: "l1", WindowMinutes: 2.5})
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Value != 0.4 || got[1].Value != 0.3 {
		t.Fatalf("expected two newest points, got %+v", got)
	}
	if _, err := agg.Recent(context.Background(), models.RecentQuery{LearnerID: "l1", Type: "focus"}); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestSummaryCachedAndInvalidated(t *testing.T) {
	src := &fakeSource{points: series("l1", models.SignalEngagement, 0.2, 0.3)}
	mc := &memoryCache{store: map[string][]byte{}}
	agg := NewAggregator(quietLogger(), src, mc, time.Minute)
	agg.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := agg.Summary(ctx, "l1", 0)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if first.WindowHours != 24 || first.Alerts[0] != AlertLowEngagement {
		t.Fatalf("unexpected summary %+v", first)
	}
	if !src.since.Equal(now.Add(-24 * time.Hour)) {
		t.Fatalf("expected default 24h window, got since %v", src.since)
	}

	if _, err := agg.Summary(ctx, "l1", 24); err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if src.queries != 1 {
		t.Fatalf("expected cache hit, got %d queries", src.queries)
	}

	if _, err := agg.Summary(ctx, "l1", 2); err != nil {
		t.Fatalf("summary with other window: %v", err)
	}
	if src.queries != 2 {
		t.Fatalf("different window must bypass cache, got %d queries", src.queries)
	}

	agg.Invalidate(ctx, []string{"l1"})
	if _, err := mc.Get(ctx, summaryCacheKey("l1")); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected invalidated cache entry")
	}
}

func TestSummaryRebuildHonoursLock(t *testing.T) {
	src := &fakeSource{points: series("l1", models.SignalAttention, 0.5, 0.6)}
	mc := &memoryCache{store: map[string][]byte{}}
	agg := NewAggregator(quietLogger(), src, mc, time.Minute)
	agg.now = func() time.Time { return now }
	ctx := context.Background()

	// another replica is rebuilding l1
	mc.store[summaryLockKey("l1")] = []byte("other-replica")
	if _, err := agg.Summary(ctx, "l1", 0); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := mc.Get(ctx, summaryCacheKey("l1")); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("summary must not be written while another holder owns the lock")
	}
	if string(mc.store[summaryLockKey("l1")]) != "other-replica" {
		t.Fatalf("foreign lock was disturbed")
	}

	delete(mc.store, summaryLockKey("l1"))
	if _, err := agg.Summary(ctx, "l1", 0); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := mc.Get(ctx, summaryCacheKey("l1")); err != nil {
		t.Fatalf("expected summary cached once the lock was free: %v", err)
	}
	if _, err := mc.Get(ctx, summaryLockKey("l1")); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("rebuild lock was not released")
	}
}
