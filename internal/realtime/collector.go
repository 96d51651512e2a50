package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/miradorstack/learnsense/internal/metrics"
	"github.com/miradorstack/learnsense/internal/models"
	"github.com/miradorstack/learnsense/internal/utils"
)

// Collector defaults.
const (
	DefaultFlushInterval = 5 * time.Second
	DefaultBufferSize    = 50
	DefaultWriteTimeout  = 5 * time.Second
)

// Sink durably stores a batch of points. A batch is written entirely or not at all.
type Sink interface {
	InsertPoints(ctx context.Context, points []models.DataPoint) error
}

// CollectorConfig tunes buffering and flushing.
type CollectorConfig struct {
	FlushInterval time.Duration
	BufferSize    int
	WriteTimeout  time.Duration
}

// Collector buffers real-time points in memory and writes them to a Sink in
// batches, on a timer and whenever the buffer reaches its size cap.
//
// Delivery is at-least-once: a failed batch goes back to the front of the
// buffer and is retried on the next flush, so a write that failed after
// partially reaching storage may be duplicated.
type Collector struct {
	logger   *slog.Logger
	sink     Sink
	cfg      CollectorConfig
	now      func() time.Time
	onFlush  func(ctx context.Context, learnerIDs []string)
	mu       sync.Mutex
	buffer   []models.DataPoint
	flushMu  sync.Mutex
	trigger  chan struct{}
	stop     chan struct{}
	done     chan struct{}
	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
}

// CollectorOption customises a Collector.
type CollectorOption func(*Collector)

// WithCollectorClock overrides the timestamp source for collected points.
func WithCollectorClock(now func() time.Time) CollectorOption {
	return func(c *Collector) { c.now = now }
}

// WithFlushHook registers a callback invoked with the learners written by each
// successful flush.
func WithFlushHook(fn func(ctx context.Context, learnerIDs []string)) CollectorOption {
	return func(c *Collector) { c.onFlush = fn }
}

// NewCollector creates a collector writing to sink.
func NewCollector(logger *slog.Logger, sink Sink, cfg CollectorConfig, opts ...CollectorOption) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	c := &Collector{
		logger:  logger,
		sink:    sink,
		cfg:     cfg,
		now:     time.Now,
		buffer:  make([]models.DataPoint, 0, cfg.BufferSize),
		trigger: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect validates and buffers one point. It never waits for persistence.
func (c *Collector) Collect(learnerID string, signalType models.SignalType, value float64, metadata *models.PointMetadata) (models.DataPoint, error) {
	if learnerID == "" {
		return models.DataPoint{}, utils.NewAppError("collect", "user_id is required", utils.ErrInvalidInput)
	}
	if !signalType.Valid() {
		return models.DataPoint{}, utils.NewAppError("collect", fmt.Sprintf("unknown data_type %q", signalType), utils.ErrInvalidInput)
	}
	if math.IsNaN(value) || value < 0 || value > 1 {
		return models.DataPoint{}, utils.NewAppError("collect", "value must be within [0,1]", utils.ErrInvalidInput)
	}

	point := models.DataPoint{
		LearnerID: learnerID,
		Type:      signalType,
		Value:     value,
		Timestamp: c.now().UTC(),
		Metadata:  metadata,
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, point)
	depth := len(c.buffer)
	c.mu.Unlock()

	metrics.IncRealtimePoint(string(signalType))
	metrics.SetBufferDepth(depth)

	if depth >= c.cfg.BufferSize {
		select {
		case c.trigger <- struct{}{}:
		default:
		}
	}
	return point, nil
}

// Buffered returns the number of points awaiting a flush.
func (c *Collector) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Flush writes every buffered point as one batch. Only one flush runs at a
// time; points collected while it runs stay buffered for the next one.
func (c *Collector) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := c.buffer
	c.buffer = make([]models.DataPoint, 0, c.cfg.BufferSize)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	if err := c.sink.InsertPoints(writeCtx, batch); err != nil {
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		depth := len(c.buffer)
		c.mu.Unlock()

		metrics.ObserveFlush(len(batch), metrics.OutcomeError)
		metrics.SetBufferDepth(depth)
		c.logger.Warn("realtime flush failed, points kept for retry",
			slog.Int("points", len(batch)),
			slog.Int("buffered", depth),
			slog.Any("error", err))
		return fmt.Errorf("flush %d points: %w", len(batch), err)
	}

	metrics.ObserveFlush(len(batch), metrics.OutcomeSuccess)
	metrics.SetBufferDepth(c.Buffered())
	c.logger.Debug("realtime flush completed", slog.Int("points", len(batch)))

	if c.onFlush != nil {
		c.onFlush(ctx, learnersIn(batch))
	}
	return nil
}

// Start launches the background flusher. It returns immediately; call Stop to
// end it. Calling Start more than once has no effect.
func (c *Collector) Start(ctx context.Context) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.started {
		return
	}
	c.started = true

	go c.loop(ctx)
	c.logger.Info("realtime collector started",
		slog.Duration("flush_interval", c.cfg.FlushInterval),
		slog.Int("buffer_size", c.cfg.BufferSize))
}

func (c *Collector) loop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Flush(context.WithoutCancel(ctx))
		case <-c.trigger:
			_ = c.Flush(context.WithoutCancel(ctx))
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts the background flusher and performs a final flush.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})

	c.startMu.Lock()
	started := c.started
	c.startMu.Unlock()
	if started {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.Flush(ctx); err != nil {
		c.logger.Error("final realtime flush failed", slog.Int("buffered", c.Buffered()), slog.Any("error", err))
		return err
	}
	c.logger.Info("realtime collector stopped")
	return nil
}

func learnersIn(batch []models.DataPoint) []string {
	seen := make(map[string]struct{}, len(batch))
	out := make([]string, 0, len(batch))
	for _, p := range batch {
		if _, ok := seen[p.LearnerID]; ok {
			continue
		}
		seen[p.LearnerID] = struct{}{}
		out = append(out, p.LearnerID)
	}
	return out
}
