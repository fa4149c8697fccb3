// Package forecast predicts monthly category demand from historical samples,
// falling back to seasonal archetypes when history is scarce.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mamadbah2/freshstock/internal/domain/models"
	"github.com/mamadbah2/freshstock/internal/metrics"
)

// Config tunes an Engine.
type Config struct {
	Settings
	// RetrainEvery schedules a background retrain of a category after that
	// many observed sales. Zero disables sale-triggered retrains.
	RetrainEvery int
	// Parallelism bounds concurrent category trainings in TrainAll.
	Parallelism int
}

// Engine owns one model per category. Reads never block on training: each
// category's current model is published through an atomic pointer and
// replaced whole by newer versions.
type Engine struct {
	cfg     Config
	history History
	metrics *metrics.Collector
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	version atomic.Uint64
	wg      sync.WaitGroup

	baseCtx context.Context
	stop    context.CancelFunc
}

type entry struct {
	category   string
	model      atomic.Pointer[Model]
	generation atomic.Uint64
	observed   atomic.Int64

	// mu guards cancel and serializes publishing.
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the clock stamped on trained models.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics records retrain outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// NewEngine builds an engine reading training data from history.
func NewEngine(cfg Config, history History, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}

	ctx, stop := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		history: history,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
		baseCtx: ctx,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TrainAll trains every category the history knows about, in parallel.
func (e *Engine) TrainAll(ctx context.Context) error {
	categories, err := e.history.Categories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for _, category := range categories {
		g.Go(func() error {
			_, err := e.Train(gctx, category)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	e.logger.Info("forecast models trained", zap.Int("categories", len(categories)))
	return nil
}

// Train retrains category synchronously, superseding any in-flight retrain,
// and returns the published model. When a newer request supersedes this one
// the newer model wins and is returned instead.
func (e *Engine) Train(ctx context.Context, category string) (*Model, error) {
	ent := e.entryFor(category)
	gen, ctx, cancel := e.begin(ctx, ent)
	defer cancel()

	if err := e.run(ctx, ent, gen); err != nil && !errors.Is(err, errSuperseded) {
		return nil, err
	}
	return ent.model.Load(), nil
}

// Retrain schedules a background retrain of category. A newer request for
// the same category cancels this one and its result is discarded.
func (e *Engine) Retrain(category string) {
	ent := e.entryFor(category)
	gen, ctx, cancel := e.begin(e.baseCtx, ent)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		if err := e.run(ctx, ent, gen); err != nil && !errors.Is(err, errSuperseded) {
			e.logger.Error("background retrain failed", zap.String("category", ent.category), zap.Error(err))
		}
	}()
}

// RetrainAll schedules a background retrain of every known category.
func (e *Engine) RetrainAll(ctx context.Context) error {
	categories, err := e.history.Categories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, category := range categories {
		e.Retrain(category)
	}
	return nil
}

// Observe notes a sale of category. Every RetrainEvery observations a
// background retrain is scheduled.
func (e *Engine) Observe(category string) {
	if e.cfg.RetrainEvery <= 0 || category == "" {
		return
	}
	ent := e.entryFor(category)
	if n := ent.observed.Add(1); n%int64(e.cfg.RetrainEvery) == 0 {
		e.Retrain(category)
	}
}

// Wait blocks until every background retrain has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels background retrains and waits for them to exit.
func (e *Engine) Close() {
	e.stop()
	e.wg.Wait()
}

// Model returns the current model of category, or nil when never trained.
func (e *Engine) Model(category string) *Model {
	e.mu.RLock()
	ent, ok := e.entries[normalize(category)]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	return ent.model.Load()
}

// Predict returns the forecast of category for month. Categories that were
// never trained are answered from their archetype; without one the result is
// the flagged untrained prediction.
func (e *Engine) Predict(category string, month int) models.Prediction {
	return e.current(category).Prediction(month)
}

// Forecast returns the twelve monthly predictions of category, or of every
// trained category when category is empty.
func (e *Engine) Forecast(category string) []models.Prediction {
	categories := []string{category}
	if category == "" {
		categories = e.Categories()
	}

	out := make([]models.Prediction, 0, 12*len(categories))
	for _, c := range categories {
		m := e.current(c)
		for month := 1; month <= 12; month++ {
			out = append(out, m.Prediction(month))
		}
	}
	return out
}

// Insights summarizes the twelve monthly predictions of category. It returns
// models.ErrModelNotTrained along with the flagged empty insight when the
// category has neither samples nor an archetype.
func (e *Engine) Insights(category string) (models.Insight, error) {
	m := e.current(category)
	insight := m.Insight()
	if m.Source == models.SourceUntrained {
		return insight, fmt.Errorf("category %q: %w", category, models.ErrModelNotTrained)
	}
	return insight, nil
}

// AllInsights returns the insights of every trained category.
func (e *Engine) AllInsights() []models.Insight {
	categories := e.Categories()
	out := make([]models.Insight, 0, len(categories))
	for _, c := range categories {
		if insight, err := e.Insights(c); err == nil {
			out = append(out, insight)
		}
	}
	return out
}

// Categories lists the categories holding a published model.
func (e *Engine) Categories() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.entries))
	for _, ent := range e.entries {
		if ent.model.Load() != nil {
			out = append(out, ent.category)
		}
	}
	sort.Strings(out)
	return out
}

var errSuperseded = errors.New("superseded by a newer retrain")

func (e *Engine) current(category string) *Model {
	if m := e.Model(category); m != nil {
		return m
	}
	return Fit(category, nil, e.cfg.Settings)
}

// begin registers a new generation for ent and cancels the previous one.
func (e *Engine) begin(parent context.Context, ent *entry) (uint64, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ent.mu.Lock()
	gen := ent.generation.Add(1)
	if ent.cancel != nil {
		ent.cancel()
	}
	ent.cancel = cancel
	ent.mu.Unlock()

	return gen, ctx, cancel
}

func (e *Engine) run(ctx context.Context, ent *entry, gen uint64) error {
	start := time.Now()

	samples, err := e.history.Samples(ctx, ent.category)
	if err != nil {
		if ctx.Err() != nil && ent.generation.Load() != gen {
			e.metrics.RetrainFinished("superseded", time.Since(start))
			return errSuperseded
		}
		e.metrics.RetrainFinished("failed", time.Since(start))
		return fmt.Errorf("load samples for %s: %w", ent.category, err)
	}

	m := Fit(ent.category, samples, e.cfg.Settings)
	m.TrainedAt = e.now().UTC()

	ent.mu.Lock()
	defer ent.mu.Unlock()
	if ent.generation.Load() != gen {
		e.metrics.RetrainFinished("superseded", time.Since(start))
		return errSuperseded
	}
	m.Version = e.version.Add(1)
	ent.model.Store(m)
	ent.observed.Store(0)

	e.metrics.RetrainFinished("swapped", time.Since(start))
	e.logger.Info("forecast model swapped",
		zap.String("category", ent.category),
		zap.Uint64("version", m.Version),
		zap.String("source", string(m.Source)),
		zap.Int("samples", m.Samples),
		zap.Float64("confidence", m.Confidence))
	return nil
}

func (e *Engine) entryFor(category string) *entry {
	key := normalize(category)

	e.mu.RLock()
	ent, ok := e.entries[key]
	e.mu.RUnlock()
	if ok {
		return ent
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ent, ok := e.entries[key]; ok {
		return ent
	}
	ent = &entry{category: category}
	e.entries[key] = ent
	return ent
}
