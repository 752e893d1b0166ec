package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer converts a raw field message into an annual global-mean series.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.RunSeries, error)
}

// BatchLoader writes multiple estimates to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, estimates []domain.Estimate) error
}

// Config tunes the pipeline loop and the per-model estimation.
type Config struct {
	BatchSize int
	Gregory   domain.GregoryConfig
	Workers   int
}

// Pipeline orchestrates the extract-transform-estimate-load loop. Series are
// accumulated per model; a model is re-estimated whenever new data arrives
// for it and both of its experiments are complete enough to fit.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	estimator   *ModelEstimator
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int

	// Owned by the Run goroutine. Nothing is persisted: on start the
	// extractor replays the source topic and the ensemble is rebuilt.
	ensemble domain.Ensemble
	dirty    map[domain.ModelID]struct{}

	mu     sync.RWMutex
	latest map[domain.ModelID]domain.Estimate
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		estimator:   NewModelEstimator(cfg.Gregory, cfg.Workers, logger, metrics),
		logger:      logger,
		metrics:     metrics,
		batchSize:   cfg.BatchSize,
		ensemble:    make(domain.Ensemble),
		dirty:       make(map[domain.ModelID]struct{}),
		latest:      make(map[domain.ModelID]domain.Estimate),
	}
}

// CheckReadiness returns nil if the pipeline has absorbed at least one message,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any messages yet")
	}
	return nil
}

// Estimates returns the most recently published estimate of every model,
// sorted by model.
func (p *Pipeline) Estimates() []domain.Estimate {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.Estimate, 0, len(p.latest))
	for _, est := range p.latest {
		out = append(out, est)
	}
	slices.SortFunc(out, func(a, b domain.Estimate) int {
		switch {
		case a.SourceID < b.SourceID:
			return -1
		case a.SourceID > b.SourceID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Run executes the batch ETL loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"batch_size", p.batchSize,
		"reference", p.estimator.cfg.Reference,
		"forced", p.estimator.cfg.Forced,
		"window_start", p.estimator.cfg.WindowStart,
		"window_years", p.estimator.cfg.WindowYears,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-estimate-load cycle. Returns false
// if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 && len(p.dirty) == 0 {
		return ctx.Err() == nil
	}

	if len(rawBatch) > 0 {
		p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
		p.metrics.BatchSize.Observe(float64(len(rawBatch)))
		*backoff = 200 * time.Millisecond
		if p.absorb(ctx, rawBatch) > 0 {
			p.ready.Store(true)
		}
	}

	loaded, ok := p.estimateAndLoad(ctx, backoff, maxBackoff)
	if !ok {
		return false
	}
	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	}
	return true
}

// absorb transforms each message and merges its series into the ensemble.
// Messages that fail to transform are skipped. Returns the number of absorbed
// messages.
func (p *Pipeline) absorb(ctx context.Context, rawBatch []domain.RawEvent) int {
	absorbed := 0
	for _, raw := range rawBatch {
		series, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"reason", domain.FailureReason(err),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			continue
		}

		p.ensemble.Put(series.SourceID, series.ExperimentID, series.VariableID, series.YearOffset, series.Values)
		p.dirty[series.SourceID] = struct{}{}
		absorbed++
	}
	return absorbed
}

// estimateAndLoad estimates every dirty model that has both experiments and
// publishes the results. A model that is not ready yet becomes dirty again
// when more of its data arrives; a model whose load failed stays dirty and is
// retried on the next cycle. Returns the number of loaded estimates and false
// if the pipeline should stop.
func (p *Pipeline) estimateAndLoad(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	cfg := p.estimator.cfg
	var ready []domain.ModelID
	for model := range p.dirty {
		if p.ensemble.Ready(model, cfg.Reference, cfg.Forced) {
			ready = append(ready, model)
			continue
		}
		delete(p.dirty, model)
	}
	slices.Sort(ready)

	estimates, failures, err := p.estimator.EstimateModels(ctx, p.ensemble, ready)
	if err != nil {
		return 0, false
	}
	for _, f := range failures {
		p.logger.Warn("model estimate failed", "source_id", f.Model, "reason", domain.FailureReason(f.Err), "error", f.Err)
		// Failed models wait for more data rather than retrying every batch.
		delete(p.dirty, f.Model)
	}

	if len(estimates) > 0 {
		if err := p.loader.LoadBatch(ctx, estimates); err != nil {
			p.logger.Error("load batch failed", "error", err, "batch_size", len(estimates))
			return 0, p.backoffOrStop(ctx, backoff, maxBackoff)
		}
		p.metrics.MessagesProduced.Add(float64(len(estimates)))
		p.publish(estimates)
	}

	p.metrics.ModelsPending.Set(float64(p.pendingModels()))
	return len(estimates), true
}

// pendingModels counts buffered models that have no published estimate yet.
func (p *Pipeline) pendingModels() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for model := range p.ensemble {
		if _, ok := p.latest[model]; !ok {
			n++
		}
	}
	return n
}

// publish records loaded estimates for the HTTP view and clears their models.
func (p *Pipeline) publish(estimates []domain.Estimate) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, est := range estimates {
		p.latest[est.SourceID] = est
		delete(p.dirty, est.SourceID)
		p.metrics.Sensitivity.WithLabelValues(string(est.SourceID)).Set(est.Sensitivity)
		p.logger.Info("published estimate",
			"source_id", est.SourceID,
			"sensitivity", est.Sensitivity,
			"observations", est.Observations,
		)
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}
