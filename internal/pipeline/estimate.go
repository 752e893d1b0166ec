package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
)

// ModelFailure records why one model could not be estimated.
type ModelFailure struct {
	Model domain.ModelID
	Err   error
}

// ModelEstimator runs domain.EstimateModel over many models with bounded
// concurrency. Per-model errors are collected, never returned, so one bad
// model cannot fail the rest.
type ModelEstimator struct {
	cfg     domain.GregoryConfig
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewModelEstimator creates a ModelEstimator. metrics may be nil.
func NewModelEstimator(cfg domain.GregoryConfig, workers int, logger *slog.Logger, metrics *observability.Metrics) *ModelEstimator {
	if workers < 1 {
		workers = 1
	}
	return &ModelEstimator{cfg: cfg, workers: workers, logger: logger, metrics: metrics}
}

// EstimateModels estimates the listed models from ens. Results keep the
// order of models. The error is non-nil only when ctx is cancelled.
// ens must not be written to while this runs.
func (e *ModelEstimator) EstimateModels(ctx context.Context, ens domain.Ensemble, models []domain.ModelID) ([]domain.Estimate, []ModelFailure, error) {
	if len(models) == 0 {
		return nil, nil, nil
	}

	results := make([]domain.Estimate, len(models))
	errs := make([]error, len(models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, model := range models {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			results[i], errs[i] = domain.EstimateModel(model, ens[model], e.cfg)
			e.observe(errs[i], time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		estimates []domain.Estimate
		failures  []ModelFailure
	)
	for i, model := range models {
		if errs[i] != nil {
			failures = append(failures, ModelFailure{Model: model, Err: errs[i]})
			continue
		}
		estimates = append(estimates, results[i])
	}
	e.logger.Debug("estimated models", "succeeded", len(estimates), "failed", len(failures))
	return estimates, failures, nil
}

func (e *ModelEstimator) observe(err error, d time.Duration) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = domain.FailureReason(err)
	}
	e.metrics.ModelEstimates.WithLabelValues(outcome).Inc()
	e.metrics.EstimateDuration.Observe(d.Seconds())
}
