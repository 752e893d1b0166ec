package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/climate-ecs-etl/internal/catalog"
	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// FieldLoader reads one variable of a file into a field.
type FieldLoader interface {
	LoadField(ctx context.Context, path, variable string) (*domain.Field, error)
}

// BatchOptions controls how files are reduced into annual series.
type BatchOptions struct {
	Reducer      domain.Reducer // TimeAxis defaults to "time"
	StepsPerYear int            // defaults to domain.DefaultStepsPerYear
	Workers      int            // models loaded concurrently
}

// estimationVariables are the (normalized) variables a Gregory estimate reads.
var estimationVariables = []string{domain.VarTas, domain.VarImbalance, domain.VarRSDT, domain.VarRSUT, domain.VarRLUT}

// BuildEnsemble loads every model's files, reduces them to annual global
// means and concatenates each variable's files in time order. A model whose
// files cannot be read is reported as a failure and left out. A field
// without a latitude axis aborts the build, since it means the input
// directory does not hold the expected kind of data.
func BuildEnsemble(ctx context.Context, loader FieldLoader, groups catalog.Groups, opts BatchOptions, logger *slog.Logger) (domain.Ensemble, []ModelFailure, error) {
	if opts.StepsPerYear == 0 {
		opts.StepsPerYear = domain.DefaultStepsPerYear
	}
	if opts.Reducer.TimeAxis == "" {
		opts.Reducer.TimeAxis = domain.DefaultTimeAxis
	}
	workers := max(opts.Workers, 1)

	models := groups.Models()
	runs := make([]map[domain.ExperimentID]domain.Run, len(models))
	errs := make([]error, len(models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, model := range models {
		g.Go(func() error {
			r, err := loadModel(gctx, loader, model, groups[model], opts)
			var missing *domain.MissingCoordinateError
			if errors.As(err, &missing) {
				return err
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			runs[i], errs[i] = r, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	ens := make(domain.Ensemble, len(models))
	var failures []ModelFailure
	for i, model := range models {
		if errs[i] != nil {
			failures = append(failures, ModelFailure{Model: model, Err: errs[i]})
			continue
		}
		ens[model] = runs[i]
		logger.Debug("loaded model", "source_id", model, "experiments", len(runs[i]))
	}
	return ens, failures, nil
}

func loadModel(ctx context.Context, loader FieldLoader, model domain.ModelID, exps map[domain.ExperimentID]map[string][]string, opts BatchOptions) (map[domain.ExperimentID]domain.Run, error) {
	local := make(domain.Ensemble)
	for exp, vars := range exps {
		for fileVar, paths := range vars {
			variable := domain.NormalizeVariable(fileVar)
			if !slices.Contains(estimationVariables, variable) {
				continue
			}
			offset := 0
			for _, path := range paths {
				f, err := loader.LoadField(ctx, path, fileVar)
				if err != nil {
					return nil, fmt.Errorf("model %s: %w", model, err)
				}
				series, err := domain.ToRunSeries(domain.FieldMessage{
					SourceID:     model,
					ExperimentID: exp,
					VariableID:   variable,
					TimeAxis:     opts.Reducer.TimeAxis,
					StepsPerYear: opts.StepsPerYear,
					YearOffset:   offset,
					Field:        f,
				}, opts.Reducer)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", path, err)
				}
				local.Put(model, exp, variable, series.YearOffset, series.Values)
				offset += len(series.Values)
			}
		}
	}
	return local[model], nil
}
