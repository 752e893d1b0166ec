package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// FieldTransformer implements Transformer using the domain reducer. Weight
// construction can be swapped for a cache.
type FieldTransformer struct {
	reducer domain.Reducer
	logger  *slog.Logger
}

// NewTransformer creates a FieldTransformer. Pass nil weights to compute
// latitude weights on every message.
func NewTransformer(weights domain.WeightFunc, logger *slog.Logger) *FieldTransformer {
	return &FieldTransformer{
		reducer: domain.Reducer{Weights: weights},
		logger:  logger,
	}
}

func (t *FieldTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.RunSeries, error) {
	msg, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.RunSeries{}, err
	}

	series, err := domain.ToRunSeries(msg, t.reducer)
	if err != nil {
		return domain.RunSeries{}, err
	}

	t.logger.Debug("reduced field",
		"source_id", series.SourceID,
		"experiment_id", series.ExperimentID,
		"variable_id", series.VariableID,
		"year_offset", series.YearOffset,
		"years", len(series.Values),
	)
	return series, nil
}
