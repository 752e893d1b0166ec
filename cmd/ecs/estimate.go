package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-ecs-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/climate-ecs-etl/internal/adapter/weights"
	"github.com/couchcryptid/climate-ecs-etl/internal/catalog"
	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
	"github.com/couchcryptid/climate-ecs-etl/internal/pipeline"
	"github.com/couchcryptid/climate-ecs-etl/internal/report"
)

var estimateFlags struct {
	dir          string
	reference    string
	forced       string
	windowStart  int
	windowYears  int
	stepsPerYear int
	workers      int
	experiments  string
	jsonOut      bool
	markdown     bool
	xlsx         string
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate climate sensitivity for every model in a directory",
	Long: `Scan a directory of CMIP6 NetCDF files named by the CMIP6 convention
(tas_Amon_CanESM5_piControl_r1i1p1f1_gn_185001-200012.nc), reduce each file
to global annual means and fit a Gregory regression per model.

Each model needs tas and either a net imbalance (rtmt) or rsdt, rsut and
rlut for both the reference and the forced experiment. Models that cannot
be estimated are listed with the reason; they never fail the run.`,
	Args: cobra.NoArgs,
	RunE: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.StringVar(&estimateFlags.dir, "dir", ".", "directory to scan for NetCDF files")
	f.StringVar(&estimateFlags.reference, "reference", "piControl", "reference (control) experiment")
	f.StringVar(&estimateFlags.forced, "forced", "abrupt-4xCO2", "forced experiment to regress")
	f.IntVar(&estimateFlags.windowStart, "window-start", 0, "first year of the fit, relative to the forced run start")
	f.IntVar(&estimateFlags.windowYears, "window-years", 150, "number of years in the fit")
	f.IntVar(&estimateFlags.stepsPerYear, "steps-per-year", domain.DefaultStepsPerYear, "time steps per year in the input files")
	f.IntVar(&estimateFlags.workers, "workers", 4, "models processed concurrently")
	f.StringVar(&estimateFlags.experiments, "experiments", "", "experiment catalog YAML (default: embedded)")
	f.BoolVar(&estimateFlags.jsonOut, "json", false, "print estimates as JSON")
	f.BoolVar(&estimateFlags.markdown, "markdown", false, "print tables as Markdown")
	f.StringVar(&estimateFlags.xlsx, "xlsx", "", "also write estimates to this spreadsheet")
}

func runEstimate(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	if estimateFlags.reference == estimateFlags.forced {
		return errors.New("--reference and --forced must differ")
	}
	if estimateFlags.windowStart < 0 || estimateFlags.windowYears < 2 {
		return errors.New("--window-start must be >= 0 and --window-years >= 2")
	}

	experiments, err := domain.ReadExperimentsFile(estimateFlags.experiments)
	if err != nil {
		return err
	}
	forced := domain.ExperimentID(estimateFlags.forced)
	doublings, err := experiments.Doublings(forced)
	if err != nil {
		return err
	}

	files, skipped, err := catalog.Scan(estimateFlags.dir)
	if err != nil {
		return err
	}
	for _, path := range skipped {
		logger.Debug("skipping file without CMIP6 name", "path", path)
	}
	if len(files) == 0 {
		return fmt.Errorf("no CMIP6 NetCDF files found in %s", estimateFlags.dir)
	}
	groups := catalog.Group(files)
	logger.Info("scanned files", "files", len(files), "skipped", len(skipped), "models", len(groups))

	cache := weights.NewCache(domain.LatitudeWeights, 16, nil)
	ens, loadFailures, err := pipeline.BuildEnsemble(ctx, netcdf.NewLoader(logger), groups, pipeline.BatchOptions{
		Reducer:      domain.Reducer{Weights: cache.Weights},
		StepsPerYear: estimateFlags.stepsPerYear,
		Workers:      estimateFlags.workers,
	}, logger)
	if err != nil {
		return err
	}

	cfg := domain.GregoryConfig{
		Reference:   domain.ExperimentID(estimateFlags.reference),
		Forced:      forced,
		WindowStart: estimateFlags.windowStart,
		WindowYears: estimateFlags.windowYears,
		Doublings:   doublings,
	}
	estimator := pipeline.NewModelEstimator(cfg, estimateFlags.workers, logger, nil)
	estimates, fitFailures, err := estimator.EstimateModels(ctx, ens, ens.Models())
	if err != nil {
		return err
	}

	failures := make([]report.Failure, 0, len(loadFailures)+len(fitFailures))
	for _, f := range append(loadFailures, fitFailures...) {
		failures = append(failures, report.Failure{Model: f.Model, Reason: domain.FailureReason(f.Err), Err: f.Err})
	}

	out := cmd.OutOrStdout()
	if estimateFlags.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(estimates); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, report.Table(estimates, failures, estimateFlags.markdown))
	}

	if estimateFlags.xlsx != "" {
		if err := report.WriteXLSX(estimateFlags.xlsx, estimates, failures); err != nil {
			return err
		}
		logger.Info("wrote spreadsheet", "path", estimateFlags.xlsx)
	}

	if len(estimates) == 0 {
		fmt.Fprintln(os.Stderr, "no model could be estimated")
	}
	return nil
}
