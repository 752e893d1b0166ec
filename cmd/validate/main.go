// Command validate performs end-to-end integrity checks on a field message
// fixture and the estimates expected from it: every message parses, every
// run is complete and contiguous, and re-estimating the fixture reproduces
// the expected estimates.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -fixture data/mock/cmip6_fields.jsonl \
//	  -expected data/mock/expected_estimates.json
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixture := flag.String("fixture", "", "path to the field message fixture (JSON lines)")
	expected := flag.String("expected", "", "path to the expected estimates (JSON)")
	reference := flag.String("reference", "piControl", "reference experiment")
	forced := flag.String("forced", "abrupt-4xCO2", "forced experiment")
	flag.Parse()

	if *fixture == "" || *expected == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*fixture, *expected, domain.ExperimentID(*reference), domain.ExperimentID(*forced)); code != 0 {
		os.Exit(code)
	}
}

func run(fixturePath, expectedPath string, reference, forced domain.ExperimentID) int {
	// Set a fixed clock matching genmock for ID reproducibility.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Climate Sensitivity Fixture Validation ===")
	fmt.Println()

	lines, err := loadLines(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}
	var want []domain.Estimate
	if err := loadJSON(expectedPath, &want); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load expected estimates: %v\n", err)
		return 1
	}
	doublings, err := domain.DefaultExperiments().Doublings(forced)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	msgs, parsing := validateParsing(lines)
	ens, completeness := validateCompleteness(msgs, reference, forced)
	cfg := domain.GregoryConfig{Reference: reference, Forced: forced, WindowYears: maxYears(ens, forced), Doublings: doublings}
	got, reproduction := validateReproduction(ens, cfg, want)

	phases := []*phase{parsing, completeness, reproduction, validateSanity(got, cfg)}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d messages, %d models, %d expected estimates\n", len(lines), len(ens), len(want))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func loadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<30)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		lines = append(lines, slices.Clone(sc.Bytes()))
	}
	return lines, sc.Err()
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func validateParsing(lines [][]byte) ([]domain.FieldMessage, *phase) {
	p := &phase{name: "Message parsing"}
	msgs := make([]domain.FieldMessage, 0, len(lines))
	for i, line := range lines {
		msg, err := domain.ParseRawEvent(domain.RawEvent{Value: line})
		if err != nil {
			p.errorf("line %d: %v", i+1, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, p
}

type runKey struct {
	model      domain.ModelID
	experiment domain.ExperimentID
	variable   string
}

func validateCompleteness(msgs []domain.FieldMessage, reference, forced domain.ExperimentID) (domain.Ensemble, *phase) {
	p := &phase{name: "Run completeness"}
	ens := make(domain.Ensemble)
	covered := make(map[runKey][]bool)

	for _, msg := range msgs {
		series, err := domain.ToRunSeries(msg, domain.Reducer{})
		if err != nil {
			p.errorf("%s/%s/%s@%d: %v", msg.SourceID, msg.ExperimentID, msg.VariableID, msg.YearOffset, err)
			continue
		}
		k := runKey{series.SourceID, series.ExperimentID, series.VariableID}
		years := covered[k]
		for y := series.YearOffset; y < series.YearOffset+len(series.Values); y++ {
			for len(years) <= y {
				years = append(years, false)
			}
			if years[y] {
				p.errorf("%s/%s/%s: year %d appears in more than one message", k.model, k.experiment, k.variable, y)
			}
			years[y] = true
		}
		covered[k] = years
		ens.Put(series.SourceID, series.ExperimentID, series.VariableID, series.YearOffset, series.Values)
	}

	for k, years := range covered {
		if i := slices.Index(years, false); i >= 0 {
			p.errorf("%s/%s/%s: year %d is missing", k.model, k.experiment, k.variable, i)
		}
	}
	for _, model := range ens.Models() {
		if !ens.Ready(model, reference, forced) {
			p.errorf("%s: needs tas and imbalance for %s and %s", model, reference, forced)
		}
	}
	return ens, p
}

func validateReproduction(ens domain.Ensemble, cfg domain.GregoryConfig, want []domain.Estimate) ([]domain.Estimate, *phase) {
	p := &phase{name: "Estimate reproduction"}
	byModel := make(map[domain.ModelID]domain.Estimate, len(want))
	for _, est := range want {
		byModel[est.SourceID] = est
	}

	var got []domain.Estimate
	for _, model := range ens.Models() {
		est, err := domain.EstimateModel(model, ens[model], cfg)
		if err != nil {
			p.errorf("%s: %v", model, err)
			continue
		}
		got = append(got, est)

		exp, ok := byModel[model]
		if !ok {
			p.errorf("%s: no expected estimate", model)
			continue
		}
		delete(byModel, model)
		if est.ID != exp.ID {
			p.errorf("%s: id %s, expected %s", model, est.ID, exp.ID)
		}
		if !floatEq(est.Sensitivity, exp.Sensitivity) {
			p.errorf("%s: sensitivity %.9f, expected %.9f", model, est.Sensitivity, exp.Sensitivity)
		}
		if est.Observations != exp.Observations {
			p.errorf("%s: %d observations, expected %d", model, est.Observations, exp.Observations)
		}
	}
	for model := range byModel {
		p.errorf("%s: expected estimate has no data in the fixture", model)
	}
	return got, p
}

func validateSanity(estimates []domain.Estimate, cfg domain.GregoryConfig) *phase {
	p := &phase{name: "Estimate sanity"}
	for _, est := range estimates {
		if math.IsNaN(est.Sensitivity) || est.Sensitivity <= 0 {
			p.errorf("%s: sensitivity %v is not positive", est.SourceID, est.Sensitivity)
		}
		if est.Slope >= 0 {
			p.errorf("%s: feedback %v is not negative", est.SourceID, est.Slope)
		}
		if est.Observations != cfg.WindowYears {
			p.errorf("%s: fit used %d of %d years", est.SourceID, est.Observations, cfg.WindowYears)
		}
	}
	return p
}

// maxYears returns the longest forced tas series in the ensemble.
func maxYears(ens domain.Ensemble, forced domain.ExperimentID) int {
	n := 0
	for _, exps := range ens {
		if s, ok := exps[forced].Series(domain.VarTas); ok {
			n = max(n, len(s))
		}
	}
	return n
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
