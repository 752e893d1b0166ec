// Package report renders ensemble sensitivity results for the command line
// and for spreadsheets.
package report

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/montanaflynn/stats"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// Failure is a model that could not be estimated.
type Failure struct {
	Model  domain.ModelID
	Reason string
	Err    error
}

// Summary describes the spread of sensitivities across an ensemble.
type Summary struct {
	Models int
	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	Max    float64
}

// Summarize computes ensemble statistics over the finite sensitivities.
func Summarize(estimates []domain.Estimate) Summary {
	values := make([]float64, 0, len(estimates))
	for _, est := range estimates {
		if !math.IsNaN(est.Sensitivity) && !math.IsInf(est.Sensitivity, 0) {
			values = append(values, est.Sensitivity)
		}
	}
	if len(values) == 0 {
		return Summary{}
	}
	slices.Sort(values)

	s := Summary{
		Models: len(values),
		Min:    values[0],
		Max:    values[len(values)-1],
	}
	s.Median, _ = stats.Median(values)
	if len(values) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	return s
}

var estimateHeader = []string{"model", "ecs_k", "slope", "intercept", "years", "doublings", "window"}

func estimateRow(est domain.Estimate) []any {
	return []any{
		string(est.SourceID),
		round(est.Sensitivity, 2),
		round(est.Slope, 3),
		round(est.Intercept, 3),
		est.Observations,
		est.Doublings,
		fmt.Sprintf("%d+%d", est.WindowStart, est.WindowYears),
	}
}

// Table renders estimates as a terminal table, sorted by model, followed by
// a footer with the ensemble mean and any failed models.
func Table(estimates []domain.Estimate, failures []Failure, markdown bool) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)

	header := make(table.Row, len(estimateHeader))
	for i, h := range estimateHeader {
		header[i] = h
	}
	w.AppendHeader(header)
	for _, est := range sortedEstimates(estimates) {
		w.AppendRow(estimateRow(est))
	}
	if s := Summarize(estimates); s.Models > 0 {
		w.AppendFooter(table.Row{"mean", round(s.Mean, 2), "", "", "", "", fmt.Sprintf("n=%d sd=%.2f", s.Models, s.StdDev)})
	}
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	var out string
	if markdown {
		out = w.RenderMarkdown()
	} else {
		out = w.Render()
	}
	if len(failures) == 0 {
		return out
	}

	fw := table.NewWriter()
	fw.SetStyle(table.StyleLight)
	fw.AppendHeader(table.Row{"model", "reason", "error"})
	for _, f := range sortedFailures(failures) {
		fw.AppendRow(table.Row{string(f.Model), f.Reason, errString(f.Err)})
	}
	fw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	if markdown {
		return out + "\n\n" + fw.RenderMarkdown()
	}
	return out + "\n" + fw.Render()
}

// WriteXLSX writes estimates and failures to separate sheets of a workbook.
func WriteXLSX(path string, estimates []domain.Estimate, failures []Failure) (err error) {
	f := excelize.NewFile()
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	const sheet = "estimates"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := writeRow(f, sheet, 1, toAny(estimateHeader)); err != nil {
		return err
	}
	for i, est := range sortedEstimates(estimates) {
		if err := writeRow(f, sheet, i+2, estimateRow(est)); err != nil {
			return err
		}
	}

	if len(failures) > 0 {
		const failSheet = "failures"
		if _, err := f.NewSheet(failSheet); err != nil {
			return err
		}
		if err := writeRow(f, failSheet, 1, []any{"model", "reason", "error"}); err != nil {
			return err
		}
		for i, fl := range sortedFailures(failures) {
			if err := writeRow(f, failSheet, i+2, []any{string(fl.Model), fl.Reason, errString(fl.Err)}); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for c, v := range values {
		cell, err := excelize.CoordinatesToCellName(c+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func sortedEstimates(estimates []domain.Estimate) []domain.Estimate {
	out := slices.Clone(estimates)
	slices.SortFunc(out, func(a, b domain.Estimate) int {
		return compareModels(a.SourceID, b.SourceID)
	})
	return out
}

func sortedFailures(failures []Failure) []Failure {
	out := slices.Clone(failures)
	slices.SortFunc(out, func(a, b Failure) int {
		return compareModels(a.Model, b.Model)
	})
	return out
}

func compareModels(a, b domain.ModelID) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func round(x float64, decimals int) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', decimals, 64), 64)
	return v
}
