// Package mockdata generates synthetic CMIP6-style field messages for models
// with a known climate sensitivity. The forced run follows an exact Gregory
// line, and every spatial and seasonal pattern averages to zero under
// latitude weighting, so the pipeline should recover each model's
// sensitivity to within floating-point error.
package mockdata

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/climate-ecs-etl/internal/domain"
)

// Model describes one synthetic climate model.
type Model struct {
	ID          domain.ModelID
	Sensitivity float64 // K per CO2 doubling
	Feedback    float64 // W m-2 K-1, negative for a stable climate
	BaseTas     float64 // control-run global mean temperature, K
	BaseFlux    float64 // control-run TOA imbalance, W m-2 (model drift)
}

// DefaultModels returns a small ensemble with sensitivities spanning the
// CMIP6 range.
func DefaultModels() []Model {
	return []Model{
		{ID: "CanESM5", Sensitivity: 5.6, Feedback: -0.65, BaseTas: 287.4, BaseFlux: 0.3},
		{ID: "GFDL-CM4", Sensitivity: 3.9, Feedback: -0.8, BaseTas: 286.9, BaseFlux: -0.1},
		{ID: "MIROC6", Sensitivity: 2.6, Feedback: -1.5, BaseTas: 286.2, BaseFlux: 0.6},
		{ID: "MPI-ESM1-2-LR", Sensitivity: 3.0, Feedback: -1.4, BaseTas: 287.1, BaseFlux: 0.2},
		{ID: "UKESM1-0-LL", Sensitivity: 5.4, Feedback: -0.67, BaseTas: 286.5, BaseFlux: 0.05},
	}
}

// Options controls the generated ensemble.
type Options struct {
	Models       []Model
	Reference    domain.ExperimentID
	Forced       domain.ExperimentID
	Doublings    float64 // CO2 doublings of the forced run
	Years        int
	ChunkYears   int // years per message
	StepsPerYear int
	Lat          []float64 // must be symmetric about the equator
	Lon          []float64
	Fluxes       bool    // emit rsdt/rsut/rlut instead of a net imbalance
	Timescale    float64 // e-folding years of the forced warming
}

// DefaultOptions returns a 150-year monthly ensemble on a coarse grid.
func DefaultOptions() Options {
	return Options{
		Models:       DefaultModels(),
		Reference:    "piControl",
		Forced:       "abrupt-4xCO2",
		Doublings:    2,
		Years:        150,
		ChunkYears:   50,
		StepsPerYear: 12,
		Lat:          []float64{-75, -45, -15, 15, 45, 75},
		Lon:          []float64{0, 90, 180, 270},
		Timescale:    4,
	}
}

func (o Options) validate() error {
	var errs []error
	if len(o.Models) == 0 {
		errs = append(errs, errors.New("no models"))
	}
	if o.Years < 2 {
		errs = append(errs, errors.New("years must be at least 2"))
	}
	if o.ChunkYears < 1 {
		errs = append(errs, errors.New("chunk years must be positive"))
	}
	if o.StepsPerYear < 1 {
		errs = append(errs, errors.New("steps per year must be positive"))
	}
	if o.Doublings == 0 {
		errs = append(errs, errors.New("doublings must be non-zero"))
	}
	if o.Timescale <= 0 {
		errs = append(errs, errors.New("timescale must be positive"))
	}
	if len(o.Lat) == 0 || len(o.Lon) == 0 {
		errs = append(errs, errors.New("grid must not be empty"))
	}
	for i, lat := range o.Lat {
		if lat != -o.Lat[len(o.Lat)-1-i] {
			errs = append(errs, errors.New("latitudes must be symmetric about the equator"))
			break
		}
	}
	return errors.Join(errs...)
}

// Messages generates every field message of the ensemble: for each model,
// the reference and forced experiments, each variable, in chunks of
// ChunkYears.
func Messages(o Options) ([]domain.FieldMessage, error) {
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("mock options: %w", err)
	}

	var msgs []domain.FieldMessage
	for _, m := range o.Models {
		for _, exp := range []domain.ExperimentID{o.Reference, o.Forced} {
			tas, imb := m.annual(o, exp == o.Forced)
			vars := map[string][]float64{domain.VarTas: tas}
			order := []string{domain.VarTas}
			if o.Fluxes {
				rsdt, rsut, rlut := splitFluxes(tas, imb, m.BaseTas)
				vars[domain.VarRSDT], vars[domain.VarRSUT], vars[domain.VarRLUT] = rsdt, rsut, rlut
				order = append(order, domain.VarRSDT, domain.VarRSUT, domain.VarRLUT)
			} else {
				vars[domain.VarImbalance] = imb
				order = append(order, domain.VarImbalance)
			}

			for _, v := range order {
				for start := 0; start < o.Years; start += o.ChunkYears {
					end := min(start+o.ChunkYears, o.Years)
					field, err := gridded(v, vars[v][start:end], o)
					if err != nil {
						return nil, err
					}
					msgs = append(msgs, domain.FieldMessage{
						SourceID:     m.ID,
						ExperimentID: exp,
						MemberID:     "r1i1p1f1",
						VariableID:   v,
						TimeAxis:     domain.DefaultTimeAxis,
						StepsPerYear: o.StepsPerYear,
						YearOffset:   start,
						Field:        field,
					})
				}
			}
		}
	}
	return msgs, nil
}

// Key returns the message key used when publishing a field message.
func Key(msg domain.FieldMessage) string {
	return fmt.Sprintf("%s/%s/%s/%d", msg.SourceID, msg.ExperimentID, msg.VariableID, msg.YearOffset)
}

// annual returns the global annual-mean temperature and imbalance. The
// forced run warms towards Sensitivity*Doublings with a single timescale and
// its imbalance falls along imbalance = F + Feedback*T.
func (m Model) annual(o Options, forced bool) (tas, imb []float64) {
	tas = make([]float64, o.Years)
	imb = make([]float64, o.Years)
	equilibrium := m.Sensitivity * o.Doublings
	forcing := -m.Feedback * equilibrium
	for y := range o.Years {
		tas[y], imb[y] = m.BaseTas, m.BaseFlux
		if !forced {
			continue
		}
		warming := equilibrium * (1 - math.Exp(-(float64(y)+0.5)/o.Timescale))
		tas[y] += warming
		imb[y] += forcing + m.Feedback*warming
	}
	return tas, imb
}

// splitFluxes turns a net imbalance into incoming, reflected and outgoing
// components with rsdt - rsut - rlut == imbalance.
func splitFluxes(tas, imb []float64, baseTas float64) (rsdt, rsut, rlut []float64) {
	rsdt = make([]float64, len(imb))
	rsut = make([]float64, len(imb))
	rlut = make([]float64, len(imb))
	for i := range imb {
		rsdt[i] = 340.2
		rsut[i] = 99.5 - 0.4*(tas[i]-baseTas)
		rlut[i] = rsdt[i] - rsut[i] - imb[i]
	}
	return rsdt, rsut, rlut
}

// gridded expands annual global means onto (time, lat, lon) with a
// meridional gradient, a zonal wave and a seasonal cycle that all vanish in
// the weighted global annual mean.
func gridded(variable string, annual []float64, o Options) (*domain.Field, error) {
	steps := len(annual) * o.StepsPerYear
	values := make([]float64, 0, steps*len(o.Lat)*len(o.Lon))
	for s := range steps {
		base := annual[s/o.StepsPerYear]
		season := 0.0
		if o.StepsPerYear > 1 {
			season = 2 * math.Sin(2*math.Pi*(float64(s%o.StepsPerYear)+0.5)/float64(o.StepsPerYear))
		}
		for _, lat := range o.Lat {
			for j := range o.Lon {
				zonal := 0.0
				if len(o.Lon) > 1 && len(o.Lon)%2 == 0 {
					zonal = 1.5 * math.Cos(math.Pi*float64(j))
				}
				values = append(values, base+5*math.Sin(lat*math.Pi/180)+zonal+season*signOf(lat))
			}
		}
	}

	coords := make([]float64, steps)
	for i := range coords {
		coords[i] = float64(i)
	}
	f, err := domain.NewField(variable, []domain.Axis{
		{Name: domain.DefaultTimeAxis, Coords: coords},
		{Name: "lat", Coords: append([]float64(nil), o.Lat...)},
		{Name: "lon", Coords: append([]float64(nil), o.Lon...)},
	}, values)
	if err != nil {
		return nil, err
	}
	f.Units = units(variable)
	return f, nil
}

// signOf flips the seasonal cycle between hemispheres.
func signOf(lat float64) float64 {
	switch {
	case lat > 0:
		return 1
	case lat < 0:
		return -1
	default:
		return 0
	}
}

func units(variable string) string {
	if variable == domain.VarTas {
		return "K"
	}
	return "W m-2"
}
