package domain

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed experiments.yaml
var defaultExperimentsYAML []byte

// Experiment describes the CO2 forcing of an experiment branch.
type Experiment struct {
	ForcingMultiple float64 `yaml:"forcing_multiple"`
	Description     string  `yaml:"description"`
}

// Experiments maps experiment IDs to their forcing.
type Experiments map[ExperimentID]Experiment

// LoadExperiments parses an experiment catalog in YAML form:
//
//	experiments:
//	  abrupt-4xCO2:
//	    forcing_multiple: 4
func LoadExperiments(r io.Reader) (Experiments, error) {
	var doc struct {
		Experiments Experiments `yaml:"experiments"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse experiments: %w", err)
	}
	for id, exp := range doc.Experiments {
		if exp.ForcingMultiple <= 0 || math.IsNaN(exp.ForcingMultiple) {
			return nil, fmt.Errorf("experiment %s: forcing_multiple must be positive", id)
		}
	}
	return doc.Experiments, nil
}

// DefaultExperiments returns the embedded experiment catalog.
func DefaultExperiments() Experiments {
	exps, err := LoadExperiments(bytes.NewReader(defaultExperimentsYAML))
	if err != nil {
		panic(err) // embedded file is part of the build
	}
	return exps
}

// ReadExperimentsFile loads a catalog from path, or the embedded catalog when
// path is empty.
func ReadExperimentsFile(path string) (Experiments, error) {
	if path == "" {
		return DefaultExperiments(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open experiments: %w", err)
	}
	defer f.Close()
	return LoadExperiments(f)
}

// Doublings returns log2 of the experiment's forcing multiple, the divisor
// that turns an equilibrium warming into a per-doubling sensitivity.
func (x Experiments) Doublings(id ExperimentID) (float64, error) {
	exp, ok := x[id]
	if !ok {
		return 0, fmt.Errorf("experiment %s: forcing multiple unknown", id)
	}
	d := math.Log2(exp.ForcingMultiple)
	if d == 0 {
		return 0, fmt.Errorf("experiment %s: unforced experiment has no doublings", id)
	}
	return d, nil
}
