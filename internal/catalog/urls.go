package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HRRRZarrURL returns the analysis-array URL of a High-Resolution Rapid
// Refresh variable in the hrrrzarr bucket, e.g. level "surface" and
// variable "TMP". The level is repeated because each variable group nests
// its array under the level name.
func HRRRZarrURL(t time.Time, level, variable string) string {
	t = t.UTC()
	date := t.Format("20060102")
	return fmt.Sprintf("s3://hrrrzarr/sfc/%s/%s_%sz_anl.zarr/%s/%s/%s",
		date, date, t.Format("15"), level, variable, level)
}

// OISSTURL returns the daily NOAA OISST v2.1 file for the given date.
func OISSTURL(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("s3://noaa-cdr-sea-surface-temp-optimum-interpolation-pds/data/v2.1/avhrr/%s/oisst-avhrr-v02r01.%s.nc",
		t.Format("200601"), t.Format("20060102"))
}

// StoreKey identifies one CMIP6 dataset in the Pangeo cloud store.
type StoreKey struct {
	Activity    string // e.g. CMIP
	Institution string // e.g. CCCma
	Source      string // model, e.g. CanESM5
	Experiment  string
	Member      string
	Table       string
	Variable    string
	Grid        string
	Version     string // date stamp, with or without the leading "v"
}

// CMIP6StoreURL returns the Zarr store URL of a CMIP6 dataset.
func CMIP6StoreURL(k StoreKey) (string, error) {
	fields := []struct{ name, value string }{
		{"activity", k.Activity},
		{"institution", k.Institution},
		{"source", k.Source},
		{"experiment", k.Experiment},
		{"member", k.Member},
		{"table", k.Table},
		{"variable", k.Variable},
		{"grid", k.Grid},
		{"version", k.Version},
	}
	var errs []error
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", f.name))
		} else if strings.Contains(f.value, "/") {
			errs = append(errs, fmt.Errorf("%s must not contain '/'", f.name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return "", fmt.Errorf("cmip6 store key: %w", err)
	}
	version := strings.TrimPrefix(k.Version, "v")
	return fmt.Sprintf("gs://cmip6/CMIP6/%s/%s/%s/%s/%s/%s/%s/%s/v%s/",
		k.Activity, k.Institution, k.Source, k.Experiment, k.Member, k.Table, k.Variable, k.Grid, version), nil
}
