package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHRRRZarrURL(t *testing.T) {
	at := time.Date(2021, 6, 1, 7, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"s3://hrrrzarr/sfc/20210601/20210601_07z_anl.zarr/surface/TMP/surface",
		HRRRZarrURL(at, "surface", "TMP"))
}

func TestHRRRZarrURL_ConvertsToUTC(t *testing.T) {
	denver := time.FixedZone("MDT", -6*60*60)
	at := time.Date(2021, 5, 31, 20, 0, 0, 0, denver)
	assert.Equal(t,
		"s3://hrrrzarr/sfc/20210601/20210601_02z_anl.zarr/2m_above_ground/TMP/2m_above_ground",
		HRRRZarrURL(at, "2m_above_ground", "TMP"))
}

func TestOISSTURL(t *testing.T) {
	at := time.Date(1997, 9, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"s3://noaa-cdr-sea-surface-temp-optimum-interpolation-pds/data/v2.1/avhrr/199709/oisst-avhrr-v02r01.19970904.nc",
		OISSTURL(at))
}

func TestCMIP6StoreURL(t *testing.T) {
	key := StoreKey{
		Activity:    "CMIP",
		Institution: "CCCma",
		Source:      "CanESM5",
		Experiment:  "abrupt-4xCO2",
		Member:      "r1i1p1f1",
		Table:       "Amon",
		Variable:    "tas",
		Grid:        "gn",
		Version:     "20190429",
	}
	url, err := CMIP6StoreURL(key)
	require.NoError(t, err)
	assert.Equal(t, "gs://cmip6/CMIP6/CMIP/CCCma/CanESM5/abrupt-4xCO2/r1i1p1f1/Amon/tas/gn/v20190429/", url)

	key.Version = "v20190429"
	again, err := CMIP6StoreURL(key)
	require.NoError(t, err)
	assert.Equal(t, url, again, "leading v is optional")
}

func TestCMIP6StoreURL_Invalid(t *testing.T) {
	_, err := CMIP6StoreURL(StoreKey{Source: "Can/ESM5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activity is required")
	assert.Contains(t, err.Error(), "source must not contain")
}
