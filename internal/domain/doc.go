// Package domain implements the global-mean reduction and Gregory-method
// climate sensitivity estimate for CMIP6 model output.
//
// # Data Source
//
// Model output originates from CMIP6 experiments published on cloud object
// stores (see package catalog for URL layout). An upstream loader slices a
// variable of one model experiment, optionally chunked by year, and publishes
// it as a FieldMessage on the Kafka source topic. The batch CLI reads the same
// fields directly from NetCDF files.
//
// # CMIP6 Conventions
//
// Identifiers:
//
//	source_id      model, e.g. "CanESM5"
//	experiment_id  branch, e.g. "piControl", "abrupt-4xCO2"
//	member_id      ensemble member, e.g. "r1i1p1f1"
//	variable_id    e.g. "tas", "rsdt", "rsut", "rlut"
//
// Axes:
//
//	Latitude is named "lat" or "latitude" depending on the dataset and is
//	resolved in that order. Time is monthly ("Amon" table) unless a message
//	says otherwise; twelve steps are averaged into one relative year.
//
// Radiative imbalance:
//
//	Net downward flux at the top of the atmosphere, rsdt - rsut - rlut
//	(incoming shortwave minus reflected shortwave minus outgoing longwave),
//	in W m-2. Zero at equilibrium.
//
// # Method
//
// Each field is multiplied by cos(latitude) weights normalized to mean 1 and
// averaged over every non-time axis, which approximates an area-weighted
// global mean. Anomalies are taken against the model's own piControl mean.
// Over the first WindowYears of the forced run, imbalance is regressed on
// temperature anomaly; the fitted line crosses zero imbalance at the
// equilibrium warming -intercept/slope, which is divided by the number of CO2
// doublings of the forcing (two for abrupt-4xCO2) to give the sensitivity.
//
// # ID Generation
//
// Estimate IDs are SHA-256 hashes of source|forced|reference|window so that
// re-estimating a model overwrites the previous estimate downstream. See
// [generateID].
package domain
