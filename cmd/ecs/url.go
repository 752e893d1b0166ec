package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-ecs-etl/internal/catalog"
)

var urlFlags struct {
	time     string
	level    string
	variable string
	key      catalog.StoreKey
}

var urlCmd = &cobra.Command{
	Use:   "url",
	Short: "Print cloud storage locations of climate datasets",
}

var hrrrCmd = &cobra.Command{
	Use:   "hrrr",
	Short: "HRRR analysis Zarr array for an hour",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		t, err := parseTime(urlFlags.time)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), catalog.HRRRZarrURL(t, urlFlags.level, urlFlags.variable))
		return nil
	},
}

var oisstCmd = &cobra.Command{
	Use:   "oisst",
	Short: "NOAA OISST v2.1 daily file for a date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		t, err := parseTime(urlFlags.time)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), catalog.OISSTURL(t))
		return nil
	},
}

var cmip6Cmd = &cobra.Command{
	Use:   "cmip6",
	Short: "CMIP6 Zarr store in the Pangeo cloud bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u, err := catalog.CMIP6StoreURL(urlFlags.key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), u)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{hrrrCmd, oisstCmd} {
		c.Flags().StringVar(&urlFlags.time, "time", "", "time in RFC 3339 or YYYY-MM-DD form (UTC)")
		_ = c.MarkFlagRequired("time")
	}
	hrrrCmd.Flags().StringVar(&urlFlags.level, "level", "surface", "vertical level group")
	hrrrCmd.Flags().StringVar(&urlFlags.variable, "variable", "TMP", "HRRR variable")

	f := cmip6Cmd.Flags()
	f.StringVar(&urlFlags.key.Activity, "activity", "CMIP", "activity ID")
	f.StringVar(&urlFlags.key.Institution, "institution", "", "institution ID")
	f.StringVar(&urlFlags.key.Source, "source", "", "source (model) ID")
	f.StringVar(&urlFlags.key.Experiment, "experiment", "piControl", "experiment ID")
	f.StringVar(&urlFlags.key.Member, "member", "r1i1p1f1", "member ID")
	f.StringVar(&urlFlags.key.Table, "table", "Amon", "table ID")
	f.StringVar(&urlFlags.key.Variable, "variable", "tas", "variable ID")
	f.StringVar(&urlFlags.key.Grid, "grid", "gn", "grid label")
	f.StringVar(&urlFlags.key.Version, "version", "", "dataset version, e.g. 20190429")

	urlCmd.AddCommand(hrrrCmd, oisstCmd, cmip6Cmd)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
