package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agv/core/eventlog"
	"github.com/kilianp07/agv/pkg/export"
)

var eventsOpts struct {
	name    string
	vehicle string
	order   string
	since   string
	until   string
	format  string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Export events recorded in the configured event log",
	RunE:  runEvents,
}

func init() {
	f := eventsCmd.Flags()
	f.StringVar(&eventsOpts.name, "name", "", "event name filter")
	f.StringVar(&eventsOpts.vehicle, "vehicle", "", "vehicle id filter")
	f.StringVar(&eventsOpts.order, "order", "", "order id filter")
	f.StringVar(&eventsOpts.since, "since", "", "RFC3339 lower bound")
	f.StringVar(&eventsOpts.until, "until", "", "RFC3339 upper bound")
	f.StringVarP(&eventsOpts.format, "format", "f", "csv", "output format: csv or json")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	q := eventlog.Query{Name: eventsOpts.name, VehicleID: eventsOpts.vehicle, OrderID: eventsOpts.order}
	var err error
	if q.Start, err = parseBound("since", eventsOpts.since); err != nil {
		return err
	}
	if q.End, err = parseBound("until", eventsOpts.until); err != nil {
		return err
	}
	if eventsOpts.format != "csv" && eventsOpts.format != "json" {
		return fmt.Errorf("unsupported format %q", eventsOpts.format)
	}

	store, err := eventlog.Open(cfg.EventLog)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("event log disabled: set eventlog.backend")
	}
	defer store.Close()

	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	if eventsOpts.format == "json" {
		return export.WriteJSON(cmd.OutOrStdout(), recs)
	}
	return export.WriteCSV(cmd.OutOrStdout(), recs)
}

func parseBound(flag, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", flag, err)
	}
	return t, nil
}
