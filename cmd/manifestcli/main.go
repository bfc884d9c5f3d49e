// Command manifestcli is the list-passengers utility (spec §6): a thin
// CLI front-end over the manifest service, printing either a plain table
// or JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/jwmdev/transitspawn/internal/config"
	"github.com/jwmdev/transitspawn/internal/contentapi"
	"github.com/jwmdev/transitspawn/internal/fixtures"
	"github.com/jwmdev/transitspawn/internal/geoservice"
	"github.com/jwmdev/transitspawn/internal/geostore"
	"github.com/jwmdev/transitspawn/internal/manifest"
	"github.com/jwmdev/transitspawn/internal/repository"
)

func main() {
	route := flag.String("route", "", "filter by route id")
	depot := flag.String("depot", "", "filter by depot id")
	status := flag.String("status", "", "filter by status")
	start := flag.String("start", "", "filter by spawn_time >= start (ISO-8601)")
	end := flag.String("end", "", "filter by spawn_time <= end (ISO-8601)")
	limit := flag.Int("limit", 0, "limit result count (0 = unlimited)")
	sortOrder := flag.String("sort", "asc", "sort order on route_position_m: asc or desc")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	fixturePath := flag.String("fixtures", fixtures.DefaultPath, "path to the city dataset JSON")
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "manifestcli:", err)
		os.Exit(1)
	}

	store := geostore.New()
	ds, err := fixtures.Load(*fixturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "manifestcli:", err)
		os.Exit(1)
	}
	store.Load(ds)

	client := contentapi.New(cfg.ContentAPI.BaseURL, cfg.ContentAPI.Token, cfg.ContentAPI.Timeout)
	repo := repository.New(client, log)
	geoSvc := geoservice.New(store)
	enricher := manifest.New(geoSvc, cfg.Manifest.GeocodeConcurrency)
	svc := manifest.NewService(repo, store, enricher)

	rows, err := svc.List(context.Background(), manifest.Query{
		Route: *route, Depot: *depot, Status: *status,
		Start: *start, End: *end, Limit: *limit, Sort: *sortOrder,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "manifestcli:", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			fmt.Fprintln(os.Stderr, "manifestcli:", err)
			os.Exit(1)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tPASSENGER\tROUTE\tSTATUS\tROUTE_POS_M\tSPAWN_ADDR\tDEST_ADDR")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\t%s\n",
			row.Index, row.Passenger.PassengerID, row.Passenger.RouteID, row.Passenger.Status,
			row.RoutePositionM, row.SpawnAddress, row.DestinationAddr)
	}
	_ = w.Flush()
}
