// Command query runs analytical queries against the historical weather
// dataset without a running service. It loads the dataset into an in-memory
// SQLite database and offers canned reports, ad-hoc read-only SQL, and a
// spreadsheet export.
//
// Usage:
//
//	query [-root ./data] latest [-city "New York"] [-limit 20]
//	query [-root ./data] avg-temp [-since 2026-08-01]
//	query [-root ./data] rain [-min-mm 0.1]
//	query [-root ./data] city -name "New York"
//	query [-root ./data] sql "SELECT count(*) FROM analytics.weather_facts"
//	query [-root ./data] export [-out weather.xlsx]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
	"github.com/couchcryptid/weather-data-etl/internal/export"
	"github.com/couchcryptid/weather-data-etl/internal/query"
	"github.com/couchcryptid/weather-data-etl/internal/store"
)

func main() {
	root := flag.String("root", "./data", "storage root containing the historical dataset")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	if code := run(*root, flag.Arg(0), flag.Args()[1:]); code != 0 {
		os.Exit(code)
	}
}

func run(root, command string, args []string) int {
	table, err := store.ReadHistorical(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load historical dataset: %v\n", err)
		return 1
	}
	if table.IsEmpty() {
		fmt.Fprintf(os.Stderr, "historical dataset under %s is empty; run etl first\n", root)
		return 1
	}

	if command == "export" {
		return runExport(table, args)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	eng, err := query.Open(ctx, table, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load query engine: %v\n", err)
		return 1
	}
	defer eng.Close()

	res, err := execute(ctx, eng, command, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	printResult(res)
	return 0
}

func execute(ctx context.Context, eng *query.Engine, command string, args []string) (query.Result, error) {
	switch command {
	case "latest":
		fs := flag.NewFlagSet("latest", flag.ExitOnError)
		city := fs.String("city", "", "only rows for this city")
		limit := fs.Int("limit", 20, "maximum rows")
		_ = fs.Parse(args)
		return eng.Latest(ctx, *city, *limit)

	case "avg-temp":
		fs := flag.NewFlagSet("avg-temp", flag.ExitOnError)
		since := fs.String("since", "", "only dates on or after this YYYY-MM-DD date")
		_ = fs.Parse(args)
		return eng.AverageTemperature(ctx, *since)

	case "rain":
		fs := flag.NewFlagSet("rain", flag.ExitOnError)
		minMM := fs.Float64("min-mm", 0.1, "minimum precipitation in millimeters")
		_ = fs.Parse(args)
		return eng.RainyObservations(ctx, *minMM)

	case "city":
		fs := flag.NewFlagSet("city", flag.ExitOnError)
		name := fs.String("name", "", "city name")
		_ = fs.Parse(args)
		if *name == "" {
			return query.Result{}, fmt.Errorf("city: -name is required")
		}
		return eng.ByCity(ctx, *name)

	case "sql":
		if len(args) != 1 {
			return query.Result{}, fmt.Errorf("sql: expected exactly one statement argument")
		}
		return eng.SQL(ctx, args[0])

	default:
		usage()
		return query.Result{}, fmt.Errorf("unknown command %q", command)
	}
}

func runExport(table dataset.Table, args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "weather.xlsx", "output spreadsheet path")
	_ = fs.Parse(args)

	data, err := export.XLSX(table)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		return 1
	}
	fmt.Printf("wrote %d rows to %s\n", len(table.Rows), *out)
	return 0
}

func printResult(res query.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))
	for _, row := range res.Rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
	fmt.Printf("(%d rows)\n", len(res.Rows))
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: query [-root DIR] COMMAND [ARGS]

Commands:
  latest    [-city NAME] [-limit N]   newest observations first
  avg-temp  [-since YYYY-MM-DD]       average temperature per city
  rain      [-min-mm MM]              observations with precipitation
  city      -name NAME                every column for one city
  sql       "SELECT ..."              ad-hoc read-only SQL
  export    [-out FILE.xlsx]          dump the dataset as a spreadsheet
`)
}
