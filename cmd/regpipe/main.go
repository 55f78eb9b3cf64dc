package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"regpipe/internal/config"
	"regpipe/internal/dataset"
	"regpipe/internal/export"
	"regpipe/internal/metrics"
	"regpipe/internal/metrics/datadog"
	"regpipe/internal/metrics/prompush"
	"regpipe/internal/pipeline"
	"regpipe/internal/table"
)

// main is the entry point for the regpipe binary. It loads the run config,
// optionally initializes a metrics backend, executes one batch recompute for
// the selected dataset, and prints/exports the filtered result.
func main() {
	var (
		cfgPath     string
		dataDir     string
		datasetName string
		fromFlag    string
		toFlag      string
		outPath     string
		sqlitePath  string
		sqliteTable string
		metricsFlag string
		validate    bool
	)

	flag.StringVar(&cfgPath, "config", "", "run config YAML path (empty: built-in extract lists)")
	flag.StringVar(&dataDir, "data", ".", "directory containing the CSV extracts")
	flag.StringVar(&datasetName, "dataset", "combined", "dataset to build: enrolment, demographic, biometric or combined")
	flag.StringVar(&fromFlag, "from", "", "inclusive range start, YYYY-MM-DD (empty: earliest date)")
	flag.StringVar(&toFlag, "to", "", "inclusive range end, YYYY-MM-DD (empty: latest date)")
	flag.StringVar(&outPath, "out", "", "write filtered rows as CSV to this path ('-' for stdout)")
	flag.StringVar(&sqlitePath, "sqlite", "", "write filtered rows into this SQLite file")
	flag.StringVar(&sqliteTable, "sqlite-table", "registrations", "SQLite table name for -sqlite")
	flag.StringVar(&metricsFlag, "metrics-backend", "", "metrics backend override (datadog, pushgateway, none)")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	if !*verbose {
		log.SetFlags(0)
	}

	// Optional .env for Datadog keys etc. A missing file is fine.
	_ = godotenv.Load()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
	}
	if metricsFlag != "" {
		cfg.Metrics.Backend = metricsFlag
	}

	issues := config.Validate(cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		fatalf("configuration is invalid")
	}
	if validate {
		log.Printf("configuration is valid")
		return
	}

	ctx := context.Background()
	backend := buildMetricsBackend(ctx, cfg.Metrics)
	defer func() {
		if err := backend.Close(); err != nil {
			log.Printf("metrics close: %v", err)
		}
	}()

	p := pipeline.New(os.DirFS(dataDir), cfg.Inputs, backend)

	df, totalCol, err := build(p, datasetName)
	if errors.Is(err, pipeline.ErrNoData) {
		fmt.Fprintln(os.Stderr, "No data loaded. Check the CSV extracts.")
		os.Exit(1)
	}
	if err != nil {
		fatalf("build %s: %v", datasetName, err)
	}

	from, to, err := resolveRange(df, fromFlag, toFlag)
	if err != nil {
		fatalf("%v", err)
	}

	df = pipeline.FilterDateRange(df, from, to)
	if df.Empty() {
		fmt.Println("No rows in the selected date range.")
		return
	}

	printReport(df, totalCol, from, to)

	if outPath != "" {
		if err := writeCSV(outPath, df); err != nil {
			fatalf("csv export: %v", err)
		}
	}
	if sqlitePath != "" {
		if err := export.WriteSQLite(ctx, sqlitePath, sqliteTable, df); err != nil {
			fatalf("sqlite export: %v", err)
		}
	}
}

func build(p *pipeline.Pipeline, name string) (*table.Table, string, error) {
	if name == "combined" {
		t, err := p.Combined()
		return t, "total", err
	}
	c, ok := dataset.ByName(name)
	if !ok {
		return nil, "", fmt.Errorf("unknown dataset %q", name)
	}
	t, err := p.Category(c)
	return t, c.TotalCol, err
}

func buildMetricsBackend(ctx context.Context, cfg config.Metrics) metrics.Backend {
	switch cfg.Backend {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName: cfg.Job,
			Tags:    append(datadog.ParseTagsCSV(cfg.Tags), "run_id:"+uuid.NewString()),
		})
		if err != nil {
			fatalf("datadog metrics init: %v", err)
		}
		return b
	case "pushgateway":
		b, err := prompush.NewBackend(prompush.Options{
			URL:     cfg.PushgatewayURL,
			JobName: cfg.Job,
		})
		if err != nil {
			fatalf("pushgateway metrics init: %v", err)
		}
		return b
	default:
		return metrics.Nop{}
	}
}

// resolveRange turns the -from/-to flags into a concrete inclusive range,
// defaulting each end to the data's own bounds.
func resolveRange(t *table.Table, fromFlag, toFlag string) (time.Time, time.Time, error) {
	min, max, ok := pipeline.DateBounds(t)
	if !ok {
		// No dated rows at all: an impossible range filters everything,
		// and the caller reports "no rows in range".
		return time.Time{}, time.Time{}, nil
	}

	from, to := min, max
	var err error
	if fromFlag != "" {
		if from, err = time.Parse("2006-01-02", fromFlag); err != nil {
			return from, to, fmt.Errorf("bad -from %q: %v", fromFlag, err)
		}
	}
	if toFlag != "" {
		if to, err = time.Parse("2006-01-02", toFlag); err != nil {
			return from, to, fmt.Errorf("bad -to %q: %v", toFlag, err)
		}
	}
	return from, to, nil
}

func printReport(t *table.Table, totalCol string, from, to time.Time) {
	s := pipeline.Summarize(t, totalCol)
	fmt.Printf("Range:   %s .. %s\n", from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Printf("Records: %d\n", s.Records)
	fmt.Printf("Total:   %d\n", s.Total)
	fmt.Printf("States:  %d\n", s.States)

	fmt.Println("\nDaily totals:")
	for _, pt := range pipeline.TimeSeries(t, totalCol) {
		fmt.Printf("  %s  %d\n", pt.Date.Format("2006-01-02"), pt.Total)
	}
}

func writeCSV(path string, t *table.Table) error {
	if path == "-" {
		return export.WriteCSV(os.Stdout, t)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
