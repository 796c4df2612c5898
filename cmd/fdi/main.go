// Command fdi runs a data integrity pipeline over a tabular file: it
// loads a YAML pipeline definition, validates and maps the records,
// and renders the report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fedeglan/fast-data-integrity/internal/config"
	"github.com/fedeglan/fast-data-integrity/internal/profile"
	"github.com/fedeglan/fast-data-integrity/internal/render"
	"github.com/fedeglan/fast-data-integrity/internal/source"
	"github.com/fedeglan/fast-data-integrity/pkg/pipeline"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

func main() {
	var (
		configPath  = flag.String("config", "pipeline.yaml", "pipeline definition file")
		inputPath   = flag.String("input", "", "input file (.csv or .xlsx)")
		outputPath  = flag.String("output", "", "report destination (default stdout)")
		format      = flag.String("format", "table", "report format: table, json, or excel")
		showProfile = flag.Bool("profile", false, "print a column profile of the input instead of running the pipeline")
	)
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("-input is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	input, err := os.Open(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer func() { _ = input.Close() }()

	f, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg, err := f.Pipeline(nil, nil)
	if err != nil {
		log.Fatalf("Failed to build pipeline config: %v", err)
	}

	src, err := source.Open(*inputPath, input, source.WithSchema(cfg.SourceSchema))
	if err != nil {
		log.Fatalf("Failed to load input: %v", err)
	}

	if *showProfile {
		records, err := stream.Collect(src)
		if err != nil {
			log.Fatalf("Failed to read input: %v", err)
		}
		out, closeOut, err := openOutput(*outputPath)
		if err != nil {
			log.Fatalf("Failed to open output: %v", err)
		}
		defer closeOut()
		if err := writeProfile(out, profile.Dataset(records)); err != nil {
			log.Fatalf("Failed to write profile: %v", err)
		}
		return
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	report, err := p.Run(ctx, src)
	if err != nil {
		log.Printf("Run did not complete: %v", err)
	}

	out, closeOut, err := openOutput(*outputPath)
	if err != nil {
		log.Fatalf("Failed to open output: %v", err)
	}
	if err := render.Write(out, render.Format(*format), report); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	closeOut()

	if report.Status != pipeline.StatusPass {
		os.Exit(1)
	}
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func writeProfile(out *os.File, p profile.Profile) error {
	fmt.Fprintf(out, "records\t%d\n", p.Records)
	for _, col := range p.Columns {
		fmt.Fprintf(out, "%s\t%s\tvalues=%d missing=%d distinct=%d duplicated=%d\n",
			col.Name, col.Type, col.Values, col.Missing, col.Distinct, col.Duplicated)
	}
	return nil
}
