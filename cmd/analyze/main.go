// Command analyze scores one or more station files from the command line.
//
// Usage:
//
//	go run ./cmd/analyze [--rules rules.yaml] [--format text|json|csv] FILE...
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/couchcryptid/station-quality-service/internal/adapter/export"
	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/couchcryptid/station-quality-service/internal/observability"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type CmdArgs struct {
	Rules   string `long:"rules" description:"YAML rules file overriding the default analysis rules"`
	Format  string `long:"format" short:"f" default:"text" choice:"text" choice:"json" choice:"csv" description:"Output format"`
	Output  string `long:"output" short:"o" description:"Write output to this file instead of stdout"`
	Workers int    `long:"workers" default:"4" description:"Per-variable concurrency"`
	EnvFile string `long:"env-file" default:".env" description:"Optional dotenv file with QUALITY_* overrides"`
	Quiet   bool   `long:"quiet" short:"q" description:"Do not print progress"`
	Verbose bool   `long:"verbose" short:"v" description:"Log debug details to stderr"`

	Positional struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	args := CmdArgs{}
	if _, err := flags.Parse(&args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, "See 'analyze -h' for help")
		os.Exit(2)
	}

	if err := run(context.Background(), &args, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args *CmdArgs, stdout, stderr io.Writer) error {
	if err := godotenv.Load(args.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read env file: %w", err)
	}
	if args.Format == "csv" && len(args.Positional.Files) > 1 {
		return errors.New("csv output takes a single file")
	}

	rules, err := config.LoadAnalysis(args.Rules)
	if err != nil {
		return err
	}

	level := "warn"
	if args.Verbose {
		level = "debug"
	}
	logger := observability.NewLoggerTo(stderr, level, "text")
	analyzer := pipeline.NewAnalyzer(rules, logger, observability.NewUnregisteredMetrics(), pipeline.WithWorkers(args.Workers))

	reports := make([]*pipeline.Report, 0, len(args.Positional.Files))
	for _, path := range args.Positional.Files {
		report, err := analyzeFile(ctx, analyzer, rules, path, progressFor(args, stderr, path))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		reports = append(reports, report)
	}

	out := stdout
	if args.Output != "" {
		f, err := os.Create(args.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return render(out, args.Format, reports)
}

func analyzeFile(ctx context.Context, a *pipeline.Analyzer, rules config.Analysis, path string, progress loader.ProgressObserver) (*pipeline.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > rules.MaxFileSizeBytes {
		return nil, &loader.SizeLimitError{Size: info.Size(), Limit: rules.MaxFileSizeBytes}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, pipeline.Input{Name: filepath.Base(path), Data: data, Progress: progress})
}

func progressFor(args *CmdArgs, w io.Writer, path string) loader.ProgressObserver {
	if args.Quiet || args.Format != "text" {
		return loader.NopProgress{}
	}
	name := filepath.Base(path)
	return loader.ProgressFunc(func(f float64) {
		fmt.Fprintf(w, "\r%s: %3.0f%%", name, f*100)
		if f >= 1 {
			fmt.Fprintln(w)
		}
	})
}

func render(w io.Writer, format string, reports []*pipeline.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	case "csv":
		return export.WriteQualityCSV(w, reports[0])
	default:
		for _, r := range reports {
			if err := renderText(w, r); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderText(w io.Writer, r *pipeline.Report) error {
	station, _ := r.Metadata.Get("Codigo Estacao")
	fmt.Fprintf(w, "%s", r.Source)
	if station != "" {
		fmt.Fprintf(w, " (station %s)", station)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  rows: %d, expected days: %d\n", r.Table.RowCount, r.Table.ExpectedDays)
	if r.Table.DateRange != nil {
		fmt.Fprintf(w, "  period: %s to %s\n",
			r.Table.DateRange.Start.Format("2006-01-02"), r.Table.DateRange.End.Format("2006-01-02"))
	}

	overall := r.Quality.Overall
	if index, ok := overall.Index.Get(); ok {
		fmt.Fprintf(w, "  overall quality index: %.1f (%s)\n", index, overall.Recommendation.Label)
		fmt.Fprintf(w, "  %s\n", overall.Recommendation.Description)
	} else {
		fmt.Fprintf(w, "  overall quality index: not computed (%s)\n", overall.Index.Reason())
	}
	if len(overall.Excluded) > 0 {
		fmt.Fprintf(w, "  excluded variables: %d\n", len(overall.Excluded))
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  VARIABLE\tCOMPLETENESS\tVALIDITY\tCONSISTENCY\tINDEX")
	for _, v := range r.Variables {
		index := "n/a"
		if x, ok := v.QualityIndex.Index.Get(); ok {
			index = fmt.Sprintf("%.1f", x)
		}
		fmt.Fprintf(tw, "  %s\t%.1f\t%.1f\t%.1f\t%s\n", v.ShortName,
			v.QualityIndex.CompletenessScore, v.QualityIndex.ValidityScore, v.QualityIndex.ConsistencyScore, index)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}
