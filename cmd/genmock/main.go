// Command genmock writes a synthetic INMET daily station export for local
// runs and load tests. The generated file is read back through the loader so
// the printed stats match what the analyzer will see.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/station_a999.csv \
//	  -days 730 -null-rate 0.05 -spikes 4 -seed 42
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/couchcryptid/station-quality-service/internal/observability"
)

// variable describes how one column is synthesized: a seasonal sine around
// base plus gaussian noise, floored at min.
type variable struct {
	name      string
	base      float64
	amplitude float64
	noise     float64
	min       float64
	spike     float64
}

var variables = []variable{
	{name: config.VarPrecipitation, base: 3, amplitude: 3, noise: 4, min: 0, spike: 650},
	{name: config.VarPressure, base: 887, amplitude: 3, noise: 1.5, min: 850, spike: 1200},
	{name: config.VarDewPoint, base: 14, amplitude: 4, noise: 1.5, min: -50, spike: 80},
	{name: config.VarTempMax, base: 27, amplitude: 3, noise: 1.5, min: -50, spike: 75},
	{name: config.VarTempMean, base: 21, amplitude: 3, noise: 1, min: -50, spike: 70},
	{name: config.VarTempMin, base: 16, amplitude: 3, noise: 1.5, min: -50, spike: 65},
	{name: config.VarHumidityMean, base: 65, amplitude: 15, noise: 5, min: 5, spike: 140},
	{name: config.VarHumidityMin, base: 40, amplitude: 15, noise: 5, min: 2, spike: 130},
	{name: config.VarWindGust, base: 8, amplitude: 2, noise: 2, min: 0, spike: 150},
	{name: config.VarWindSpeedMean, base: 2, amplitude: 0.5, noise: 0.5, min: 0, spike: 70},
}

type options struct {
	station  string
	start    time.Time
	days     int
	nullRate float64
	spikes   int
	seed     uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the generated station file")
	station := flag.String("station", "A999", "station code written to the metadata block")
	start := flag.String("start", "2023-01-01", "first date (YYYY-MM-DD)")
	days := flag.Int("days", 365, "number of daily rows")
	nullRate := flag.Float64("null-rate", 0.03, "fraction of values written as null")
	spikes := flag.Int("spikes", 3, "out-of-range values injected per variable")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	startDate, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	if *days <= 0 {
		return fmt.Errorf("-days must be positive")
	}

	var buf bytes.Buffer
	generate(&buf, options{
		station:  *station,
		start:    startDate,
		days:     *days,
		nullRate: *nullRate,
		spikes:   *spikes,
		seed:     *seed,
	})

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o600); err != nil {
		return err
	}
	log.Printf("wrote %s (%d bytes)", *out, buf.Len())

	return printStats(buf.Bytes())
}

func generate(w io.Writer, opts options) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	fmt.Fprintln(w, "Nome: ESTACAO SINTETICA")
	fmt.Fprintf(w, "Codigo Estacao: %s\n", opts.station)
	fmt.Fprintln(w, "Latitude: -15,78944444")
	fmt.Fprintln(w, "Longitude: -47,92583332")
	fmt.Fprintln(w, "Altitude: 1160,96")
	fmt.Fprintln(w, "Situacao: Operante")
	fmt.Fprintf(w, "Data Inicial: %s\n", opts.start.Format(time.DateOnly))
	fmt.Fprintf(w, "Data Final: %s\n", opts.start.AddDate(0, 0, opts.days-1).Format(time.DateOnly))
	fmt.Fprintln(w, "Periodicidade da Medicao: Diaria")
	fmt.Fprintln(w)

	header := make([]string, 0, len(variables)+1)
	header = append(header, "Data Medicao")
	for _, v := range variables {
		header = append(header, v.name)
	}
	fmt.Fprintln(w, strings.Join(header, ";")+";")

	spikeRows := make([]map[int]bool, len(variables))
	for j := range variables {
		spikeRows[j] = make(map[int]bool, opts.spikes)
		for range opts.spikes {
			spikeRows[j][rng.IntN(opts.days)] = true
		}
	}

	fields := make([]string, len(variables)+1)
	for i := range opts.days {
		date := opts.start.AddDate(0, 0, i)
		fields[0] = date.Format(time.DateOnly)
		season := math.Sin(2 * math.Pi * float64(date.YearDay()) / 365.25)
		for j, v := range variables {
			switch {
			case rng.Float64() < opts.nullRate:
				fields[j+1] = "null"
			case spikeRows[j][i]:
				fields[j+1] = formatValue(v.spike)
			default:
				x := v.base + v.amplitude*season + v.noise*rng.NormFloat64()
				fields[j+1] = formatValue(math.Max(x, v.min))
			}
		}
		fmt.Fprintln(w, strings.Join(fields, ";")+";")
	}
}

// formatValue writes x with one decimal and a comma separator, the way INMET
// exports do.
func formatValue(x float64) string {
	return strings.Replace(fmt.Sprintf("%.1f", x), ".", ",", 1)
}

func printStats(data []byte) error {
	logger := observability.NewLoggerTo(io.Discard, "error", "text")
	table, meta, err := loader.New(config.DefaultAnalysis(), logger).Parse(context.Background(), data, nil)
	if err != nil {
		return fmt.Errorf("generated file does not load: %w", err)
	}

	summary := table.Summary()
	fmt.Println("\n=== Generated station file ===")
	fmt.Printf("Metadata fields: %d\n", meta.Len())
	fmt.Printf("Rows: %d, columns: %d\n", summary.RowCount, summary.ColumnCount)
	for _, name := range table.Variables() {
		col, _ := table.Column(name)
		fmt.Printf("  %-60s nulls=%d\n", name, col.NullCount())
	}
	return nil
}
