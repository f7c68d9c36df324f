package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/couchcryptid/station-quality-service/internal/observability"
	"github.com/couchcryptid/station-quality-service/internal/quality"
	"github.com/couchcryptid/station-quality-service/internal/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Input is one station file to analyze.
type Input struct {
	Name     string
	Data     []byte
	Progress loader.ProgressObserver // optional
}

// Service produces a report for a station file.
type Service interface {
	Analyze(ctx context.Context, in Input) (*Report, error)
}

// ReportSink receives every freshly computed report.
type ReportSink interface {
	Publish(ctx context.Context, report *Report) error
}

// Analyzer runs load, validate and score for one file at a time. Per-variable
// work within a run fans out to a bounded number of goroutines.
type Analyzer struct {
	loader  *loader.Loader
	cfg     config.Analysis
	workers int
	sink    ReportSink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSink publishes every report to sink. Publish failures are logged and
// counted but do not fail the analysis.
func WithSink(sink ReportSink) Option {
	return func(a *Analyzer) { a.sink = sink }
}

// WithWorkers bounds per-variable concurrency. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(a *Analyzer) { a.workers = max(n, 1) }
}

// NewAnalyzer creates an Analyzer for the given rule set. It reports ready
// until Drain is called.
func NewAnalyzer(cfg config.Analysis, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Analyzer {
	a := &Analyzer{
		loader:  loader.New(cfg, logger),
		cfg:     cfg,
		workers: 1,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ready.Store(true)
	return a
}

// CheckReadiness returns nil while the analyzer accepts work.
func (a *Analyzer) CheckReadiness(_ context.Context) error {
	if !a.ready.Load() {
		return errors.New("analyzer is draining")
	}
	return nil
}

// Drain marks the analyzer as not ready so load balancers stop routing to it.
func (a *Analyzer) Drain() {
	a.ready.Store(false)
}

// Analyze parses, validates and scores a station file.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	a.metrics.AnalysesInFlight.Inc()
	defer a.metrics.AnalysesInFlight.Dec()

	report, err := a.analyze(ctx, in)
	if err != nil {
		a.metrics.AnalysesTotal.WithLabelValues(outcome(err)).Inc()
		a.logger.Warn("analysis failed", "source", in.Name, "bytes", len(in.Data), "error", err)
		return nil, err
	}

	a.metrics.AnalysesTotal.WithLabelValues("success").Inc()
	a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	a.metrics.RowsAnalyzed.Observe(float64(report.Table.RowCount))

	attrs := []any{
		"report_id", report.ID,
		"source", report.Source,
		"rows", report.Table.RowCount,
		"variables", len(report.Variables),
		"duration", time.Since(start),
	}
	if index, ok := report.OverallIndex(); ok {
		a.metrics.QualityIndex.Observe(index)
		attrs = append(attrs, "quality_index", index, "recommendation", report.Quality.Overall.Recommendation.Label)
	} else {
		attrs = append(attrs, "excluded", len(report.Quality.Overall.Excluded))
	}
	a.logger.Info("analysis complete", attrs...)

	a.publish(ctx, report)
	return report, nil
}

func (a *Analyzer) analyze(ctx context.Context, in Input) (*Report, error) {
	table, meta, err := a.loader.Parse(ctx, in.Data, in.Progress)
	if err != nil {
		return nil, err
	}

	v := validator.New(table, a.cfg)
	engine, err := quality.NewEngine(table, v.PhysicalLimits(), a.cfg)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		GeneratedAt: domain.Now(),
		Source:      in.Name,
		ContentHash: ContentHash(in.Data),
		Metadata:    meta,
		Table:       table.Summary(),
	}

	vars := table.Variables()
	anomalies := make([]validator.AnomalyReport, len(vars))
	report.Variables = make([]quality.VariableReport, len(vars))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	g.Go(func() error {
		report.Validation = v.ValidationSummary()
		return nil
	})
	g.Go(func() error {
		report.Quality = engine.Summary()
		return nil
	})
	for i, name := range vars {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var err error
			if anomalies[i], err = v.AnomalyReport(name); err != nil {
				return err
			}
			report.Variables[i], err = engine.VariableReport(name)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Anomalies = make(map[string]validator.AnomalyReport, len(vars))
	for _, ar := range anomalies {
		report.Anomalies[ar.Variable] = ar
	}
	return report, nil
}

func (a *Analyzer) publish(ctx context.Context, report *Report) {
	if a.sink == nil {
		return
	}
	if err := a.sink.Publish(ctx, report); err != nil {
		a.metrics.PublishErrors.Inc()
		a.logger.Error("publish report failed", "report_id", report.ID, "error", err)
		return
	}
	a.metrics.ReportsPublished.Inc()
}

func outcome(err error) string {
	var sizeErr *loader.SizeLimitError
	var formatErr *loader.FormatError
	switch {
	case errors.As(err, &sizeErr):
		return "size_limit"
	case errors.As(err, &formatErr):
		return "format_error"
	default:
		return "error"
	}
}
