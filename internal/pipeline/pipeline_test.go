package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/couchcryptid/station-quality-service/internal/observability"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fixtures ---

// stationFile renders a small INMET-style export with the given number of
// daily rows. Every seventh humidity reading is missing.
func stationFile(rows int) []byte {
	var b strings.Builder
	for _, line := range []string{
		"Nome: TESTE", "Codigo Estacao: A999", "Latitude: -15,5", "Longitude: -47,9",
		"Altitude: 1000", "Situacao: Operante", "Data Inicial: 2024-01-01",
		"Data Final: 2024-12-31", "Periodicidade da Medicao: Diaria",
	} {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "Data Medicao;%s;%s;\n", config.VarTempMean, config.VarHumidityMean)

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		humidity := fmt.Sprintf("%d,5", 60+i%20)
		if i%7 == 3 {
			humidity = "null"
		}
		fmt.Fprintf(&b, "%s;%d,%d;%s;\n", start.AddDate(0, 0, i).Format("2006-01-02"), 20+i%5, i%10, humidity)
	}
	return []byte(b.String())
}

// --- mocks ---

type mockSink struct {
	mu      sync.Mutex
	reports []*pipeline.Report
	err     error
}

func (m *mockSink) Publish(_ context.Context, r *pipeline.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, r)
	return nil
}

type countingService struct {
	calls int
	err   error
}

func (m *countingService) Analyze(_ context.Context, in pipeline.Input) (*pipeline.Report, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &pipeline.Report{ID: fmt.Sprintf("r-%d", m.calls), Source: in.Name, ContentHash: pipeline.ContentHash(in.Data)}, nil
}

func newTestMetrics() *observability.Metrics {
	// Use unregistered collectors to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func setFakeClock(t *testing.T) clockwork.FakeClock {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2025, time.May, 2, 9, 30, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fake
}

// --- tests ---

func TestAnalyzer_Analyze_HappyPath(t *testing.T) {
	fake := setFakeClock(t)
	metrics := newTestMetrics()
	sink := &mockSink{}
	a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), metrics,
		pipeline.WithWorkers(4), pipeline.WithSink(sink))

	data := stationFile(90)
	report, err := a.Analyze(context.Background(), pipeline.Input{Name: "a999.csv", Data: data})
	require.NoError(t, err)

	_, err = uuid.Parse(report.ID)
	require.NoError(t, err)
	assert.True(t, fake.Now().Equal(report.GeneratedAt))
	assert.Equal(t, "a999.csv", report.Source)
	assert.Equal(t, pipeline.ContentHash(data), report.ContentHash)

	code, _ := report.Metadata.Get("Codigo Estacao")
	assert.Equal(t, "A999", code)
	assert.Equal(t, 90, report.Table.RowCount)
	assert.Equal(t, 90, report.Table.ExpectedDays)

	require.Len(t, report.Variables, 2)
	assert.Equal(t, config.VarTempMean, report.Variables[0].Variable)
	assert.Equal(t, config.VarHumidityMean, report.Variables[1].Variable)
	assert.Len(t, report.Anomalies, 2)
	assert.True(t, report.Anomalies[config.VarTempMean].ChangePoints.IsComputed())

	index, ok := report.OverallIndex()
	require.True(t, ok)
	assert.Greater(t, index, 80.0)
	assert.Equal(t, "Adequate", report.Quality.Overall.Recommendation.Label)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ReportsPublished))
	require.Len(t, sink.reports, 1)
	assert.Same(t, report, sink.reports[0])
}

func TestAnalyzer_Analyze_ReportsProgress(t *testing.T) {
	a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), newTestMetrics())

	var got []float64
	_, err := a.Analyze(context.Background(), pipeline.Input{
		Name:     "progress.csv",
		Data:     stationFile(10),
		Progress: loader.ProgressFunc(func(f float64) { got = append(got, f) }),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.6, 0.9, 1.0}, got)
}

func TestAnalyzer_Analyze_DeterministicAcrossWorkerCounts(t *testing.T) {
	data := stationFile(120)

	render := func(workers int) string {
		a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), newTestMetrics(), pipeline.WithWorkers(workers))
		report, err := a.Analyze(context.Background(), pipeline.Input{Name: "x.csv", Data: data})
		require.NoError(t, err)
		out, err := json.Marshal(struct {
			V any
			Q any
			A any
		}{report.Variables, report.Quality, report.Anomalies})
		require.NoError(t, err)
		return string(out)
	}

	assert.JSONEq(t, render(1), render(8))
}

func TestAnalyzer_Analyze_Failures(t *testing.T) {
	t.Run("size limit", func(t *testing.T) {
		cfg := config.DefaultAnalysis()
		cfg.MaxFileSizeBytes = 100
		metrics := newTestMetrics()
		sink := &mockSink{}
		a := pipeline.NewAnalyzer(cfg, slog.Default(), metrics, pipeline.WithSink(sink))

		_, err := a.Analyze(context.Background(), pipeline.Input{Name: "big.csv", Data: stationFile(30)})
		var sizeErr *loader.SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues("size_limit")))
		assert.Empty(t, sink.reports)
	})

	t.Run("format error", func(t *testing.T) {
		metrics := newTestMetrics()
		a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), metrics)

		_, err := a.Analyze(context.Background(), pipeline.Input{Name: "empty.csv"})
		var formatErr *loader.FormatError
		require.ErrorAs(t, err, &formatErr)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues("format_error")))
	})

	t.Run("publish failure does not fail the analysis", func(t *testing.T) {
		metrics := newTestMetrics()
		sink := &mockSink{err: errors.New("broker down")}
		a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), metrics, pipeline.WithSink(sink))

		report, err := a.Analyze(context.Background(), pipeline.Input{Name: "x.csv", Data: stationFile(10)})
		require.NoError(t, err)
		assert.NotNil(t, report)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PublishErrors))
	})
}

func TestAnalyzer_Readiness(t *testing.T) {
	a := pipeline.NewAnalyzer(config.DefaultAnalysis(), slog.Default(), newTestMetrics())
	require.NoError(t, a.CheckReadiness(context.Background()))

	a.Drain()
	assert.Error(t, a.CheckReadiness(context.Background()))
}

func TestCachedService(t *testing.T) {
	t.Run("identical content hits the cache", func(t *testing.T) {
		inner := &countingService{}
		metrics := newTestMetrics()
		c := pipeline.NewCachedService(inner, 4, metrics)

		first, err := c.Analyze(context.Background(), pipeline.Input{Name: "a.csv", Data: []byte("same")})
		require.NoError(t, err)
		second, err := c.Analyze(context.Background(), pipeline.Input{Name: "b.csv", Data: []byte("same")})
		require.NoError(t, err)

		assert.Equal(t, 1, inner.calls)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "a.csv", first.Source)
		assert.Equal(t, "b.csv", second.Source)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("hit")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("miss")))
	})

	t.Run("different content misses", func(t *testing.T) {
		inner := &countingService{}
		c := pipeline.NewCachedService(inner, 4, newTestMetrics())

		_, err := c.Analyze(context.Background(), pipeline.Input{Data: []byte("one")})
		require.NoError(t, err)
		_, err = c.Analyze(context.Background(), pipeline.Input{Data: []byte("two")})
		require.NoError(t, err)

		assert.Equal(t, 2, inner.calls)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("errors are not cached", func(t *testing.T) {
		inner := &countingService{err: errors.New("boom")}
		c := pipeline.NewCachedService(inner, 4, newTestMetrics())

		for i := 0; i < 2; i++ {
			_, err := c.Analyze(context.Background(), pipeline.Input{Data: []byte("bad")})
			require.Error(t, err)
		}
		assert.Equal(t, 2, inner.calls)
		assert.Zero(t, c.Len())
	})
}
