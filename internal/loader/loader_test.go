package loader_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/loader"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = "testdata/station_a001.csv"

func newLoader(cfg config.Analysis) *loader.Loader {
	return loader.New(cfg, slog.Default())
}

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(fixture)
	require.NoError(t, err)
	return data
}

func jan(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestLoadFile_Fixture(t *testing.T) {
	tbl, meta, err := newLoader(config.DefaultAnalysis()).LoadFile(context.Background(), fixture, nil)
	require.NoError(t, err)

	assert.Equal(t, 10, tbl.Len())
	assert.Equal(t, 5, tbl.ColumnCount())
	assert.Equal(t, []string{
		config.VarPrecipitation,
		config.VarTempMean,
		config.VarHumidityMean,
		config.VarWindSpeedMean,
	}, tbl.Variables())

	for i := 0; i < tbl.Len(); i++ {
		d := tbl.Date(i)
		require.True(t, d.Valid)
		assert.Equal(t, jan(i+1), d.Time, "row %d", i)
	}

	assert.Equal(t, 9, meta.Len())
	code, ok := meta.Get("Codigo Estacao")
	require.True(t, ok)
	assert.Equal(t, "A001", code)
	lat, _ := meta.Get("Latitude")
	assert.Equal(t, "-15.78944444", lat)

	precip, ok := tbl.Column(config.VarPrecipitation)
	require.True(t, ok)
	assert.Equal(t, domain.Float(12.6), precip.Values[0])
	assert.Equal(t, domain.Float(0.5), precip.Values[1], "leading decimal separator is repaired")
	assert.Equal(t, domain.Float(600), precip.Values[6])

	temp, _ := tbl.Column(config.VarTempMean)
	assert.Equal(t, 2, temp.NullCount(), "NaN token and unparseable text both become null")
	assert.False(t, temp.Values[4].Valid)
	assert.False(t, temp.Values[7].Valid)

	humidity, _ := tbl.Column(config.VarHumidityMean)
	assert.False(t, humidity.Values[1].Valid)

	wind, _ := tbl.Column(config.VarWindSpeedMean)
	assert.False(t, wind.Values[3].Valid)
	assert.Equal(t, domain.Float(3.0), wind.Values[6])
}

func TestParse_SortsBySourceDate(t *testing.T) {
	tbl, _, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), readFixture(t), nil)
	require.NoError(t, err)

	// The fixture lists 2024-01-03 first.
	assert.Equal(t, 0, tbl.SourceRow(2))
	assert.Equal(t, jan(3), tbl.SourceDates()[0].Time)
}

func TestParse_Deterministic(t *testing.T) {
	l := newLoader(config.DefaultAnalysis())
	data := readFixture(t)

	first, meta1, err := l.Parse(context.Background(), data, nil)
	require.NoError(t, err)
	second, meta2, err := l.Parse(context.Background(), data, nil)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, meta1.Keys(), meta2.Keys())
	if diff := cmp.Diff(first.Summary(), second.Summary()); diff != "" {
		t.Errorf("summary mismatch (-first +second):\n%s", diff)
	}
}

func TestParse_Progress(t *testing.T) {
	var got []float64
	obs := loader.ProgressFunc(func(f float64) { got = append(got, f) })

	_, _, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), readFixture(t), obs)
	require.NoError(t, err)

	want := []float64{loader.ProgressHeader, loader.ProgressParsed, loader.ProgressCoerced, loader.ProgressSorted}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SizeLimit(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.MaxFileSizeBytes = 64

	t.Run("reader", func(t *testing.T) {
		_, _, err := newLoader(cfg).Load(context.Background(), bytes.NewReader(readFixture(t)), nil)
		var sizeErr *loader.SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, int64(65), sizeErr.Size)
		assert.Equal(t, int64(64), sizeErr.Limit)
	})

	t.Run("file", func(t *testing.T) {
		_, _, err := newLoader(cfg).LoadFile(context.Background(), fixture, nil)
		var sizeErr *loader.SizeLimitError
		require.ErrorAs(t, err, &sizeErr)
		assert.Greater(t, sizeErr.Size, int64(64))
	})

	t.Run("no progress before rejection", func(t *testing.T) {
		called := false
		obs := loader.ProgressFunc(func(float64) { called = true })
		_, _, err := newLoader(cfg).Parse(context.Background(), readFixture(t), obs)
		require.Error(t, err)
		assert.False(t, called)
	})
}

func TestParse_FormatErrors(t *testing.T) {
	metadataOnly := strings.Repeat("Chave: valor\n", 9)

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "no header and fallback past end", input: metadataOnly},
		{name: "header without data rows", input: metadataOnly + "\nData Medicao;TEMP\n"},
		{name: "every column empty", input: metadataOnly + "\nData Medicao;TEMP\n;\nnull;NaN\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), []byte(tt.input), nil)
			var formatErr *loader.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.NotEmpty(t, formatErr.Reason)
		})
	}
}

func TestParse_HeaderFallback(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("linha sem marcador\n")
	}
	b.WriteString("Dia;TEMP\n")
	b.WriteString("2024-01-02;20,5\n")
	b.WriteString("2024-01-01;19\n")

	tbl, meta, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), []byte(b.String()), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.Len())
	assert.Equal(t, []string{"TEMP"}, tbl.Variables())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, jan(1), tbl.Date(0).Time)

	col, _ := tbl.Column("TEMP")
	assert.Equal(t, []domain.NullFloat{domain.Float(19), domain.Float(20.5)}, col.Values)
}

func TestParse_RaggedRowsAndUnparseableDates(t *testing.T) {
	input := "\xef\xbb\xbfData Medicao;A;B\r\n" +
		"2024-01-01;1;2;99\r\n" +
		"2024-01-02;3\r\n" +
		"sem data;5;6\r\n"

	cfg := config.DefaultAnalysis()
	tbl, _, err := newLoader(cfg).Parse(context.Background(), []byte(input), nil)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	assert.Equal(t, []string{"A", "B"}, tbl.Variables())
	assert.False(t, tbl.Date(2).Valid, "null dates sort last")

	b, _ := tbl.Column("B")
	assert.Equal(t, []domain.NullFloat{domain.Float(2), {}, domain.Float(6)}, b.Values)
}

func TestParse_DuplicateAndUnnamedHeaders(t *testing.T) {
	input := "Data Medicao;X;X;;Y\n2024-01-01;1;2;3;4\n"

	tbl, _, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), []byte(input), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "X.1", "Unnamed: 3", "Y"}, tbl.Variables())
}

func TestParse_SuffixSkipsExistingHeaderNames(t *testing.T) {
	input := "Data Medicao;A;A;A.1\n2024-01-01;1;2;3\n"

	tbl, _, err := newLoader(config.DefaultAnalysis()).Parse(context.Background(), []byte(input), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A.2", "A.1"}, tbl.Variables())

	a2, ok := tbl.Column("A.2")
	require.True(t, ok)
	assert.Equal(t, []domain.NullFloat{domain.Float(2)}, a2.Values)
}

func TestParse_MultiByteDelimiter(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Delimiter = "§"
	require.NoError(t, cfg.Validate())

	input := "Data Medicao§A\n2024-01-01§1,5\n2024-01-02§2,5\n"
	tbl, _, err := newLoader(cfg).Parse(context.Background(), []byte(input), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, tbl.Variables())
	a, _ := tbl.Column("A")
	assert.Equal(t, []domain.NullFloat{domain.Float(1.5), domain.Float(2.5)}, a.Values)
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newLoader(config.DefaultAnalysis()).Parse(ctx, readFixture(t), nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		field  string
		sep    string
		want   float64
		wantOK bool
	}{
		{field: "21,4", sep: ",", want: 21.4, wantOK: true},
		{field: ",5", sep: ",", want: 0.5, wantOK: true},
		{field: "-3,25", sep: ",", want: -3.25, wantOK: true},
		{field: " 7 ", sep: ",", want: 7, wantOK: true},
		{field: "1.5", sep: ".", want: 1.5, wantOK: true},
		{field: ".5", sep: ".", want: 0.5, wantOK: true},
		{field: "abc", sep: ",", wantOK: false},
		{field: "", sep: ",", wantOK: false},
		{field: "Inf", sep: ",", wantOK: false},
		{field: "NaN", sep: ",", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := loader.ParseNumber(tt.field, tt.sep)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}
