package export_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/couchcryptid/station-quality-service/internal/adapter/export"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/couchcryptid/station-quality-service/internal/quality"
	"github.com/gocarina/gocsv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *pipeline.Report {
	return &pipeline.Report{
		Variables: []quality.VariableReport{
			{
				Variable:     "TEMP",
				ShortName:    "Mean Temperature (°C)",
				Unit:         "°C",
				Completeness: quality.Completeness{NonNullCount: 9, NullCount: 1, TotalCount: 10, Percentage: 90},
				Validity:     quality.Validity{Configured: true, ValidCount: 8, InvalidCount: 1},
				Consistency:  domain.Computed(quality.Consistency{Percentage: 100}),
				QualityIndex: quality.QualityIndex{
					CompletenessScore: 90,
					ValidityScore:     88.888888,
					ConsistencyScore:  100,
					Index:             domain.Computed(91.5555552),
				},
			},
			{
				Variable:     "SPARSE",
				ShortName:    "SPARSE",
				Completeness: quality.Completeness{NonNullCount: 1, NullCount: 9, TotalCount: 10, Percentage: 10},
				Consistency:  domain.Insufficient[quality.Consistency](2, 1),
				QualityIndex: quality.QualityIndex{
					CompletenessScore: 10,
					Index:             domain.Insufficient[float64](2, 1),
				},
			},
		},
	}
}

func TestQualityRows(t *testing.T) {
	rows := export.QualityRows(testReport())
	require.Len(t, rows, 2)

	assert.Equal(t, export.QualityRow{
		Variable:     "TEMP",
		ShortName:    "Mean Temperature (°C)",
		Unit:         "°C",
		NonNull:      9,
		Nulls:        1,
		Invalid:      1,
		Completeness: "90.00",
		Validity:     "88.89",
		Consistency:  "100.00",
		QualityIndex: "91.56",
		Status:       "computed",
	}, rows[0])

	assert.Empty(t, rows[1].Consistency)
	assert.Empty(t, rows[1].QualityIndex)
	assert.Contains(t, rows[1].Status, "need at least 2")
}

func TestWriteQualityCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteQualityCSV(&buf, testReport()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"variable,short_name,unit,non_null_count,null_count,invalid_count,completeness,validity,consistency,quality_index,status",
		lines[0])

	var back []export.QualityRow
	require.NoError(t, gocsv.UnmarshalBytes(buf.Bytes(), &back))
	assert.Equal(t, export.QualityRows(testReport()), back)
}
