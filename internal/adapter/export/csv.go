// Package export renders analysis reports in tabular formats.
package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/pipeline"
	"github.com/gocarina/gocsv"
)

// QualityRow is one variable's line in the quality CSV. Scores that could not
// be computed are left empty and explained by Status.
type QualityRow struct {
	Variable     string `csv:"variable"`
	ShortName    string `csv:"short_name"`
	Unit         string `csv:"unit"`
	NonNull      int    `csv:"non_null_count"`
	Nulls        int    `csv:"null_count"`
	Invalid      int    `csv:"invalid_count"`
	Completeness string `csv:"completeness"`
	Validity     string `csv:"validity"`
	Consistency  string `csv:"consistency"`
	QualityIndex string `csv:"quality_index"`
	Status       string `csv:"status"`
}

// QualityRows flattens the per-variable reports in table order.
func QualityRows(r *pipeline.Report) []QualityRow {
	rows := make([]QualityRow, 0, len(r.Variables))
	for _, v := range r.Variables {
		row := QualityRow{
			Variable:     v.Variable,
			ShortName:    v.ShortName,
			Unit:         v.Unit,
			NonNull:      v.Completeness.NonNullCount,
			Nulls:        v.Completeness.NullCount,
			Invalid:      v.Validity.InvalidCount,
			Completeness: score(v.QualityIndex.CompletenessScore),
			Validity:     score(v.QualityIndex.ValidityScore),
			Status:       "computed",
		}
		if v.Consistency.IsComputed() {
			row.Consistency = score(v.QualityIndex.ConsistencyScore)
		}
		if index, ok := v.QualityIndex.Index.Get(); ok {
			row.QualityIndex = score(index)
		} else {
			row.Status = reason(v.QualityIndex.Index)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteQualityCSV writes the quality rows of a report as CSV with a header.
func WriteQualityCSV(w io.Writer, r *pipeline.Report) error {
	if err := gocsv.Marshal(QualityRows(r), w); err != nil {
		return fmt.Errorf("write quality csv: %w", err)
	}
	return nil
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func reason[T any](r domain.Result[T]) string {
	if r.Reason() == "" {
		return "insufficient_data"
	}
	return r.Reason()
}
