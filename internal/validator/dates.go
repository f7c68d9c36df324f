package validator

import (
	"encoding/json"
	"time"

	"github.com/couchcryptid/station-quality-service/internal/domain"
)

// DateGap marks a date whose distance from the previous observed date is
// neither 0 nor 1 day.
type DateGap struct {
	Date    time.Time
	GapDays int
}

// DateSequenceReport describes the integrity of the date column.
// IsMonotonic refers to the order the rows had in the source file; gaps are
// measured over the table's row order.
type DateSequenceReport struct {
	IsMonotonic  bool             `json:"is_monotonic"`
	TotalDates   int              `json:"total_dates"`
	DateRange    domain.DateRange `json:"date_range"`
	ExpectedDays int              `json:"expected_days"`
	ActualDays   int              `json:"actual_days"`
	Gaps         []DateGap        `json:"gaps"`
	GapCount     int              `json:"gap_count"`
}

// DateSequence checks ordering and day-to-day spacing of the non-null dates.
// It needs at least MinDateSample non-null dates.
func (v *Validator) DateSequence() domain.Result[DateSequenceReport] {
	dates := nonNullTimes(v.table.Dates())
	if len(dates) < MinDateSample {
		return domain.Insufficient[DateSequenceReport](MinDateSample, len(dates))
	}

	rng, _ := v.table.DateRange()
	rep := DateSequenceReport{
		IsMonotonic:  isMonotonic(nonNullTimes(v.table.SourceDates())),
		TotalDates:   len(dates),
		DateRange:    rng,
		ExpectedDays: rng.Days(),
		ActualDays:   len(dates),
		Gaps:         []DateGap{},
	}
	for i := 1; i < len(dates); i++ {
		delta := domain.DaysBetween(dates[i-1], dates[i])
		if delta != 0 && delta != 1 {
			rep.Gaps = append(rep.Gaps, DateGap{Date: dates[i], GapDays: delta})
		}
	}
	rep.GapCount = len(rep.Gaps)
	return domain.Computed(rep)
}

// MarshalJSON encodes the gap date as "YYYY-MM-DD".
func (g DateGap) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date    string `json:"date"`
		GapDays int    `json:"gap_days"`
	}{g.Date.Format(domain.DateLayout), g.GapDays})
}

func nonNullTimes(dates []domain.NullTime) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.Valid {
			out = append(out, d.Time)
		}
	}
	return out
}

// isMonotonic reports whether dates never decrease or never increase.
func isMonotonic(dates []time.Time) bool {
	up, down := true, true
	for i := 1; i < len(dates); i++ {
		switch delta := domain.DaysBetween(dates[i-1], dates[i]); {
		case delta < 0:
			up = false
		case delta > 0:
			down = false
		}
	}
	return up || down
}
