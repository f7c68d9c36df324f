package validator

import (
	"github.com/couchcryptid/station-quality-service/internal/domain"
)

// MissingRun is a maximal run of consecutive nulls, inclusive at both ends.
type MissingRun struct {
	Start     int             `json:"start_index"`
	End       int             `json:"end_index"`
	Length    int             `json:"length"`
	StartDate domain.NullTime `json:"start_date"`
	EndDate   domain.NullTime `json:"end_date"`
}

// MissingPattern describes where a variable's nulls fall. Runs are ordered,
// do not overlap, and their lengths sum to NullCount.
type MissingPattern struct {
	NullCount      int          `json:"null_count"`
	NullPercentage float64      `json:"null_percentage"`
	Runs           []MissingRun `json:"runs"`
}

// MissingPatterns groups each variable's null mask into runs, scanning rows in
// date order.
func (v *Validator) MissingPatterns() map[string]MissingPattern {
	out := make(map[string]MissingPattern, len(v.table.Variables()))
	for _, name := range v.table.Variables() {
		col, _ := v.table.Column(name)
		out[name] = v.missingPattern(col)
	}
	return out
}

func (v *Validator) missingPattern(col domain.Column) MissingPattern {
	p := MissingPattern{Runs: []MissingRun{}}
	start := -1
	closeRun := func(end int) {
		p.Runs = append(p.Runs, MissingRun{
			Start:     start,
			End:       end,
			Length:    end - start + 1,
			StartDate: v.table.Date(start),
			EndDate:   v.table.Date(end),
		})
		start = -1
	}

	for i, null := range col.NullMask() {
		switch {
		case null:
			p.NullCount++
			if start < 0 {
				start = i
			}
		case start >= 0:
			closeRun(i - 1)
		}
	}
	if start >= 0 {
		closeRun(col.Len() - 1)
	}
	p.NullPercentage = percent(p.NullCount, col.Len())
	return p
}
