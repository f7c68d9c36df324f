// Package validator checks an observation table for physical plausibility,
// statistical anomalies, missing-data structure, and date-sequence integrity.
package validator

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
)

// ErrUnknownVariable is returned when a detector is asked about a column the
// table does not have.
var ErrUnknownVariable = errors.New("unknown variable")

// Minimum non-null sample sizes for each detector.
const (
	MinIQRSample    = 4
	MinZScoreSample = 2
	MinDateSample   = 2
)

// Validator runs detectors over a private copy of a table. Detectors are pure
// functions of that copy; the only cached state is the physical-limit result,
// so a Validator is safe for concurrent use.
type Validator struct {
	table *domain.Table
	cfg   config.Analysis

	limitsOnce sync.Once
	limits     map[string]domain.ValidationResult
}

// New creates a Validator holding its own copy of table.
func New(table *domain.Table, cfg config.Analysis) *Validator {
	return &Validator{table: table.Clone(), cfg: cfg}
}

// Table returns the validator's copy of the table. Callers must not mutate it.
func (v *Validator) Table() *domain.Table { return v.table }

func (v *Validator) column(variable string) (domain.Column, error) {
	col, ok := v.table.Column(variable)
	if !ok {
		return domain.Column{}, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	return col, nil
}

// PhysicalLimits range-checks every variable that has a configured physical
// limit. Variables without one are skipped. The result is computed once and
// a fresh copy is returned on every call.
func (v *Validator) PhysicalLimits() map[string]domain.ValidationResult {
	v.limitsOnce.Do(func() {
		v.limits = make(map[string]domain.ValidationResult)
		for _, name := range v.table.Variables() {
			r, ok := v.cfg.Limit(name)
			if !ok {
				continue
			}
			col, _ := v.table.Column(name)
			v.limits[name] = checkRange(col, r)
		}
	})

	out := make(map[string]domain.ValidationResult, len(v.limits))
	for name, res := range v.limits {
		res.InvalidIndices = slices.Clone(res.InvalidIndices)
		out[name] = res
	}
	return out
}

func (v *Validator) physicalLimit(variable string) (domain.ValidationResult, bool) {
	res, ok := v.PhysicalLimits()[variable]
	return res, ok
}

func checkRange(col domain.Column, r config.Range) domain.ValidationResult {
	res := domain.ValidationResult{
		Variable:       col.Name,
		TotalCount:     col.Len(),
		InvalidIndices: []int{},
		LowerLimit:     r.Min,
		UpperLimit:     r.Max,
	}
	for i, val := range col.Values {
		switch {
		case !val.Valid:
			res.NullCount++
		case r.Contains(val.Float):
			res.ValidCount++
		default:
			res.InvalidCount++
			res.InvalidIndices = append(res.InvalidIndices, i)
		}
	}
	res.ValidPercentage = percent(res.ValidCount, res.TotalCount)
	return res
}

// Summary bundles the table-wide checks.
type Summary struct {
	PhysicalLimits  map[string]domain.ValidationResult `json:"physical_limits"`
	MissingPatterns map[string]MissingPattern          `json:"missing_patterns"`
	DateSequence    domain.Result[DateSequenceReport]  `json:"date_sequence"`
}

// ValidationSummary runs the physical-limit, missing-pattern and date-sequence
// checks.
func (v *Validator) ValidationSummary() Summary {
	return Summary{
		PhysicalLimits:  v.PhysicalLimits(),
		MissingPatterns: v.MissingPatterns(),
		DateSequence:    v.DateSequence(),
	}
}

// AnomalyReport is every per-variable detector's output. PhysicalLimits is nil
// when the variable has no configured range.
type AnomalyReport struct {
	Variable       string                           `json:"variable"`
	PhysicalLimits *domain.ValidationResult         `json:"physical_limits"`
	OutliersIQR    domain.Result[IQROutliers]       `json:"outliers_iqr"`
	OutliersZScore domain.Result[ZScoreOutliers]    `json:"outliers_zscore"`
	ChangePoints   domain.Result[ChangePointReport] `json:"change_points"`
}

// AnomalyReport runs the physical-limit, IQR, z-score and change-point
// detectors for one variable using the configured thresholds.
func (v *Validator) AnomalyReport(variable string) (AnomalyReport, error) {
	if _, err := v.column(variable); err != nil {
		return AnomalyReport{}, err
	}
	rep := AnomalyReport{Variable: variable}
	if res, ok := v.physicalLimit(variable); ok {
		rep.PhysicalLimits = &res
	}

	var err error
	if rep.OutliersIQR, err = v.OutliersIQR(variable, v.cfg.IQRMultiplier); err != nil {
		return AnomalyReport{}, err
	}
	if rep.OutliersZScore, err = v.OutliersZScore(variable, v.cfg.ZScoreThreshold); err != nil {
		return AnomalyReport{}, err
	}
	if rep.ChangePoints, err = v.ChangePoints(variable, v.cfg.ChangePointWindow); err != nil {
		return AnomalyReport{}, err
	}
	return rep, nil
}

// ConfiguredVariables returns the table variables that have a physical limit,
// in table order.
func (v *Validator) ConfiguredVariables() []string {
	limits := v.PhysicalLimits()
	out := make([]string, 0, len(limits))
	for _, name := range v.table.Variables() {
		if _, ok := limits[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
