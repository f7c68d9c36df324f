// Package quality turns validation output into per-variable scores, a
// weighted quality index, and a usage recommendation.
package quality

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/station-quality-service/internal/config"
	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/stats"
)

var (
	// ErrMissingValidation is returned when the engine is built without
	// physical-limit results.
	ErrMissingValidation = errors.New("physical-limit validation results are required")

	// ErrUnknownVariable is returned for a variable the table does not have.
	ErrUnknownVariable = errors.New("unknown variable")
)

// MinConsistencySample is the smallest non-null sample consistency is
// defined for.
const MinConsistencySample = 2

// Engine scores the variables of one table. It only reads the table.
type Engine struct {
	table      *domain.Table
	validation map[string]domain.ValidationResult
	cfg        config.Analysis
}

// NewEngine creates an Engine. validation must be the physical-limit results
// for the same table; an empty map is allowed, nil is not.
func NewEngine(table *domain.Table, validation map[string]domain.ValidationResult, cfg config.Analysis) (*Engine, error) {
	if validation == nil {
		return nil, ErrMissingValidation
	}
	return &Engine{table: table, validation: validation, cfg: cfg}, nil
}

func (e *Engine) column(variable string) (domain.Column, error) {
	col, ok := e.table.Column(variable)
	if !ok {
		return domain.Column{}, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	return col, nil
}

// Completeness is the share of rows with a value.
type Completeness struct {
	NonNullCount int     `json:"non_null_count"`
	NullCount    int     `json:"null_count"`
	TotalCount   int     `json:"total_count"`
	Percentage   float64 `json:"completeness_percentage"`
}

// Completeness returns non-null count / total count * 100.
func (e *Engine) Completeness(variable string) (Completeness, error) {
	col, err := e.column(variable)
	if err != nil {
		return Completeness{}, err
	}
	nulls := col.NullCount()
	c := Completeness{
		NonNullCount: col.Len() - nulls,
		NullCount:    nulls,
		TotalCount:   col.Len(),
	}
	c.Percentage = percent(c.NonNullCount, c.TotalCount)
	return c, nil
}

// Validity is the share of non-null values within the physical range.
// Configured is false when the variable has no range, in which case the
// percentage is 0.
type Validity struct {
	Configured   bool    `json:"configured"`
	ValidCount   int     `json:"valid_count"`
	InvalidCount int     `json:"invalid_count"`
	NullCount    int     `json:"null_count"`
	TotalCount   int     `json:"total_count"`
	Percentage   float64 `json:"validity_percentage"`
	LowerLimit   float64 `json:"lower_limit"`
	UpperLimit   float64 `json:"upper_limit"`
}

// Validity returns valid / (valid + invalid) * 100. Nulls do not count
// against validity; a variable with no non-null values scores 0.
func (e *Engine) Validity(variable string) (Validity, error) {
	col, err := e.column(variable)
	if err != nil {
		return Validity{}, err
	}
	res, ok := e.validation[variable]
	if !ok {
		return Validity{NullCount: col.NullCount(), TotalCount: col.Len()}, nil
	}
	return Validity{
		Configured:   true,
		ValidCount:   res.ValidCount,
		InvalidCount: res.InvalidCount,
		NullCount:    res.NullCount,
		TotalCount:   res.TotalCount,
		Percentage:   percent(res.ValidCount, res.NonNullCount()),
		LowerLimit:   res.LowerLimit,
		UpperLimit:   res.UpperLimit,
	}, nil
}

// Consistency is the share of non-null values that are not z-score anomalies.
type Consistency struct {
	Percentage        float64 `json:"consistency_percentage"`
	AnomalyCount      int     `json:"anomaly_count"`
	AnomalyPercentage float64 `json:"anomaly_percentage"`
	Mean              float64 `json:"mean"`
	Std               float64 `json:"std"`
}

// Consistency flags values whose population z-score exceeds the configured
// threshold. A constant series has no anomalies.
func (e *Engine) Consistency(variable string) (domain.Result[Consistency], error) {
	col, err := e.column(variable)
	if err != nil {
		return domain.Result[Consistency]{}, err
	}
	_, values := col.NonNull()
	if len(values) < MinConsistencySample {
		return domain.Insufficient[Consistency](MinConsistencySample, len(values)), nil
	}

	mean, std := stats.PopMeanStd(values)
	c := Consistency{Mean: mean, Std: std}
	for _, z := range stats.ZScores(values) {
		if z > e.cfg.ConsistencyZThreshold {
			c.AnomalyCount++
		}
	}
	c.Percentage = percent(len(values)-c.AnomalyCount, len(values))
	c.AnomalyPercentage = percent(c.AnomalyCount, len(values))
	return domain.Computed(c), nil
}

// DescriptiveStatistics summarises the non-null values. It is insufficient
// when there are none.
func (e *Engine) DescriptiveStatistics(variable string) (domain.Result[stats.Descriptive], error) {
	col, err := e.column(variable)
	if err != nil {
		return domain.Result[stats.Descriptive]{}, err
	}
	_, values := col.NonNull()
	if len(values) == 0 {
		return domain.Insufficient[stats.Descriptive](1, 0), nil
	}
	return domain.Computed(stats.Describe(values)), nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func clamp(score float64) float64 {
	return min(max(score, 0), 100)
}
