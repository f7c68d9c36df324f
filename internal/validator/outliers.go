package validator

import (
	"fmt"
	"math"

	"github.com/couchcryptid/station-quality-service/internal/domain"
	"github.com/couchcryptid/station-quality-service/internal/stats"
)

// IQROutliers lists rows outside [Q1 - k*IQR, Q3 + k*IQR]. Indices are row
// positions in the date-sorted table; the percentage is over all rows.
type IQROutliers struct {
	Indices           []int   `json:"indices"`
	Q1                float64 `json:"q1"`
	Q3                float64 `json:"q3"`
	IQR               float64 `json:"iqr"`
	Multiplier        float64 `json:"multiplier"`
	LowerBound        float64 `json:"lower_bound"`
	UpperBound        float64 `json:"upper_bound"`
	OutlierCount      int     `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
}

// OutliersIQR flags non-null values strictly outside the IQR fences. It needs
// at least MinIQRSample non-null values.
func (v *Validator) OutliersIQR(variable string, multiplier float64) (domain.Result[IQROutliers], error) {
	col, err := v.column(variable)
	if err != nil {
		return domain.Result[IQROutliers]{}, err
	}
	rows, values := col.NonNull()
	if len(values) < MinIQRSample {
		return domain.Insufficient[IQROutliers](MinIQRSample, len(values)), nil
	}

	q1, _, q3 := stats.Quartiles(values)
	iqr := q3 - q1
	out := IQROutliers{
		Indices:    []int{},
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		Multiplier: multiplier,
		LowerBound: q1 - multiplier*iqr,
		UpperBound: q3 + multiplier*iqr,
	}
	for i, x := range values {
		if x < out.LowerBound || x > out.UpperBound {
			out.Indices = append(out.Indices, rows[i])
		}
	}
	out.OutlierCount = len(out.Indices)
	out.OutlierPercentage = percent(out.OutlierCount, col.Len())
	return domain.Computed(out), nil
}

// ZScoreOutliers lists rows whose absolute z-score exceeds the threshold.
// Mean and Std are the population moments of the non-null values.
type ZScoreOutliers struct {
	Indices           []int   `json:"indices"`
	Threshold         float64 `json:"threshold"`
	Mean              float64 `json:"mean"`
	Std               float64 `json:"std"`
	OutlierCount      int     `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
}

// OutliersZScore flags values with |z| > threshold. A constant series has no
// outliers. It needs at least MinZScoreSample non-null values.
func (v *Validator) OutliersZScore(variable string, threshold float64) (domain.Result[ZScoreOutliers], error) {
	col, err := v.column(variable)
	if err != nil {
		return domain.Result[ZScoreOutliers]{}, err
	}
	rows, values := col.NonNull()
	if len(values) < MinZScoreSample {
		return domain.Insufficient[ZScoreOutliers](MinZScoreSample, len(values)), nil
	}

	mean, std := stats.PopMeanStd(values)
	out := ZScoreOutliers{Indices: []int{}, Threshold: threshold, Mean: mean, Std: std}
	for i, z := range stats.ZScores(values) {
		if z > threshold {
			out.Indices = append(out.Indices, rows[i])
		}
	}
	out.OutlierCount = len(out.Indices)
	out.OutlierPercentage = percent(out.OutlierCount, col.Len())
	return domain.Computed(out), nil
}

// ChangePointReport lists rows deviating from the centered rolling mean by
// more than Sigma rolling standard deviations.
type ChangePointReport struct {
	Indices    []int   `json:"indices"`
	Window     int     `json:"window"`
	Sigma      float64 `json:"sigma"`
	Count      int     `json:"change_count"`
	Percentage float64 `json:"change_percentage"`
}

// ChangePoints runs a centered rolling window over the non-null subsequence.
// Positions whose window does not fit inside the series are never flagged. It
// needs at least 2*window non-null values.
func (v *Validator) ChangePoints(variable string, window int) (domain.Result[ChangePointReport], error) {
	if window < 2 {
		return domain.Result[ChangePointReport]{}, fmt.Errorf("change point window must be at least 2, got %d", window)
	}
	col, err := v.column(variable)
	if err != nil {
		return domain.Result[ChangePointReport]{}, err
	}
	rows, values := col.NonNull()
	if len(values) < 2*window {
		return domain.Insufficient[ChangePointReport](2*window, len(values)), nil
	}

	sigma := v.cfg.ChangePointSigma
	out := ChangePointReport{Indices: []int{}, Window: window, Sigma: sigma}
	for i, w := range stats.Rolling(values, window) {
		if !w.OK || math.IsNaN(w.Std) {
			continue
		}
		if math.Abs(values[i]-w.Mean) > sigma*w.Std {
			out.Indices = append(out.Indices, rows[i])
		}
	}
	out.Count = len(out.Indices)
	out.Percentage = percent(out.Count, col.Len())
	return domain.Computed(out), nil
}
