// Package stats holds the numerical building blocks shared by the validator
// and the quality engine. Inputs are plain slices of non-null values; callers
// strip nulls first.
package stats

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quantile returns the p-quantile of x using linear interpolation between
// closest ranks (position p*(n-1) in the sorted sample). It returns NaN for
// an empty sample.
func Quantile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	return quantileSorted(sorted, p)
}

// Quartiles returns Q1, the median, and Q3 in one sort.
func Quartiles(x []float64) (q1, median, q3 float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	sorted := slices.Clone(x)
	slices.Sort(sorted)
	return quantileSorted(sorted, 0.25), quantileSorted(sorted, 0.5), quantileSorted(sorted, 0.75)
}

func quantileSorted(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// PopMeanStd returns the mean and population standard deviation (divisor n).
func PopMeanStd(x []float64) (mean, std float64) {
	n := float64(len(x))
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	if n == 1 {
		return x[0], 0
	}
	mean, variance := stat.MeanVariance(x, nil)
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// ZScores returns |x_i - mean| / std using population moments. When std is
// zero every score is zero.
func ZScores(x []float64) []float64 {
	mean, std := PopMeanStd(x)
	out := make([]float64, len(x))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range x {
		out[i] = math.Abs(v-mean) / std
	}
	return out
}

// Descriptive summarises a sample. Std, Skewness, and Kurtosis are nil when
// the sample is too small for them to be defined.
type Descriptive struct {
	Count    int      `json:"count"`
	Mean     float64  `json:"mean"`
	Median   float64  `json:"median"`
	Std      *float64 `json:"std"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	Q1       float64  `json:"q1"`
	Q3       float64  `json:"q3"`
	IQR      float64  `json:"iqr"`
	Skewness *float64 `json:"skewness"`
	Kurtosis *float64 `json:"kurtosis"`
}

// Describe computes descriptive statistics over a non-empty sample. Std is
// the sample standard deviation; skewness is the adjusted Fisher-Pearson
// coefficient and kurtosis is the bias-corrected excess kurtosis.
func Describe(x []float64) Descriptive {
	q1, median, q3 := Quartiles(x)
	d := Descriptive{
		Count:  len(x),
		Mean:   stat.Mean(x, nil),
		Median: median,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
		Q1:     q1,
		Q3:     q3,
		IQR:    q3 - q1,
	}

	n := len(x)
	if n < 2 {
		return d
	}
	std := stat.StdDev(x, nil)
	d.Std = ptr(std)

	if n >= 3 {
		if std == 0 {
			d.Skewness = ptr(0)
		} else {
			d.Skewness = finite(stat.Skew(x, nil))
		}
	}
	if n >= 4 {
		if std == 0 {
			d.Kurtosis = ptr(0)
		} else {
			d.Kurtosis = finite(stat.ExKurtosis(x, nil))
		}
	}
	return d
}

// Window is the centered rolling mean and sample standard deviation at one
// position of a series.
type Window struct {
	Mean float64
	Std  float64
	OK   bool
}

// Rolling computes centered rolling windows of size w over x. Position i
// covers x[i-w/2 : i+(w-1)/2+1] for odd and even w alike, so even windows
// lean one element towards the past. Positions whose window would run past
// either end are not OK.
func Rolling(x []float64, w int) []Window {
	out := make([]Window, len(x))
	if w < 1 {
		return out
	}
	ahead := (w - 1) / 2
	for i := range x {
		lo := i + ahead - w + 1
		hi := i + ahead + 1
		if lo < 0 || hi > len(x) {
			continue
		}
		win := x[lo:hi]
		if w == 1 {
			out[i] = Window{Mean: win[0], Std: math.NaN(), OK: true}
			continue
		}
		mean, std := stat.MeanStdDev(win, nil)
		out[i] = Window{Mean: mean, Std: std, OK: true}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
