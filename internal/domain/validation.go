package domain

// ValidationResult is the physical-limit check for one variable. Null values
// are counted separately and are neither valid nor invalid, so
// ValidCount + InvalidCount + NullCount == TotalCount.
type ValidationResult struct {
	Variable        string  `json:"variable"`
	ValidCount      int     `json:"valid_count"`
	InvalidCount    int     `json:"invalid_count"`
	NullCount       int     `json:"null_count"`
	TotalCount      int     `json:"total_count"`
	ValidPercentage float64 `json:"valid_percentage"`
	InvalidIndices  []int   `json:"invalid_indices"`
	LowerLimit      float64 `json:"lower_limit"`
	UpperLimit      float64 `json:"upper_limit"`
}

// NonNullCount returns the number of values that were range-checked.
func (v ValidationResult) NonNullCount() int {
	return v.ValidCount + v.InvalidCount
}
