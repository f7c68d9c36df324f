package domain

import (
	"encoding/json"
	"fmt"
)

// Result is the outcome of a statistic that may not be computable. It is
// either computed, carrying a value, or insufficient, carrying the reason and
// the sample sizes involved. The zero value is insufficient with no reason.
type Result[T any] struct {
	value     T
	computed  bool
	reason    string
	required  int
	available int
}

// Computed wraps a successfully computed value.
func Computed[T any](v T) Result[T] {
	return Result[T]{value: v, computed: true}
}

// Insufficient marks a statistic that needs `required` observations but only
// `available` were present.
func Insufficient[T any](required, available int) Result[T] {
	return Result[T]{
		reason:    fmt.Sprintf("insufficient data: need at least %d non-null observations, have %d", required, available),
		required:  required,
		available: available,
	}
}

// Get returns the value and whether it was computed.
func (r Result[T]) Get() (T, bool) { return r.value, r.computed }

// Value returns the computed value, or the zero value when insufficient.
func (r Result[T]) Value() T { return r.value }

// IsComputed reports whether the value was computed.
func (r Result[T]) IsComputed() bool { return r.computed }

// Reason explains why the value is missing. Empty when computed.
func (r Result[T]) Reason() string { return r.reason }

// Required returns the minimum sample size that was not met.
func (r Result[T]) Required() int { return r.required }

// Available returns the sample size that was present.
func (r Result[T]) Available() int { return r.available }

const (
	statusComputed     = "computed"
	statusInsufficient = "insufficient_data"
)

type resultJSON[T any] struct {
	Status    string `json:"status"`
	Value     *T     `json:"value,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Required  int    `json:"required,omitempty"`
	Available *int   `json:"available,omitempty"`
}

// MarshalJSON encodes the result with an explicit status so consumers can
// tell "not computable" apart from "computed as zero".
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.computed {
		v := r.value
		return json.Marshal(resultJSON[T]{Status: statusComputed, Value: &v})
	}
	avail := r.available
	return json.Marshal(resultJSON[T]{
		Status:    statusInsufficient,
		Reason:    r.reason,
		Required:  r.required,
		Available: &avail,
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var raw resultJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case statusComputed:
		*r = Result[T]{computed: true}
		if raw.Value != nil {
			r.value = *raw.Value
		}
	case statusInsufficient:
		*r = Result[T]{reason: raw.Reason, required: raw.Required}
		if raw.Available != nil {
			r.available = *raw.Available
		}
	default:
		return fmt.Errorf("unknown result status %q", raw.Status)
	}
	return nil
}
