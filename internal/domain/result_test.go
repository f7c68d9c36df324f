package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	t.Run("computed zero is not insufficient", func(t *testing.T) {
		r := Computed(0.0)
		v, ok := r.Get()
		assert.True(t, ok)
		assert.Zero(t, v)
		assert.Empty(t, r.Reason())
	})

	t.Run("insufficient", func(t *testing.T) {
		r := Insufficient[float64](4, 2)
		_, ok := r.Get()
		assert.False(t, ok)
		assert.Equal(t, 4, r.Required())
		assert.Equal(t, 2, r.Available())
		assert.Contains(t, r.Reason(), "need at least 4")
	})

	t.Run("zero value is insufficient", func(t *testing.T) {
		var r Result[int]
		assert.False(t, r.IsComputed())
	})
}

func TestResult_JSON(t *testing.T) {
	data, err := json.Marshal(Computed(12.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"computed","value":12.5}`, string(data))

	data, err = json.Marshal(Insufficient[float64](2, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"insufficient_data","reason":"insufficient data: need at least 2 non-null observations, have 0","required":2,"available":0}`, string(data))

	var back Result[float64]
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.IsComputed())
	assert.Equal(t, 2, back.Required())

	require.Error(t, json.Unmarshal([]byte(`{"status":"bogus"}`), &back))
}
