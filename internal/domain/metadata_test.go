package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata(t *testing.T) {
	m := NewMetadata(
		MetadataEntry{Key: "Nome", Value: "BRASILIA"},
		MetadataEntry{Key: "Codigo Estacao", Value: "A001"},
		MetadataEntry{Key: "Nome", Value: "BRASILIA II"},
	)

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"Nome", "Codigo Estacao"}, m.Keys())

	v, ok := m.Get("Nome")
	assert.True(t, ok)
	assert.Equal(t, "BRASILIA II", v)

	_, ok = m.Get("Altitude")
	assert.False(t, ok)
}

func TestMetadata_MarshalJSONKeepsOrder(t *testing.T) {
	m := NewMetadata(MetadataEntry{Key: "Z", Value: "1"}, MetadataEntry{Key: "A", Value: "2"})

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"Z":"1","A":"2"}`, string(data))
}

func TestMetadata_KeysReturnsCopy(t *testing.T) {
	m := NewMetadata(MetadataEntry{Key: "Nome", Value: "BRASILIA"})
	keys := m.Keys()
	keys[0] = "changed"

	assert.Equal(t, []string{"Nome"}, m.Keys())
}

func TestMetadata_Empty(t *testing.T) {
	m := NewMetadata()
	assert.Zero(t, m.Len())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestMetadata_Nil(t *testing.T) {
	var m *Metadata
	assert.Zero(t, m.Len())
	assert.Nil(t, m.Keys())
	_, ok := m.Get("x")
	assert.False(t, ok)
}
