package domain

import (
	"bytes"
	"encoding/json"
)

// Metadata is the station header block: string keys in file order mapped to
// their verbatim values. Values are not interpreted here. A Metadata is
// read-only once built.
type Metadata struct {
	keys   []string
	values map[string]string
}

// MetadataEntry is one key/value line of the header block.
type MetadataEntry struct {
	Key   string
	Value string
}

// NewMetadata builds Metadata from entries in file order. A repeated key
// keeps its first position and takes the latest value.
func NewMetadata(entries ...MetadataEntry) *Metadata {
	m := &Metadata{values: make(map[string]string, len(entries))}
	for _, e := range entries {
		m.set(e.Key, e.Value)
	}
	return m
}

func (m *Metadata) set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m *Metadata) Get(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// MarshalJSON encodes the metadata as a JSON object preserving key order.
func (m *Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
