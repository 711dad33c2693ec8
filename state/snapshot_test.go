package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnapshot(t *testing.T) {
	raw := []byte(`{
		"registeredKeys": ["0xAA", "0xBB", "0xCC"],
		"storageEntries": [{"key": "0xBB", "value": "0x0de0b6b3a7640000"}],
		"preAllocatedLeaves": [{"key": "0xAA", "value": "0x1"}]
	}`)

	snapshot, err := ParseSnapshot(raw)
	require.NoError(t, err)
	assert.Len(t, snapshot.RegisteredKeys, 3)
	assert.Len(t, snapshot.StorageEntries, 1)
	assert.Len(t, snapshot.PreAllocatedLeaves, 1)
}

func TestParseSnapshotRejectsMalformedDocuments(t *testing.T) {
	cases := map[string][]byte{
		"not json":               []byte(`state_snapshot`),
		"array document":         []byte(`[]`),
		"missing registeredKeys": []byte(`{"storageEntries": []}`),
		"empty registered key":   []byte(`{"registeredKeys": ["0xAA", ""]}`),
		"entry without key":      []byte(`{"registeredKeys": ["0xAA"], "storageEntries": [{"value": "0x1"}]}`),
		"leaf without key":       []byte(`{"registeredKeys": ["0xAA"], "preAllocatedLeaves": [{"value": "0x1"}]}`),
	}

	for name, raw := range cases {
		_, err := ParseSnapshot(raw)
		assert.Error(t, err, name)
	}
}

func TestProofIndexesUseNormalizedKeys(t *testing.T) {
	snapshot := &Snapshot{RegisteredKeys: []string{"0xAA", "0xBB", "cc"}}

	indexes := snapshot.ProofIndexes()
	assert.Equal(t, 0, indexes["0xaa"])
	assert.Equal(t, 1, indexes["0xbb"])
	assert.Equal(t, 2, indexes["0xcc"])
}

// a key present in both storage entries and pre-allocated leaves must
// resolve to the storage entry value
func TestValuesPrecedence(t *testing.T) {
	snapshot := &Snapshot{
		RegisteredKeys: []string{"0xAA", "0xBB"},
		StorageEntries: []Leaf{
			{Key: "0xAA", Value: "0x2"},
			{Key: "0xBB", Value: "0x5"},
		},
		PreAllocatedLeaves: []Leaf{
			{Key: "0xAA", Value: "0x1"},
			{Key: "0xCC", Value: "0x7"},
		},
	}

	values := snapshot.Values()
	assert.Equal(t, "0x2", values["0xaa"])
	assert.Equal(t, "0x5", values["0xbb"])
	assert.Equal(t, "0x7", values["0xcc"])

	_, ok := values["0xdd"]
	assert.False(t, ok)
}
