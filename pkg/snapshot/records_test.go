package snapshot_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

func TestRecordsValueRoundTrip(t *testing.T) {
	t.Parallel()

	store := snapshot.NewDirStore(t.TempDir())
	records := snapshot.NewRecords(store, 0)

	v := statvalue.FromNested(map[string]map[string]float64{"stats": {"lines": 5}})

	require.NoError(t, records.WriteValue("a.py.record", v))

	got, ok, err := records.ReadValue("a.py.record")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(v))
	assert.Equal(t, int64(1), records.CacheStats().Hits)

	// A fresh adapter reads the same content from the store.
	got, ok, err = snapshot.NewRecords(store, 0).ReadValue("a.py.record")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(v))

	exists, err := records.Exists("a.py.record")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, records.Remove("a.py.record"))

	_, ok, err = records.ReadValue("a.py.record")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordsCompressibleContent(t *testing.T) {
	t.Parallel()

	records := snapshot.NewRecords(snapshot.NewDirStore(t.TempDir()), 1<<20)

	nested := map[string]map[string]float64{"stats": {}}
	for i := range 200 {
		nested["stats"]["metric_"+strings.Repeat("x", i%7)+string(rune('a'+i%26))] = float64(i)
	}

	v := statvalue.FromNested(nested)

	require.NoError(t, records.WriteValue("big.record", v))

	got, ok, err := records.ReadValue("big.record")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(v))
	assert.Equal(t, 1, records.CacheStats().Entries)
}

func TestRecordsMethods(t *testing.T) {
	t.Parallel()

	records := snapshot.NewRecords(snapshot.NewDirStore(t.TempDir()), 0)

	methods := []statvalue.Method{{Name: "z", Grade: "B", Lines: 7}, {Name: "a", Grade: "A", Lines: 2}}

	require.NoError(t, records.WriteMethods("a.py.methods", methods))

	got, ok, err := records.ReadMethods("a.py.methods")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []statvalue.Method{{Name: "a", Grade: "A", Lines: 2}, {Name: "z", Grade: "B", Lines: 7}}, got)
}

func TestRecordsRejectNeutral(t *testing.T) {
	t.Parallel()

	records := snapshot.NewRecords(snapshot.NewDirStore(t.TempDir()), 0)

	err := records.WriteValue("x.record", statvalue.Neutral)
	assert.ErrorIs(t, err, statvalue.ErrNeutralValue)
}
