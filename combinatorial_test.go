package loadsynth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantLoads(t *testing.T, values ...float64) *MemoryStore {
	store := NewMemoryStore()
	for i, v := range values {
		rec := &LoadRecord{Index: i, Name: string(rune('a' + i)), Waveform: []float64{v, v, v, v}}
		require.NoError(t, store.Put(rec))
	}
	return store
}

func TestMembership(t *testing.T) {
	assert.Equal(t, []int{1, 0, 1}, Membership(5, 3))
	assert.Equal(t, []int{0, 0, 1}, Membership(1, 3))
	assert.Equal(t, []int{1, 1, 1, 1}, Membership(15, 4))
	assert.Equal(t, []int{0, 0}, Membership(0, 2))
}

func TestBuildCombinatorial(t *testing.T) {
	gen := createGenerator(t, testConfig())
	store := constantLoads(t, 1, 10, 100)

	ds, err := gen.BuildCombinatorial(context.Background(), store, 3, store)
	require.NoError(t, err)

	assert.Equal(t, 8, ds.Bins())
	assert.Equal(t, 4, ds.SignalLength)
	assert.Equal(t, []string{"a", "b", "c"}, ds.Names)
	require.Len(t, ds.Summed, 32)
	require.Len(t, ds.Labels, 32)
	assert.Nil(t, ds.Manifest())

	// load j is bit (classes-1-j) of the bin index
	expected := []float64{0, 100, 10, 110, 1, 101, 11, 111}
	for i, v := range expected {
		bin, err := ds.Bin(i)
		require.NoError(t, err)
		assert.Equal(t, []float64{v, v, v, v}, bin, "bin %d", i)
		for s := i * 4; s < (i+1)*4; s++ {
			assert.Equal(t, Membership(i, 3), ds.Labels[s])
		}
	}

	bin5, err := ds.Bin(5)
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 101, 101, 101}, bin5)
	assert.Equal(t, []int{1, 0, 1}, ds.TimeMajorLabels()[20])
	assert.Equal(t, []int{0, 0, 0}, ds.TimeMajorLabels()[0])

	require.Len(t, store.Datasets(), 1)
	assert.Equal(t, ds.ID(), store.Datasets()[0].ID())
}

func TestBuildCombinatorial_RowsAreIndependent(t *testing.T) {
	gen := createGenerator(t, testConfig())
	ds, err := gen.BuildCombinatorial(context.Background(), constantLoads(t, 1, 2), 2, nil)
	require.NoError(t, err)

	rows := ds.TimeMajorLabels()
	rows[0][0] = 7
	rows[12][1] = 7
	assert.Equal(t, []int{0, 0}, rows[1])
	assert.Equal(t, []int{0, 0}, rows[3])
	assert.Equal(t, []int{1, 1}, rows[13])
	assert.Equal(t, []int{1, 1}, rows[15])
}

func TestBuildCombinatorial_SingleClass(t *testing.T) {
	gen := createGenerator(t, testConfig())
	ds, err := gen.BuildCombinatorial(context.Background(), constantLoads(t, 7), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 7, 7, 7, 7}, ds.Summed)
}

func TestCombinatorialDataset_BinOutOfRange(t *testing.T) {
	gen := createGenerator(t, testConfig())
	ds, err := gen.BuildCombinatorial(context.Background(), constantLoads(t, 1, 2), 2, nil)
	require.NoError(t, err)

	for _, i := range []int{-1, 4, 100} {
		_, err := ds.Bin(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, "bin %d", i)
	}
}

func TestBuildCombinatorial_Errors(t *testing.T) {
	gen := createGenerator(t, testConfig())
	ctx := context.Background()
	store := constantLoads(t, 1, 2)

	_, err := gen.BuildCombinatorial(ctx, store, 3, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = gen.BuildCombinatorial(ctx, store, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = gen.BuildCombinatorial(ctx, store, MaxClasses+1, nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = gen.BuildCombinatorial(cancelled, store, 2, store)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Datasets())
}
