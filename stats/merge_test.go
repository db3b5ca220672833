package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nums(vs ...float64) []Num {
	out := make([]Num, len(vs))
	for i, v := range vs {
		out[i] = Known(v)
	}
	return out
}

func TestWeightedMeanIgnoresUnknown(t *testing.T) {
	got := WeightedMean([]Num{Known(5), Unknown, Known(7)}, []float64{1, 1, 1})
	require.True(t, got.Valid)
	assert.Equal(t, 6.0, got.V)
}

func TestWeightedMeanUsesWeights(t *testing.T) {
	got := WeightedMean(nums(1, 4), []float64{3, 1})
	assert.InDelta(t, 1.75, got.V, 1e-12)
}

func TestWeightedMeanAllUnknown(t *testing.T) {
	assert.False(t, WeightedMean([]Num{Unknown, Unknown}, []float64{1, 1}).Valid)
	assert.False(t, WeightedMean(nil, nil).Valid)
	assert.False(t, WeightedMean(nums(3), []float64{0}).Valid, "zero weight leaves nothing")
}

func TestWeightedStd(t *testing.T) {
	tests := []struct {
		name    string
		values  []Num
		weights []float64
		want    float64
	}{
		{"population", nums(2, 4, 4, 4, 5, 5, 7, 9), Equal(8), 2},
		{"unknown skipped", []Num{Known(1), Unknown, Known(3)}, Equal(3), 1},
		{"weighted", nums(0, 10), []float64{1, 3}, math.Sqrt(18.75)},
		{"single", nums(4), Equal(1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedStd(tt.values, tt.weights)
			require.True(t, got.Valid)
			assert.InDelta(t, tt.want, got.V, 1e-9)
		})
	}
	assert.False(t, WeightedStd([]Num{Unknown}, Equal(1)).Valid)
}

func TestWeightedMedian(t *testing.T) {
	tests := []struct {
		name    string
		values  []Num
		weights []float64
		want    float64
	}{
		{"tie picks value past half", nums(1, 2, 3, 4), Equal(4), 3},
		{"odd count", nums(9, 1, 5), Equal(3), 5},
		{"heavy weight", nums(1, 2, 3), []float64{1, 1, 5}, 3},
		{"unknown skipped", []Num{Known(10), Unknown, Known(1), Known(2)}, Equal(4), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedMedian(tt.values, tt.weights)
			require.True(t, got.Valid)
			assert.Equal(t, tt.want, got.V)
		})
	}
	assert.False(t, WeightedMedian(nil, nil).Valid)
}

func TestCombinePooledVariance(t *testing.T) {
	// {1,3} and {5,7,9}: pooled mean 5, population variance 8.
	a := Dist{Mean: Known(2), Std: Known(1), N: 2}
	b := Dist{Mean: Known(7), Std: Known(math.Sqrt(8.0 / 3.0)), N: 3}

	got := Combine(a, b)
	assert.InDelta(t, 5, got.Mean.V, 1e-12)
	assert.InDelta(t, math.Sqrt(8), got.Std.V, 1e-12)
	assert.Equal(t, 5.0, got.N)
}

func TestCombineAssociativeForZeroVarianceBatches(t *testing.T) {
	a := Dist{Mean: Known(4.5), Std: Known(0), N: 10}
	b := Dist{Mean: Known(6.1), Std: Known(0), N: 10}
	c := Dist{Mean: Known(5.3), Std: Known(0), N: 10}

	abc := Combine(Combine(a, b), c)
	bca := Combine(Combine(b, c), a)
	assert.InDelta(t, abc.Mean.V, bca.Mean.V, 1e-12)
	assert.InDelta(t, abc.Std.V, bca.Std.V, 1e-12)
	assert.Equal(t, abc.N, bca.N)
}

func TestCombineTreatsUnknownAsAbsent(t *testing.T) {
	a := Dist{Mean: Known(5), Std: Known(0.5), N: 12}

	got := Combine(a, Dist{Mean: Unknown, N: 4})
	assert.Equal(t, a, got)

	got = Combine(Dist{Mean: Known(3), N: 0}, a)
	assert.Equal(t, a, got)

	got = Combine(Dist{}, Dist{})
	assert.False(t, got.Mean.Valid)
	assert.Zero(t, got.N)
}

func TestSumIndependentHours(t *testing.T) {
	inClass := Dist{Mean: Known(3), Std: Known(1)}
	homework := Dist{Mean: Known(4), Std: Known(2)}
	lab := Dist{Mean: Unknown, Std: Unknown}

	avg, std := SumIndependent(inClass, lab, homework)
	assert.Equal(t, 7.0, avg.V)
	assert.InDelta(t, math.Sqrt(5), std.V, 1e-12)

	avg, std = SumIndependent(lab)
	assert.False(t, avg.Valid)
	assert.False(t, std.Valid)
}

func TestNumText(t *testing.T) {
	b, err := Known(0.375).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0.375", string(b))

	b, err = Unknown.MarshalText()
	require.NoError(t, err)
	assert.Empty(t, b)

	for _, raw := range []string{"", "nan", "NaN", " "} {
		var n Num
		require.NoError(t, n.UnmarshalText([]byte(raw)))
		assert.False(t, n.Valid, "%q should load as unknown", raw)
	}

	var n Num
	require.NoError(t, n.UnmarshalText([]byte("45")))
	assert.Equal(t, Known(45), n)
	assert.Error(t, n.UnmarshalText([]byte("forty")))
}

func TestKnownRejectsNaN(t *testing.T) {
	assert.False(t, Known(math.NaN()).Valid)
	assert.False(t, Known(math.Inf(1)).Valid)
}

func TestCombineUnknownStdIsZeroSpread(t *testing.T) {
	a := Dist{Mean: Known(5), Std: Unknown, N: 10}
	b := Dist{Mean: Known(7), Std: Known(0), N: 10}

	got := Combine(a, b)
	assert.InDelta(t, 6, got.Mean.V, 1e-12)
	require.True(t, got.Std.Valid)
	assert.InDelta(t, 1, got.Std.V, 1e-12)

	got = Combine(a, Dist{})
	assert.Equal(t, Known(0), got.Std)
}
