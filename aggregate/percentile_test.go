package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileKnownSampleSet(t *testing.T) {
	// Load times 100..550 in 50ms steps, n = 10.
	samples := []float64{100, 150, 200, 250, 300, 350, 400, 450, 500, 550}

	p50, ok := Percentile(samples, 50)
	require.True(t, ok)
	assert.Equal(t, 325.0, p50, "even count averages the two middle elements")

	p95, ok := Percentile(samples, 95)
	require.True(t, ok)
	assert.Equal(t, 550.0, p95, "ceil(0.95*10)-1 = index 9")

	p75, ok := Percentile(samples, 75)
	require.True(t, ok)
	assert.Equal(t, 450.0, p75, "ceil(0.75*10)-1 = index 7")
}

func TestPercentileEmptySamples(t *testing.T) {
	v, ok := Percentile(nil, 95)
	assert.False(t, ok)
	assert.True(t, v != v, "no-data marker is NaN")

	_, ok = Median(nil)
	assert.False(t, ok)
}

func TestPercentileSingleSample(t *testing.T) {
	for _, p := range []float64{1, 50, 99} {
		v, ok := Percentile([]float64{42}, p)
		require.True(t, ok)
		assert.Equal(t, 42.0, v)
	}
}

func TestPercentileUnsortedInputLeftIntact(t *testing.T) {
	samples := []float64{300, 100, 200}

	v, ok := Percentile(samples, 50)
	require.True(t, ok)
	assert.Equal(t, 200.0, v)
	assert.Equal(t, []float64{300, 100, 200}, samples, "input must not be mutated")
}

func TestMedianOddCount(t *testing.T) {
	v, ok := Median([]float64{1, 2, 3, 4, 5})
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestMean(t *testing.T) {
	v, ok := Mean([]float64{2, 4, 6})
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = Mean(nil)
	assert.False(t, ok)
}
