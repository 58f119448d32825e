// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestGaussianKernel(t *testing.T) {
	for degree := 1; degree <= 6; degree++ {
		kernel := GaussianKernel(degree)
		require.Len(t, kernel, 2*degree-1)

		var sum float64
		for i, w := range kernel {
			sum += w
			assert.InDelta(t, kernel[len(kernel)-1-i], w, 1e-12, "kernel must be symmetric")
		}
		assert.InDelta(t, 1.0, sum, 1e-9)

		centre := degree - 1
		for i := range kernel {
			assert.LessOrEqual(t, kernel[i], kernel[centre])
		}
	}
	assert.Nil(t, GaussianKernel(0))
}

func TestConvolveValidPreservesConstant(t *testing.T) {
	for degree := 1; degree <= 5; degree++ {
		out := ConvolveValid(constant(32, 7), GaussianKernel(degree))
		require.Len(t, out, OutputLen(32, degree))
		for _, v := range out {
			assert.InDelta(t, 7.0, v, 1e-9)
		}
	}
}

func TestConvolveValidShortInput(t *testing.T) {
	out := ConvolveValid([]float64{1, 2}, GaussianKernel(3))
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, 0, OutputLen(2, 3))
}

func TestConvolveValidKnownValues(t *testing.T) {
	out := ConvolveValid([]float64{1, 2, 3, 4}, []float64{0.25, 0.5, 0.25})
	require.Len(t, out, 2)
	assert.InDelta(t, 2.0, out[0], 1e-12)
	assert.InDelta(t, 3.0, out[1], 1e-12)
}

func TestSmootherPlainMeanPreservesConstant(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{
		Depth:  5,
		Weight: ExponentialWeight(2),
		Bias:   0,
		Degree: 3,
	})
	require.NoError(t, err)

	for range 5 {
		s.Push(constant(30, 4))
	}
	out := s.Smooth()
	require.Len(t, out, OutputLen(30, 3))
	for _, v := range out {
		assert.InDelta(t, 4.0, v, 1e-9)
	}
}

func TestSmootherBiasedBlend(t *testing.T) {
	s, err := NewSmoother(Classic.WithBias(1).Smoother)
	require.NoError(t, err)

	s.Push(constant(4, 3))
	blended := s.Blend()
	require.Len(t, blended, 4)
	for i, v := range blended {
		w := math.Pow(2, float64(i))
		assert.InDelta(t, (w*3+1)/(w+1), v, 1e-12, "bar %d", i)
	}

	// Two vectors: (w*(a+b) + 2) / (2*(w+1)).
	s.Push(constant(4, 5))
	blended = s.Blend()
	for i, v := range blended {
		w := math.Pow(2, float64(i))
		assert.InDelta(t, (w*8+2)/(2*(w+1)), v, 1e-12, "bar %d", i)
	}
}

func TestSmootherLinearWeightZeroAtFirstBar(t *testing.T) {
	// Tuned weights bar 0 with 0, so its blend is the bias alone.
	s, err := NewSmoother(Tuned.WithBias(1).Smoother)
	require.NoError(t, err)

	s.Push(constant(8, 42))
	assert.InDelta(t, 1.0, s.Blend()[0], 1e-12)
}

func TestSmootherZeroDenominatorFallsBackToMean(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{Depth: 2, Weight: LinearWeight(1, -1), Bias: 0, Degree: 1})
	require.NoError(t, err)

	s.Push([]float64{2, 2})
	s.Push([]float64{4, 4})
	blended := s.Blend()
	assert.InDelta(t, 3.0, blended[0], 1e-12)
	assert.InDelta(t, 3.0, blended[1], 1e-12)
}

func TestSmootherEviction(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{Depth: 2, Degree: 1})
	require.NoError(t, err)

	s.Push([]float64{100})
	s.Push([]float64{2})
	s.Push([]float64{4})
	assert.Equal(t, 2, s.Len())
	assert.InDelta(t, 3.0, s.Blend()[0], 1e-12)
}

func TestSmootherShortHistoryEntries(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{Depth: 3, Degree: 1})
	require.NoError(t, err)

	s.Push([]float64{1, 1, 1})
	s.Push([]float64{2, 2, 2, 2})
	blended := s.Blend()
	require.Len(t, blended, 4, "length follows the newest vector")
	assert.InDeltaSlice(t, []float64{1.5, 1.5, 1.5, 1}, blended, 1e-12)
}

func TestSmootherBiasSkipsMissingEntries(t *testing.T) {
	s, err := NewSmoother(Tuned.WithBias(1).Smoother)
	require.NoError(t, err)

	s.Push([]float64{1, 1})
	s.Push([]float64{2, 2, 2})
	blended := s.Blend()
	require.Len(t, blended, 3)
	// Index 2 has w=1: (1*2 + 1*1) / (2*(1+1)).
	assert.InDelta(t, 0.75, blended[2], 1e-12)
	// Index 1 has w=0.5: (0.5*3 + 2*1) / (2*(0.5+1)).
	assert.InDelta(t, 3.5/3, blended[1], 1e-12)
}

func TestSmootherSilenceStaysSilent(t *testing.T) {
	for _, p := range []Profile{Classic, Tuned} {
		s, err := NewSmoother(p.Smoother)
		require.NoError(t, err)
		for range 10 {
			s.Push(make([]float64, p.BucketCount(25)))
			for _, v := range s.Smooth() {
				require.Zero(t, v, p.Name)
			}
		}
	}
}

func TestSmootherEmptyHistory(t *testing.T) {
	s, err := NewSmoother(Classic.Smoother)
	require.NoError(t, err)
	assert.Nil(t, s.Smooth())

	s.Push(constant(30, 1))
	require.NotNil(t, s.Smooth())
	s.Reset()
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Smooth())
}

func TestSmootherOutputLength(t *testing.T) {
	for _, p := range []Profile{Classic, Tuned} {
		s, err := NewSmoother(p.Smoother)
		require.NoError(t, err)

		s.Push(constant(p.BucketCount(25), 1))
		out := s.Smooth()
		assert.Len(t, out, p.OutputLen(25), p.Name)
		assert.Len(t, out, 26, p.Name)
		assert.Equal(t, 2*p.Smoother.Degree-1, s.Window())
	}
}

func TestRampEndpoints(t *testing.T) {
	r := Ramp{Start: 0.15, End: 1.5}

	v := constant(5, 1)
	r.Apply(v)
	assert.InDelta(t, 0.15, v[0], 1e-12)
	assert.InDelta(t, 0.825, v[2], 1e-12)
	assert.InDelta(t, 1.5, v[4], 1e-12)

	single := []float64{2}
	r.Apply(single)
	assert.InDelta(t, 0.3, single[0], 1e-12)

	r.Apply(nil)
}

func TestSmootherAppliesRamp(t *testing.T) {
	cfg := Tuned.Smoother
	cfg.Bias = 0
	s, err := NewSmoother(cfg)
	require.NoError(t, err)

	s.Push(constant(20, 2))
	out := s.Smooth()
	require.Len(t, out, OutputLen(20, cfg.Degree))
	assert.InDelta(t, 2*0.15, out[0], 1e-9)
	assert.InDelta(t, 2*1.5, out[len(out)-1], 1e-9)
}

func TestNewSmootherValidation(t *testing.T) {
	_, err := NewSmoother(SmootherConfig{Depth: 0, Degree: 3})
	assert.Error(t, err)
	_, err = NewSmoother(SmootherConfig{Depth: 3, Degree: 0})
	assert.Error(t, err)
}

func BenchmarkSmootherSmooth(b *testing.B) {
	s, err := NewSmoother(Tuned.Smoother)
	require.NoError(b, err)
	for range 6 {
		s.Push(constant(32, 0.5))
	}

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		s.Smooth()
	}
}
