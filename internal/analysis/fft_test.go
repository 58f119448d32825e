// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiobars/pkg/utils"
)

const (
	testRate      = 48000.0
	testBlockSize = 2400 // 50ms at 48kHz, 20Hz per bin.
)

func newTestTransformer(t testing.TB, size int, backend Backend) *Transformer {
	t.Helper()
	tr, err := NewTransformer(size, testRate, backend, Rectangular)
	require.NoError(t, err)
	return tr
}

func TestNewTransformerValidation(t *testing.T) {
	_, err := NewTransformer(1, testRate, BackendGonum, Rectangular)
	assert.Error(t, err)

	_, err = NewTransformer(64, 0, BackendGonum, Rectangular)
	assert.Error(t, err)

	_, err = NewTransformer(64, testRate, Backend(42), Rectangular)
	assert.Error(t, err)
}

func TestTransformShape(t *testing.T) {
	for _, size := range []int{testBlockSize, 5, 1023} {
		tr := newTestTransformer(t, size, BackendGonum)
		spec := tr.Transform(utils.GenerateComplexWave(size, testRate))

		require.Len(t, spec.Freqs, size)
		require.Len(t, spec.Mags, size)

		shift := size / 2
		assert.Zero(t, spec.Freqs[shift], "centre bin must be 0 Hz")
		for j := 1; j < size; j++ {
			assert.Less(t, spec.Freqs[j-1], spec.Freqs[j], "frequencies must ascend")
		}
		for k := 1; shift-k >= 0 && shift+k < size; k++ {
			assert.InDelta(t, -spec.Freqs[shift-k], spec.Freqs[shift+k], 1e-9)
		}
		for j, m := range spec.Mags {
			assert.GreaterOrEqual(t, m, 0.0, "magnitude %d negative", j)
		}
	}
}

func TestTransformZeroBlock(t *testing.T) {
	for _, backend := range []Backend{BackendGonum, BackendGoDSP} {
		tr := newTestTransformer(t, testBlockSize, backend)
		spec := tr.Transform(make([]int16, testBlockSize))
		for _, m := range spec.Mags {
			require.Zero(t, m)
		}
	}
}

func TestTransformSinePeak(t *testing.T) {
	const amplitude = 10000.0
	tr := newTestTransformer(t, testBlockSize, BackendGonum)
	block := utils.GenerateSineWaveAmplitude(testBlockSize, testRate, 1000, amplitude)

	spec := tr.Transform(block)
	shift := testBlockSize / 2
	bin := 1000 / int(testRate/testBlockSize)

	peak := utils.ArgMax(spec.Mags)
	assert.Contains(t, []int{shift - bin, shift + bin}, peak)
	assert.InDelta(t, amplitude/2, spec.Mags[shift+bin], 1)
	assert.InDelta(t, amplitude/2, spec.Mags[shift-bin], 1)
	assert.InDelta(t, 1000.0, spec.Freqs[shift+bin], 1e-9)
}

func TestTransformDeterministic(t *testing.T) {
	tr := newTestTransformer(t, testBlockSize, BackendGonum)
	block := utils.GenerateComplexWave(testBlockSize, testRate)

	first := tr.Transform(block)
	second := tr.Transform(block)
	assert.Equal(t, first.Mags, second.Mags)
}

func TestBackendsAgree(t *testing.T) {
	for _, size := range []int{testBlockSize, 1000, 77} {
		block := utils.GenerateComplexWave(size, testRate)
		a := newTestTransformer(t, size, BackendGonum).Transform(block)
		b := newTestTransformer(t, size, BackendGoDSP).Transform(block)
		for j := range a.Mags {
			require.InDelta(t, a.Mags[j], b.Mags[j], 1e-6*math.Max(1, a.Mags[j]), "size %d bin %d", size, j)
		}
	}
}

func TestTransformPadsAndTruncates(t *testing.T) {
	tr := newTestTransformer(t, 64, BackendGonum)
	block := utils.GenerateSineWave(64, testRate, 3000)

	padded := tr.Transform(append([]int16(nil), block[:32]...))
	require.Len(t, padded.Mags, 64)

	truncated := tr.Transform(append(append([]int16(nil), block...), block...))
	assert.Equal(t, tr.Transform(block).Mags, truncated.Mags)
}

func TestTransformIntoLengthMismatch(t *testing.T) {
	tr := newTestTransformer(t, 64, BackendGonum)
	err := tr.TransformInto(make([]float64, 32), make([]int16, 64))
	assert.Error(t, err)
}

func TestTransformWindowed(t *testing.T) {
	tr, err := NewTransformer(testBlockSize, testRate, BackendGonum, Hann)
	require.NoError(t, err)

	// 1010Hz falls between bins; Hann keeps leakage away from distant bins.
	block := utils.GenerateSineWave(testBlockSize, testRate, 1010)
	spec := tr.Transform(block)
	rect := newTestTransformer(t, testBlockSize, BackendGonum).Transform(block)

	far := testBlockSize/2 + 200
	assert.Less(t, spec.Mags[far], rect.Mags[far])
}

func TestTransformIntoAllocations(t *testing.T) {
	tr := newTestTransformer(t, testBlockSize, BackendGonum)
	block := utils.GenerateComplexWave(testBlockSize, testRate)
	mags := make([]float64, testBlockSize)

	allocs := testing.AllocsPerRun(100, func() {
		_ = tr.TransformInto(mags, block)
	})
	if allocs > 0 {
		t.Errorf("TransformInto allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendGonum, false},
		{"gonum", BackendGonum, false},
		{" GoDSP ", BackendGoDSP, false},
		{"go-dsp", BackendGoDSP, false},
		{"fftw", BackendGonum, true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, got, mustParseBackend(t, got.String()))
	}
}

func mustParseBackend(t *testing.T, name string) Backend {
	t.Helper()
	b, err := ParseBackend(name)
	require.NoError(t, err)
	return b
}

func TestParseWindowFunc(t *testing.T) {
	for _, w := range []WindowFunc{Rectangular, BartlettHann, Blackman, BlackmanNuttall, Hann, Hamming, Lanczos, Nuttall} {
		got, err := ParseWindowFunc(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	got, err := ParseWindowFunc("none")
	require.NoError(t, err)
	assert.Equal(t, Rectangular, got)

	_, err = ParseWindowFunc("kaiser")
	assert.Error(t, err)

	assert.Nil(t, windowCoefficients(16, Rectangular))
	assert.Len(t, windowCoefficients(16, Hann), 16)
}

func BenchmarkTransformInto(b *testing.B) {
	benchmarks := []struct {
		name    string
		size    int
		backend Backend
	}{
		{"Gonum_2400", testBlockSize, BackendGonum},
		{"GoDSP_2400", testBlockSize, BackendGoDSP},
		{"Gonum_4096", 4096, BackendGonum},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			tr := newTestTransformer(b, bm.size, bm.backend)
			block := utils.GenerateComplexWave(bm.size, testRate)
			mags := make([]float64, bm.size)

			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				_ = tr.TransformInto(mags, block)
			}
		})
	}
}
