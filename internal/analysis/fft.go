// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend selects the FFT implementation behind a Transformer.
type Backend int

const (
	// BackendGonum runs gonum's real FFT and mirrors the conjugate half.
	BackendGonum Backend = iota
	// BackendGoDSP runs go-dsp's full complex transform of the real block.
	BackendGoDSP
)

func (b Backend) String() string {
	switch b {
	case BackendGonum:
		return "gonum"
	case BackendGoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend converts a backend name (case-insensitive) to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum":
		return BackendGonum, nil
	case "godsp", "go-dsp":
		return BackendGoDSP, nil
	default:
		return BackendGonum, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// Spectrum is the centred magnitude profile of one block. Freqs ascend from
// the most negative frequency; index len/2 is 0 Hz. Freqs is shared between
// all spectra of the same Transformer and must not be modified.
type Spectrum struct {
	Freqs []float64
	Mags  []float64
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input  []float64    // Block samples as float64, windowed when a window is set.
	coeffs []complex128 // gonum real FFT output (size/2 + 1 values).
	window []float64    // Window coefficients, nil for rectangular.
}

// Transformer turns PCM blocks of a fixed size into centred magnitude spectra
// scaled by 1/size. It keeps a workspace between calls and is not safe for
// concurrent use.
type Transformer struct {
	size       int
	sampleRate float64
	backend    Backend
	fft        *fourier.FFT
	freqs      []float64
	workspace  fftWorkspace
}

// NewTransformer creates a Transformer for blocks of size samples captured
// at sampleRate. Any size works, it does not need to be a power of two.
func NewTransformer(size int, sampleRate float64, backend Backend, windowType WindowFunc) (*Transformer, error) {
	if size < 2 {
		return nil, fmt.Errorf("transform size must be at least 2, got %d", size)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if backend != BackendGonum && backend != BackendGoDSP {
		return nil, fmt.Errorf("unsupported FFT backend %v", backend)
	}

	shift := size / 2
	freqs := make([]float64, size)
	for j := range freqs {
		freqs[j] = float64(j-shift) * sampleRate / float64(size)
	}

	t := &Transformer{
		size:       size,
		sampleRate: sampleRate,
		backend:    backend,
		freqs:      freqs,
		workspace: fftWorkspace{
			input:  make([]float64, size),
			window: windowCoefficients(size, windowType),
		},
	}
	if backend == BackendGonum {
		t.fft = fourier.NewFFT(size)
		t.workspace.coeffs = make([]complex128, size/2+1)
	}
	return t, nil
}

// Size returns the block length the transformer was built for.
func (t *Transformer) Size() int { return t.size }

// SampleRate returns the sample rate in Hz.
func (t *Transformer) SampleRate() float64 { return t.sampleRate }

// Freqs returns the shared, ascending frequency axis in Hz.
func (t *Transformer) Freqs() []float64 { return t.freqs }

// Transform returns the spectrum of block with a freshly allocated Mags slice.
func (t *Transformer) Transform(block []int16) Spectrum {
	mags := make([]float64, t.size)
	_ = t.TransformInto(mags, block)
	return Spectrum{Freqs: t.freqs, Mags: mags}
}

// TransformInto writes the centred magnitudes of block into mags, which must
// have length Size(). Blocks shorter than Size() are zero-padded, longer ones
// are truncated.
func (t *Transformer) TransformInto(mags []float64, block []int16) error {
	if len(mags) != t.size {
		return fmt.Errorf("destination slice length %d does not match transform size %d", len(mags), t.size)
	}

	// --- 1. Prepare Input ---
	in := t.workspace.input
	w := t.workspace.window
	for i := range t.size {
		if i >= len(block) {
			in[i] = 0
			continue
		}
		in[i] = float64(block[i])
		if w != nil {
			in[i] *= w[i]
		}
	}

	// --- 2. Transform and shift ---
	// Output index j holds DFT bin (j - size/2) mod size, the same ordering
	// as numpy's fftshift.
	n := t.size
	shift := n / 2
	scale := 1.0 / float64(n)

	switch t.backend {
	case BackendGoDSP:
		full := dspfft.FFTReal(in)
		for j := range n {
			mags[j] = cmplx.Abs(full[(j-shift+n)%n]) * scale
		}
	default:
		coeffs := t.fft.Coefficients(t.workspace.coeffs, in)
		for j := range n {
			k := (j - shift + n) % n
			// Real input: |X[k]| == |X[n-k]|, and gonum only returns k <= n/2.
			if k > n/2 {
				k = n - k
			}
			mags[j] = cmplx.Abs(coeffs[k]) * scale
		}
	}
	return nil
}
