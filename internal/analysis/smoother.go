// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"github.com/tphakala/simd/f64"
)

// WeightFunc returns the blend weight for bar index i.
type WeightFunc func(i int) float64

// LinearWeight returns w(i) = c*i + k.
func LinearWeight(c, k float64) WeightFunc {
	return func(i int) float64 { return c*float64(i) + k }
}

// ExponentialWeight returns w(i) = base^i.
func ExponentialWeight(base float64) WeightFunc {
	return func(i int) float64 { return math.Pow(base, float64(i)) }
}

// Ramp scales a sequence linearly from Start (first element) to End (last).
type Ramp struct {
	Start float64
	End   float64
}

// Apply scales v in place.
func (r Ramp) Apply(v []float64) {
	switch len(v) {
	case 0:
		return
	case 1:
		v[0] *= r.Start
		return
	}
	last := float64(len(v) - 1)
	for i := range v {
		v[i] *= r.Start + (r.End-r.Start)*float64(i)/last
	}
}

// SmootherConfig describes the temporal blend, the Gaussian pass and the
// optional amplitude ramp.
type SmootherConfig struct {
	Depth  int        // History capacity K.
	Weight WeightFunc // Per-index weight w(i).
	Bias   float64    // Added per vector with weight 1; 0 gives the plain mean.
	Degree int        // Gaussian half-width, window = 2*Degree - 1.
	Ramp   *Ramp      // Optional amplitude ramp across the convolved output.
}

// Smoother keeps a short history of bar vectors and turns it into the
// sequence handed to a sink. Vectors pushed into it must not be modified
// afterwards. A Smoother is owned by a single goroutine.
type Smoother struct {
	cfg     SmootherConfig
	kernel  []float64
	history [][]float64
	blended []float64
}

// NewSmoother validates cfg and precomputes the Gaussian kernel.
func NewSmoother(cfg SmootherConfig) (*Smoother, error) {
	if cfg.Depth < 1 {
		return nil, fmt.Errorf("smoother depth must be positive, got %d", cfg.Depth)
	}
	if cfg.Degree < 1 {
		return nil, fmt.Errorf("gaussian degree must be positive, got %d", cfg.Degree)
	}
	if cfg.Weight == nil {
		cfg.Weight = LinearWeight(0, 1)
	}
	return &Smoother{
		cfg:     cfg,
		kernel:  GaussianKernel(cfg.Degree),
		history: make([][]float64, 0, cfg.Depth),
	}, nil
}

// Window returns the Gaussian window length, 2*Degree - 1.
func (s *Smoother) Window() int { return len(s.kernel) }

// Len returns the number of vectors currently held.
func (s *Smoother) Len() int { return len(s.history) }

// Push appends v to the history, evicting the oldest entry when full.
func (s *Smoother) Push(v []float64) {
	if len(s.history) == s.cfg.Depth {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, v)
}

// Reset drops the history.
func (s *Smoother) Reset() {
	clear(s.history)
	s.history = s.history[:0]
}

// Blend returns the weighted temporal blend across the history, one value
// per index of the most recent vector. Older vectors that are shorter count
// as 0 at the missing indices and add no bias. For index i with weight w,
// bias b, K vectors of which P reach index i, the value is
// (w*sum + P*b) / (K*(w + b)).
func (s *Smoother) Blend() []float64 {
	if len(s.history) == 0 {
		return nil
	}
	current := s.history[len(s.history)-1]
	n := len(current)
	if cap(s.blended) < n {
		s.blended = make([]float64, n)
	}
	s.blended = s.blended[:n]

	k := float64(len(s.history))
	for i := range n {
		var sum, present float64
		for _, v := range s.history {
			if i < len(v) {
				sum += v[i]
				present++
			}
		}
		w := s.cfg.Weight(i)
		denom := k * (w + s.cfg.Bias)
		if denom == 0 {
			s.blended[i] = sum / k
			continue
		}
		s.blended[i] = (w*sum + present*s.cfg.Bias) / denom
	}
	return s.blended
}

// Smooth blends the history, convolves it with the Gaussian kernel and
// applies the ramp. The result is a new slice of length
// OutputLen(len(latest), Degree), possibly empty.
func (s *Smoother) Smooth() []float64 {
	blended := s.Blend()
	if blended == nil {
		return nil
	}
	out := ConvolveValid(blended, s.kernel)
	if s.cfg.Ramp != nil {
		s.cfg.Ramp.Apply(out)
	}
	return out
}

// GaussianKernel returns the normalised kernel of length 2*degree - 1 with
// weight exp(-(4*i/window)^2) at offset i from the centre.
func GaussianKernel(degree int) []float64 {
	if degree < 1 {
		return nil
	}
	window := 2*degree - 1
	kernel := make([]float64, window)
	for j := range kernel {
		frac := float64(j-degree+1) / float64(window)
		kernel[j] = math.Exp(-(4 * frac) * (4 * frac))
	}
	f64.Scale(kernel, kernel, 1/f64.Sum(kernel))
	return kernel
}

// ConvolveValid returns the valid part of the convolution of signal with a
// symmetric kernel: len(signal) - len(kernel) + 1 values, no edge padding.
func ConvolveValid(signal, kernel []float64) []float64 {
	n := len(signal) - len(kernel) + 1
	if len(kernel) == 0 || n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	f64.ConvolveValid(out, signal, kernel)
	return out
}

// OutputLen returns the length of Smooth's result for an input of n bars.
func OutputLen(n, degree int) int {
	out := n - (2*degree - 1) + 1
	if out < 0 {
		return 0
	}
	return out
}
