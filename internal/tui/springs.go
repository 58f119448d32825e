// SPDX-License-Identifier: MIT
package tui

import (
	"github.com/charmbracelet/harmonica"
	"gonum.org/v1/gonum/floats"
)

// springField eases each bar towards its target height.
type springField struct {
	spring harmonica.Spring
	pos    []float64
	vel    []float64
}

func newSpringField(fps int, frequency, damping float64) springField {
	return springField{spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping)}
}

func (s *springField) resize(n int) {
	if len(s.pos) == n {
		return
	}
	pos := make([]float64, n)
	vel := make([]float64, n)
	copy(pos, s.pos)
	copy(vel, s.vel)
	s.pos, s.vel = pos, vel
}

func (s *springField) step(i int, target float64) float64 {
	p, v := s.spring.Update(s.pos[i], s.vel[i], target)
	s.pos[i] = p
	s.vel[i] = v
	return p
}

// autoGain tracks a slowly decaying peak so bars fill the available height
// whatever the input level.
type autoGain struct {
	peak  float64
	decay float64 // Per-frame multiplier applied to the peak.
	floor float64 // Smallest peak, so silence is not amplified.
}

func newAutoGain() autoGain {
	return autoGain{decay: 0.995, floor: 1e-3}
}

func (g *autoGain) update(bars []float64) {
	g.peak *= g.decay
	if len(bars) > 0 {
		g.peak = max(g.peak, floats.Max(bars))
	}
	g.peak = max(g.peak, g.floor)
}

// scale maps v into [0, 1].
func (g *autoGain) scale(v float64) float64 {
	if g.peak <= 0 {
		return 0
	}
	return min(max(v/g.peak, 0), 1)
}
