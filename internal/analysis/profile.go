// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profile bundles the constants the bar output is calibrated with.
type Profile struct {
	Name           string
	Margin         int           // Extra trailing buckets consumed by the Gaussian pass.
	HzStep         float64       // Hz spacing assumed between half-spectrum indices.
	LowCut         int           // Leading positive-frequency bins dropped before bucketing.
	Smoother       SmootherConfig
	RenderInterval time.Duration // Default render tick.
}

// Classic weights bar i by 2^i over 5 vectors and smooths with a degree 3
// Gaussian. There is no ramp.
var Classic = Profile{
	Name:   "classic",
	Margin: 5,
	HzStep: 20,
	Smoother: SmootherConfig{
		Depth:  5,
		Weight: ExponentialWeight(2),
		Degree: 3,
	},
	RenderInterval: 16 * time.Millisecond,
}

// Tuned weights bar i by 0.5*i over 6 vectors, smooths with a degree 4
// Gaussian and ramps amplitudes from 0.15 to 1.5.
var Tuned = Profile{
	Name:   "tuned",
	Margin: 7,
	HzStep: 10,
	Smoother: SmootherConfig{
		Depth:  6,
		Weight: LinearWeight(0.5, 0),
		Degree: 4,
		Ramp:   &Ramp{Start: 0.15, End: 1.5},
	},
	RenderInterval: 10 * time.Millisecond,
}

var profiles = map[string]Profile{
	Classic.Name: Classic,
	Tuned.Name:   Tuned,
}

// ProfileByName looks a profile up case-insensitively.
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile '%s' (available: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames returns the registered profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithBias returns a copy of p whose blend adds bias per vector. A bias of 1
// reproduces the v*w+1 arithmetic the profiles were first tuned with; it
// lifts silent input to a non-zero floor.
func (p Profile) WithBias(bias float64) Profile {
	p.Smoother.Bias = bias
	return p
}

// BucketCount returns how many buckets are computed for bars visible bars.
func (p Profile) BucketCount(bars int) int { return bars + p.Margin }

// OutputLen returns how many smoothed values a full vector yields.
func (p Profile) OutputLen(bars int) int {
	return OutputLen(p.BucketCount(bars), p.Smoother.Degree)
}

// NewReducer builds the bucket table and reducer for bars visible bars.
func (p Profile) NewReducer(bars int) (*Reducer, error) {
	if bars < 1 {
		return nil, fmt.Errorf("bar count must be positive, got %d", bars)
	}
	table, err := NewBucketTable(p.BucketCount(bars), p.HzStep)
	if err != nil {
		return nil, err
	}
	return NewReducer(table, p.LowCut)
}
