// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
)

// Bucket boundaries are 11^x Hz for x stepping from just above 1 to just
// above 4. The bars are calibrated against these exact values.
const (
	BucketBase      = 11.0
	MinExponent     = 1.0
	MaxExponent     = 4.0
	AnalysisRangeHz = 24000.0
)

// Bucket is a half-open [Start, End) index range into the positive half of a
// spectrum. Start >= End is allowed and is widened to one bin by Effective.
type Bucket struct {
	Start int
	End   int
}

// Effective returns the range a reducer actually scans.
func (b Bucket) Effective() (start, end int) {
	if b.Start >= b.End {
		return b.Start, b.Start + 1
	}
	return b.Start, b.End
}

// BucketTable maps bars onto half-spectrum indices. It is immutable once built.
type BucketTable struct {
	buckets []Bucket
	edges   []float64 // count+1 boundaries in Hz
	hzStep  float64
	points  int // number of points in the Hz index space
}

// NewBucketTable computes the table for count buckets, assuming the positive
// half spectrum spans 0..AnalysisRangeHz linearly in steps of hzStep Hz.
// Identical arguments always produce an identical table.
func NewBucketTable(count int, hzStep float64) (*BucketTable, error) {
	if count < 1 {
		return nil, fmt.Errorf("bucket count must be positive, got %d", count)
	}
	if hzStep <= 0 || hzStep >= AnalysisRangeHz {
		return nil, fmt.Errorf("Hz step must be in (0, %.0f), got %f", AnalysisRangeHz, hzStep)
	}

	points := int(math.Ceil(AnalysisRangeHz / hzStep))

	// Exponents accumulate step by step; computing 1+(k+1)*step directly
	// rounds differently and moves boundaries by a bin.
	step := (MaxExponent - MinExponent) / float64(count)
	edges := make([]float64, count+1)
	exponent := MinExponent + step
	for k := range edges {
		if k > 0 {
			exponent += step
		}
		edges[k] = math.Pow(BucketBase, exponent)
	}

	buckets := make([]Bucket, count)
	for k := range buckets {
		lo, hi := edges[k], edges[k+1]

		// An index of 0 counts as "not found yet", so an end that lands on 0
		// is overwritten by the next index past hi.
		start, end := -1, -1
		for i := range points {
			hz := float64(i) * hzStep
			if start <= 0 && hz > lo {
				start = i
			}
			if end <= 0 && hz > hi {
				end = i - 1
			}
		}
		if start < 0 {
			start = points
		}
		if end < 0 {
			end = points - 1
		}
		buckets[k] = Bucket{Start: start, End: end + 1}
	}

	return &BucketTable{
		buckets: buckets,
		edges:   edges,
		hzStep:  hzStep,
		points:  points,
	}, nil
}

// Len returns the number of buckets.
func (t *BucketTable) Len() int { return len(t.buckets) }

// At returns bucket i.
func (t *BucketTable) At(i int) Bucket { return t.buckets[i] }

// Buckets returns a copy of the table entries.
func (t *BucketTable) Buckets() []Bucket {
	out := make([]Bucket, len(t.buckets))
	copy(out, t.buckets)
	return out
}

// HzRange returns the boundaries in Hz that bucket i was built from.
func (t *BucketTable) HzRange(i int) (lo, hi float64) {
	return t.edges[i], t.edges[i+1]
}

// HzStep returns the Hz spacing assumed between half-spectrum indices.
func (t *BucketTable) HzStep() float64 { return t.hzStep }

// BucketFor returns the first bucket whose effective range contains the
// half-spectrum index, or -1.
func (t *BucketTable) BucketFor(index int) int {
	for i, b := range t.buckets {
		start, end := b.Effective()
		if index >= start && index < end {
			return i
		}
	}
	return -1
}
