// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Reducer collapses a centred magnitude spectrum into one value per bucket.
// It is immutable and safe for concurrent use.
type Reducer struct {
	table  *BucketTable
	lowCut int
}

// NewReducer creates a reducer over table. lowCut leading bins of the
// positive half are dropped before bucket indices are applied.
func NewReducer(table *BucketTable, lowCut int) (*Reducer, error) {
	if table == nil {
		return nil, fmt.Errorf("reducer requires a bucket table")
	}
	if lowCut < 0 {
		return nil, fmt.Errorf("low cut must not be negative, got %d", lowCut)
	}
	return &Reducer{table: table, lowCut: lowCut}, nil
}

// Table returns the bucket table the reducer was built with.
func (r *Reducer) Table() *BucketTable { return r.table }

// LowCut returns the number of leading positive-frequency bins dropped.
func (r *Reducer) LowCut() int { return r.lowCut }

// PositiveHalf returns the part of a centred magnitude sequence from 0 Hz
// upwards, minus lowCut leading bins.
func PositiveHalf(mags []float64, lowCut int) []float64 {
	from := len(mags)/2 + lowCut
	if from > len(mags) {
		from = len(mags)
	}
	return mags[from:]
}

// Reduce returns a new bar vector with one entry per bucket.
func (r *Reducer) Reduce(mags []float64) []float64 {
	bars := make([]float64, r.table.Len())
	r.ReduceInto(bars, mags)
	return bars
}

// ReduceInto writes one value per bucket into bars, which must have the
// table's length. Each value is the largest magnitude in the bucket's
// effective range; ranges past the end of the spectrum give 0.
func (r *Reducer) ReduceInto(bars, mags []float64) {
	half := PositiveHalf(mags, r.lowCut)
	for i, b := range r.table.buckets {
		start, end := b.Effective()
		if start < 0 {
			start = 0
		}
		if end > len(half) {
			end = len(half)
		}
		if start >= end {
			bars[i] = 0
			continue
		}
		bars[i] = floats.Max(half[start:end])
	}
}
