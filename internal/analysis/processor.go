// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"sync/atomic"
)

// BlockProcessor turns one PCM block into a bar vector.
type BlockProcessor interface {
	Process(block []int16) []float64
}

// Analyzer runs a Transformer and a Reducer back to back. Process must be
// called from one goroutine; SetReducer may be called from any goroutine and
// takes effect on the next Process call.
type Analyzer struct {
	transformer *Transformer
	reducer     atomic.Pointer[Reducer]
	mags        []float64
}

// Compile-time check for interface implementation.
var _ BlockProcessor = (*Analyzer)(nil)

// NewAnalyzer pairs a transformer with an initial reducer.
func NewAnalyzer(t *Transformer, r *Reducer) (*Analyzer, error) {
	if t == nil {
		return nil, fmt.Errorf("analyzer requires a transformer")
	}
	if r == nil {
		return nil, fmt.Errorf("analyzer requires a reducer")
	}
	a := &Analyzer{
		transformer: t,
		mags:        make([]float64, t.Size()),
	}
	a.reducer.Store(r)
	return a, nil
}

// Process returns a newly allocated bar vector for block. The vector is never
// touched again by the analyzer, so it can be handed to another goroutine.
func (a *Analyzer) Process(block []int16) []float64 {
	_ = a.transformer.TransformInto(a.mags, block)
	return a.reducer.Load().Reduce(a.mags)
}

// SetReducer swaps the bucket mapping.
func (a *Analyzer) SetReducer(r *Reducer) {
	if r != nil {
		a.reducer.Store(r)
	}
}

// Reducer returns the reducer currently in use.
func (a *Analyzer) Reducer() *Reducer { return a.reducer.Load() }

// Transformer returns the underlying transformer.
func (a *Analyzer) Transformer() *Transformer { return a.transformer }
