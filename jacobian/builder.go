// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jacobian

import (
	"runtime"
	"sync"

	"github.com/cpmech/gosl/la"

	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/state"
)

// Builder assembles J_int (§4.3), the |u| x |u_red| Jacobian of the RHS
// w.r.t. the reduced state, reusing a Pattern computed once at startup.
// Parallel mirrors fem/solver.go's per-element-stiffness-matrix worker pool:
// row assembly is embarrassingly parallel once the pattern is fixed, so a
// worker pool keyed off runtime.GOMAXPROCS is the natural generalization of
// that pattern to this RHS's rows instead of finite elements.
type Builder struct {
	Graph   *network.Graph
	Store   *param.Store
	Layout  *state.Layout
	Pattern *Pattern

	Parallel bool
}

// NewBuilder builds the symbolic pattern once and returns a ready Builder.
func NewBuilder(g *network.Graph, s *param.Store, l *state.Layout) (*Builder, error) {
	pat, err := BuildPattern(g, s, l)
	if err != nil {
		return nil, err
	}
	return &Builder{Graph: g, Store: s, Layout: l, Pattern: pat}, nil
}

// Entry is one nonzero (row, col, value) of J_int.
type Entry struct {
	Row, Col int
	Val      float64
}

// Matrix is J_int in both forms callers need: the raw entries (cheap to
// combine with the Layout's own A entries for the reduced solve) and an
// la.Triplet ready for la.CCMatrix conversion. No caller in this module
// factorizes the Triplet; core.Jacobian and ReducedSolve read Entries.
type Matrix struct {
	Entries []Entry
	Triplet *la.Triplet
}

// Build assembles J_int at the current solution point t, sized |u| x
// |u_red|.
func (b *Builder) Build(t float64) (*Matrix, error) {
	rows := make([][]float64, b.Layout.Len())
	if b.Parallel {
		if err := b.buildParallel(t, rows); err != nil {
			return nil, err
		}
	} else {
		for row := 0; row < b.Layout.Len(); row++ {
			class, node := b.Layout.ClassOf(row)
			vals, err := rowDerivs(b, class, node, t)
			if err != nil {
				return nil, err
			}
			rows[row] = vals
		}
	}

	J := new(la.Triplet)
	J.Init(b.Layout.Len(), b.Layout.ReducedLen(), b.Pattern.NNZ())
	J.Start()
	entries := make([]Entry, 0, b.Pattern.NNZ())
	for row, cols := range b.Pattern.cols {
		vals := rows[row]
		for i, col := range cols {
			if i >= len(vals) {
				continue
			}
			J.Put(row, col, vals[i])
			entries = append(entries, Entry{Row: row, Col: col, Val: vals[i]})
		}
	}
	return &Matrix{Entries: entries, Triplet: J}, nil
}

// buildParallel distributes row assembly over GOMAXPROCS workers. Each
// worker only writes to its own disjoint slice of rows, so no locking is
// needed around rows itself (§5's "workers never share mutable state").
func (b *Builder) buildParallel(t float64, rows [][]float64) error {
	nWorkers := runtime.GOMAXPROCS(0)
	if nWorkers > len(rows) {
		nWorkers = len(rows)
	}
	if nWorkers < 1 {
		nWorkers = 1
	}
	chunk := (len(rows) + nWorkers - 1) / nWorkers

	var wg sync.WaitGroup
	errs := make([]error, nWorkers)
	for w := 0; w < nWorkers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(rows) {
			hi = len(rows)
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(lo, hi, slot int) {
			defer wg.Done()
			for row := lo; row < hi; row++ {
				class, node := b.Layout.ClassOf(row)
				vals, err := rowDerivs(b, class, node, t)
				if err != nil {
					errs[slot] = err
					return
				}
				rows[row] = vals
			}
		}(lo, hi, w)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
