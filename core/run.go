// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"log"
	"math"
	"sort"

	"github.com/Deltares/Ribasim-sub001/allocation"
	"github.com/Deltares/Ribasim-sub001/config"
	"github.com/Deltares/Ribasim-sub001/control"
	"github.com/Deltares/Ribasim-sub001/state"
	"github.com/Deltares/Ribasim-sub001/subgrid"
	"github.com/Deltares/Ribasim-sub001/tracer"
)

// Run is the top-level entry point (§4.9): load config, assemble the
// Domain, and drive the simulation from t=0 to the run's horizon.
// Engine/subgridTables/tr are the pieces Build cannot assemble from the
// flat schema tables (see Build's doc comment); pass nil for a run with no
// discrete/continuous control, no subgrid output, and no tracer.
func Run(cfgPath string, eng *control.Engine, subgridTables []*subgrid.Table, tr tracer.Pass) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err := NewLogger(cfg.Output.Dir)
	if err != nil {
		return err
	}
	RunLogPath = logger.Path()
	defer logger.Close()

	dom, err := NewDomain(cfg, eng, subgridTables, tr)
	if err != nil {
		return err
	}
	defer dom.Close()

	tEnd := 0.0
	for _, t := range cfg.Output.SaveAt {
		if t > tEnd {
			tEnd = t
		}
	}
	boundaries := mergeBoundaries(cfg.Output.SaveAt, cfg.Allocation.Dt, tEnd)

	sol := state.NewSolution(dom.Layout)
	if err := dom.Dispatch.Eval(sol); err != nil {
		return err
	}

	t := 0.0
	for _, boundary := range boundaries {
		if boundary <= t {
			continue
		}
		if isAllocationTick(t, cfg.Allocation.Dt) {
			models, err := dom.Allocation.Run(t)
			if err != nil {
				return &NumericalError{Time: t, Msg: "allocation: " + err.Error()}
			}
			for _, m := range models {
				if err := allocation.Writeback(dom.Graph, dom.Store, m, t, dom.Writer); err != nil {
					return err
				}
			}
		}

		dt0 := boundary - t
		if err := Integrate(dom.Dispatch, dom.JacBuilder, dom.Layout, sol, t, boundary, dt0, cfg.Solver.Abstol, cfg.Solver.Reltol); err != nil {
			return &NumericalError{Time: boundary, Msg: "integration failed: " + err.Error()}
		}
		forcingChanged := isAllocationTick(boundary, cfg.Allocation.Dt)
		if err := dom.Scheduler.Step(sol, forcingChanged); err != nil {
			return err
		}
		t = boundary
		log.Printf("advanced to t=%g", t)
	}
	return nil
}

// mergeBoundaries returns the sorted, deduplicated union of saveAt and
// every multiple of allocationDt up to tEnd: §4.4/§4.5's integration loop
// treats each inter-boundary segment as one accepted ODE step, since
// gosl/ode.Solver exposes no per-internal-step callback (see DESIGN.md).
func mergeBoundaries(saveAt []float64, allocationDt, tEnd float64) []float64 {
	set := make(map[float64]bool)
	for _, t := range saveAt {
		set[t] = true
	}
	if allocationDt > 0 {
		for t := allocationDt; t <= tEnd+1e-9; t += allocationDt {
			set[round(t, allocationDt)] = true
		}
	}
	out := make([]float64, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Float64s(out)
	return out
}

// isAllocationTick reports whether t falls on an allocation-clock boundary,
// tolerating floating-point drift from repeated addition in mergeBoundaries.
func isAllocationTick(t, dt float64) bool {
	if dt <= 0 {
		return false
	}
	n := t / dt
	return math.Abs(n-math.Round(n)) < 1e-6
}

// round snaps t to the nearest multiple of dt, undoing the drift that
// accumulates from repeated float addition in mergeBoundaries' loop.
func round(t, dt float64) float64 {
	return math.Round(t/dt) * dt
}
