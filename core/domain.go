// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package core

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/allocation"
	"github.com/Deltares/Ribasim-sub001/callback"
	"github.com/Deltares/Ribasim-sub001/config"
	"github.com/Deltares/Ribasim-sub001/control"
	"github.com/Deltares/Ribasim-sub001/jacobian"
	"github.com/Deltares/Ribasim-sub001/network"
	"github.com/Deltares/Ribasim-sub001/output"
	"github.com/Deltares/Ribasim-sub001/param"
	"github.com/Deltares/Ribasim-sub001/physics"
	"github.com/Deltares/Ribasim-sub001/schema"
	"github.com/Deltares/Ribasim-sub001/state"
	"github.com/Deltares/Ribasim-sub001/subgrid"
	"github.com/Deltares/Ribasim-sub001/tracer"
)

// Domain bundles every subsystem a simulation run needs, the way fem.Domain
// bundles Mesh/Elements/Solver: the graph and store are the shared
// structural data, the rest are views/solvers over them built once at
// startup (§4.9).
type Domain struct {
	Graph   *network.Graph
	Store   *param.Store
	Layout  *state.Layout
	Dispatch *physics.Dispatch

	JacBuilder *jacobian.Builder
	Reduced    *jacobian.ReducedSolve

	Control    *control.Engine
	Allocation *allocation.Network
	Subgrid    *subgrid.Set
	Tracer     tracer.Pass
	Writer     output.Writer
	Scheduler  *callback.Scheduler
}

// NewDomain loads the input schema and wires every subsystem for one run.
// Engine and Subgrid are optional: a nil engine becomes an empty
// control.Engine (no discrete/continuous control), a nil table set becomes
// an empty subgrid.Set (no subgrid output), matching §4.4/§4.9's "every
// subsystem is optional except the graph/store/layout/dispatch core".
func NewDomain(cfg *config.Config, eng *control.Engine, subgridTables []*subgrid.Table, tr tracer.Pass) (*Domain, error) {
	tables, err := schema.LoadCSV(cfg.Input.Dir)
	if err != nil {
		return nil, err
	}
	g, s, err := Build(tables)
	if err != nil {
		return nil, err
	}
	if errs := g.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Errs: errs}
	}
	s.LowStorageThreshold = cfg.Solver.LowStorageThreshold

	layout, err := state.NewLayout(g)
	if err != nil {
		return nil, err
	}
	dispatch := physics.NewDispatch(g, s, layout)

	jacBuilder, err := jacobian.NewBuilder(g, s, layout)
	if err != nil {
		return nil, err
	}
	reduced := jacobian.NewReducedSolve(layout)

	if eng == nil {
		eng = &control.Engine{}
	}
	if err := eng.Init(s, 0); err != nil {
		return nil, err
	}

	allocNet, err := allocation.NewNetwork(g, s, cfg.Allocation.Dt)
	if err != nil {
		return nil, err
	}

	sgSet := subgrid.NewSet(subgridTables)

	if tr == nil {
		tr = tracer.NoOp{}
	}

	writer, err := output.NewCSVWriter(cfg.Output.Dir)
	if err != nil {
		return nil, err
	}

	sched := callback.NewScheduler(g, s, layout, dispatch, eng, sgSet, tr, writer,
		cfg.Output.SaveAt, cfg.Solver.WaterBalanceAbstol, cfg.Solver.WaterBalanceReltol)

	return &Domain{
		Graph:      g,
		Store:      s,
		Layout:     layout,
		Dispatch:   dispatch,
		JacBuilder: jacBuilder,
		Reduced:    reduced,
		Control:    eng,
		Allocation: allocNet,
		Subgrid:    sgSet,
		Tracer:     tr,
		Writer:     writer,
		Scheduler:  sched,
	}, nil
}

// Close releases the domain's output resources.
func (d *Domain) Close() error {
	if d.Writer == nil {
		return nil
	}
	if err := d.Writer.Close(); err != nil {
		return chk.Err("closing output writer: %v", err)
	}
	return nil
}
