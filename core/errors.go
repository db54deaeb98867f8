// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package core wires the network/param/state/physics/jacobian/control/
// allocation/subgrid/tracer/output packages into a runnable simulation
// (§4.4/§4.9): the schema->graph/store assembler, the domain that owns
// every subsystem, and the stiff ODE integration loop driving them.
package core

import (
	"fmt"
	"strings"

	"github.com/Deltares/Ribasim-sub001/network"
)

// ValidationError collects every structural input error found while
// building a Graph/Store from schema.Tables, mirroring inp.Simulation's
// batch-validation policy (§7): every error is reported in one batch
// rather than aborting on the first.
type ValidationError struct {
	Errs []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation error(s):\n  %s", len(e.Errs), strings.Join(msgs, "\n  "))
}

// Unwrap exposes the underlying errors to errors.Is/errors.As chains.
func (e *ValidationError) Unwrap() []error { return e.Errs }

// NumericalError reports a failure of the integrator or the LP solver at a
// specific node and simulation time (§7): negative storage at a save point,
// LP infeasibility, a singular reduced Jacobian solve. Distinct from
// ValidationError since it is raised mid-run, not at input-parse time.
type NumericalError struct {
	Node network.NodeId
	Time float64
	Msg  string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error at node %v, t=%g: %s", e.Node, e.Time, e.Msg)
}
