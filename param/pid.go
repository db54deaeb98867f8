// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import "github.com/Deltares/Ribasim-sub001/network"

// ListenRef is a (NodeId, variable-name) pair resolved once to a cached
// index into the parameter store, per §9 "Design Notes": "Listen
// relationships from control nodes to observed nodes are (NodeId,
// variable-name) pairs resolved once to a cached index into the parameter
// store."
type ListenRef struct {
	Node     network.NodeId
	Variable string
}

// PidParams holds a PidControl node's structural data (§3): the listened
// variable, setpoint/P/I/D interpolations, and the controlled node. The
// integral state itself lives in the ODE state vector (state.ClassPidIntegral),
// not here — this struct only holds what's needed to evaluate its
// derivative and its output.
type PidParams struct {
	Listen     ListenRef
	Controlled network.NodeId

	Setpoint *TimeSeries
	Kp       *TimeSeries
	Ki       *TimeSeries
	Kd       *TimeSeries
}

// PidControls is the per-node array of PidParams, indexed like the other
// per-type arrays in Store.
type PidControls []*PidParams
