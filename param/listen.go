// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package param

import (
	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
)

// Variable resolves a (node, variable-name) listen reference to its current
// scalar value, for use by compound variables (§4.6) and PID control
// (§4.2). Supported variable names: "level", "storage", "flow_rate".
func (s *Store) Variable(ref ListenRef, t float64) (float64, error) {
	switch ref.Variable {
	case "level":
		return s.levelOf(ref.Node, t)
	case "storage":
		b, err := s.Basin(ref.Node)
		if err != nil {
			return 0, err
		}
		return b.CurrentStorage, nil
	case "flow_rate":
		return s.flowRateOf(ref.Node, t)
	default:
		return 0, chk.Err("unknown listen variable %q on node %v", ref.Variable, ref.Node.Type)
	}
}

func (s *Store) flowRateOf(id network.NodeId, t float64) (float64, error) {
	if id.Type.IsConnector() {
		c, err := s.Connector(id)
		if err != nil {
			return 0, err
		}
		return c.CommandedFlowRate, nil
	}
	if id.Type == network.FlowBoundary {
		bnd, err := s.Boundary(id)
		if err != nil {
			return 0, err
		}
		return bnd.FlowRate.At(t), nil
	}
	return 0, chk.Err("node %v has no flow_rate variable", id.Type)
}
