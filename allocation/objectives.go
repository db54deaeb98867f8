// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package allocation

import (
	"fmt"

	"github.com/cpmech/gosl/chk"

	"github.com/Deltares/Ribasim-sub001/network"
)

// lockTolerance is the slack added when an earlier goal-programming stage's
// achieved objective value is frozen as an upper bound for later stages, to
// absorb the LP solver's own numerical tolerance rather than over-constrain
// the next stage into infeasibility.
const lockTolerance = 1e-6

// Solve runs the four-stage goal-programming objective stack of §4.5:
// maximize allocation per priority (ascending), then fairness per priority,
// then prefer higher water availability, then prefer higher-priority
// sources — each stage preserving every earlier stage's achieved value via
// an added "stay at least as good" row before the next stage's objective
// is installed.
func (m *Model) Solve(g *network.Graph) (Status, error) {
	for _, p := range m.priorities {
		st, err := m.solveStage(m.errorFirstTerms(p), fmt.Sprintf("lock_error_first[%d]", p))
		if err != nil || st != Optimal {
			return st, err
		}
	}
	for _, p := range m.priorities {
		st, err := m.solveStage(m.errorSecondTerms(p), fmt.Sprintf("lock_error_second[%d]", p))
		if err != nil || st != Optimal {
			return st, err
		}
	}
	st, err := m.solveStage(m.lowStorageTerms(), "lock_low_storage")
	if err != nil || st != Optimal {
		return st, err
	}
	return m.solveStage(m.sourcePriorityTerms(g), "")
}

// solveStage installs terms as the sole objective (minimize sum(coef*var)),
// solves, and — if lockName is non-empty — freezes the achieved value as an
// upper-bound constraint so later stages cannot regress it.
func (m *Model) solveStage(terms []Term, lockName string) (Status, error) {
	m.zeroObjective()
	for _, t := range terms {
		m.Solver.SetObj(t.Var, t.Coef)
	}
	status, err := m.Solver.Solve()
	if err != nil {
		return status, err
	}
	if status != Optimal {
		return status, chk.Err("allocation: subnetwork %d objective stage %q terminated %v", m.Subnetwork, lockName, status)
	}
	if lockName != "" && len(terms) > 0 {
		achieved := 0.0
		for _, t := range terms {
			achieved += t.Coef * m.Solver.Value(t.Var)
		}
		m.addConstraintOnce(lockName, terms, LE, achieved+lockTolerance)
	}
	return status, nil
}

// addConstraintOnce adds a constraint the first time it's requested and
// rewrites its RHS on every later request — goal-programming lock rows are
// re-solved (and re-locked) every allocation refresh, so the row itself
// must persist across cycles the same way every other constraint does.
func (m *Model) addConstraintOnce(name string, terms []Term, op RelOp, rhs float64) {
	if idx, ok := m.conByName[name]; ok {
		m.Solver.SetRHS(idx, rhs)
		return
	}
	m.addConstraint(name, terms, op, rhs)
}

func (m *Model) zeroObjective() {
	for _, key := range m.order {
		m.Solver.SetObj(m.vars[key], 0)
	}
}

func (m *Model) errorFirstTerms(p int) []Term {
	var terms []Term
	for _, pair := range m.errorPairs {
		if pair.priority == p {
			terms = append(terms, Term{pair.first, 1})
		}
	}
	return terms
}

func (m *Model) errorSecondTerms(p int) []Term {
	var terms []Term
	for _, pair := range m.errorPairs {
		if pair.priority == p {
			terms = append(terms, Term{pair.second, 1})
		}
	}
	return terms
}

func (m *Model) lowStorageTerms() []Term {
	terms := make([]Term, 0, len(m.basinVars))
	for _, bv := range m.basinVars {
		terms = append(terms, Term{bv.lowStorageFactor, -1})
	}
	return terms
}

// sourcePriorityTerms implements §4.5's `Σ flow[link] / source_priority
// (source_node)`: source_node is the link's upstream (From) node, weighted
// by network.Graph.SourcePriorityOf.
func (m *Model) sourcePriorityTerms(g *network.Graph) []Term {
	var terms []Term
	for _, link := range g.Links() {
		if link.Type != network.FlowLink {
			continue
		}
		v, ok := m.flowLink[link.Id]
		if !ok {
			continue
		}
		sp := g.SourcePriorityOf(link.From)
		if sp <= 0 {
			continue
		}
		terms = append(terms, Term{v, 1 / float64(sp)})
	}
	return terms
}
