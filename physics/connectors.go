// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package physics

import (
	"math"

	"github.com/Deltares/Ribasim-sub001/param"
)

// LinearResistanceFlow implements q = (h_up - h_dn)/R, clipped to
// [-q_max, q_max] (§4.2).
func LinearResistanceFlow(hUp, hDn float64, p *param.ConnectorParams) float64 {
	q := (hUp - hDn) / p.Resistance
	if p.MaxFlow > 0 {
		if q > p.MaxFlow {
			q = p.MaxFlow
		}
		if q < -p.MaxFlow {
			q = -p.MaxFlow
		}
	}
	return q
}

// LinearResistanceFlowDeriv returns dq/dh_up and dq/dh_dn, used verbatim by
// both the Jacobian package and the allocation LP's linearization (§4.5
// step 5): outside the clip range both are zero, matching the clipped
// function's (one-sided) derivative.
func LinearResistanceFlowDeriv(hUp, hDn float64, p *param.ConnectorParams) (dQdHup, dQdHdn float64) {
	q := (hUp - hDn) / p.Resistance
	if p.MaxFlow > 0 && (q > p.MaxFlow || q < -p.MaxFlow) {
		return 0, 0
	}
	return 1 / p.Resistance, -1 / p.Resistance
}

// ManningResistanceFlow implements the open-channel Manning formula of
// §4.2, with the sign(Δh)*sqrt(|Δh|) term replaced by RelaxedRoot below the
// smoothing threshold to keep the derivative bounded at Δh=0.
//
//	q = (1/n) * A * R_h^(2/3) * sqrt(slope_eff)
//
// where the effective driving slope folds in the level difference:
// slope_eff := slope + Δh/length, and the sign/sqrt nonlinearity on
// slope_eff is what RelaxedRoot smooths.
func ManningResistanceFlow(hUp, hDn float64, p *param.ConnectorParams) float64 {
	dh := hUp - hDn
	avgLevel := 0.5 * (hUp + hDn)
	area, hydraulicRadius := manningGeometry(avgLevel, p)
	if area <= 0 {
		return 0
	}
	driving := p.Slope + dh/maxf(p.Length, 1e-9)
	root := RelaxedRoot(driving, relaxedRootEps)
	return (1 / maxf(p.ManningN, 1e-9)) * area * math.Pow(hydraulicRadius, 2.0/3.0) * root
}

// ManningResistanceFlowDeriv returns analytic dq/dh_up and dq/dh_dn for
// ManningResistanceFlow, holding the wetted geometry (area, hydraulic
// radius) fixed at its current evaluation point — the same "freeze
// geometry, differentiate the driving-slope term" linearization the
// allocation LP refresh protocol performs explicitly at step 5 (Manning
// tangent), so the Jacobian and the LP agree on what "the" derivative means.
func ManningResistanceFlowDeriv(hUp, hDn float64, p *param.ConnectorParams) (dQdHup, dQdHdn float64) {
	dh := hUp - hDn
	avgLevel := 0.5 * (hUp + hDn)
	area, hydraulicRadius := manningGeometry(avgLevel, p)
	if area <= 0 {
		return 0, 0
	}
	driving := p.Slope + dh/maxf(p.Length, 1e-9)
	droot := RelaxedRootDeriv(driving, relaxedRootEps)
	coeff := (1 / maxf(p.ManningN, 1e-9)) * area * math.Pow(hydraulicRadius, 2.0/3.0) * droot / maxf(p.Length, 1e-9)
	return coeff, -coeff
}

// manningGeometry returns a simple rectangular-channel area and hydraulic
// radius for a given water level, using ProfileWidth as the channel width;
// this is the minimal wetted-geometry model needed to exercise the Manning
// formula's nonlinearity without modelling full cross-section shapes, which
// §1 scopes out ("does not implement unsteady 2-D hydraulics").
func manningGeometry(level float64, p *param.ConnectorParams) (area, hydraulicRadius float64) {
	depth := level
	if depth <= 0 {
		return 0, 0
	}
	width := maxf(p.ProfileWidth, 1e-9)
	area = width * depth
	wettedPerimeter := width + 2*depth
	hydraulicRadius = area / maxf(wettedPerimeter, 1e-9)
	return
}

// TabulatedRatingCurveFlow implements the piecewise-linear q(h_up) of §4.2:
// constant extrapolation below the minimum level, linear above the maximum.
func TabulatedRatingCurveFlow(hUp float64, p *param.ConnectorParams) float64 {
	return p.RatingCurve.At(hUp)
}

// TabulatedRatingCurveFlowDeriv returns dq/dh_up.
func TabulatedRatingCurveFlowDeriv(hUp float64, p *param.ConnectorParams) float64 {
	_, d := p.RatingCurve.AtDeriv(hUp)
	return d
}

// PumpOrOutletFlow implements the controlled flow rate of §4.2, scaled by
// the low-storage reduction factor of the upstream basin.
func PumpOrOutletFlow(upstreamStorage, lowStorageThreshold float64, p *param.ConnectorParams) float64 {
	if !p.Active {
		return 0
	}
	phi := LowStorageFactor(upstreamStorage, lowStorageThreshold)
	return p.CommandedFlowRate * phi
}

// UserDemandFlow implements §4.2's demand law: the last commanded flow rate,
// reduced by the upstream low-storage factor and a level-availability
// factor on upstreamLevel-minLevel.
//
// The requested demand at the active priority is not an argument (the
// allocation optimizer decides the active
// priority at its own cadence and writes the resulting commanded flow into
// p.CommandedFlowRate the same way it does for pumps/outlets — UserDemand's
// "requested demand" only matters for the LP's own bookkeeping, not the RHS,
// so between allocation solves the physics RHS simply reads the last
// commanded rate like any other allocation-controlled node).
func UserDemandFlow(upstreamStorage, lowStorageThreshold, upstreamLevel, minLevel float64, p *param.ConnectorParams) float64 {
	phi := LowStorageFactor(upstreamStorage, lowStorageThreshold)
	levelFactor := LowStorageFactor(upstreamLevel-minLevel, lowStorageThreshold)
	return p.CommandedFlowRate * phi * levelFactor
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
