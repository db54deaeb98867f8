// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package physics

import "github.com/Deltares/Ribasim-sub001/param"

// BasinFluxes holds the instantaneous vertical fluxes of a basin at time t,
// computed from its forcing interpolations (§4.2).
type BasinFluxes struct {
	Precipitation float64 // positive into the basin; not reduced by storage
	Drainage      float64 // positive into the basin; not reduced by storage
	SurfaceRunoff float64 // positive into the basin; not reduced by storage
	Evaporation   float64 // positive out of the basin; reduced near empty
	Infiltration  float64 // positive out of the basin; reduced near empty
}

// EvalBasinFluxes evaluates every forcing term at time t and applies the
// low-storage reduction factor to the two terms that can run a basin dry
// (evaporation and infiltration), per §4.2's "Basin evaporation and
// infiltration derivatives ... multiplied by the same low-storage
// reduction factor when near empty."
func EvalBasinFluxes(b *param.BasinParams, storage, lowStorageThreshold, t float64) BasinFluxes {
	phi := LowStorageFactor(storage, lowStorageThreshold)
	return BasinFluxes{
		Precipitation: tsAt(b.Precipitation, t),
		Drainage:      tsAt(b.Drainage, t),
		SurfaceRunoff: tsAt(b.SurfaceRunoff, t),
		Evaporation:   tsAt(b.Evaporation, t) * phi,
		Infiltration:  tsAt(b.Infiltration, t) * phi,
	}
}

func tsAt(ts *param.TimeSeries, t float64) float64 {
	if ts == nil {
		return 0
	}
	return ts.At(t)
}

// PidIntegralDeriv implements §4.2's PID integral dynamics:
// d(integral)/dt = setpoint(t) - current_value_of_listened_variable(t).
func PidIntegralDeriv(setpoint, listenedValue float64) float64 {
	return setpoint - listenedValue
}
