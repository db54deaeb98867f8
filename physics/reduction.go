// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package physics implements the RHS of §4.2: connector flow laws, basin
// vertical fluxes and PID integral dynamics. Every function here is a pure
// function of its arguments (no access to the mutable parameter store other
// than read-only lookups) so the C1-smoothness contract of §4.2 is easy to
// audit function-by-function.
package physics

import "math"

// LowStorageFactor implements the smooth reduction factor phi(s) of §4.2
// and the GLOSSARY: 0 at s=0, 1 at s=threshold, C1 across the junction via
// the cubic smoothstep (3-2x)x^2.
func LowStorageFactor(storage, threshold float64) float64 {
	if threshold <= 0 {
		if storage > 0 {
			return 1
		}
		return 0
	}
	if storage <= 0 {
		return 0
	}
	if storage >= threshold {
		return 1
	}
	x := storage / threshold
	return (3 - 2*x) * x * x
}

// LowStorageFactorDeriv returns d(phi)/d(storage), needed by the hand-derived
// connector Jacobians of the jacobian package.
func LowStorageFactorDeriv(storage, threshold float64) float64 {
	if threshold <= 0 || storage <= 0 || storage >= threshold {
		return 0
	}
	x := storage / threshold
	// d/dx[(3-2x)x^2] = 6x - 6x^2 = 6x(1-x); chain rule by 1/threshold.
	return 6 * x * (1 - x) / threshold
}

// relaxedRootEps is the smoothing half-width used by RelaxedRoot, chosen
// small enough not to perturb flows away from Δh=0 while keeping the
// derivative finite there (§8's "relaxed_root(0)=0 and |relaxed_root'(0)|
// finite").
const relaxedRootEps = 1e-3

// RelaxedRoot replaces sign(x)*sqrt(|x|) with a cubic polynomial inside
// [-eps, eps] so the ManningResistance flow law (§4.2) stays C1 at Δh=0: the
// true function's derivative blows up at the origin, so a polynomial with
// matching value and slope at +-eps is substituted there.
func RelaxedRoot(x, eps float64) float64 {
	if eps <= 0 {
		eps = relaxedRootEps
	}
	if x >= eps {
		return sqrtSign(x)
	}
	if x <= -eps {
		return sqrtSign(x)
	}
	// cubic p(x) = a*x^3 + b*x matching sqrtSign and its derivative at x=eps,
	// and odd symmetry (p(-x) = -p(x)), giving p(0)=0 and a finite p'(0)=b.
	se := sqrtSign(eps) // = sqrt(eps)
	// f(eps) = sqrt(eps), f'(eps) = 1/(2 sqrt(eps))
	// p(eps) = a eps^3 + b eps = se
	// p'(eps) = 3 a eps^2 + b = 1/(2 se)
	dfe := 1 / (2 * se)
	a := (dfe - se/eps) / (2 * eps * eps)
	b := se/eps - a*eps*eps
	return a*x*x*x + b*x
}

// RelaxedRootDeriv returns d(RelaxedRoot)/dx.
func RelaxedRootDeriv(x, eps float64) float64 {
	if eps <= 0 {
		eps = relaxedRootEps
	}
	if x >= eps || x <= -eps {
		return 0.5 / sqrtSign(absf(x))
	}
	se := sqrtSign(eps)
	dfe := 1 / (2 * se)
	a := (dfe - se/eps) / (2 * eps * eps)
	b := se/eps - a*eps*eps
	return 3*a*x*x + b
}

func sqrtSign(x float64) float64 {
	if x < 0 {
		return -math.Sqrt(-x)
	}
	return math.Sqrt(x)
}

func absf(x float64) float64 { return math.Abs(x) }
