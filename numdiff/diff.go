// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff approximates the gradient of a scalar function by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
package numdiff

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

const eps = 0x1p-52 // machine precision

var sqrtEps = math.Sqrt(eps)
var cubeEps = math.Cbrt(eps)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

// Bound limits a variable to [Lower, Upper]. NaN and infinite ends are unbounded.
type Bound struct {
	Lower, Upper float64
}

var (
	ErrFunction   = errors.New("numdiff: object function is required")
	ErrMethod     = errors.New("numdiff: unknown method")
	ErrBounds     = errors.New("numdiff: invalid bounds")
	ErrInfeasible = errors.New("numdiff: x0 violates bound constraints")
)

// Spec describes how the derivatives are estimated.
type Spec struct {
	// Finite difference method to use.
	Method Method
	// Bounds on the variables, nil for none.
	// Every evaluation of the function stays inside them.
	Bounds []Bound
	// Absolute step size, possibly adjusted to fit into the bounds.
	// The default h = 𝛆·𝚜𝚒𝚐𝚗(x)·𝚖𝚊𝚡(1,|x|) is used when Step is zero or vanishes
	// next to x, with 𝛆 = √ε for Forward and ∛ε for Central.
	Step float64
}

// Gradient approximates the gradient of f at x0 with the central difference method.
func Gradient(f func(x []float64) float64, x0 []float64) ([]float64, error) {
	return Spec{Method: Central}.Gradient(f, x0)
}

// Gradient approximates the gradient of f at x0. The point x0 is left untouched.
func (s Spec) Gradient(f func(x []float64) float64, x0 []float64) ([]float64, error) {
	if err := s.check(f, x0); err != nil {
		return nil, err
	}

	x := slices.Clone(x0)
	g := make([]float64, len(x))
	f0 := f(x)
	for i, xi := range x0 {
		h, oneSide := s.step(i, xi)
		switch {
		case s.Method == Forward:
			x[i] = xi + h
			g[i] = (f(x) - f0) / h
		case oneSide:
			x[i] = xi + h
			f1 := f(x)
			x[i] = xi + 2*h
			f2 := f(x)
			g[i] = (4*f1 - 3*f0 - f2) / (2 * h)
		default:
			x[i] = xi - h
			f1 := f(x)
			x[i] = xi + h
			f2 := f(x)
			g[i] = (f2 - f1) / (2 * h)
		}
		x[i] = xi
	}
	return g, nil
}

func (s Spec) check(f func(x []float64) float64, x0 []float64) error {
	switch {
	case f == nil:
		return ErrFunction
	case s.Method != Forward && s.Method != Central:
		return ErrMethod
	case s.Bounds != nil && len(s.Bounds) != len(x0):
		return fmt.Errorf("%w: %d bounds for %d variables", ErrBounds, len(s.Bounds), len(x0))
	}
	for i := range s.Bounds {
		lb, ub := s.bound(i)
		if lb > ub {
			return fmt.Errorf("%w: [%g, %g] at %d", ErrBounds, lb, ub, i)
		}
		if x0[i] < lb || x0[i] > ub {
			return fmt.Errorf("%w: x[%d] = %g", ErrInfeasible, i, x0[i])
		}
	}
	return nil
}

func (s Spec) bound(i int) (lb, ub float64) {
	lb, ub = math.Inf(-1), math.Inf(1)
	if s.Bounds == nil {
		return
	}
	if b := s.Bounds[i]; !math.IsNaN(b.Lower) {
		lb = b.Lower
	}
	if b := s.Bounds[i]; !math.IsNaN(b.Upper) {
		ub = b.Upper
	}
	return
}

// step returns the signed step for x[i] and whether the central scheme
// must fall back to a one-sided difference to respect the bounds.
func (s Spec) step(i int, x float64) (h float64, oneSide bool) {
	e := sqrtEps
	if s.Method == Central {
		e = cubeEps
	}
	if h = s.Step; h == 0 || (x+h)-x == 0 {
		h = math.Copysign(e, x) * math.Max(1, math.Abs(x))
	}

	lb, ub := s.bound(i)
	lower, upper := x-lb, ub-x

	if s.Method == Forward {
		violated := x+h < lb || x+h > ub
		fitting := math.Abs(h) <= math.Max(lower, upper)
		switch {
		case violated && fitting:
			h = -h
		case !fitting && upper >= lower:
			h = upper
		case !fitting:
			h = -lower
		}
		return h, false
	}

	h = math.Abs(h)
	if lower >= h && upper >= h {
		return h, false
	}
	if upper >= lower {
		h = math.Min(h, 0.5*upper)
	} else {
		h = -math.Min(h, 0.5*lower)
	}
	if d := math.Min(lower, upper); math.Abs(h) <= d {
		return d, false
	}
	return h, true
}

// MaxRelErr returns the largest element-wise error between an analytic gradient and its approximation,
// each error scaled by 𝚖𝚊𝚡(1, |approx|).
func MaxRelErr(analytic, approx []float64) float64 {
	maxErr := 0.0
	for i, a := range approx {
		e := math.Abs(analytic[i]-a) / math.Max(1, math.Abs(a))
		maxErr = math.Max(maxErr, e)
	}
	return maxErr
}
