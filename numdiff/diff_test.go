// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package numdiff

import (
	"errors"
	"math"
	"slices"
	"testing"
)

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_scalar_scalar)
func TestScalar(t *testing.T) {

	x0 := []float64{1.0}
	sinh := func(x []float64) float64 { return math.Sinh(x[0]) }
	want := []float64{math.Cosh(x0[0])}

	for _, tc := range []struct {
		spec Spec
		tol  float64
	}{
		{Spec{Method: Forward}, 1e-6},
		{Spec{Method: Central}, 1e-9},
		{Spec{Method: Forward, Step: 1.49e-8}, 1e-6},
		{Spec{Method: Central, Step: 1.49e-8}, 1e-6},
	} {
		got, err := tc.spec.Gradient(sinh, x0)
		if err != nil {
			t.Fatal("approx scalar failed", err)
		}
		if !relativeEqual(got, want, tc.tol) {
			t.Fatalf("unexpected approx scalar result %v with %+v", got, tc.spec)
		}
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test__numdiff.py
// (TestApproxDerivativesDense.test_check_derivative)
func TestAccuracy(t *testing.T) {

	wave := func(x []float64) float64 {
		return x[0]*math.Sin(x[1]) + x[1]*math.Cos(x[0])
	}
	x0 := []float64{-10.0, 10}
	want := []float64{
		math.Sin(x0[1]) - x0[1]*math.Sin(x0[0]),
		x0[0]*math.Cos(x0[1]) + math.Cos(x0[0]),
	}
	got, err := Gradient(wave, x0)
	if err != nil {
		t.Fatal("approx gradient failed", err)
	}
	if acc := MaxRelErr(want, got); acc > 1e-8 {
		t.Fatal("approx accuracy not enough", acc)
	}

	zero := func(x []float64) float64 {
		return x[0]*x[1] + math.Cos(x[0]*x[1])
	}
	got, err = Gradient(zero, []float64{0, 0})
	if err != nil {
		t.Fatal("approx gradient failed", err)
	}
	if acc := MaxRelErr([]float64{0, 0}, got); acc > 0 {
		t.Fatal("approx accuracy not enough", acc)
	}
}

func TestBounds(t *testing.T) {

	unit := []Bound{{0, 1}}
	var seen []float64
	square := func(x []float64) float64 {
		seen = append(seen, x[0])
		return x[0] * x[0]
	}
	inside := func() bool {
		for _, x := range seen {
			if x < 0 || x > 1 {
				return false
			}
		}
		return true
	}

	// one-sided second order difference is exact on a quadratic
	got, err := Spec{Method: Central, Bounds: unit}.Gradient(square, []float64{0})
	if err != nil {
		t.Fatal("approx bounded gradient failed", err)
	}
	if got[0] != 0 || !inside() {
		t.Fatal("unexpected bounded central result", got, seen)
	}

	seen = nil
	got, err = Spec{Method: Forward, Bounds: unit}.Gradient(square, []float64{1})
	if err != nil {
		t.Fatal("approx bounded gradient failed", err)
	}
	if math.Abs(got[0]-2) > 1e-6 || !inside() {
		t.Fatal("unexpected bounded forward result", got, seen)
	}

	// unbounded ends behave as no bound at all
	seen = nil
	open := []Bound{{math.Inf(-1), math.NaN()}}
	got, err = Spec{Method: Central, Bounds: open}.Gradient(square, []float64{0.5})
	if err != nil {
		t.Fatal("approx gradient failed", err)
	}
	if !relativeEqual(got, []float64{1}, 1e-9) || slices.Min(seen) >= 0.5 {
		t.Fatal("unexpected unbounded central result", got, seen)
	}
}

func TestGradient(t *testing.T) {

	x0 := []float64{0.2, 0.3, 0.5}
	origin := slices.Clone(x0)
	quad := func(x []float64) float64 {
		return (x[0]-1)*(x[0]-1) + 3*x[1]*x[2] + x[2]*x[2]*x[2]
	}
	want := []float64{2 * (x0[0] - 1), 3 * x0[2], 3*x0[1] + 3*x0[2]*x0[2]}

	got, err := Gradient(quad, x0)
	if err != nil {
		t.Fatal("approx gradient failed", err)
	}
	if MaxRelErr(want, got) > 1e-8 {
		t.Fatal("unexpected approx gradient result")
	}
	if !slices.Equal(x0, origin) {
		t.Fatal("x0 modified")
	}

	for _, tc := range []struct {
		spec Spec
		f    func([]float64) float64
		want error
	}{
		{Spec{Method: Central}, nil, ErrFunction},
		{Spec{Method: Method(7)}, quad, ErrMethod},
		{Spec{Method: Central, Bounds: []Bound{{0, 1}}}, quad, ErrBounds},
		{Spec{Method: Central, Bounds: []Bound{{0, 1}, {1, 0}, {0, 1}}}, quad, ErrBounds},
		{Spec{Method: Forward, Bounds: []Bound{{0, 1}, {0, 1}, {0.6, 1}}}, quad, ErrInfeasible},
	} {
		if _, err = tc.spec.Gradient(tc.f, x0); !errors.Is(err, tc.want) {
			t.Fatalf("want %v, got %v", tc.want, err)
		}
	}
}

func relativeEqual(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, a := range a {
		if a == b[i] {
			continue
		}
		if math.Abs(a-b[i])/math.Max(math.Abs(a), math.Abs(b[i])) > tol {
			return false
		}
	}
	return true
}
