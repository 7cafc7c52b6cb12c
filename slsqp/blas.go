// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "gonum.org/v1/gonum/blas/blas64"

// Level-1 kernels keep the reference BLAS calling convention of the solver
// and delegate to gonum. A zero increment repeats the first element, as
// dcopy(n, x, 0, y, incy) fills y with x[0]; gonum rejects zero increments
// so those calls are served by the strided loops below.

func vec(n int, x []float64, inc int) blas64.Vector {
	return blas64.Vector{N: n, Data: x, Inc: inc}
}

// strided returns the offsets of n elements spaced by inc, checking they fit in x.
func strided(n, inc int, x []float64) func(i int) int {
	if (n-1)*inc >= len(x) {
		panic("bound check error")
	}
	return func(i int) int { return i * inc }
}

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == 0 {
		return
	}
	if incx == 0 || incy == 0 {
		ix, iy := strided(n, incx, dx), strided(n, incy, dy)
		for i := 0; i < n; i++ {
			dy[iy(i)] += da * dx[ix(i)]
		}
		return
	}
	blas64.Axpy(da, vec(n, dx, incx), vec(n, dy, incy))
}

// ddot computes the dot product of two vectors.
func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	if n <= 0 {
		return zero
	}
	if incx == 0 || incy == 0 {
		dot := zero
		ix, iy := strided(n, incx, dx), strided(n, incy, dy)
		for i := 0; i < n; i++ {
			dot += dx[ix(i)] * dy[iy(i)]
		}
		return dot
	}
	return blas64.Dot(vec(n, dx, incx), vec(n, dy, incy))
}

// dcopy copies a vector, x, to a vector, y.
func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx == 0 || incy == 0 {
		ix, iy := strided(n, incx, dx), strided(n, incy, dy)
		for i := 0; i < n; i++ {
			dy[iy(i)] = dx[ix(i)]
		}
		return
	}
	blas64.Copy(vec(n, dx, incx), vec(n, dy, incy))
}

// dscal scales a vector by a constant.
func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	blas64.Scal(da, vec(n, dx, incx))
}

// dnrm2 computes the Euclidean norm of a vector x.
func dnrm2(n int, x []float64, incx int) float64 {
	if n <= 0 || incx <= 0 {
		return zero
	}
	return blas64.Nrm2(vec(n, x, incx))
}
