// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summix

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// mixture evaluates the squared error of the linear mixture model
//
//	𝒇(𝛑) = ‖ 𝐀𝛑 - 𝐭 ‖₂²
//	𝜵𝒇(𝛑) = 2𝐀ᵀ(𝐀𝛑 - 𝐭)
//
// where 𝐀 is the N×k reference frequencies and 𝐭 the observed frequencies.
// The scratch vectors belong to a single solve.
type mixture struct {
	a   mat.Matrix
	t   mat.Vector
	pi  *mat.VecDense // k
	res *mat.VecDense // N
}

func newMixture(a mat.Matrix, t mat.Vector) *mixture {
	n, k := a.Dims()
	return &mixture{
		a:   a,
		t:   t,
		pi:  mat.NewVecDense(k, nil),
		res: mat.NewVecDense(n, nil),
	}
}

// eval matches slsqp.Evaluation: the gradient is only written when g is not nil.
func (m *mixture) eval(x, g []float64) float64 {
	copy(m.pi.RawVector().Data, x)
	m.res.MulVec(m.a, m.pi)  // 𝐀𝛑
	m.res.SubVec(m.res, m.t) // 𝐀𝛑 - 𝐭
	if g != nil {
		grad := mat.NewVecDense(len(g), g)
		grad.MulVec(m.a.T(), m.res)
		grad.ScaleVec(2, grad)
	}
	return mat.Dot(m.res, m.res)
}

// simplex is the equality constraint ∑𝛑ᵣ - 1 = 0.
func simplex(x, g []float64) float64 {
	for i := range g {
		g[i] = 1
	}
	return floats.Sum(x) - 1
}
