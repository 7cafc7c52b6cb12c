// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package summix estimates ancestry proportions from allele frequency data.
//
// Given the allele frequencies 𝐀 (N sites × k reference ancestries) and the
// frequencies 𝐭 of an observed mixed population, the proportions 𝛑 solve
//
//	minimize ‖ 𝐀𝛑 - 𝐭 ‖₂² subject to ∑𝛑ᵣ = 1 and 𝛑ᵣ ≥ 0
//
// The objective is a convex quadratic over the probability simplex,
// so the minimum found by SLSQP is global.
package summix

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/summix/numdiff"
	"github.com/curioloop/summix/slsqp"
)

const (
	// DefaultTolerance is the solution accuracy handed to SLSQP.
	DefaultTolerance = 1e-5
	// DefaultMaxIterations caps the SLSQP iterations.
	DefaultMaxIterations = 100
)

var (
	// ErrBadK the proportion count is not positive or does not match the references.
	ErrBadK = errors.New("summix: k must be a positive integer")
	// ErrShape the data matrix is not N×k or the observed vector is not of length N.
	ErrShape = errors.New("summix: data must be an N×k matrix and a length N vector")
	// ErrGuess the initial iterate does not have k entries.
	ErrGuess = errors.New("summix: initial iterate must be a vector of k entries")
	// ErrGradient the analytic gradient disagrees with its finite difference approximation.
	ErrGradient = errors.New("summix: analytic gradient check failed")
	// ErrSolver the solver could not produce an iterate.
	ErrSolver = errors.New("summix: solver failed")
)

// Result holds the estimated proportions and the solver diagnostics.
type Result struct {
	// Pi is the estimated proportion of each reference, in reference order.
	Pi []float64
	// Objective is ‖ 𝐀𝛑 - 𝐭 ‖₂² at Pi.
	Objective float64
	// NumIter is the number of SLSQP iterations.
	NumIter int
	// Elapsed is the time spent in the solver.
	Elapsed time.Duration
	// Converged is false when the solver stopped without meeting the tolerance,
	// Pi is then the last iterate.
	Converged bool
	// Status is the final solver status.
	Status slsqp.Status
}

// Option configures Estimate.
type Option func(*options)

type options struct {
	guess     []float64
	tol       float64
	maxIter   int
	checkGrad bool
	gradTol   float64
	exact     bool
	alpha     *slsqp.Bound
	stop      slsqp.Termination
	logger    *slog.Logger
}

// WithGuess sets the initial iterate. The default is (1/k, ..., 1/k).
func WithGuess(x0 []float64) Option {
	return func(o *options) { o.guess = x0 }
}

// WithTolerance sets the solution accuracy.
func WithTolerance(tol float64) Option {
	return func(o *options) { o.tol = tol }
}

// WithMaxIterations sets the iteration cap.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIter = n }
}

// WithGradientCheck compares the analytic gradient at the initial iterate with
// central finite differences before solving, failing with ErrGradient when the
// scaled error exceeds tol.
func WithGradientCheck(tol float64) Option {
	return func(o *options) { o.checkGrad, o.gradTol = true, tol }
}

// WithExactLineSearch replaces the Armijo backtracking of SLSQP by an exact
// line search on the merit function.
func WithExactLineSearch() Option {
	return func(o *options) { o.exact = true }
}

// WithStepRange bounds the line search step 𝛂 to [lo, hi] within [0, 1].
// The default range is [0.1, 1], NaN keeps the default end.
func WithStepRange(lo, hi float64) Option {
	return func(o *options) { o.alpha = &slsqp.Bound{Lower: lo, Upper: hi} }
}

// WithObjectiveTolerance stops the solver once ‖ 𝐀𝛑 - 𝐭 ‖₂² < tol.
func WithObjectiveTolerance(tol float64) Option {
	return func(o *options) { o.stop.FEvalTolerance = tol }
}

// WithObjectiveChange stops the solver once the objective changes by less than tol
// between two iterates.
func WithObjectiveChange(tol float64) Option {
	return func(o *options) { o.stop.FDiffTolerance = tol }
}

// WithStepChange stops the solver once two iterates are closer than tol.
func WithStepChange(tol float64) Option {
	return func(o *options) { o.stop.XDiffTolerance = tol }
}

// WithNNLSIterations caps the iterations of the NNLS sub-problem,
// 0 selects three times its size.
func WithNNLSIterations(n int) Option {
	return func(o *options) { o.stop.NNLSIterations = n }
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Estimate finds the proportions 𝛑 on the simplex that best reconstruct t as a·𝛑.
// All argument checks happen before the solver starts.
func Estimate(a mat.Matrix, t mat.Vector, k int, opts ...Option) (*Result, error) {

	o := options{tol: DefaultTolerance, maxIter: DefaultMaxIterations}
	o.stop.FEvalTolerance = math.NaN()
	o.stop.FDiffTolerance = math.NaN()
	o.stop.XDiffTolerance = math.NaN()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrBadK, k)
	}
	if a == nil || t == nil {
		return nil, ErrShape
	}
	if n, c := a.Dims(); n == 0 || c != k || t.Len() != n {
		return nil, fmt.Errorf("%w: got %d×%d matrix, %d observed, k = %d", ErrShape, n, c, t.Len(), k)
	}

	x0 := make([]float64, k)
	switch {
	case o.guess == nil:
		for i := range x0 {
			x0[i] = 1 / float64(k)
		}
	case len(o.guess) != k:
		return nil, fmt.Errorf("%w: got %d, k = %d", ErrGuess, len(o.guess), k)
	default:
		copy(x0, o.guess)
	}

	obj := newMixture(a, t)

	if k == 1 {
		// the simplex is the single point (1)
		pi := []float64{1}
		return &Result{Pi: pi, Objective: obj.eval(pi, nil), Converged: true, Status: slsqp.OK}, nil
	}

	if o.checkGrad {
		if err := checkGradient(obj, x0, o.gradTol); err != nil {
			return nil, err
		}
	}

	bounds := make([]slsqp.Bound, k)
	for i := range bounds {
		bounds[i] = slsqp.Bound{Lower: 0, Upper: math.Inf(1)}
	}

	p := slsqp.Problem{
		N:      k,
		Object: obj.eval,
		EqCons: []slsqp.Evaluation{simplex},
		Bounds: bounds,
		Line:   slsqp.LineSearch{Exact: o.exact, Alpha: o.alpha},
		Stop:   o.stop,
	}
	p.Stop.Accuracy, p.Stop.MaxIterations = o.tol, o.maxIter

	start := time.Now()
	r, err := p.Minimize(x0)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("summix: %w", err)
	}
	if r.Status == slsqp.BadArgument {
		return nil, fmt.Errorf("%w: %v", ErrSolver, r.Status)
	}

	pi, ok := project(r.X)
	if !ok {
		return nil, fmt.Errorf("%w: no finite iterate (%v)", ErrSolver, r.Status)
	}

	res := &Result{
		Pi:        pi,
		Objective: obj.eval(pi, nil),
		NumIter:   r.NumIter,
		Elapsed:   elapsed,
		Converged: r.OK,
		Status:    r.Status,
	}

	if !res.Converged {
		o.logger.Warn("SLSQP stopped before convergence, returning last iterate",
			"status", r.Status.String(), "iterations", r.NumIter)
	}
	o.logger.Debug("SLSQP solve finished",
		"k", k, "iterations", r.NumIter, "objective", res.Objective, "elapsed", elapsed)

	return res, nil
}

// project clips negative entries to zero and rescales to unit sum,
// absorbing the floating error left by the solver.
func project(x []float64) ([]float64, bool) {
	pi := slices.Clone(x)
	for i, v := range pi {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		pi[i] = math.Max(v, 0)
	}
	sum := floats.Sum(pi)
	if sum <= 0 {
		return nil, false
	}
	floats.Scale(1/sum, pi)
	return pi, true
}

func checkGradient(obj *mixture, x0 []float64, tol float64) error {
	fd := numdiff.Spec{Method: numdiff.Central, Bounds: make([]numdiff.Bound, len(x0))}
	for i := range fd.Bounds {
		fd.Bounds[i] = numdiff.Bound{Lower: 0, Upper: math.Inf(1)}
	}
	approx, err := fd.Gradient(func(x []float64) float64 { return obj.eval(x, nil) }, x0)
	if err != nil {
		return fmt.Errorf("summix: %w", err)
	}
	analytic := make([]float64, len(x0))
	obj.eval(x0, analytic)
	if e := numdiff.MaxRelErr(analytic, approx); e > tol {
		return fmt.Errorf("%w: error %g exceeds %g", ErrGradient, e, tol)
	}
	return nil
}
