// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package adjaf adjusts observed allele frequencies to a target ancestry composition.
//
// With current proportions 𝛑̂ of the observed population, target proportions 𝛑 and a
// pivot ancestry m, every site is re-weighted as
//
//	adj = C·t + ∑ⱼ≠ₘ (𝛑ⱼ - C·𝛑̂ⱼ)·refⱼ   where C = 𝛑ₘ / 𝛑̂ₘ
//
// The pivot is the single reference whose frequencies are absent from the table,
// or the last reference when all of them are present.
package adjaf

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

// Column is the name of the column Apply appends.
const Column = "adjusted_AF"

// previewRows is the number of rows logged for a visual check of the columns.
const previewRows = 5

var (
	// ErrTargetLength the target proportions do not have one entry per reference.
	ErrTargetLength = errors.New("adjaf: pi_target must have one entry per reference")
	// ErrCurrentLength the current proportions do not have one entry per reference.
	ErrCurrentLength = errors.New("adjaf: pi_hat must have one entry per reference")
	// ErrTooManyMissing more than one reference is absent from the table.
	ErrTooManyMissing = errors.New("adjaf: at most one reference may be missing from the table")
	// ErrCurrentRequired a reference is absent so the current proportions cannot be estimated.
	ErrCurrentRequired = errors.New("adjaf: a reference is missing from the table, pi_hat must be supplied")
	// ErrZeroSum a proportion vector sums to zero and cannot be normalized.
	ErrZeroSum = errors.New("adjaf: proportions must have a positive sum")
	// ErrZeroPivot the current proportion of the pivot reference is zero.
	ErrZeroPivot = errors.New("adjaf: pi_hat of the pivot reference must be positive")
)

// Missing identifies the reference without frequency data.
// The zero value means every reference is present.
type Missing struct {
	Index int    // position in the reference list
	Name  string // reference name
	// Found reports whether a reference was found absent from the table,
	// Index and Name are meaningful only then.
	Found bool
}

// pivot returns the position re-weighted by C among k references.
func (m Missing) pivot(k int) int {
	if m.Found {
		return m.Index
	}
	return k - 1
}

// Request names the columns and proportions of one adjustment.
type Request struct {
	// Refs are the reference ancestries, at most one of them may be absent from the table.
	Refs []string
	// Obs is the observed population column.
	Obs string
	// Target is the desired composition, in the order of Refs.
	Target []float64
	// Current is the composition of the observed population, in the order of Refs.
	// It is estimated from the table when nil.
	Current []float64
}

// Validate checks the proportion lengths and the observed name.
func (r *Request) Validate() error {
	k := len(r.Refs)
	switch {
	case k == 0:
		return freq.ErrNoReference
	case len(r.Target) != k:
		return fmt.Errorf("%w: got %d, k = %d", ErrTargetLength, len(r.Target), k)
	case r.Current != nil && len(r.Current) != k:
		return fmt.Errorf("%w: got %d, k = %d", ErrCurrentLength, len(r.Current), k)
	case r.Obs == "":
		return freq.ErrObservedName
	}
	return nil
}

// Option configures Adjust.
type Option func(*options)

type options struct {
	logger *slog.Logger
	solver []summix.Option
}

// WithLogger sets the logger, slog.Default() otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSolverOptions configures the estimation of the current proportions.
func WithSolverOptions(opts ...summix.Option) Option {
	return func(o *options) { o.solver = append(o.solver, opts...) }
}

// Adjust computes the adjusted frequency of every site of tbl.
// Every argument is checked before any numeric work.
func Adjust(tbl *freq.Table, req Request, opts ...Option) ([]float64, error) {

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	k := len(req.Refs)

	found, absent := tbl.Resolve(req.Refs)
	var missing Missing
	switch len(absent) {
	case 0:
	case 1:
		missing = Missing{Index: absent[0], Name: req.Refs[absent[0]], Found: true}
		o.logger.Info("no allele frequency data for reference, one missing ancestry is permitted",
			"reference", missing.Name, "index", missing.Index)
	default:
		names := make([]string, len(absent))
		for i, j := range absent {
			names[i] = req.Refs[j]
		}
		return nil, fmt.Errorf("%w: %q", ErrTooManyMissing, names)
	}

	if missing.Found && req.Current == nil {
		return nil, fmt.Errorf("%w (%q has no data)", ErrCurrentRequired, missing.Name)
	}

	target, err := normalize("pi_target", req.Target)
	if err != nil {
		return nil, err
	}
	var current []float64
	if req.Current != nil {
		if current, err = normalize("pi_hat", req.Current); err != nil {
			return nil, err
		}
		if err = checkPivot(current, missing); err != nil {
			return nil, err
		}
	}

	ref, obs, err := tbl.Extract(found, req.Obs)
	if err != nil {
		return nil, err
	}

	if current == nil {
		res, err := summix.Estimate(ref, obs, k, append(o.solver, summix.WithLogger(o.logger))...)
		if err != nil {
			return nil, fmt.Errorf("adjaf: estimating pi_hat: %w", err)
		}
		o.logger.Info("pi_hat was not supplied, estimated with SUMMIX",
			"pi_hat", res.Pi, "iterations", res.NumIter, "converged", res.Converged)
		if current, err = normalize("pi_hat", res.Pi); err != nil {
			return nil, err
		}
		if err = checkPivot(current, missing); err != nil {
			return nil, err
		}
	}

	used := slices.Clone(found)
	if !missing.Found {
		used = used[:k-1]
	}
	o.logger.Debug("reference columns used in the adjustment", "preview", tbl.Head(used, previewRows))
	o.logger.Debug("observed column used in the adjustment", "preview", tbl.Head([]string{req.Obs}, previewRows))

	adj := Compute(obs, ref, target, current, missing)
	o.logger.Info("adjustment complete", "sites", len(adj), "pivot", req.Refs[missing.pivot(k)])
	return adj, nil
}

// Apply appends the adjusted frequencies to tbl as Column.
func Apply(tbl *freq.Table, req Request, opts ...Option) error {
	adj, err := Adjust(tbl, req, opts...)
	if err != nil {
		return err
	}
	return tbl.Append(Column, adj)
}

// Compute evaluates the adjustment of every site, clamped to [0,1].
// target and current hold one normalized proportion per reference and current must be
// positive at the pivot. ref has one column per reference present in the table, in
// reference order, and one row per entry of obs.
func Compute(obs mat.Vector, ref mat.Matrix, target, current []float64, missing Missing) []float64 {
	k := len(target)
	m := missing.pivot(k)
	c := target[m] / current[m]

	w := make([]float64, k)
	for j := range w {
		w[j] = target[j] - c*current[j]
	}
	// the pivot column is absent from ref when missing, otherwise it carries no weight
	w[m] = 0
	if missing.Found {
		w = slices.Delete(w, m, m+1)
	}

	adj := mat.NewVecDense(obs.Len(), nil)
	adj.MulVec(ref, mat.NewVecDense(len(w), w))
	adj.AddScaledVec(adj, c, obs)

	out := adj.RawVector().Data
	for i, v := range out {
		out[i] = math.Max(0, math.Min(1, v))
	}
	return out
}

// normalize returns p divided by its sum in a new slice.
func normalize(name string, p []float64) ([]float64, error) {
	sum := floats.Sum(p)
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("%w: %s sums to %g", ErrZeroSum, name, sum)
	}
	out := slices.Clone(p)
	floats.Scale(1/sum, out)
	return out, nil
}

func checkPivot(current []float64, missing Missing) error {
	m := missing.pivot(len(current))
	if current[m] <= 0 {
		return fmt.Errorf("%w: pi_hat[%d] = %g", ErrZeroPivot, m, current[m])
	}
	return nil
}
