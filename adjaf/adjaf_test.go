// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package adjaf_test

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/summix/adjaf"
	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

// gnomad_amr = 0.2·eur + 0.5·afr + 0.3·iam
const table = "snp\tref_eur\tref_afr\tref_iam\tgnomad_amr\n" +
	"rs1\t0.10\t0.80\t0.30\t0.51\n" +
	"rs2\t0.55\t0.20\t0.90\t0.48\n" +
	"rs3\t0.90\t0.45\t0.15\t0.45\n" +
	"rs4\t0.25\t0.05\t0.60\t0.255\n" +
	"rs5\t0.70\t0.95\t0.40\t0.735\n" +
	"rs6\t0.05\t0.35\t0.75\t0.41\n"

var refs = []string{"ref_eur", "ref_afr", "ref_iam"}

func quiet() adjaf.Option {
	return adjaf.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func load(t *testing.T) *freq.Table {
	t.Helper()
	tbl, err := freq.Read(strings.NewReader(table), freq.Tab)
	require.NoError(t, err)
	return tbl
}

func column(t *testing.T, tbl *freq.Table, name string) []float64 {
	t.Helper()
	col, err := tbl.Float(name)
	require.NoError(t, err)
	return col
}

func clamp(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func TestAdjustIdentity(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	pi := []float64{0.2, 0.3, 0.5}
	adj, err := adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: pi, Current: pi}, quiet())
	require.NoError(t, err)
	require.Equal(t, column(t, tbl, "gnomad_amr"), adj)
}

func TestAdjustNormalization(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	current := []float64{0.3, 0.3, 0.4}
	scaled, err := adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: []float64{2, 3, 5}, Current: current}, quiet())
	require.NoError(t, err)
	unit, err := adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: []float64{0.2, 0.3, 0.5}, Current: current}, quiet())
	require.NoError(t, err)
	require.InDeltaSlice(t, unit, scaled, 1e-12)

	// the caller's proportions are left untouched
	target := []float64{2, 3, 5}
	_, err = adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: target, Current: current}, quiet())
	require.NoError(t, err)
	require.Equal(t, []float64{2, 3, 5}, target)
	require.Equal(t, []float64{0.3, 0.3, 0.4}, current)
}

func TestAdjustAllPresent(t *testing.T) {
	t.Parallel()

	// the last reference is the pivot
	tbl := load(t)
	target := []float64{0.5, 0.25, 0.25}
	current := []float64{0.2, 0.5, 0.3}
	adj, err := adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: target, Current: current}, quiet())
	require.NoError(t, err)

	eur, afr, obs := column(t, tbl, "ref_eur"), column(t, tbl, "ref_afr"), column(t, tbl, "gnomad_amr")
	c := 0.25 / 0.3
	for i := range obs {
		want := clamp(c*obs[i] + (0.5-c*0.2)*eur[i] + (0.25-c*0.5)*afr[i])
		require.InDelta(t, want, adj[i], 1e-12, "site %d", i)
	}
}

func TestAdjustMissingReference(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	var logs bytes.Buffer
	logger := adjaf.WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	// ref_nat has no data and sits in the middle of the list
	req := adjaf.Request{
		Refs:    []string{"ref_eur", "ref_nat", "ref_afr"},
		Obs:     "gnomad_amr",
		Target:  []float64{0.5, 0.25, 0.25},
		Current: []float64{0.2, 0.3, 0.5},
	}
	adj, err := adjaf.Adjust(tbl, req, logger)
	require.NoError(t, err)
	require.Len(t, adj, tbl.Len())
	require.Contains(t, logs.String(), "reference=ref_nat")

	eur, afr, obs := column(t, tbl, "ref_eur"), column(t, tbl, "ref_afr"), column(t, tbl, "gnomad_amr")
	c := 0.25 / 0.3
	for i := range obs {
		want := clamp(c*obs[i] + (0.5-c*0.2)*eur[i] + (0.25-c*0.5)*afr[i])
		require.InDelta(t, want, adj[i], 1e-12, "site %d", i)
	}
}

func TestAdjustEstimatesCurrent(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	target := []float64{0.2, 0.5, 0.3}
	adj, err := adjaf.Adjust(tbl, adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: target}, quiet(),
		adjaf.WithSolverOptions(summix.WithTolerance(1e-10)))
	require.NoError(t, err)

	// the estimated composition matches the target, so nothing moves
	require.InDeltaSlice(t, column(t, tbl, "gnomad_amr"), adj, 1e-4)
}

func TestAdjustErrors(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	pi := []float64{0.2, 0.3, 0.5}
	tests := []struct {
		name    string
		req     adjaf.Request
		wantErr error
	}{
		{"no refs", adjaf.Request{Obs: "gnomad_amr"}, freq.ErrNoReference},
		{"short target", adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: pi[:2]}, adjaf.ErrTargetLength},
		{"target checked first", adjaf.Request{Refs: refs, Target: pi[:2], Current: pi[:1]}, adjaf.ErrTargetLength},
		{"long current", adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: pi, Current: []float64{1, 1, 1, 1}}, adjaf.ErrCurrentLength},
		{"empty obs", adjaf.Request{Refs: refs, Target: pi}, freq.ErrObservedName},
		{"unknown obs", adjaf.Request{Refs: refs, Obs: "gnomad_nfe", Target: pi, Current: pi}, freq.ErrUnknownColumn},
		{"two missing", adjaf.Request{Refs: []string{"ref_eur", "ref_sas", "ref_nat"}, Obs: "gnomad_amr", Target: pi, Current: pi}, adjaf.ErrTooManyMissing},
		{"missing without current", adjaf.Request{Refs: []string{"ref_eur", "ref_afr", "ref_nat"}, Obs: "gnomad_amr", Target: pi}, adjaf.ErrCurrentRequired},
		{"zero target", adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: []float64{0, 0, 0}, Current: pi}, adjaf.ErrZeroSum},
		{"zero current", adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: pi, Current: []float64{0, 0, 0}}, adjaf.ErrZeroSum},
		{"zero pivot", adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: pi, Current: []float64{0.5, 0.5, 0}}, adjaf.ErrZeroPivot},
		{"zero missing pivot", adjaf.Request{Refs: []string{"ref_nat", "ref_eur", "ref_afr"}, Obs: "gnomad_amr", Target: pi, Current: []float64{0, 0.5, 0.5}}, adjaf.ErrZeroPivot},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			adj, err := adjaf.Adjust(tbl, tc.req, quiet())
			require.ErrorIs(t, err, tc.wantErr)
			require.Nil(t, adj)
		})
	}

	_, err := adjaf.Adjust(tbl, adjaf.Request{Refs: []string{"ref_eur", "ref_afr", "ref_nat"}, Obs: "gnomad_amr", Target: pi}, quiet())
	require.ErrorContains(t, err, "pi_hat")
}

func TestApply(t *testing.T) {
	t.Parallel()

	tbl := load(t)
	req := adjaf.Request{Refs: refs, Obs: "gnomad_amr", Target: []float64{0.1, 0.1, 0.8}, Current: []float64{0.2, 0.5, 0.3}}
	adj, err := adjaf.Adjust(tbl, req, quiet())
	require.NoError(t, err)

	require.NoError(t, adjaf.Apply(tbl, req, quiet()))
	require.Equal(t, adjaf.Column, tbl.Columns()[len(tbl.Columns())-1])
	require.Equal(t, adj, column(t, tbl, adjaf.Column))

	// a second append clashes with the existing column
	require.ErrorIs(t, adjaf.Apply(tbl, req, quiet()), freq.ErrDuplicateColumn)
}

func TestComputeClamp(t *testing.T) {
	t.Parallel()

	obs := mat.NewVecDense(3, []float64{0.9, 0.1, 0.5})
	ref := mat.NewDense(3, 2, []float64{
		0.05, 0.7,
		0.90, 0.2,
		0.50, 0.4,
	})
	// C = 10, weight of the first reference is -9
	adj := adjaf.Compute(obs, ref, []float64{0, 1}, []float64{0.9, 0.1}, adjaf.Missing{})
	require.Equal(t, 1.0, adj[0])
	require.Equal(t, 0.0, adj[1])
	require.InDelta(t, 0.5, adj[2], 1e-12)
}

func TestComputeMissing(t *testing.T) {
	t.Parallel()

	obs := mat.NewVecDense(2, []float64{0.4, 0.6})
	ref := mat.NewDense(2, 1, []float64{0.3, 0.8})
	missing := adjaf.Missing{Index: 0, Name: "ref_nat", Found: true}

	// C = 0.5 / 0.25, adj = 2·t + (0.5 - 2·0.75)·ref
	adj := adjaf.Compute(obs, ref, []float64{0.5, 0.5}, []float64{0.25, 0.75}, missing)
	require.InDeltaSlice(t, []float64{0.5, 0.4}, adj, 1e-12)
}

func TestComputeMissingLast(t *testing.T) {
	t.Parallel()

	// a reference found absent at the last position pivots like the zero Missing,
	// whose last column carries no weight
	obs := mat.NewVecDense(3, []float64{0.4, 0.6, 0.2})
	full := mat.NewDense(3, 3, []float64{
		0.3, 0.7, 0.9,
		0.8, 0.1, 0.5,
		0.2, 0.4, 0.6,
	})
	target, current := []float64{0.5, 0.3, 0.2}, []float64{0.4, 0.4, 0.2}

	all := adjaf.Compute(obs, full, target, current, adjaf.Missing{})
	last := adjaf.Compute(obs, full.Slice(0, 3, 0, 2), target, current,
		adjaf.Missing{Index: 2, Name: "ref_nat", Found: true})
	require.InDeltaSlice(t, all, last, 1e-15)
}
