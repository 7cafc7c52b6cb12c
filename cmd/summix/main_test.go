// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/curioloop/summix/adjaf"
	"github.com/curioloop/summix/config"
	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

// gnomad_amr = 0.2·eur + 0.5·afr + 0.3·iam
const data = "snp,ref_eur,ref_afr,ref_iam,gnomad_amr\n" +
	"rs1,0.10,0.80,0.30,0.51\n" +
	"rs2,0.55,0.20,0.90,0.48\n" +
	"rs3,0.90,0.45,0.15,0.45\n" +
	"rs4,0.25,0.05,0.60,0.255\n" +
	"rs5,0.70,0.95,0.40,0.735\n" +
	"rs6,0.05,0.35,0.75,0.41\n"

func dataFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freq.csv")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestRunEstimate(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{"estimate", "-f", dataFile(t), "--refs", "ref_eur,ref_afr,ref_iam", "--obs", "gnomad_amr",
		"--tolerance", "1e-10", "--no-color"}, &out, io.Discard)
	require.NoError(t, err)
	require.Contains(t, out.String(), "observed population: gnomad_amr")
	require.Contains(t, out.String(), "is the estimated proportion of ref_afr")
}

func TestRunEstimateYAML(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{"estimate", "-f", dataFile(t), "--refs", "ref_eur,ref_afr,ref_iam", "--obs", "gnomad_amr",
		"--tolerance", "1e-10", "--report", "yaml"}, &out, io.Discard)
	require.NoError(t, err)

	var rep summix.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rep))
	require.Equal(t, "gnomad_amr", rep.Observed)
	require.True(t, rep.Converged)
	require.Len(t, rep.Proportions, 3)
	want := []float64{0.2, 0.5, 0.3}
	for i, s := range rep.Proportions {
		require.InDelta(t, want[i], s.Proportion, 1e-4, s.Reference)
	}
}

func TestRunEstimateExactLineSearch(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{"estimate", "-f", dataFile(t), "--refs", "ref_eur,ref_afr,ref_iam", "--obs", "gnomad_amr",
		"--tolerance", "1e-10", "--exact-line-search", "--report", "yaml"}, &out, io.Discard)
	require.NoError(t, err)

	var rep summix.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rep))
	require.Len(t, rep.Proportions, 3)
	want := []float64{0.2, 0.5, 0.3}
	for i, s := range rep.Proportions {
		require.InDelta(t, want[i], s.Proportion, 1e-3, s.Reference)
	}
}

func TestRunEstimateSolverTuning(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{"estimate", "-f", dataFile(t), "--refs", "ref_eur,ref_afr,ref_iam", "--obs", "gnomad_amr",
		"--tolerance", "1e-10", "--check-gradient", "1e-4", "--step-min", "0.2", "--step-max", "1",
		"--objective-change", "1e-16", "--nnls-iterations", "30", "--report", "yaml"}, &out, io.Discard)
	require.NoError(t, err)

	var rep summix.Report
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &rep))
	require.True(t, rep.Converged)
	want := []float64{0.2, 0.5, 0.3}
	for i, s := range rep.Proportions {
		require.InDelta(t, want[i], s.Proportion, 1e-3, s.Reference)
	}
}

func TestSolverOptions(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Tolerance:     summix.DefaultTolerance,
		MaxIterations: summix.DefaultMaxIterations,
		StepMin:       config.DefaultStepMin,
		StepMax:       config.DefaultStepMax,
	}
	require.Len(t, solverOptions(cfg, slog.Default()), 3)

	cfg.ExactLineSearch = true
	cfg.StepMin = 0.2
	cfg.ObjectiveTol, cfg.ObjectiveChange, cfg.StepChange = 1e-12, 1e-12, 1e-9
	cfg.NNLSIterations = 30
	cfg.CheckGradient = 1e-6
	require.Len(t, solverOptions(cfg, slog.Default()), 10)
}

func TestRunAdjust(t *testing.T) {
	t.Parallel()

	output := filepath.Join(t.TempDir(), "adjusted.csv")
	err := run([]string{"adjust", "-f", dataFile(t), "--refs", "ref_eur,ref_afr,ref_iam", "--obs", "gnomad_amr",
		"--target", "2,5,3", "--current", "0.2,0.5,0.3", "-o", output}, io.Discard, io.Discard)
	require.NoError(t, err)

	tbl, err := freq.Open(output, freq.CSV)
	require.NoError(t, err)
	adj, err := tbl.Float(adjaf.Column)
	require.NoError(t, err)
	obs, err := tbl.Float("gnomad_amr")
	require.NoError(t, err)
	require.InDeltaSlice(t, obs, adj, 1e-12)
}

func TestRunAdjustStdout(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run([]string{"adjust", "-f", dataFile(t), "--refs", "ref_eur,ref_nat,ref_afr", "--obs", "gnomad_amr",
		"--target", ".5,.25,.25", "--current", ".2,.3,.5"}, &out, io.Discard)
	require.NoError(t, err)

	header, _, _ := strings.Cut(out.String(), "\n")
	require.Equal(t, "snp,ref_eur,ref_afr,ref_iam,gnomad_amr,"+adjaf.Column, header)
	require.Equal(t, 7, strings.Count(out.String(), "\n"))
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	file := dataFile(t)
	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"two missing", []string{"adjust", "-f", file, "--refs", "ref_eur,ref_sas,ref_nat", "--obs", "gnomad_amr", "--target", "1,1,1", "--current", "1,1,1"}, adjaf.ErrTooManyMissing},
		{"missing without current", []string{"adjust", "-f", file, "--refs", "ref_eur,ref_afr,ref_nat", "--obs", "gnomad_amr", "--target", "1,1,1"}, adjaf.ErrCurrentRequired},
		{"unknown column", []string{"estimate", "-f", file, "--refs", "ref_eur,ref_sas", "--obs", "gnomad_amr"}, freq.ErrUnknownColumn},
		{"short guess", []string{"estimate", "-f", file, "--refs", "ref_eur,ref_afr", "--obs", "gnomad_amr", "--guess", "1"}, summix.ErrGuess},
		{"no obs", []string{"estimate", "-f", file, "--refs", "ref_eur"}, freq.ErrObservedName},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.args, io.Discard, io.Discard)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	require.Error(t, run(nil, io.Discard, io.Discard))
	require.Error(t, run([]string{"fit", "-f", file}, io.Discard, io.Discard))
	require.Error(t, run([]string{"estimate", "--bogus"}, io.Discard, io.Discard))
	require.Error(t, run([]string{"estimate", "-f", filepath.Join(t.TempDir(), "absent.csv"), "--refs", "a", "--obs", "o"}, io.Discard, io.Discard))
	require.NoError(t, run([]string{"--help"}, io.Discard, io.Discard))
	require.NoError(t, run([]string{"estimate", "--help"}, io.Discard, io.Discard))
}
