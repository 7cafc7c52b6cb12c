// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

func flags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("summix", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	fs := flags(t, "--file", "data.txt", "--refs", "ref_eur,ref_afr", "--obs", "gnomad_afr")

	cfg, err := Load(Estimate, fs)
	require.NoError(t, err)
	require.Equal(t, Estimate, cfg.Command)
	require.Equal(t, freq.Tab, cfg.Format)
	require.Equal(t, []string{"ref_eur", "ref_afr"}, cfg.Refs)
	require.Equal(t, 2, cfg.K)
	require.Equal(t, ReportText, cfg.Report)
	require.Equal(t, summix.DefaultTolerance, cfg.Tolerance)
	require.Equal(t, summix.DefaultMaxIterations, cfg.MaxIterations)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Nil(t, cfg.Guess)
	require.Nil(t, cfg.Target)
	require.False(t, cfg.NoColor)
	require.False(t, cfg.ExactLineSearch)
	require.Equal(t, DefaultStepMin, cfg.StepMin)
	require.Equal(t, DefaultStepMax, cfg.StepMax)
	require.Zero(t, cfg.ObjectiveTol)
	require.Zero(t, cfg.ObjectiveChange)
	require.Zero(t, cfg.StepChange)
	require.Zero(t, cfg.NNLSIterations)
	require.Zero(t, cfg.CheckGradient)
}

func TestLoad_FormatFromPath(t *testing.T) {
	cfg, err := Load(Estimate, flags(t, "--file", "data.CSV", "--refs", "a", "--obs", "o"))
	require.NoError(t, err)
	require.Equal(t, freq.CSV, cfg.Format)

	cfg, err = Load(Estimate, flags(t, "--file", "data.csv", "--format", "tab", "--refs", "a", "--obs", "o"))
	require.NoError(t, err)
	require.Equal(t, freq.Tab, cfg.Format)

	_, err = Load(Estimate, flags(t, "--file", "data.txt", "--format", "xlsx", "--refs", "a", "--obs", "o"))
	require.ErrorIs(t, err, freq.ErrUnknownFormat)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
file: data.csv
refs: [ref_eur, ref_afr, ref_iam]
obs: gnomad_amr
target: [2, 3, 5]
current: [0.2, 0.5, 0.3]
tolerance: 1e-8
max-iterations: 250
exact-line-search: true
objective-change: 1e-12
step-change: 1e-9
step-min: 0.05
step-max: 0.9
nnls-iterations: 40
check-gradient: 1e-6
log-level: debug
`)

	cfg, err := Load(Adjust, flags(t, "--config", path))
	require.NoError(t, err)
	require.Equal(t, "data.csv", cfg.File)
	require.Equal(t, freq.CSV, cfg.Format)
	require.Equal(t, []string{"ref_eur", "ref_afr", "ref_iam"}, cfg.Refs)
	require.Equal(t, []float64{2, 3, 5}, cfg.Target)
	require.Equal(t, []float64{0.2, 0.5, 0.3}, cfg.Current)
	require.Equal(t, 1e-8, cfg.Tolerance)
	require.Equal(t, 250, cfg.MaxIterations)
	require.True(t, cfg.ExactLineSearch)
	require.Equal(t, 1e-12, cfg.ObjectiveChange)
	require.Equal(t, 1e-9, cfg.StepChange)
	require.Equal(t, 0.05, cfg.StepMin)
	require.Equal(t, 0.9, cfg.StepMax)
	require.Equal(t, 40, cfg.NNLSIterations)
	require.Equal(t, 1e-6, cfg.CheckGradient)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_FlagsPrecedence(t *testing.T) {
	path := writeConfig(t, `
file: data.txt
refs: [ref_eur, ref_afr]
obs: gnomad_afr
tolerance: 1e-8
report: yaml
`)
	t.Setenv("SUMMIX_OBS", "gnomad_nfe")
	t.Setenv("SUMMIX_MAX_ITERATIONS", "42")
	t.Setenv("SUMMIX_CHECK_GRADIENT", "1e-5")

	cfg, err := Load(Estimate, flags(t, "--config", path, "--tolerance", "1e-3", "--refs", "ref_sas", "--refs", "ref_eas"))
	require.NoError(t, err)

	// flag over file
	require.Equal(t, 1e-3, cfg.Tolerance)
	require.Equal(t, []string{"ref_sas", "ref_eas"}, cfg.Refs)
	// env over file
	require.Equal(t, "gnomad_nfe", cfg.Obs)
	// env over default
	require.Equal(t, 42, cfg.MaxIterations)
	require.Equal(t, 1e-5, cfg.CheckGradient)
	// file over default
	require.Equal(t, ReportYAML, cfg.Report)
	require.Equal(t, "data.txt", cfg.File)
}

func TestLoad_EnvLists(t *testing.T) {
	t.Setenv("SUMMIX_FILE", "data.txt")
	t.Setenv("SUMMIX_REFS", "ref_eur, ref_afr")
	t.Setenv("SUMMIX_OBS", "gnomad_afr")
	t.Setenv("SUMMIX_TARGET", "0.4,0.6")

	cfg, err := Load(Adjust, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"ref_eur", "ref_afr"}, cfg.Refs)
	require.Equal(t, []float64{0.4, 0.6}, cfg.Target)
}

func TestLoad_Errors(t *testing.T) {
	base := []string{"--file", "data.txt", "--refs", "a,b", "--obs", "o"}

	tests := []struct {
		name    string
		cmd     string
		args    []string
		wantErr string
	}{
		{"unknown command", "fit", base, "unknown command"},
		{"no file", Estimate, []string{"--refs", "a", "--obs", "o"}, "file is required"},
		{"no refs", Estimate, []string{"--file", "data.txt", "--obs", "o"}, "reference column"},
		{"no obs", Estimate, []string{"--file", "data.txt", "--refs", "a"}, "observed column"},
		{"negative k", Estimate, append(base, "--k=-1"), "k must be positive"},
		{"zero tolerance", Estimate, append(base, "--tolerance", "0"), "tolerance must be positive"},
		{"zero iterations", Estimate, append(base, "--max-iterations", "0"), "max-iterations must be positive"},
		{"negative objective tol", Estimate, append(base, "--objective-tol=-1"), "objective-tol must not be negative"},
		{"negative step change", Estimate, append(base, "--step-change=-1e-9"), "step-change must not be negative"},
		{"negative gradient check", Estimate, append(base, "--check-gradient=-1"), "check-gradient must not be negative"},
		{"inverted step range", Estimate, append(base, "--step-min", "0.8", "--step-max", "0.2"), "step range"},
		{"long step", Estimate, append(base, "--step-max", "2"), "step range"},
		{"negative nnls iterations", Estimate, append(base, "--nnls-iterations=-3"), "nnls-iterations must not be negative"},
		{"bad report", Estimate, append(base, "--report", "json"), "report must be"},
		{"bad level", Estimate, append(base, "--log-level", "loud"), "log-level"},
		{"bad guess", Estimate, append(base, "--guess", "0.5,half"), "guess: entry 1"},
		{"no target", Adjust, base, "target proportions are required"},
		{"adjust k", Adjust, append(base, "--target", "1,1", "--k", "3"), "k = 3 but 2 references"},
		{"missing config", Estimate, append(base, "--config", filepath.Join(t.TempDir(), "absent.yaml")), "absent.yaml"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(tc.cmd, flags(t, tc.args...))
			require.ErrorContains(t, err, tc.wantErr)
			require.Nil(t, cfg)
		})
	}
}
