// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config resolves the command line configuration of the summix tool.
//
// Precedence: flags > env (SUMMIX_*) > config file > defaults.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cast"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

// Sub-commands of the tool.
const (
	Estimate = "estimate"
	Adjust   = "adjust"
)

// Report renderings.
const (
	ReportText = "text"
	ReportYAML = "yaml"
)

// Default line search step range.
const (
	DefaultStepMin = 0.1
	DefaultStepMax = 1.0
)

// EnvPrefix prefixes the environment variables, SUMMIX_MAX_ITERATIONS for max-iterations.
const EnvPrefix = "SUMMIX"

// keys are the viper keys, each bound to the flag of the same name.
var keys = []string{
	"file", "format", "refs", "obs", "k", "guess", "target", "current",
	"output", "report", "tolerance", "max-iterations", "exact-line-search",
	"objective-tol", "objective-change", "step-change", "step-min", "step-max",
	"nnls-iterations", "check-gradient", "log-level", "no-color",
}

// Config is the resolved configuration of one invocation.
type Config struct {
	Command string

	File   string
	Format freq.Format
	Refs   []string
	Obs    string
	K      int
	Guess  []float64

	Target  []float64
	Current []float64
	Output  string

	Report          string
	Tolerance       float64
	MaxIterations   int
	ExactLineSearch bool

	// Extra stopping criteria, 0 disables them.
	ObjectiveTol    float64
	ObjectiveChange float64
	StepChange      float64
	// Line search step range within [0, 1].
	StepMin, StepMax float64
	NNLSIterations   int
	// CheckGradient is the finite difference check tolerance, 0 skips the check.
	CheckGradient float64

	LogLevel slog.Level
	NoColor  bool
}

// RegisterFlags defines every configuration flag on fs.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("config", "", "YAML config file, overridden by flags")
	fs.StringP("file", "f", "", "allele frequency table")
	fs.String("format", "", "table format, tab or csv (guessed from the file extension when empty)")
	fs.StringSlice("refs", nil, "reference ancestry columns")
	fs.String("obs", "", "observed population column")
	fs.Int("k", 0, "number of reference ancestries (defaults to the number of refs)")
	fs.StringSlice("guess", nil, "initial proportions, one per reference")
	fs.StringSlice("target", nil, "target proportions, one per reference (adjust)")
	fs.StringSlice("current", nil, "current proportions of the observed population, estimated when empty (adjust)")
	fs.StringP("output", "o", "", "adjusted table destination, stdout when empty (adjust)")
	fs.String("report", ReportText, "report rendering, text or yaml (estimate)")
	fs.Float64("tolerance", summix.DefaultTolerance, "solver accuracy")
	fs.Int("max-iterations", summix.DefaultMaxIterations, "solver iteration cap")
	fs.Bool("exact-line-search", false, "minimize the merit function along each search direction")
	fs.Float64("objective-tol", 0, "stop once the objective falls below this value (0 disables)")
	fs.Float64("objective-change", 0, "stop once the objective changes by less than this value (0 disables)")
	fs.Float64("step-change", 0, "stop once consecutive iterates are closer than this value (0 disables)")
	fs.Float64("step-min", DefaultStepMin, "smallest line search step")
	fs.Float64("step-max", DefaultStepMax, "largest line search step")
	fs.Int("nnls-iterations", 0, "NNLS sub-problem iteration cap (0 selects three times its size)")
	fs.Float64("check-gradient", 0, "check the analytic gradient against finite differences with this tolerance (0 skips)")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Bool("no-color", false, "disable colored logs")
}

// Load resolves the configuration of cmd and validates it.
// fs may be nil, leaving env and defaults only.
func Load(cmd string, fs *flag.FlagSet) (*Config, error) {
	cfg, err := load(cmd, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func load(cmd string, fs *flag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("format", "")
	v.SetDefault("k", 0)
	v.SetDefault("report", ReportText)
	v.SetDefault("tolerance", summix.DefaultTolerance)
	v.SetDefault("max-iterations", summix.DefaultMaxIterations)
	v.SetDefault("exact-line-search", false)
	v.SetDefault("objective-tol", 0.0)
	v.SetDefault("objective-change", 0.0)
	v.SetDefault("step-change", 0.0)
	v.SetDefault("step-min", DefaultStepMin)
	v.SetDefault("step-max", DefaultStepMax)
	v.SetDefault("nnls-iterations", 0)
	v.SetDefault("check-gradient", 0.0)
	v.SetDefault("log-level", "info")
	v.SetDefault("no-color", false)

	if fs != nil {
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading %s: %w", f.Value.String(), err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for _, key := range keys {
			if f := fs.Lookup(key); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	cfg := &Config{
		Command:         cmd,
		File:            v.GetString("file"),
		Refs:            list(v, "refs"),
		Obs:             v.GetString("obs"),
		K:               v.GetInt("k"),
		Output:          v.GetString("output"),
		Report:          strings.ToLower(v.GetString("report")),
		Tolerance:       v.GetFloat64("tolerance"),
		MaxIterations:   v.GetInt("max-iterations"),
		ExactLineSearch: v.GetBool("exact-line-search"),
		ObjectiveTol:    v.GetFloat64("objective-tol"),
		ObjectiveChange: v.GetFloat64("objective-change"),
		StepChange:      v.GetFloat64("step-change"),
		StepMin:         v.GetFloat64("step-min"),
		StepMax:         v.GetFloat64("step-max"),
		NNLSIterations:  v.GetInt("nnls-iterations"),
		CheckGradient:   v.GetFloat64("check-gradient"),
		NoColor:         v.GetBool("no-color"),
	}

	var err error
	if tag := v.GetString("format"); tag != "" {
		if cfg.Format, err = freq.ParseFormat(tag); err != nil {
			return nil, err
		}
	} else {
		cfg.Format = freq.FormatFromPath(cfg.File)
	}
	if err = cfg.LogLevel.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	if cfg.Guess, err = floats(v, "guess"); err != nil {
		return nil, err
	}
	if cfg.Target, err = floats(v, "target"); err != nil {
		return nil, err
	}
	if cfg.Current, err = floats(v, "current"); err != nil {
		return nil, err
	}
	if cfg.K == 0 {
		cfg.K = len(cfg.Refs)
	}
	return cfg, nil
}

// list reads key as a list, splitting comma separated items from env and flags.
func list(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, s := range strings.Split(item, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// floats reads key as a list of numbers, nil when unset.
func floats(v *viper.Viper, key string) ([]float64, error) {
	items := list(v, key)
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]float64, len(items))
	for i, s := range items {
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", key, i, err)
		}
		out[i] = f
	}
	return out, nil
}
