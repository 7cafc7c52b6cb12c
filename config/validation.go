// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"math"

	"github.com/curioloop/summix/freq"
)

// Validate reports the first missing or invalid setting of cfg.
// Proportion lengths are left to the estimator and the adjuster.
func Validate(cfg *Config) error {
	switch cfg.Command {
	case Estimate, Adjust:
	default:
		return fmt.Errorf("unknown command %q, want %s or %s", cfg.Command, Estimate, Adjust)
	}

	if cfg.File == "" {
		return fmt.Errorf("an allele frequency file is required")
	}
	if len(cfg.Refs) == 0 {
		return freq.ErrNoReference
	}
	if cfg.Obs == "" {
		return freq.ErrObservedName
	}
	if cfg.K <= 0 {
		return fmt.Errorf("k must be positive, got %d", cfg.K)
	}
	if cfg.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", cfg.Tolerance)
	}
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("max-iterations must be positive, got %d", cfg.MaxIterations)
	}
	for _, tol := range []struct {
		name  string
		value float64
	}{
		{"objective-tol", cfg.ObjectiveTol},
		{"objective-change", cfg.ObjectiveChange},
		{"step-change", cfg.StepChange},
		{"check-gradient", cfg.CheckGradient},
	} {
		if tol.value < 0 || math.IsNaN(tol.value) {
			return fmt.Errorf("%s must not be negative, got %g", tol.name, tol.value)
		}
	}
	if !(0 <= cfg.StepMin && cfg.StepMin <= cfg.StepMax && cfg.StepMax <= 1) {
		return fmt.Errorf("step range must satisfy 0 ≤ step-min ≤ step-max ≤ 1, got [%g, %g]", cfg.StepMin, cfg.StepMax)
	}
	if cfg.NNLSIterations < 0 {
		return fmt.Errorf("nnls-iterations must not be negative, got %d", cfg.NNLSIterations)
	}

	switch cfg.Command {
	case Estimate:
		if cfg.Report != ReportText && cfg.Report != ReportYAML {
			return fmt.Errorf("report must be %s or %s, got %q", ReportText, ReportYAML, cfg.Report)
		}
	case Adjust:
		if len(cfg.Target) == 0 {
			return fmt.Errorf("target proportions are required")
		}
		if cfg.K != len(cfg.Refs) {
			return fmt.Errorf("k = %d but %d references", cfg.K, len(cfg.Refs))
		}
	}
	return nil
}
