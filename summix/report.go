// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summix

import (
	"fmt"
	"io"
	"strings"
)

// Share associates a proportion with its reference name.
type Share struct {
	Reference  string  `yaml:"reference"`
	Proportion float64 `yaml:"proportion"`
}

// Report is the human-facing summary of a Result.
type Report struct {
	Observed    string  `yaml:"observed"`
	Proportions []Share `yaml:"proportions"`
	Objective   float64 `yaml:"objective"`
	Iterations  int     `yaml:"iterations"`
	Runtime     float64 `yaml:"runtime_seconds"`
	Converged   bool    `yaml:"converged"`
	Status      string  `yaml:"status"`
}

// Report pairs every proportion with the reference of the same position.
// Missing names are reported by position.
func (r *Result) Report(refs []string, obs string) Report {
	shares := make([]Share, len(r.Pi))
	for i, p := range r.Pi {
		name := fmt.Sprintf("ref[%d]", i)
		if i < len(refs) {
			name = refs[i]
		}
		shares[i] = Share{Reference: name, Proportion: p}
	}
	return Report{
		Observed:    obs,
		Proportions: shares,
		Objective:   r.Objective,
		Iterations:  r.NumIter,
		Runtime:     r.Elapsed.Seconds(),
		Converged:   r.Converged,
		Status:      r.Status.String(),
	}
}

// WriteText prints the report as plain text.
func (rep Report) WriteText(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Numerical solution via SLSQP using observed population: %s\n", rep.Observed)
	fmt.Fprintf(&sb, "Number of SLSQP iterations: %d\n", rep.Iterations)
	fmt.Fprintf(&sb, "Runtime: %g seconds\n", rep.Runtime)
	fmt.Fprintf(&sb, "Objective: %g\n", rep.Objective)
	if !rep.Converged {
		fmt.Fprintf(&sb, "Warning: not converged (%s)\n", rep.Status)
	}
	for _, s := range rep.Proportions {
		fmt.Fprintf(&sb, "%.6f is the estimated proportion of %s\n", s.Proportion, s.Reference)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
