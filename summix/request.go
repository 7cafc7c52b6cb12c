// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package summix

import (
	"fmt"

	"github.com/curioloop/summix/freq"
)

// Request names the columns of a frequency table to estimate from.
type Request struct {
	// Refs are the reference ancestry columns, in the order of the returned proportions.
	Refs []string
	// Obs is the observed population column.
	Obs string
	// K is the number of proportions, len(Refs) when zero.
	K int
	// Guess is the optional initial iterate.
	Guess []float64
}

// Validate checks the request and fills in K.
func (r *Request) Validate() error {
	if r.K == 0 {
		r.K = len(r.Refs)
	}
	switch {
	case r.K <= 0:
		return fmt.Errorf("%w: got %d", ErrBadK, r.K)
	case r.K != len(r.Refs):
		return fmt.Errorf("%w: k = %d but %d references", ErrBadK, r.K, len(r.Refs))
	case r.Obs == "":
		return freq.ErrObservedName
	case r.Guess != nil && len(r.Guess) != r.K:
		return fmt.Errorf("%w: got %d, k = %d", ErrGuess, len(r.Guess), r.K)
	}
	return nil
}

// Run extracts the request columns from tbl and estimates their proportions.
func Run(tbl *freq.Table, req Request, opts ...Option) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	a, t, err := tbl.Extract(req.Refs, req.Obs)
	if err != nil {
		return nil, err
	}
	if req.Guess != nil {
		opts = append(opts[:len(opts):len(opts)], WithGuess(req.Guess))
	}
	return Estimate(a, t, req.K, opts...)
}
