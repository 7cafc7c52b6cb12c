// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Summix estimates ancestry proportions of an observed population from
// reference allele frequencies, and adjusts observed allele frequencies to a
// target ancestry composition.
//
// Usage:
//
//	summix estimate --file data.txt --refs ref_eur,ref_afr,ref_iam --obs gnomad_amr
//	summix adjust --file data.txt --refs ref_eur,ref_afr,ref_iam --obs gnomad_amr --target .2,.3,.5 -o out.txt
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/curioloop/summix/adjaf"
	"github.com/curioloop/summix/config"
	"github.com/curioloop/summix/freq"
	"github.com/curioloop/summix/summix"
)

func init() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.TimeOnly,
		}),
	))
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("summix failed", "error", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: summix <%s|%s> [flags]\n", config.Estimate, config.Adjust)
	fmt.Fprintln(w, "run 'summix <command> --help' for the flags of a command")
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errors.New("missing command")
	}
	cmd := args[0]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage(stdout)
		return nil
	}

	fs := flag.NewFlagSet("summix "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(cmd, fs)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{
		Level:      cfg.LogLevel,
		TimeFormat: time.TimeOnly,
		NoColor:    cfg.NoColor,
	}))

	tbl, err := freq.Open(cfg.File, cfg.Format)
	if err != nil {
		return err
	}
	logger.Debug("frequency table loaded", "file", cfg.File, "format", cfg.Format, "sites", tbl.Len())

	switch cfg.Command {
	case config.Adjust:
		return adjust(cfg, tbl, stdout, logger)
	default:
		return estimate(cfg, tbl, stdout, logger)
	}
}

func solverOptions(cfg *config.Config, logger *slog.Logger) []summix.Option {
	opts := []summix.Option{
		summix.WithTolerance(cfg.Tolerance),
		summix.WithMaxIterations(cfg.MaxIterations),
		summix.WithLogger(logger),
	}
	if cfg.ExactLineSearch {
		opts = append(opts, summix.WithExactLineSearch())
	}
	if cfg.StepMin != config.DefaultStepMin || cfg.StepMax != config.DefaultStepMax {
		opts = append(opts, summix.WithStepRange(cfg.StepMin, cfg.StepMax))
	}
	if cfg.ObjectiveTol > 0 {
		opts = append(opts, summix.WithObjectiveTolerance(cfg.ObjectiveTol))
	}
	if cfg.ObjectiveChange > 0 {
		opts = append(opts, summix.WithObjectiveChange(cfg.ObjectiveChange))
	}
	if cfg.StepChange > 0 {
		opts = append(opts, summix.WithStepChange(cfg.StepChange))
	}
	if cfg.NNLSIterations > 0 {
		opts = append(opts, summix.WithNNLSIterations(cfg.NNLSIterations))
	}
	if cfg.CheckGradient > 0 {
		opts = append(opts, summix.WithGradientCheck(cfg.CheckGradient))
	}
	return opts
}

func estimate(cfg *config.Config, tbl *freq.Table, w io.Writer, logger *slog.Logger) error {
	req := summix.Request{Refs: cfg.Refs, Obs: cfg.Obs, K: cfg.K, Guess: cfg.Guess}
	res, err := summix.Run(tbl, req, solverOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	rep := res.Report(cfg.Refs, cfg.Obs)
	if cfg.Report != config.ReportYAML {
		return rep.WriteText(w)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

func adjust(cfg *config.Config, tbl *freq.Table, w io.Writer, logger *slog.Logger) error {
	req := adjaf.Request{Refs: cfg.Refs, Obs: cfg.Obs, Target: cfg.Target, Current: cfg.Current}
	err := adjaf.Apply(tbl, req,
		adjaf.WithLogger(logger),
		adjaf.WithSolverOptions(solverOptions(cfg, logger)...))
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		return tbl.Write(w, cfg.Format)
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := tbl.Write(f, cfg.Format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("adjusted table written", "output", cfg.Output, "column", adjaf.Column)
	return nil
}
