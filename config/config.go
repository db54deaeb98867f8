// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package config implements the run configuration of [FULL] 4.8: a single
// TOML file loaded via github.com/BurntSushi/toml, mirroring the nested-
// struct-with-tags grouping of a typical inp.Data/inp.SolverData input
// config (JSON tags there, TOML tags here since this spec's configuration
// format is TOML, not JSON).
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/cpmech/gosl/chk"
)

// SolverConfig is the "[solver]" table: the integrator tolerances and
// iteration cap of §4.4/§6.
type SolverConfig struct {
	Abstol  float64 `toml:"abstol"`
	Reltol  float64 `toml:"reltol"`
	MaxIters int    `toml:"maxiters"`
	Dt0     float64 `toml:"dt0"`

	WaterBalanceAbstol float64 `toml:"water_balance_abstol"`
	WaterBalanceReltol float64 `toml:"water_balance_reltol"`
	LowStorageThreshold float64 `toml:"low_storage_threshold"`
}

// AllocationConfig is the "[allocation]" table: the optimizer's own clock
// and solver backend choice of §4.5/§6.
type AllocationConfig struct {
	Dt       float64 `toml:"dt"`
	LPSolver string  `toml:"lp_solver"`
}

// OutputConfig is the "[output]" table: where and how often to write the
// record streams of §6.
type OutputConfig struct {
	Dir    string    `toml:"dir"`
	SaveAt []float64 `toml:"saveat"`
}

// InputConfig names the on-disk location of the input tables of §6, loaded
// by schema.LoadCSV.
type InputConfig struct {
	Dir string `toml:"dir"`
}

// Config is the root TOML document.
type Config struct {
	Solver     SolverConfig     `toml:"solver"`
	Allocation AllocationConfig `toml:"allocation"`
	Output     OutputConfig     `toml:"output"`
	Input      InputConfig      `toml:"input"`
}

// Load reads and validates a Config from a TOML file at path.
func Load(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, chk.Err("config: cannot parse %q: %v", path, err)
	}
	if errs := c.Validate(); len(errs) > 0 {
		return nil, chk.Err("config: %d validation error(s) in %q: %v", len(errs), path, errs)
	}
	return &c, nil
}

// Validate collects every structural configuration error in one batch,
// mirroring inp.Simulation's batch-validation policy (§7: "all validation
// errors are collected and reported in a single batch before aborting").
func (c *Config) Validate() []error {
	var errs []error
	if c.Solver.Abstol <= 0 {
		errs = append(errs, chk.Err("solver.abstol must be positive, got %g", c.Solver.Abstol))
	}
	if c.Solver.Reltol <= 0 {
		errs = append(errs, chk.Err("solver.reltol must be positive, got %g", c.Solver.Reltol))
	}
	if c.Solver.MaxIters <= 0 {
		errs = append(errs, chk.Err("solver.maxiters must be positive, got %d", c.Solver.MaxIters))
	}
	if c.Allocation.Dt <= 0 {
		errs = append(errs, chk.Err("allocation.dt must be positive, got %g", c.Allocation.Dt))
	}
	if c.Input.Dir == "" {
		errs = append(errs, chk.Err("input.dir must be set"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, chk.Err("output.dir must be set"))
	}
	return errs
}
